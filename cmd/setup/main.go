package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"inventario/backend/internal/database"
	"inventario/backend/internal/models"
	"inventario/backend/internal/passwordreset"
	"inventario/backend/internal/repository"
	"inventario/backend/internal/seeders"
	"inventario/backend/internal/utils"
	"inventario/backend/pkg/config"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/term" // For password masking
)

// readInput reads a line of text from the console.
func readInput(reader *bufio.Reader, prompt string) string {
	fmt.Print(prompt)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// readPassword reads a password from the console, masking the input.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(bytePassword)), nil
}

// readNewPassword pede a senha duas vezes até que confira e respeite a política.
func readNewPassword() string {
	for {
		password, err := readPassword("Enter Password: ")
		if err != nil {
			log.Fatalf("Failed to read password: %v", err)
		}
		if err := passwordreset.CheckPasswordPolicy(password); err != nil {
			fmt.Printf("Password must have at least %d characters (max 72 bytes). Please try again.\n", passwordreset.MinPasswordLength)
			continue
		}
		confirm, err := readPassword("Confirm Password: ")
		if err != nil {
			log.Fatalf("Failed to read password confirmation: %v", err)
		}
		if password == confirm {
			return password
		}
		fmt.Println("Passwords do not match. Please try again.")
	}
}

func connect() *repository.GormStore {
	cfg := config.LoadConfig()
	if _, err := utils.SetEncryptionKey(cfg.EncryptionKeyHex); err != nil {
		log.Fatalf("Invalid ENCRYPTION_KEY_HEX: %v", err)
	}

	fmt.Printf("Connecting to database (%s)...\n", cfg.DBDriver)
	if err := database.ConnectDB(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	fmt.Println("Successfully connected to the database.")

	fmt.Println("\n--- Running Database Migrations ---")
	if err := seeders.FullSetup(database.GetDB()); err != nil {
		log.Fatalf("Database setup failed: %v", err)
	}
	fmt.Println("Database migrations and seeding completed successfully.")
	return repository.NewGormStore(database.GetDB())
}

// runSetup cria a primeira conta ADMIN.
func runSetup() {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("--- Inventario Setup ---")
	store := connect()
	ctx := context.Background()

	fmt.Println("\n--- Creating Admin User ---")
	adminName := readInput(reader, "Enter Admin User Name: ")
	adminEmail := passwordreset.NormalizeEmail(readInput(reader, "Enter Admin User Email: "))
	if adminName == "" || adminEmail == "" {
		log.Fatal("Name and email are required.")
	}

	taken, err := store.EmailTaken(ctx, adminEmail)
	if err != nil {
		log.Fatalf("Failed to check email: %v", err)
	}
	if taken {
		log.Fatalf("An account with email '%s' already exists. Use 'reset-admin-password' to change its password.", adminEmail)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(readNewPassword()), passwordreset.DefaultBcryptCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	adminUser := models.User{
		Name:         adminName,
		Email:        adminEmail,
		PasswordHash: string(hashedPassword),
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	if err := store.CreateUser(ctx, &adminUser); err != nil {
		log.Fatalf("Failed to create admin user: %v", err)
	}
	fmt.Printf("Admin user '%s' created successfully.\n", adminUser.Email)

	fmt.Println("\n--- Inventario Setup Complete! ---")
	fmt.Println("You can now start the main application server.")
}

// runResetAdminPassword troca a senha de uma conta pelo e-mail, sem passar pelo fluxo de código.
func runResetAdminPassword() {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("--- Inventario: Reset Password ---")
	store := connect()

	email := passwordreset.NormalizeEmail(readInput(reader, "Enter Account Email: "))
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(readNewPassword()), passwordreset.DefaultBcryptCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	if err := store.UpdatePasswordHashByEmail(context.Background(), email, string(hashedPassword)); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Fatalf("No account found for '%s'.", email)
		}
		log.Fatalf("Failed to update password: %v", err)
	}
	fmt.Printf("Password for '%s' updated successfully.\n", email)
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "reset-admin-password" {
		runResetAdminPassword()
		return
	}
	runSetup()
}
