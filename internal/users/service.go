// Package users cuida do cadastro, da listagem e da autenticação das contas do painel.
package users

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"regexp"
	"strings"
	"time"

	"inventario/backend/internal/models"
	"inventario/backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmailRequired                = errors.New("email is required")
	ErrEmailInvalid                 = errors.New("email is invalid")
	ErrEmailTaken                   = errors.New("email is already registered")
	ErrNameRequired                 = errors.New("name is required")
	ErrRoleInvalid                  = errors.New("role must be MANAGER or EMPLOYEE")
	ErrOfficeRequired               = errors.New("office is required")
	ErrManagerCanOnlyCreateEmployee = errors.New("manager can only create employees")
	ErrEmployeeCannotList           = errors.New("employees cannot list users")
	ErrForbidden                    = errors.New("not allowed to perform this action")
	ErrRequesterNotFound            = errors.New("requesting user not found")
	ErrInvalidCredentials           = errors.New("invalid email or password")
)

var emailRx = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	generatedPasswordLength = 12
	// sem caracteres ambíguos (0/O, 1/l/I)
	passwordAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghjkmnpqrstuvwxyz23456789"
)

// CreateRequest são os dados de um novo usuário.
type CreateRequest struct {
	Name   string
	Email  string
	Role   models.UserRole
	Office *models.Office
	Phone  string
}

// Created devolve o usuário e a senha gerada, exibida uma única vez.
type Created struct {
	User              *models.User
	GeneratedPassword string
}

type Service struct {
	repo       repository.UserRepository
	bcryptCost int
	now        func() time.Time
	random     io.Reader
	log        *zap.Logger
}

func NewService(repo repository.UserRepository, bcryptCost int, log *zap.Logger) *Service {
	if bcryptCost == 0 {
		bcryptCost = 12
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		bcryptCost: bcryptCost,
		now:        func() time.Time { return time.Now().UTC() },
		random:     rand.Reader,
		log:        log.Named("Users"),
	}
}

func generatePassword(r io.Reader, length int) (string, error) {
	limit := big.NewInt(int64(len(passwordAlphabet)))
	password := make([]byte, length)
	for i := range password {
		n, err := rand.Int(r, limit)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		password[i] = passwordAlphabet[n.Int64()]
	}
	return string(password), nil
}

func (s *Service) requester(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindActiveAccountByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRequesterNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find requester: %w", err)
	}
	return user, nil
}

// Create cadastra um MANAGER ou EMPLOYEE com senha gerada.
// ADMIN cria ambos; MANAGER só cria EMPLOYEE; EMPLOYEE não cria ninguém.
func (s *Service) Create(ctx context.Context, creatorID uuid.UUID, req CreateRequest) (*Created, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)

	switch {
	case email == "":
		return nil, ErrEmailRequired
	case !emailRx.MatchString(email):
		return nil, ErrEmailInvalid
	case name == "":
		return nil, ErrNameRequired
	case req.Role != models.RoleManager && req.Role != models.RoleEmployee:
		return nil, ErrRoleInvalid
	case req.Office == nil || !req.Office.Valid():
		return nil, ErrOfficeRequired
	}

	creator, err := s.requester(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	switch creator.Role {
	case models.RoleAdmin:
	case models.RoleManager:
		if req.Role != models.RoleEmployee {
			return nil, ErrManagerCanOnlyCreateEmployee
		}
	default:
		return nil, ErrForbidden
	}

	taken, err := s.repo.EmailTaken(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}

	password, err := generatePassword(s.random, generatedPasswordLength)
	if err != nil {
		return nil, err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	office := *req.Office
	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashed),
		Role:         req.Role,
		Office:       &office,
		Phone:        strings.TrimSpace(req.Phone),
		IsActive:     true,
		CreatedByID:  &creator.ID,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("User created",
		zap.String("user_id", user.ID.String()),
		zap.String("role", string(user.Role)),
		zap.String("created_by", creator.ID.String()))
	return &Created{User: user, GeneratedPassword: password}, nil
}

// List devolve os usuários visíveis para o solicitante.
// ADMIN vê MANAGERs e EMPLOYEEs ativos; MANAGER vê os EMPLOYEEs ativos da própria oficina.
func (s *Service) List(ctx context.Context, requesterID uuid.UUID, page, pageSize int) ([]models.User, int64, error) {
	requester, err := s.requester(ctx, requesterID)
	if err != nil {
		return nil, 0, err
	}

	var filter repository.UserFilter
	switch requester.Role {
	case models.RoleAdmin:
		filter.Roles = []models.UserRole{models.RoleManager, models.RoleEmployee}
	case models.RoleManager:
		office := requester.OfficeOrNil()
		if office == nil {
			return nil, 0, ErrForbidden
		}
		filter.Roles = []models.UserRole{models.RoleEmployee}
		filter.Office = office
		filter.ExcludeID = &requester.ID
	case models.RoleEmployee:
		return nil, 0, ErrEmployeeCannotList
	default:
		return nil, 0, ErrForbidden
	}

	users, total, err := s.repo.ListActiveUsers(ctx, filter, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}

// Authenticate confere e-mail e senha de uma conta ativa e registra o último acesso.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.repo.FindActiveAccountByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.log.Warn("Failed to update last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	} else {
		user.LastLoginAt = &now
	}
	return user, nil
}

// Me devolve a conta ativa do usuário autenticado.
func (s *Service) Me(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.requester(ctx, id)
}
