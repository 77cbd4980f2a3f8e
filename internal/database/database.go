package database

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"inventario/backend/internal/models"
	"inventario/backend/pkg/config"
	applog "inventario/backend/pkg/log"

	"github.com/glebarez/sqlite"
	"github.com/golang-migrate/migrate/v4"
	postgresdriver "github.com/golang-migrate/migrate/v4/database/postgres" // Renomeado para evitar conflito com gorm/driver/postgres
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var DB *gorm.DB

// Open abre a conexão de acordo com cfg.DBDriver, sem alterar a variável global.
func Open(cfg config.AppConfig) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Environment == "development" && strings.ToLower(cfg.LogLevel) == "debug" {
		logLevel = logger.Info
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}

	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case DriverPostgres, "":
		dialector = postgres.Open(cfg.PostgresDSN())
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DBDriver == DriverSQLite {
		// SQLite não suporta escritas concorrentes; uma conexão evita "database is locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// ConnectDB inicializa a conexão global.
func ConnectDB(cfg config.AppConfig) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	DB = db
	applog.L.Info("Database connection established.", zap.String("driver", db.Dialector.Name()))
	return nil
}

// RunMigrations aplica as migrações SQL embutidas (Postgres) via golang-migrate.
// No SQLite, usado em desenvolvimento e testes, o schema vem do AutoMigrate do GORM.
func RunMigrations(db *gorm.DB) error {
	if db == nil {
		return errors.New("GORM DB instance is nil")
	}
	log := applog.L.Named("RunMigrations")

	if db.Dialector.Name() == DriverSQLite {
		log.Info("Auto-migrating SQLite schema...")
		return AutoMigrate(db)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := postgresdriver.WithInstance(sqlDB, &postgresdriver.Config{})
	if err != nil {
		return fmt.Errorf("could not create postgres driver for migrate: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to initialize migrate: %w", err)
	}

	log.Info("Applying database migrations...")
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("No new database migrations to apply.")
			return nil
		}
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		log.Warn("Could not get migration version after applying", zap.Error(err))
	} else {
		log.Info("Database migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	return nil
}

// AutoMigrate cria/atualiza as tabelas a partir dos modelos.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.PasswordResetToken{},
		&models.SystemSetting{},
	)
}

// GetDB returns the current database instance.
func GetDB() *gorm.DB {
	return DB
}
