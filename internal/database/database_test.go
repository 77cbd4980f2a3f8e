package database

import (
	"strings"
	"testing"

	"inventario/backend/internal/models"
	"inventario/backend/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(config.AppConfig{DBDriver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported DB_DRIVER")
}

func TestRunMigrations_SQLite(t *testing.T) {
	db, err := Open(config.AppConfig{DBDriver: DriverSQLite, DBPath: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db))

	for _, model := range []interface{}{&models.User{}, &models.PasswordResetToken{}, &models.SystemSetting{}} {
		assert.True(t, db.Migrator().HasTable(model))
	}
	assert.True(t, db.Migrator().HasIndex(&models.User{}, "idx_users_email"))

	// idempotente
	require.NoError(t, RunMigrations(db))
}

func TestRunMigrations_NilDB(t *testing.T) {
	assert.Error(t, RunMigrations(nil))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file in migrations: %s", name)
		}
	}
	assert.Equal(t, ups, downs)
	assert.Len(t, ups, 3)
}
