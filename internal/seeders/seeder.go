package seeders

import (
	"errors"

	"inventario/backend/internal/database"
	"inventario/backend/internal/models"
	"inventario/backend/internal/notifications"
	applog "inventario/backend/pkg/log"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// defaultSystemSettings são criadas vazias: valor vazio mantém o que vier do ambiente.
var defaultSystemSettings = []models.SystemSetting{
	{
		Key:         notifications.SettingSMTPPassword,
		Description: "Senha do servidor SMTP. Se vazia, usa SMTP_PASSWORD do ambiente.",
		IsEncrypted: true,
		ExposedToUI: true,
	},
	{
		Key:         notifications.SettingFrontendBaseURL,
		Description: "URL pública do painel, usada nos links dos e-mails.",
		ExposedToUI: true,
	},
	{
		Key:         notifications.SettingAppName,
		Description: "Nome exibido no assunto e no corpo dos e-mails.",
		ExposedToUI: true,
	},
}

// SeedInitialData popula o banco de dados com dados iniciais essenciais.
// Cada seeder verifica se os dados já existem antes de inserir.
func SeedInitialData(db *gorm.DB) error {
	log := applog.L.Named("SeedInitialData")
	log.Info("Seeding initial data...")

	if err := seedSystemSettings(db); err != nil {
		log.Error("Failed to seed system settings", zap.Error(err))
		return err
	}

	log.Info("Initial data seeding completed successfully.")
	return nil
}

// seedSystemSettings garante que as configurações padrão do sistema existam no banco,
// sem sobrescrever valores já alterados pela UI.
func seedSystemSettings(db *gorm.DB) error {
	for _, setting := range defaultSystemSettings {
		var existing models.SystemSetting
		err := db.Where("key = ?", setting.Key).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Create(&setting).Error; err != nil {
			return err
		}
	}
	return nil
}

// FullSetup executa migrações e seeding. Usado pelo servidor no startup e pelo comando de setup.
func FullSetup(db *gorm.DB) error {
	if err := database.RunMigrations(db); err != nil {
		return err
	}
	return SeedInitialData(db)
}
