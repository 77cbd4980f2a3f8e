package models

import (
	"inventario/backend/internal/utils"

	"gorm.io/gorm"
)

// SystemSetting armazena configurações globais do sistema no banco de dados.
// Permite alterar remetente, URL do frontend etc. pela UI sem reiniciar a aplicação.
type SystemSetting struct {
	gorm.Model
	Key         string `gorm:"type:varchar(100);uniqueIndex;not null"` // ex: "FRONTEND_BASE_URL"
	Value       string `gorm:"type:text;not null"`                     // criptografado quando IsEncrypted
	Description string `gorm:"type:varchar(255)"`
	IsEncrypted bool   `gorm:"not null;default:false"`
	ExposedToUI bool   `gorm:"not null"`
}

// BeforeSave é um hook do GORM que criptografa o valor antes de salvar.
func (s *SystemSetting) BeforeSave(tx *gorm.DB) (err error) {
	if s.IsEncrypted && s.Value != "" {
		encryptedValue, err := utils.Encrypt(s.Value)
		if err != nil {
			return err
		}
		s.Value = encryptedValue
	}
	return nil
}

// GetDecryptedValue descriptografa e retorna o valor da configuração.
func (s *SystemSetting) GetDecryptedValue() (string, error) {
	if !s.IsEncrypted || s.Value == "" {
		return s.Value, nil
	}
	return utils.Decrypt(s.Value)
}

// GetSystemSetting busca uma configuração específica no banco de dados e retorna seu valor descriptografado.
func GetSystemSetting(db *gorm.DB, key string) (string, error) {
	var setting SystemSetting
	if err := db.Where("key = ?", key).First(&setting).Error; err != nil {
		return "", err
	}
	return setting.GetDecryptedValue()
}
