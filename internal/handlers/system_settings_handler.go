package handlers

import (
	"context"
	"errors"
	"net/http"

	"inventario/backend/internal/models"
	"inventario/backend/internal/notifications"
	"inventario/backend/pkg/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SystemSettingResponse é a estrutura para retornar configurações ao frontend.
// Importante: este DTO nunca expõe o valor criptografado.
type SystemSettingResponse struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Description string `json:"description"`
	IsEncrypted bool   `json:"is_encrypted"`
}

// UpdateSystemSettingsPayload define a estrutura para a atualização em massa de configurações.
type UpdateSystemSettingsPayload struct {
	Settings []struct {
		Key   string `json:"key" binding:"required"`
		Value string `json:"value"` // O valor pode ser vazio
	} `json:"settings" binding:"required,dive"`
}

type SystemSettingsHandler struct {
	db  *gorm.DB
	cfg config.AppConfig
	log *zap.Logger
	// newEmailNotifier monta o notificador com as configurações atuais (substituível em testes).
	newEmailNotifier func(ctx context.Context, cfg config.AppConfig) notifications.EmailNotifier
}

func NewSystemSettingsHandler(db *gorm.DB, cfg config.AppConfig, log *zap.Logger) *SystemSettingsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &SystemSettingsHandler{
		db:               db,
		cfg:              cfg,
		log:              log.Named("SystemSettingsHandler"),
		newEmailNotifier: notifications.NewEmailNotifierFromConfig,
	}
}

// ListSystemSettingsHandler lista todas as configurações do sistema que podem ser expostas na UI.
func (h *SystemSettingsHandler) ListSystemSettingsHandler(c *gin.Context) {
	var settings []models.SystemSetting
	if err := h.db.WithContext(c.Request.Context()).Where("exposed_to_ui = ?", true).Order("key").Find(&settings).Error; err != nil {
		respondInternalError(c, h.log, "Failed to retrieve system settings", err)
		return
	}

	response := make([]SystemSettingResponse, len(settings))
	for i, s := range settings {
		value, err := s.GetDecryptedValue()
		if err != nil {
			h.log.Error("Failed to decrypt setting value", zap.String("key", s.Key), zap.Error(err))
			value = ""
		}
		// Segredos nunca voltam para a UI; o frontend só sabe se há valor definido.
		if s.IsEncrypted && value != "" {
			value = "******"
		}
		response[i] = SystemSettingResponse{
			Key:         s.Key,
			Value:       value,
			Description: s.Description,
			IsEncrypted: s.IsEncrypted,
		}
	}

	c.JSON(http.StatusOK, response)
}

var errSettingNotUpdatable = errors.New("setting not found or not updatable")

// UpdateSystemSettingsHandler atualiza uma ou mais configurações do sistema numa única transação.
func (h *SystemSettingsHandler) UpdateSystemSettingsHandler(c *gin.Context) {
	var payload UpdateSystemSettingsPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidPayload})
		return
	}

	var failedKey string
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		for _, update := range payload.Settings {
			var setting models.SystemSetting
			if err := tx.Where("key = ? AND exposed_to_ui = ?", update.Key, true).First(&setting).Error; err != nil {
				failedKey = update.Key
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return errSettingNotUpdatable
				}
				return err
			}
			// O hook BeforeSave cuida da criptografia.
			setting.Value = update.Value
			if err := tx.Save(&setting).Error; err != nil {
				failedKey = update.Key
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, errSettingNotUpdatable) {
			h.log.Warn("Attempted to update non-existent or non-UI-exposed setting", zap.String("key", failedKey))
			c.JSON(http.StatusNotFound, gin.H{"error": "Setting not found or not updatable: " + failedKey})
			return
		}
		respondInternalError(c, h.log, "Failed to update system settings", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "System settings updated successfully"})
}

// SendTestEmailHandler envia um e-mail de teste para o usuário autenticado,
// usando as configurações que acabaram de ser salvas.
func (h *SystemSettingsHandler) SendTestEmailHandler(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	cfg := notifications.ApplySystemSettings(h.db.WithContext(ctx), h.cfg)
	email := h.newEmailNotifier(ctx, cfg)

	subject := cfg.AppName + " - Correo de prueba"
	body := "La configuración de correo funciona correctamente."
	if err := email.SendEmail(ctx, claims.Email, subject, "<p>"+body+"</p>", body); err != nil {
		h.log.Error("Failed to send test email", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send test email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Test email sent successfully to " + claims.Email})
}
