package notifications

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"inventario/backend/internal/models"
	"inventario/backend/pkg/config"
	applog "inventario/backend/pkg/log"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Notifier envia os e-mails transacionais da conta.
type Notifier interface {
	SendRecoveryCode(ctx context.Context, to, name, code string, expiresAt time.Time) error
	SendPasswordChanged(ctx context.Context, to, name string) error
	SendWelcome(ctx context.Context, to, name, password string) error
}

// Mailer monta os textos e delega o envio a um EmailNotifier.
type Mailer struct {
	email           EmailNotifier
	appName         string
	frontendBaseURL string
}

var _ Notifier = (*Mailer)(nil)

func NewMailer(email EmailNotifier, appName, frontendBaseURL string) *Mailer {
	if email == nil {
		email = logNotifier{}
	}
	if appName == "" {
		appName = "Inventario"
	}
	return &Mailer{
		email:           email,
		appName:         appName,
		frontendBaseURL: strings.TrimSuffix(frontendBaseURL, "/"),
	}
}

func greeting(name string) string {
	if name == "" {
		return "Hola,"
	}
	return fmt.Sprintf("Hola %s,", name)
}

// toHTML converte o texto em parágrafos HTML com escape.
func toHTML(text string) string {
	var b strings.Builder
	for _, p := range strings.Split(text, "\n\n") {
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(html.EscapeString(p), "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}

func (m *Mailer) send(ctx context.Context, to, subject, text string) error {
	return m.email.SendEmail(ctx, to, subject, toHTML(text), text)
}

func (m *Mailer) SendRecoveryCode(ctx context.Context, to, name, code string, expiresAt time.Time) error {
	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())
	if minutes <= 0 {
		minutes = 15
	}
	subject := fmt.Sprintf("%s - Código de recuperación", m.appName)
	text := fmt.Sprintf("%s\n\nTu código para restablecer la contraseña es: %s\n\nEl código vence en %d minutos. Si no solicitaste el cambio, ignora este mensaje.",
		greeting(name), code, minutes)
	return m.send(ctx, to, subject, text)
}

func (m *Mailer) SendPasswordChanged(ctx context.Context, to, name string) error {
	subject := fmt.Sprintf("%s - Contraseña actualizada", m.appName)
	text := fmt.Sprintf("%s\n\nLa contraseña de tu cuenta fue cambiada el %s (UTC).\n\nSi no fuiste tú, contacta al administrador de inmediato.",
		greeting(name), time.Now().UTC().Format("02/01/2006 15:04"))
	return m.send(ctx, to, subject, text)
}

func (m *Mailer) SendWelcome(ctx context.Context, to, name, password string) error {
	subject := fmt.Sprintf("Bienvenido a %s", m.appName)
	text := fmt.Sprintf("%s\n\nSe creó una cuenta para ti.\nUsuario: %s\nContraseña temporal: %s\n\nIngresa en %s/login y cambia la contraseña.",
		greeting(name), to, password, m.frontendBaseURL)
	return m.send(ctx, to, subject, text)
}

// Chaves de system_settings que sobrepõem a configuração de ambiente.
const (
	SettingSMTPPassword    = "SMTP_PASSWORD"
	SettingFrontendBaseURL = "FRONTEND_BASE_URL"
	SettingAppName         = "APP_NAME"
)

// ApplySystemSettings devolve cfg com os valores de e-mail sobrepostos pelos definidos no banco.
// Configurações ausentes ou vazias mantêm o valor do ambiente.
func ApplySystemSettings(db *gorm.DB, cfg config.AppConfig) config.AppConfig {
	if db == nil {
		return cfg
	}
	log := applog.L.Named("ApplySystemSettings")

	override := func(key string, target *string) {
		value, err := models.GetSystemSetting(db, key)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				log.Warn("Could not read system setting, keeping environment value.", zap.String("key", key), zap.Error(err))
			}
			return
		}
		if value != "" {
			*target = value
		}
	}

	override(SettingSMTPPassword, &cfg.SMTPPassword)
	override(SettingFrontendBaseURL, &cfg.FrontendBaseURL)
	override(SettingAppName, &cfg.AppName)
	return cfg
}
