package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig detém a configuração da aplicação.
type AppConfig struct {
	Port        string
	Environment string // "development", "staging", "production"
	LogLevel    string
	AppName     string
	AppVersion  string

	JWTSecret        string
	JWTIssuer        string
	JWTTokenLifespan time.Duration

	DBDriver    string // "postgres" ou "sqlite"
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBPath      string // usado apenas com sqlite
	EnableDBSSL bool

	EncryptionKeyHex string

	AWSRegion         string
	AWSSESEmailSender string

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	SMTPTLS      bool

	FrontendBaseURL         string
	SecurityWebhookURL      string
	PasswordResetCodeTTL    time.Duration
	PasswordResetFinalTTL   time.Duration
	PasswordResetCooldown   time.Duration
	PasswordResetSweepEvery time.Duration

	// FeatureToggles guarda as variáveis FEATURE_* (sem o prefixo).
	FeatureToggles map[string]bool
}

var Cfg AppConfig

// LoadConfig carrega a configuração da aplicação de variáveis de ambiente.
func LoadConfig() AppConfig {
	// Carregar .env para desenvolvimento local, ignorar erro se não existir (para produção)
	if err := godotenv.Load(); err != nil {
		log.Println("Aviso: Arquivo .env não encontrado ou erro ao carregar:", err)
	}

	Cfg.Port = getEnv("PORT", "8080")
	Cfg.Environment = getEnv("ENVIRONMENT", "development")
	Cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	Cfg.AppName = getEnv("APP_NAME", "Inventario")
	Cfg.AppVersion = getEnv("APP_VERSION", "dev")

	// Sem default: a ausência do segredo é um erro de configuração tratado no startup.
	Cfg.JWTSecret = getEnv("JWT_SECRET_KEY", "")
	Cfg.JWTIssuer = getEnv("JWT_ISSUER", "inventario")
	Cfg.JWTTokenLifespan = time.Duration(getEnvAsInt("JWT_TOKEN_LIFESPAN_HOURS", 24)) * time.Hour

	Cfg.DBDriver = strings.ToLower(getEnv("DB_DRIVER", "postgres"))
	Cfg.DBHost = getEnv("DB_HOST", "localhost")
	Cfg.DBPort = getEnv("DB_PORT", "5432")
	Cfg.DBUser = getEnv("DB_USER", "inventario_user")
	Cfg.DBPassword = getEnv("DB_PASSWORD", "inventario_pass")
	Cfg.DBName = getEnv("DB_NAME", "inventario_db")
	Cfg.DBPath = getEnv("DB_PATH", "inventario.db")
	Cfg.EnableDBSSL = getEnvAsBool("DB_SSL_ENABLE", false)

	Cfg.EncryptionKeyHex = getEnv("ENCRYPTION_KEY_HEX", "")

	Cfg.AWSRegion = getEnv("AWS_REGION", "")
	Cfg.AWSSESEmailSender = getEnv("AWS_SES_EMAIL_SENDER", "")

	Cfg.SMTPHost = getEnv("SMTP_HOST", "")
	Cfg.SMTPPort = getEnvAsInt("SMTP_PORT", 587)
	Cfg.SMTPUsername = getEnv("SMTP_USERNAME", "")
	Cfg.SMTPPassword = getEnv("SMTP_PASSWORD", "")
	Cfg.SMTPFrom = getEnv("SMTP_FROM", "")
	Cfg.SMTPFromName = getEnv("SMTP_FROM_NAME", Cfg.AppName)
	Cfg.SMTPTLS = getEnvAsBool("SMTP_TLS", true)

	Cfg.FrontendBaseURL = getEnv("FRONTEND_BASE_URL", "http://localhost:3000")
	Cfg.SecurityWebhookURL = getEnv("SECURITY_WEBHOOK_URL", "")
	Cfg.PasswordResetCodeTTL = getEnvAsDuration("PASSWORD_RESET_CODE_TTL", 15*time.Minute)
	Cfg.PasswordResetFinalTTL = getEnvAsDuration("PASSWORD_RESET_FINAL_TTL", 30*time.Minute)
	Cfg.PasswordResetCooldown = getEnvAsDuration("PASSWORD_RESET_COOLDOWN", 60*time.Second)
	Cfg.PasswordResetSweepEvery = getEnvAsDuration("PASSWORD_RESET_SWEEP_INTERVAL", time.Hour)

	Cfg.FeatureToggles = loadFeatureToggles(os.Environ())

	log.Printf("Configuração carregada para o ambiente: %s", Cfg.Environment)
	return Cfg
}

// PostgresDSN monta a DSN no formato aceito pelo driver pgx do GORM.
func (c AppConfig) PostgresDSN() string {
	sslMode := "disable"
	if c.EnableDBSSL {
		sslMode = "require"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, sslMode)
}

// PostgresURL é a mesma conexão em formato URL, exigido pelo golang-migrate.
func (c AppConfig) PostgresURL() string {
	sslMode := "disable"
	if c.EnableDBSSL {
		sslMode = "require"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, sslMode)
}

func loadFeatureToggles(environ []string) map[string]bool {
	toggles := make(map[string]bool)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, "FEATURE_") {
			continue
		}
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("Aviso: feature toggle '%s' com valor inválido '%s', considerado desabilitado.", key, value)
			continue
		}
		toggles[strings.TrimPrefix(key, "FEATURE_")] = enabled
	}
	return toggles
}

// getEnv retorna o valor de uma variável de ambiente ou um valor default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsBool retorna o valor booleano de uma variável de ambiente ou um valor default.
func getEnvAsBool(key string, defaultValue bool) bool {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Aviso: Variável de ambiente booleana '%s' com valor inválido '%s', usando default: %t. Erro: %v", key, valStr, defaultValue, err)
		return defaultValue
	}
	return valBool
}

func getEnvAsInt(key string, defaultValue int) int {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue
	}
	valInt, err := strconv.Atoi(valStr)
	if err != nil {
		log.Printf("Aviso: Variável de ambiente '%s' com valor inválido '%s', usando default: %d. Erro: %v", key, valStr, defaultValue, err)
		return defaultValue
	}
	return valInt
}

// getEnvAsDuration aceita o formato de time.ParseDuration ("15m", "60s").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(valStr)
	if err != nil || d <= 0 {
		log.Printf("Aviso: Variável de ambiente '%s' com duração inválida '%s', usando default: %s.", key, valStr, defaultValue)
		return defaultValue
	}
	return d
}
