package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inventario/backend/internal/auth"
	"inventario/backend/internal/database"
	"inventario/backend/internal/notifications"
	"inventario/backend/internal/passwordreset"
	"inventario/backend/internal/repository"
	"inventario/backend/internal/router"
	"inventario/backend/internal/seeders"
	"inventario/backend/internal/users"
	"inventario/backend/internal/utils"
	"inventario/backend/pkg/config"
	"inventario/backend/pkg/features"
	applog "inventario/backend/pkg/log"
	"inventario/backend/pkg/metrics"

	"go.uber.org/zap"
)

// tokenRetention mantém tokens expirados por um dia antes da limpeza, para auditoria.
const tokenRetention = 24 * time.Hour

func main() {
	cfg := config.LoadConfig()
	applog.Init(cfg.LogLevel, cfg.Environment)
	defer applog.L.Sync()
	log := applog.L.Named("main")

	usingDevKey, err := utils.SetEncryptionKey(cfg.EncryptionKeyHex)
	if err != nil {
		log.Fatal("Invalid encryption key", zap.Error(err))
	}
	if usingDevKey {
		if cfg.Environment == "production" {
			log.Fatal("ENCRYPTION_KEY_HEX must be set in production")
		}
		log.Warn("ENCRYPTION_KEY_HEX not set, using the development key. Encrypted settings are NOT safe.")
	}
	log.Info("Feature toggles loaded", zap.Bool(features.UserExistsCheck, features.IsEnabled(features.UserExistsCheck)))
	metrics.SetAppInfo(cfg.AppVersion)

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTokenLifespan)
	if err != nil {
		log.Fatal("Failed to initialize JWT signer", zap.Error(err))
	}

	if err := database.ConnectDB(cfg); err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	db := database.GetDB()
	if err := seeders.FullSetup(db); err != nil {
		log.Fatal("Failed to prepare database", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Configurações salvas pela UI têm precedência sobre o ambiente.
	mailCfg := notifications.ApplySystemSettings(db, cfg)
	mailer := notifications.NewMailer(notifications.NewEmailNotifierFromConfig(ctx, mailCfg), mailCfg.AppName, mailCfg.FrontendBaseURL)
	security := notifications.NewSecurityNotifier(cfg.SecurityWebhookURL)

	store := repository.NewGormStore(db)
	resets, err := passwordreset.NewService(store, signer, passwordreset.Config{
		CodeTTL:    cfg.PasswordResetCodeTTL,
		FinalTTL:   cfg.PasswordResetFinalTTL,
		Cooldown:   cfg.PasswordResetCooldown,
		BcryptCost: passwordreset.DefaultBcryptCost,
	}, applog.L)
	if err != nil {
		log.Fatal("Failed to initialize password reset service", zap.Error(err))
	}
	userService := users.NewService(store, passwordreset.DefaultBcryptCost, applog.L)

	engine := router.SetupRouter(applog.L, router.Deps{
		DB:       db,
		Config:   cfg,
		Signer:   signer,
		Resets:   resets,
		Users:    userService,
		Mailer:   mailer,
		Security: security,
	})

	go runTokenSweeper(ctx, resets, cfg.PasswordResetSweepEvery, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Starting server", zap.String("port", cfg.Port), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
}

// runTokenSweeper apaga periodicamente os tokens de recuperação expirados.
func runTokenSweeper(ctx context.Context, resets *passwordreset.Service, every time.Duration, log *zap.Logger) {
	if every <= 0 {
		log.Info("Password reset token sweep disabled")
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := resets.SweepExpired(ctx, time.Now().Add(-tokenRetention))
			if err != nil {
				log.Error("Password reset token sweep failed", zap.Error(err))
				continue
			}
			metrics.PasswordResetTokensSwept.Add(float64(n))
			if n > 0 {
				log.Info("Expired password reset tokens removed", zap.Int64("count", n))
			}
		}
	}
}
