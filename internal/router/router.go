package router

import (
	"net/http"
	"time"

	"inventario/backend/internal/access"
	"inventario/backend/internal/auth"
	"inventario/backend/internal/handlers"
	appmiddleware "inventario/backend/internal/middleware"
	"inventario/backend/internal/notifications"
	"inventario/backend/internal/passwordreset"
	"inventario/backend/internal/users"
	"inventario/backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps são as dependências montadas no main.
type Deps struct {
	DB       *gorm.DB
	Config   config.AppConfig
	Signer   *auth.Signer
	Resets   *passwordreset.Service
	Users    *users.Service
	Mailer   notifications.Notifier
	Security notifications.SecurityNotifier
}

// SetupRouter configura e retorna uma instância do Gin Engine.
func SetupRouter(log *zap.Logger, deps Deps) *gin.Engine {
	router := gin.New()

	// Adicionar middlewares globais
	router.Use(appmiddleware.Metrics())
	router.Use(appmiddleware.GinZap(log, time.RFC3339, true))
	router.Use(appmiddleware.GinRecovery(log, time.RFC3339, true, true))

	// Endpoint para métricas Prometheus
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Rotas de Saúde
	router.GET("/health", healthCheckHandler(deps.DB, log))

	authHandler := handlers.NewAuthHandler(deps.Users, deps.Signer, log)
	resetHandler := handlers.NewPasswordResetHandler(deps.Resets, deps.Mailer, deps.Security, log)
	userHandler := handlers.NewUserHandler(deps.Users, deps.Mailer, log)
	settingsHandler := handlers.NewSystemSettingsHandler(deps.DB, deps.Config, log)

	// Rotas de Autenticação
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/signin", authHandler.LoginHandler)

		resetRoutes := authRoutes.Group("/password-reset")
		{
			resetRoutes.POST("/user-exists", resetHandler.UserExistsHandler)
			resetRoutes.GET("/cooldown", resetHandler.CooldownHandler)
			resetRoutes.POST("/request", resetHandler.RequestCodeHandler)
			resetRoutes.POST("/validate", resetHandler.ValidateCodeHandler)
			resetRoutes.POST("/confirm", resetHandler.ConfirmResetHandler)
		}
	}

	// Rotas da API v1 (protegidas por JWT)
	apiV1 := router.Group("/api/v1")
	apiV1.Use(auth.AuthMiddleware(deps.Signer))
	{
		apiV1.GET("/me", authHandler.MeHandler)
		apiV1.GET("/me/navigation", authHandler.NavigationHandler)
		apiV1.POST("/me/password", resetHandler.ChangePasswordHandler)

		userRoutes := apiV1.Group("/users")
		userRoutes.Use(auth.RequireAccess(access.Agents))
		{
			userRoutes.GET("", userHandler.ListUsersHandler)
			userRoutes.POST("", userHandler.CreateUserHandler)
		}

		settingsRoutes := apiV1.Group("/admin/settings")
		settingsRoutes.Use(auth.RequireAccess(access.Settings))
		{
			settingsRoutes.GET("", settingsHandler.ListSystemSettingsHandler)
			settingsRoutes.PUT("", auth.RequireAccess(access.SettingsWrite), settingsHandler.UpdateSystemSettingsHandler)
			settingsRoutes.POST("/test-email", auth.RequireAccess(access.SettingsWrite), settingsHandler.SendTestEmailHandler)
		}
	}

	return router
}

func healthCheckHandler(db *gorm.DB, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "database not initialized"})
			return
		}
		// Obter a instância do banco de dados SQL do GORM
		sqlDB, err := db.DB()
		if err != nil {
			log.Error("Erro ao obter a instância do DB para o health check", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "database instance error"})
			return
		}

		// Ping no banco de dados para verificar a conectividade
		if err := sqlDB.PingContext(c.Request.Context()); err != nil {
			log.Error("Falha no ping do banco de dados durante o health check", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "database ping failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"database": "connected",
		})
	}
}
