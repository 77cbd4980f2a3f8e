package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"inventario/backend/internal/notifications"
	"inventario/backend/internal/passwordreset"
	"inventario/backend/pkg/features"
	"inventario/backend/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	msgAccountNotFound = "No account exists for this email"
	msgInvalidCode     = "Invalid or expired code"
	msgInvalidPayload  = "Invalid request payload"
)

// PasswordResetHandler expõe o fluxo de recuperação e a troca direta de senha.
type PasswordResetHandler struct {
	resets   *passwordreset.Service
	mailer   notifications.Notifier
	security notifications.SecurityNotifier
	log      *zap.Logger
}

func NewPasswordResetHandler(resets *passwordreset.Service, mailer notifications.Notifier, security notifications.SecurityNotifier, log *zap.Logger) *PasswordResetHandler {
	if security == nil {
		security = notifications.NewSecurityNotifier("")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PasswordResetHandler{resets: resets, mailer: mailer, security: security, log: log.Named("PasswordResetHandler")}
}

// Os e-mails não passam pela regra "email" do validator: o serviço normaliza
// (trim + minúsculas) antes de consultar, e um endereço inválido simplesmente não tem conta.
type EmailPayload struct {
	Email string `json:"email" binding:"required"`
}

type ValidateCodePayload struct {
	Email string `json:"email" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

type ConfirmResetPayload struct {
	Email       string `json:"email" binding:"required"`
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required"`
}

type ChangePasswordPayload struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
}

// notifySecurity publica o evento em background; falhas só são logadas.
func (h *PasswordResetHandler) notifySecurity(c *gin.Context, eventType notifications.SecurityEventType, userID uuid.UUID, email string) {
	event := notifications.SecurityEvent{
		Type:       eventType,
		UserID:     userID,
		Email:      email,
		IP:         c.ClientIP(),
		OccurredAt: time.Now().UTC(),
	}
	ctx := context.WithoutCancel(c.Request.Context())
	go func() {
		if err := h.security.NotifySecurityEvent(ctx, event); err != nil {
			h.log.Warn("Failed to publish security event", zap.String("event", string(eventType)), zap.Error(err))
		}
	}()
}

// UserExistsHandler informa se há conta ativa para o e-mail. Só responde com o toggle USER_EXISTS_CHECK ligado.
func (h *PasswordResetHandler) UserExistsHandler(c *gin.Context) {
	if !features.IsEnabled(features.UserExistsCheck) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}
	var payload EmailPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidPayload})
		return
	}

	exists, err := h.resets.AccountExists(c.Request.Context(), payload.Email)
	if err != nil {
		respondInternalError(c, h.log, "Failed to check account", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"exists": exists})
}

// CooldownHandler devolve quantos segundos faltam para poder pedir outro código.
func (h *PasswordResetHandler) CooldownHandler(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email query parameter is required"})
		return
	}

	remaining, err := h.resets.RemainingCooldown(c.Request.Context(), email)
	if err != nil {
		respondInternalError(c, h.log, "Failed to compute cooldown", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"remaining_seconds": remaining})
}

// RequestCodeHandler emite um código e o envia por e-mail.
func (h *PasswordResetHandler) RequestCodeHandler(c *gin.Context) {
	const stage = "request"
	var payload EmailPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidPayload})
		return
	}

	ctx := c.Request.Context()
	issued, err := h.resets.Issue(ctx, payload.Email)
	if err != nil {
		var cooldown *passwordreset.CooldownError
		switch {
		case errors.Is(err, passwordreset.ErrAccountNotFound):
			metrics.ObservePasswordReset(stage, "not_found")
			c.JSON(http.StatusNotFound, gin.H{"error": msgAccountNotFound})
		case errors.As(err, &cooldown):
			metrics.ObservePasswordReset(stage, "cooldown")
			c.Header("Retry-After", strconv.Itoa(cooldown.RemainingSeconds))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Please wait before requesting a new code",
				"retry_after": cooldown.RemainingSeconds,
			})
		default:
			metrics.ObservePasswordReset(stage, "error")
			respondInternalError(c, h.log, "Failed to issue password reset code", err)
		}
		return
	}

	// A entrega é best-effort: o token já foi gravado e o usuário pode pedir outro após o intervalo.
	if err := h.mailer.SendRecoveryCode(ctx, issued.Email, issued.Name, issued.Code, issued.ExpiresAt); err != nil {
		h.log.Error("Failed to send recovery code email", zap.String("user_id", issued.UserID.String()), zap.Error(err))
	}
	h.notifySecurity(c, notifications.EventPasswordResetRequested, issued.UserID, issued.Email)
	metrics.ObservePasswordReset(stage, "ok")

	c.JSON(http.StatusOK, gin.H{
		"message":    "A recovery code was sent to your email",
		"email":      issued.Email,
		"expires_at": issued.ExpiresAt,
	})
}

// ValidateCodeHandler troca o código pela credencial da etapa final.
func (h *PasswordResetHandler) ValidateCodeHandler(c *gin.Context) {
	const stage = "validate"
	var payload ValidateCodePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidPayload})
		return
	}

	validated, err := h.resets.Validate(c.Request.Context(), payload.Email, payload.Code)
	if err != nil {
		if errors.Is(err, passwordreset.ErrInvalidToken) {
			metrics.ObservePasswordReset(stage, "invalid")
			c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidCode})
			return
		}
		metrics.ObservePasswordReset(stage, "error")
		respondInternalError(c, h.log, "Failed to validate password reset code", err)
		return
	}

	metrics.ObservePasswordReset(stage, "ok")
	c.JSON(http.StatusOK, gin.H{
		"token":      validated.SignedCredential,
		"email":      validated.Email,
		"expires_at": validated.ExpiresAt,
	})
}

// ConfirmResetHandler grava a nova senha.
func (h *PasswordResetHandler) ConfirmResetHandler(c *gin.Context) {
	const stage = "confirm"
	var payload ConfirmResetPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidPayload})
		return
	}

	ctx := c.Request.Context()
	committed, err := h.resets.Commit(ctx, payload.Email, payload.Token, payload.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, passwordreset.ErrInvalidToken):
			metrics.ObservePasswordReset(stage, "invalid")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired token"})
		case errors.Is(err, passwordreset.ErrPasswordPolicy):
			metrics.ObservePasswordReset(stage, "invalid")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be between 8 and 72 characters"})
		default:
			metrics.ObservePasswordReset(stage, "error")
			respondInternalError(c, h.log, "Failed to commit password reset", err)
		}
		return
	}

	if err := h.mailer.SendPasswordChanged(ctx, committed.Email, committed.Name); err != nil {
		h.log.Error("Failed to send password changed email", zap.String("user_id", committed.UserID.String()), zap.Error(err))
	}
	h.notifySecurity(c, notifications.EventPasswordResetCompleted, committed.UserID, committed.Email)
	metrics.ObservePasswordReset(stage, "ok")

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

// ChangePasswordHandler troca a senha do usuário autenticado.
func (h *PasswordResetHandler) ChangePasswordHandler(c *gin.Context) {
	const stage = "change"
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	var payload ChangePasswordPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidPayload})
		return
	}

	ctx := c.Request.Context()
	err := h.resets.ChangePassword(ctx, claims.UserID, payload.CurrentPassword, payload.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, passwordreset.ErrWrongCurrentPassword):
			metrics.ObservePasswordReset(stage, "invalid")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Current password is incorrect"})
		case errors.Is(err, passwordreset.ErrPasswordPolicy):
			metrics.ObservePasswordReset(stage, "invalid")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be between 8 and 72 characters"})
		case errors.Is(err, passwordreset.ErrAccountNotFound):
			metrics.ObservePasswordReset(stage, "not_found")
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
		default:
			metrics.ObservePasswordReset(stage, "error")
			respondInternalError(c, h.log, "Failed to change password", err)
		}
		return
	}

	if err := h.mailer.SendPasswordChanged(ctx, claims.Email, ""); err != nil {
		h.log.Error("Failed to send password changed email", zap.Error(err))
	}
	h.notifySecurity(c, notifications.EventPasswordChanged, claims.UserID, claims.Email)
	metrics.ObservePasswordReset(stage, "ok")

	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}
