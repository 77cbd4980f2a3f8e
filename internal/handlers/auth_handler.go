package handlers

import (
	"errors"
	"net/http"

	"inventario/backend/internal/access"
	"inventario/backend/internal/auth"
	"inventario/backend/internal/models"
	"inventario/backend/internal/users"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LoginPayload struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token  string          `json:"token"`
	UserID string          `json:"user_id"`
	Email  string          `json:"email"`
	Name   string          `json:"name"`
	Role   models.UserRole `json:"role"`
	Office *models.Office  `json:"office,omitempty"`
}

// AuthHandler cobre login e os dados do usuário autenticado.
type AuthHandler struct {
	users  *users.Service
	signer *auth.Signer
	log    *zap.Logger
}

func NewAuthHandler(users *users.Service, signer *auth.Signer, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{users: users, signer: signer, log: log.Named("AuthHandler")}
}

// LoginHandler autentica por e-mail e senha e emite o token de sessão.
func (h *AuthHandler) LoginHandler(c *gin.Context) {
	var payload LoginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidPayload})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), payload.Email, payload.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		respondInternalError(c, h.log, "Failed to authenticate user", err)
		return
	}

	tokenString, err := h.signer.GenerateToken(user)
	if err != nil {
		respondInternalError(c, h.log, "Failed to generate token", err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:  tokenString,
		UserID: user.ID.String(),
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
		Office: user.OfficeOrNil(),
	})
}

// MeHandler devolve o perfil do usuário autenticado.
func (h *AuthHandler) MeHandler(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	user, err := h.users.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, users.ErrRequesterNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Account not found"})
			return
		}
		respondInternalError(c, h.log, "Failed to load profile", err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// NavigationHandler devolve os itens do menu visíveis para o papel e a oficina do token.
func (h *AuthHandler) NavigationHandler(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": access.VisibleItems(claims.Role, claims.Office)})
}
