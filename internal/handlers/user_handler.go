package handlers

import (
	"errors"
	"net/http"

	"inventario/backend/internal/models"
	"inventario/backend/internal/notifications"
	"inventario/backend/internal/users"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CreateUserPayload struct {
	Name   string          `json:"name" binding:"required"`
	Email  string          `json:"email" binding:"required"`
	Role   models.UserRole `json:"role" binding:"required"`
	Office *models.Office  `json:"office" binding:"required"`
	Phone  string          `json:"phone"`
}

type CreateUserResponse struct {
	User              *models.User `json:"user"`
	GeneratedPassword string       `json:"generated_password"`
}

// UserHandler expõe o cadastro e a listagem de agentes.
type UserHandler struct {
	users  *users.Service
	mailer notifications.Notifier
	log    *zap.Logger
}

func NewUserHandler(users *users.Service, mailer notifications.Notifier, log *zap.Logger) *UserHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandler{users: users, mailer: mailer, log: log.Named("UserHandler")}
}

func userErrorStatus(err error) (int, bool) {
	switch {
	case errors.Is(err, users.ErrEmailRequired),
		errors.Is(err, users.ErrEmailInvalid),
		errors.Is(err, users.ErrNameRequired),
		errors.Is(err, users.ErrRoleInvalid),
		errors.Is(err, users.ErrOfficeRequired):
		return http.StatusBadRequest, true
	case errors.Is(err, users.ErrEmailTaken):
		return http.StatusConflict, true
	case errors.Is(err, users.ErrManagerCanOnlyCreateEmployee),
		errors.Is(err, users.ErrEmployeeCannotList),
		errors.Is(err, users.ErrForbidden):
		return http.StatusForbidden, true
	case errors.Is(err, users.ErrRequesterNotFound):
		return http.StatusUnauthorized, true
	}
	return 0, false
}

// ListUsersHandler lista os usuários visíveis para o solicitante, paginado.
func (h *UserHandler) ListUsersHandler(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	page, pageSize := GetPaginationParams(c)

	list, total, err := h.users.List(c.Request.Context(), claims.UserID, page, pageSize)
	if err != nil {
		if status, known := userErrorStatus(err); known {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		respondInternalError(c, h.log, "Failed to list users", err)
		return
	}

	c.JSON(http.StatusOK, NewPaginatedResponse(list, total, page, pageSize))
}

// CreateUserHandler cadastra um usuário e envia as credenciais por e-mail.
func (h *UserHandler) CreateUserHandler(c *gin.Context) {
	claims, ok := mustClaims(c)
	if !ok {
		return
	}
	var payload CreateUserPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": msgInvalidPayload})
		return
	}

	ctx := c.Request.Context()
	created, err := h.users.Create(ctx, claims.UserID, users.CreateRequest{
		Name:   payload.Name,
		Email:  payload.Email,
		Role:   payload.Role,
		Office: payload.Office,
		Phone:  payload.Phone,
	})
	if err != nil {
		if status, known := userErrorStatus(err); known {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		respondInternalError(c, h.log, "Failed to create user", err)
		return
	}

	if err := h.mailer.SendWelcome(ctx, created.User.Email, created.User.Name, created.GeneratedPassword); err != nil {
		h.log.Error("Failed to send welcome email", zap.String("user_id", created.User.ID.String()), zap.Error(err))
	}

	c.JSON(http.StatusCreated, CreateUserResponse{User: created.User, GeneratedPassword: created.GeneratedPassword})
}
