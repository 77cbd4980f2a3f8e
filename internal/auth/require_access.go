package auth

import (
	"net/http"

	"inventario/backend/internal/access"

	"github.com/gin-gonic/gin"
)

// RequireAccess bloqueia a rota quando o usuário autenticado não tem acesso ao item.
// Deve ser usado depois do AuthMiddleware.
func RequireAccess(item access.Item) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		if !access.HasAccess(item, claims.Role, claims.Office) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this resource"})
			return
		}
		c.Next()
	}
}
