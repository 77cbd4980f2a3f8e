package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"inventario/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Audiências separam tokens de sessão de credenciais de recuperação,
// impedindo que uma seja aceita no lugar da outra.
const (
	audienceSession       = "session"
	audiencePasswordReset = "password-reset"
)

// ConfigurationError indica configuração ausente ou inválida. Não é recuperável pelo usuário.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// ErrMissingSecret é retornado quando o segredo de assinatura não foi configurado.
var ErrMissingSecret = &ConfigurationError{Reason: "JWT_SECRET_KEY not set"}

// Claims struct to be encoded to JWT
type Claims struct {
	UserID uuid.UUID       `json:"user_id"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	Office *models.Office  `json:"office,omitempty"`
	jwt.RegisteredClaims
}

// Signer assina e verifica tokens HS256 com o segredo do processo.
type Signer struct {
	key        []byte
	issuer     string
	sessionTTL time.Duration
}

// NewSigner cria um Signer. Segredo vazio resulta em ErrMissingSecret.
func NewSigner(secret, issuer string, sessionTTL time.Duration) (*Signer, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &Signer{key: []byte(secret), issuer: issuer, sessionTTL: sessionTTL}, nil
}

func (s *Signer) ready() error {
	if s == nil || len(s.key) == 0 {
		return ErrMissingSecret
	}
	return nil
}

func (s *Signer) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return tokenString, nil
}

func (s *Signer) parse(tokenString string, claims jwt.Claims, audience string, opts ...jwt.ParserOption) error {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(audience),
	)
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.key, nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("error parsing token: %w", err)
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}

// GenerateToken generates a new session JWT for a given user.
func (s *Signer) GenerateToken(user *models.User) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}

	now := time.Now()
	claims := &Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Office: user.OfficeOrNil(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.sessionTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{audienceSession},
		},
	}
	return s.sign(claims)
}

// ValidateToken validates a session JWT string.
// Returns the claims if the token is valid, otherwise returns an error.
func (s *Signer) ValidateToken(tokenString string) (*Claims, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	claims := &Claims{}
	if err := s.parse(tokenString, claims, audienceSession); err != nil {
		return nil, err
	}
	return claims, nil
}

// AuthMiddleware creates a Gin middleware for JWT authentication.
// It checks for a valid JWT in the Authorization header (Bearer token).
// If valid, it sets the user's claims in the Gin context.
func AuthMiddleware(signer *Signer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := signer.ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("userEmail", claims.Email)
		c.Set("userRole", claims.Role)
		c.Set("userOffice", claims.Office)
		c.Set("claims", claims)

		c.Next()
	}
}

// ClaimsFromContext devolve as claims gravadas pelo AuthMiddleware.
func ClaimsFromContext(c *gin.Context) (*Claims, bool) {
	v, exists := c.Get("claims")
	if !exists {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
