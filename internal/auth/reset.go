package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose identifica a etapa do fluxo de recuperação para a qual a credencial foi emitida.
type Purpose string

const (
	// PurposeResetInitial acompanha o código de 6 dígitos enviado por e-mail.
	PurposeResetInitial Purpose = "reset-initial"
	// PurposeResetFinal é emitida após a validação do código e autoriza a troca de senha.
	PurposeResetFinal Purpose = "reset-final"
)

// ErrUnknownPurpose é retornado ao verificar uma credencial com propósito fora do conjunto conhecido.
var ErrUnknownPurpose = errors.New("unknown credential purpose")

func (p Purpose) Valid() bool {
	return p == PurposeResetInitial || p == PurposeResetFinal
}

// ResetClaims é o payload das credenciais de recuperação de senha.
type ResetClaims struct {
	UserID  uuid.UUID `json:"user_id"`
	Email   string    `json:"email"`
	Purpose Purpose   `json:"purpose"`
	jwt.RegisteredClaims
}

// Validate é chamado pelo parser do jwt depois das validações padrão.
func (c ResetClaims) Validate() error {
	if !c.Purpose.Valid() {
		return ErrUnknownPurpose
	}
	if c.UserID == uuid.Nil || c.Email == "" {
		return errors.New("credential subject missing")
	}
	return nil
}

// SignReset assina uma credencial de recuperação válida por ttl a partir de issuedAt.
func (s *Signer) SignReset(claims ResetClaims, issuedAt time.Time, ttl time.Duration) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	if !claims.Purpose.Valid() {
		return "", ErrUnknownPurpose
	}
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   claims.UserID.String(),
		Issuer:    s.issuer,
		Audience:  jwt.ClaimStrings{audiencePasswordReset},
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
	}
	return s.sign(claims)
}

// VerifyReset verifica assinatura, expiração (no instante at) e propósito de uma credencial.
func (s *Signer) VerifyReset(tokenString string, at time.Time) (*ResetClaims, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	claims := &ResetClaims{}
	if err := s.parse(tokenString, claims, audiencePasswordReset, jwt.WithTimeFunc(func() time.Time { return at })); err != nil {
		return nil, err
	}
	return claims, nil
}
