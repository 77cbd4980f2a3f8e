package passwordreset

import (
	"errors"
	"fmt"
)

var (
	// ErrAccountNotFound: o e-mail não corresponde a uma conta ativa.
	ErrAccountNotFound = errors.New("no active account for this email")
	// ErrInvalidToken cobre código errado, expirado ou já usado e credencial inválida.
	// As causas não são diferenciadas de propósito.
	ErrInvalidToken = errors.New("invalid, used or expired code")
	// ErrWrongCurrentPassword só ocorre na troca direta de senha.
	ErrWrongCurrentPassword = errors.New("current password is incorrect")
	// ErrPasswordPolicy: nova senha com menos de MinPasswordLength caracteres ou mais de 72 bytes.
	ErrPasswordPolicy = errors.New("password does not meet the length requirements")
)

// CooldownError é retornado quando um novo código é pedido antes do fim do intervalo mínimo.
type CooldownError struct {
	RemainingSeconds int
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("wait %d seconds before requesting a new code", e.RemainingSeconds)
}
