package passwordreset

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

const codeDigits = 6

var codeSpace = big.NewInt(1_000_000)

// generateCode devolve um código numérico de 6 dígitos.
// rand.Int faz amostragem por rejeição, então a distribuição em [0, 10^6) é uniforme.
func generateCode(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	n, err := rand.Int(r, codeSpace)
	if err != nil {
		return "", fmt.Errorf("generate reset code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()), nil
}

func isCode(s string) bool {
	if len(s) != codeDigits {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
