// Package repository define os contratos de persistência usados pelos serviços
// e a implementação GORM (Postgres em produção, SQLite em desenvolvimento e testes).
package repository

import (
	"context"
	"errors"
	"time"

	"inventario/backend/internal/models"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indica que nenhum registro satisfaz a consulta.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indica que uma atualização condicional não encontrou o registro no estado esperado.
	ErrConflict = errors.New("record changed concurrently")
)

// TokenRepository persiste os tokens de recuperação de senha.
type TokenRepository interface {
	// LatestResetTokenByEmail devolve o token mais recente (por created_at) do e-mail.
	LatestResetTokenByEmail(ctx context.Context, email string) (*models.PasswordResetToken, error)
	DeleteResetTokensForUser(ctx context.Context, userID uuid.UUID) error
	CreateResetToken(ctx context.Context, token *models.PasswordResetToken) error
	// FindActiveResetToken devolve o token mais recente com o código informado que
	// ainda não expirou (expires_at > now) e não foi validado nem usado.
	FindActiveResetToken(ctx context.Context, email, code string, now time.Time) (*models.PasswordResetToken, error)
	// MarkResetTokenValidated faz is_validated false -> true. ErrConflict se já estava validado.
	MarkResetTokenValidated(ctx context.Context, id uuid.UUID) error
	// ExpireSiblingResetTokens força expires_at = at em todos os tokens do usuário exceto keepID.
	ExpireSiblingResetTokens(ctx context.Context, userID, keepID uuid.UUID, at time.Time) error
	// FindCommittableResetToken: validado, não usado e expires_at > now.
	FindCommittableResetToken(ctx context.Context, userID uuid.UUID, email string, now time.Time) (*models.PasswordResetToken, error)
	// MarkResetTokenUsed faz is_used false -> true e grava used_at. ErrConflict se já estava usado.
	MarkResetTokenUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error
	DeleteExpiredResetTokens(ctx context.Context, before time.Time) (int64, error)
}

// AccountRepository é o subconjunto de operações de conta usado pelo fluxo de senha.
type AccountRepository interface {
	FindActiveAccountByEmail(ctx context.Context, email string) (*models.User, error)
	FindActiveAccountByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// LockAccount bloqueia a linha da conta até o fim da transação corrente.
	LockAccount(ctx context.Context, id uuid.UUID) error
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
	UpdatePasswordHashByEmail(ctx context.Context, email, hash string) error
}

// Store agrupa os repositórios do fluxo de senha com suporte a transação.
type Store interface {
	TokenRepository
	AccountRepository
	// Transaction executa fn numa transação; qualquer erro retornado desfaz as alterações.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

// UserFilter restringe a listagem de usuários.
type UserFilter struct {
	Roles     []models.UserRole
	Office    *models.Office
	ExcludeID *uuid.UUID
}

// UserRepository cobre o cadastro e a listagem de usuários do painel.
type UserRepository interface {
	FindActiveAccountByEmail(ctx context.Context, email string) (*models.User, error)
	FindActiveAccountByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// EmailTaken considera também contas inativas.
	EmailTaken(ctx context.Context, email string) (bool, error)
	CreateUser(ctx context.Context, user *models.User) error
	ListActiveUsers(ctx context.Context, filter UserFilter, page, pageSize int) ([]models.User, int64, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}
