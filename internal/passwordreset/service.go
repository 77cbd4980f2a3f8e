// Package passwordreset implementa a recuperação de senha em três etapas
// (emissão do código, validação do código e gravação da nova senha) e a troca
// direta de senha para usuários autenticados.
package passwordreset

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"inventario/backend/internal/auth"
	"inventario/backend/internal/models"
	"inventario/backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCodeTTL    = 15 * time.Minute
	DefaultFinalTTL   = 30 * time.Minute
	DefaultCooldown   = 60 * time.Second
	DefaultBcryptCost = 12

	MinPasswordLength = 8
	maxPasswordBytes  = 72 // limite do bcrypt
)

// Instante usado para invalidar tokens irmãos após uma validação.
var epoch = time.Unix(0, 0).UTC()

// Config controla as janelas de validade e o custo do hash.
type Config struct {
	CodeTTL    time.Duration
	FinalTTL   time.Duration
	Cooldown   time.Duration
	BcryptCost int
}

func DefaultConfig() Config {
	return Config{
		CodeTTL:    DefaultCodeTTL,
		FinalTTL:   DefaultFinalTTL,
		Cooldown:   DefaultCooldown,
		BcryptCost: DefaultBcryptCost,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CodeTTL <= 0 {
		c.CodeTTL = d.CodeTTL
	}
	if c.FinalTTL <= 0 {
		c.FinalTTL = d.FinalTTL
	}
	if c.Cooldown <= 0 {
		c.Cooldown = d.Cooldown
	}
	if c.BcryptCost == 0 {
		c.BcryptCost = d.BcryptCost
	}
	return c
}

// Issued é o resultado de uma emissão. O envio do código por e-mail fica a cargo de quem chamou.
type Issued struct {
	UserID           uuid.UUID
	Name             string
	Email            string
	Code             string
	SignedCredential string
	ExpiresAt        time.Time
}

// Validated carrega a credencial da etapa final.
type Validated struct {
	Email            string
	SignedCredential string
	ExpiresAt        time.Time
}

// Committed identifica a conta cuja senha foi redefinida.
type Committed struct {
	UserID uuid.UUID
	Name   string
	Email  string
}

// Service coordena o fluxo. É seguro para uso concorrente; a coordenação entre
// requisições fica a cargo do banco (lock de linha e updates condicionais).
type Service struct {
	store  repository.Store
	signer *auth.Signer
	cfg    Config
	now    func() time.Time
	random io.Reader
	log    *zap.Logger
}

type Option func(*Service)

// WithClock substitui o relógio (testes).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRandom substitui a fonte de aleatoriedade dos códigos (testes).
func WithRandom(r io.Reader) Option {
	return func(s *Service) { s.random = r }
}

// NewService monta o serviço. signer nil resulta em auth.ErrMissingSecret.
func NewService(store repository.Store, signer *auth.Signer, cfg Config, log *zap.Logger, opts ...Option) (*Service, error) {
	if signer == nil {
		return nil, auth.ErrMissingSecret
	}
	if store == nil {
		return nil, errors.New("passwordreset: store is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		store:  store,
		signer: signer,
		cfg:    cfg.withDefaults(),
		now:    func() time.Time { return time.Now().UTC() },
		log:    log.Named("PasswordReset"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NormalizeEmail é aplicado a todo e-mail recebido antes de qualquer consulta.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// CheckPasswordPolicy exige de 8 caracteres a 72 bytes (limite do bcrypt).
func CheckPasswordPolicy(password string) error {
	if len([]rune(password)) < MinPasswordLength || len(password) > maxPasswordBytes {
		return ErrPasswordPolicy
	}
	return nil
}

func (s *Service) hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func isConfigurationError(err error) bool {
	var cfgErr *auth.ConfigurationError
	return errors.As(err, &cfgErr)
}

// cooldownRemaining devolve os segundos (arredondados para cima) até ser permitido um novo envio.
func (s *Service) cooldownRemaining(ctx context.Context, repo repository.TokenRepository, email string, now time.Time) (int, error) {
	last, err := repo.LatestResetTokenByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load latest reset token: %w", err)
	}
	remaining := s.cfg.Cooldown - now.Sub(last.LastSentAt)
	if remaining <= 0 {
		return 0, nil
	}
	if remaining > s.cfg.Cooldown {
		remaining = s.cfg.Cooldown
	}
	return int(math.Ceil(remaining.Seconds())), nil
}

// RemainingCooldown é o modo "somente consulta": não cria nada e não falha por motivo de domínio.
func (s *Service) RemainingCooldown(ctx context.Context, email string) (int, error) {
	return s.cooldownRemaining(ctx, s.store, NormalizeEmail(email), s.clock())
}

// AccountExists informa se há conta ativa para o e-mail.
func (s *Service) AccountExists(ctx context.Context, email string) (bool, error) {
	_, err := s.store.FindActiveAccountByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find account: %w", err)
	}
	return true, nil
}

// Issue gera um novo código para o e-mail.
// Erros de domínio: ErrAccountNotFound, *CooldownError.
func (s *Service) Issue(ctx context.Context, email string) (*Issued, error) {
	email = NormalizeEmail(email)
	now := s.clock()
	log := s.log.With(zap.String("email", email))

	var issued *Issued
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		user, err := tx.FindActiveAccountByEmail(ctx, email)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return fmt.Errorf("find account: %w", err)
		}

		// Serializa emissões concorrentes para a mesma conta.
		if err := tx.LockAccount(ctx, user.ID); err != nil {
			return fmt.Errorf("lock account: %w", err)
		}

		remaining, err := s.cooldownRemaining(ctx, tx, email, now)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return &CooldownError{RemainingSeconds: remaining}
		}

		if err := tx.DeleteResetTokensForUser(ctx, user.ID); err != nil {
			return fmt.Errorf("delete previous reset tokens: %w", err)
		}

		code, err := generateCode(s.random)
		if err != nil {
			return err
		}

		credential, err := s.signer.SignReset(auth.ResetClaims{
			UserID:  user.ID,
			Email:   user.Email,
			Purpose: auth.PurposeResetInitial,
		}, now, s.cfg.CodeTTL)
		if err != nil {
			return err
		}

		token := &models.PasswordResetToken{
			UserID:           user.ID,
			Email:            user.Email,
			Code:             code,
			SignedCredential: credential,
			CreatedAt:        now,
			ExpiresAt:        now.Add(s.cfg.CodeTTL),
			LastSentAt:       now,
		}
		if err := tx.CreateResetToken(ctx, token); err != nil {
			return fmt.Errorf("create reset token: %w", err)
		}

		issued = &Issued{
			UserID:           user.ID,
			Name:             user.Name,
			Email:            user.Email,
			Code:             code,
			SignedCredential: credential,
			ExpiresAt:        token.ExpiresAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info("Password reset code issued", zap.String("user_id", issued.UserID.String()), zap.Time("expires_at", issued.ExpiresAt))
	return issued, nil
}

// Validate confere o código e emite a credencial da etapa final.
// Qualquer falha de domínio resulta em ErrInvalidToken.
func (s *Service) Validate(ctx context.Context, email, code string) (*Validated, error) {
	email = NormalizeEmail(email)
	code = strings.TrimSpace(code)
	if !isCode(code) {
		return nil, ErrInvalidToken
	}
	now := s.clock()

	token, err := s.store.FindActiveResetToken(ctx, email, code, now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("find reset token: %w", err)
	}

	claims, err := s.signer.VerifyReset(token.SignedCredential, now)
	if err != nil {
		if isConfigurationError(err) {
			return nil, err
		}
		s.log.Warn("Stored reset credential failed verification", zap.String("token_id", token.ID.String()), zap.Error(err))
		return nil, ErrInvalidToken
	}
	if claims.Purpose != auth.PurposeResetInitial || claims.UserID != token.UserID || NormalizeEmail(claims.Email) != email {
		s.log.Warn("Stored reset credential does not match its token", zap.String("token_id", token.ID.String()))
		return nil, ErrInvalidToken
	}

	expiresAt := now.Add(s.cfg.FinalTTL)
	credential, err := s.signer.SignReset(auth.ResetClaims{
		UserID:  token.UserID,
		Email:   token.Email,
		Purpose: auth.PurposeResetFinal,
	}, now, s.cfg.FinalTTL)
	if err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.MarkResetTokenValidated(ctx, token.ID); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrInvalidToken
			}
			return fmt.Errorf("mark token validated: %w", err)
		}
		if err := tx.ExpireSiblingResetTokens(ctx, token.UserID, token.ID, epoch); err != nil {
			return fmt.Errorf("expire sibling tokens: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Password reset code validated", zap.String("user_id", token.UserID.String()))
	return &Validated{Email: token.Email, SignedCredential: credential, ExpiresAt: expiresAt}, nil
}

// Commit grava a nova senha usando a credencial emitida por Validate.
func (s *Service) Commit(ctx context.Context, email, credential, newPassword string) (*Committed, error) {
	email = NormalizeEmail(email)
	now := s.clock()

	claims, err := s.signer.VerifyReset(credential, now)
	if err != nil {
		if isConfigurationError(err) {
			return nil, err
		}
		return nil, ErrInvalidToken
	}
	if claims.Purpose != auth.PurposeResetFinal || NormalizeEmail(claims.Email) != email {
		return nil, ErrInvalidToken
	}
	if err := CheckPasswordPolicy(newPassword); err != nil {
		return nil, err
	}

	token, err := s.store.FindCommittableResetToken(ctx, claims.UserID, email, now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("find committable token: %w", err)
	}

	user, err := s.store.FindActiveAccountByID(ctx, token.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}

	hashed, err := s.hash(newPassword)
	if err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := tx.MarkResetTokenUsed(ctx, token.ID, now); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return ErrInvalidToken
			}
			return fmt.Errorf("mark token used: %w", err)
		}
		if err := tx.UpdatePasswordHash(ctx, token.UserID, hashed); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrInvalidToken
			}
			return fmt.Errorf("update password hash: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Password reset completed", zap.String("user_id", token.UserID.String()))
	return &Committed{UserID: user.ID, Name: user.Name, Email: user.Email}, nil
}

// ChangePassword troca a senha de um usuário autenticado que conhece a senha atual.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.store.FindActiveAccountByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("find account: %w", err)
	}

	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return ErrWrongCurrentPassword
	}
	if err := CheckPasswordPolicy(newPassword); err != nil {
		return err
	}

	hashed, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, user.ID, hashed); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountNotFound
		}
		return fmt.Errorf("update password hash: %w", err)
	}

	s.log.Info("Password changed", zap.String("user_id", user.ID.String()))
	return nil
}

// SweepExpired remove tokens expirados antes de before. Usado pela limpeza periódica.
func (s *Service) SweepExpired(ctx context.Context, before time.Time) (int64, error) {
	n, err := s.store.DeleteExpiredResetTokens(ctx, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired reset tokens: %w", err)
	}
	return n, nil
}
