package repository

import (
	"context"
	"errors"
	"time"

	"inventario/backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implementa Store e UserRepository sobre GORM.
// Todos os instantes são gravados em UTC para que as comparações funcionem também no SQLite.
type GormStore struct {
	db *gorm.DB
}

var (
	_ Store          = (*GormStore)(nil)
	_ UserRepository = (*GormStore)(nil)
)

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func wrapError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

// --- tokens ---

func (s *GormStore) LatestResetTokenByEmail(ctx context.Context, email string) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken
	err := s.db.WithContext(ctx).
		Where("email = ?", email).
		Order("created_at DESC").
		First(&token).Error
	if err != nil {
		return nil, wrapError(err)
	}
	return &token, nil
}

func (s *GormStore) DeleteResetTokensForUser(ctx context.Context, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.PasswordResetToken{}).Error
}

func (s *GormStore) CreateResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	token.CreatedAt = token.CreatedAt.UTC()
	token.ExpiresAt = token.ExpiresAt.UTC()
	token.LastSentAt = token.LastSentAt.UTC()
	return s.db.WithContext(ctx).Create(token).Error
}

func (s *GormStore) FindActiveResetToken(ctx context.Context, email, code string, now time.Time) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken
	err := s.db.WithContext(ctx).
		Where("email = ? AND code = ? AND expires_at > ? AND is_used = ? AND is_validated = ?", email, code, now.UTC(), false, false).
		Order("created_at DESC").
		First(&token).Error
	if err != nil {
		return nil, wrapError(err)
	}
	return &token, nil
}

func (s *GormStore) MarkResetTokenValidated(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.PasswordResetToken{}).
		Where("id = ? AND is_validated = ?", id, false).
		Update("is_validated", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *GormStore) ExpireSiblingResetTokens(ctx context.Context, userID, keepID uuid.UUID, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.PasswordResetToken{}).
		Where("user_id = ? AND id <> ?", userID, keepID).
		Update("expires_at", at.UTC()).Error
}

func (s *GormStore) FindCommittableResetToken(ctx context.Context, userID uuid.UUID, email string, now time.Time) (*models.PasswordResetToken, error) {
	var token models.PasswordResetToken
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND email = ? AND is_validated = ? AND is_used = ? AND expires_at > ?", userID, email, true, false, now.UTC()).
		Order("created_at DESC").
		First(&token).Error
	if err != nil {
		return nil, wrapError(err)
	}
	return &token, nil
}

func (s *GormStore) MarkResetTokenUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.PasswordResetToken{}).
		Where("id = ? AND is_used = ?", id, false).
		Updates(map[string]interface{}{"is_used": true, "used_at": usedAt.UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (s *GormStore) DeleteExpiredResetTokens(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", before.UTC()).Delete(&models.PasswordResetToken{})
	return res.RowsAffected, res.Error
}

// --- contas ---

func (s *GormStore) FindActiveAccountByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ? AND is_active = ?", email, true).First(&user).Error; err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

func (s *GormStore) FindActiveAccountByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", id, true).First(&user).Error; err != nil {
		return nil, wrapError(err)
	}
	return &user, nil
}

func (s *GormStore) LockAccount(ctx context.Context, id uuid.UUID) error {
	q := s.db.WithContext(ctx).Model(&models.User{}).Select("id").Where("id = ?", id)
	// SQLite serializa escritores no nível do banco e não suporta FOR UPDATE.
	if s.db.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var locked models.User
	return wrapError(q.First(&locked).Error)
}

func (s *GormStore) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) UpdatePasswordHashByEmail(ctx context.Context, email, hash string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- usuários ---

func (s *GormStore) EmailTaken(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *GormStore) ListActiveUsers(ctx context.Context, filter UserFilter, page, pageSize int) ([]models.User, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.User{}).Where("is_active = ?", true)
	if len(filter.Roles) > 0 {
		q = q.Where("role IN ?", filter.Roles)
	}
	if filter.Office != nil {
		q = q.Where("office = ?", *filter.Office)
	}
	if filter.ExcludeID != nil {
		q = q.Where("id <> ?", *filter.ExcludeID)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var users []models.User
	offset := (page - 1) * pageSize
	if err := q.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *GormStore) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	at = at.UTC()
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("last_login_at", &at).Error
}
