package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PasswordResetToken registra uma tentativa de recuperação de senha.
// O registro é mantido após o uso para auditoria até a limpeza periódica de expirados.
type PasswordResetToken struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key;"`
	UserID           uuid.UUID  `gorm:"type:uuid;not null;index"`
	Email            string     `gorm:"size:255;not null;index"`
	Code             string     `gorm:"size:6;not null"`
	SignedCredential string     `gorm:"type:text;not null"`
	CreatedAt        time.Time  `gorm:"not null;index"`
	ExpiresAt        time.Time  `gorm:"not null"`
	LastSentAt       time.Time  `gorm:"not null"`
	IsValidated      bool       `gorm:"not null;default:false"`
	IsUsed           bool       `gorm:"not null;default:false"`
	UsedAt           *time.Time
}

func (t *PasswordResetToken) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}
