package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string
type Office string

const (
	RoleAdmin    UserRole = "ADMIN"
	RoleManager  UserRole = "MANAGER"
	RoleEmployee UserRole = "EMPLOYEE"

	OfficeOTIC           Office = "OTIC"
	OfficePatrimonio     Office = "PATRIMONIO"
	OfficeAbastecimiento Office = "ABASTECIMIENTO"
)

// Valid indica se o papel é um dos valores conhecidos.
func (r UserRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// Valid indica se a oficina é um dos valores conhecidos.
func (o Office) Valid() bool {
	switch o {
	case OfficeOTIC, OfficePatrimonio, OfficeAbastecimiento:
		return true
	}
	return false
}

// User é a conta de acesso ao painel. Email é sempre armazenado em minúsculas.
type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primary_key;" json:"id"`
	Name         string     `gorm:"size:255;not null" json:"name"`
	Email        string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	Role         UserRole   `gorm:"type:varchar(20);not null" json:"role"`
	Office       *Office    `gorm:"type:varchar(30)" json:"office,omitempty"`
	Phone        string     `gorm:"size:30" json:"phone,omitempty"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedByID  *uuid.UUID `gorm:"type:uuid" json:"created_by_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (user *User) BeforeCreate(tx *gorm.DB) (err error) {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return
}

// OfficeOrNil devolve a oficina do usuário como ponteiro nulo quando não houver.
func (user *User) OfficeOrNil() *Office {
	if user.Office == nil || *user.Office == "" {
		return nil
	}
	return user.Office
}
