package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a gateway operator account. End-user identity reaches the
// limiter through API keys and bearer tokens, not through this table.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Name         string    `json:"name"`
	Role         string    `gorm:"default:'admin'" json:"role"`
	PlanTier     string    `gorm:"default:'free'" json:"plan_tier"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	return nil
}

func (User) TableName() string {
	return "users"
}
