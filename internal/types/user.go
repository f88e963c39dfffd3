package types

import (
	"time"

	"gorm.io/gorm"
)

// User is the relational-side user row. The identity provider owns the uid;
// this table only mirrors what the admin API needs for ACL and invites.
type User struct {
	UserID      string         `gorm:"type:text;primaryKey" json:"user_id"`
	Email       string         `gorm:"type:text;not null;uniqueIndex" json:"email"`
	DisplayName *string        `gorm:"type:text" json:"display_name,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;default:now()" json:"created_at"`
	LastLoginAt *time.Time     `json:"last_login_at,omitempty"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "users" }
