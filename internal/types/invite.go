package types

import (
	"time"

	"github.com/google/uuid"
)

// Invite tokens are single-use; Token is nulled on consume so a replayed link
// falls through to "invalid invite token".
type Invite struct {
	InviteID   uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"invite_id"`
	ContractID uuid.UUID `gorm:"type:uuid;not null;index" json:"contract_id"`
	Email      string    `gorm:"type:text;not null" json:"email"`
	Token      *string   `gorm:"type:text;uniqueIndex" json:"-"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (Invite) TableName() string { return "invites" }
