package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	ContractRoleAdmin  = "admin"
	ContractRoleMember = "member"

	MembershipActive  = "active"
	MembershipInvited = "invited"
)

// UserContract links a user to a contract with a role. Rows are precreated in
// "invited" status by the invite flow and flipped to "active" on consume.
type UserContract struct {
	UserID     string    `gorm:"type:text;not null;index:idx_user_contract,unique,priority:1" json:"user_id"`
	User       *User     `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
	ContractID uuid.UUID `gorm:"type:uuid;not null;index:idx_user_contract,unique,priority:2" json:"contract_id"`
	Role       string    `gorm:"type:text;not null;default:'member'" json:"role"`
	Status     string    `gorm:"type:text;not null;default:'invited';index" json:"status"`
	CreatedAt  time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (UserContract) TableName() string { return "user_contracts" }
