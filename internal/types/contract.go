package types

import (
	"time"

	"github.com/google/uuid"
)

type Contract struct {
	ContractID               uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"contract_id"`
	Status                   string    `gorm:"type:text;not null;default:'active'" json:"status"`
	StartAt                  time.Time `gorm:"not null;default:now()" json:"start_at"`
	SeatLimit                int       `gorm:"not null" json:"seat_limit"`
	KnowledgeCount           int       `gorm:"not null" json:"knowledge_count"`
	PaymentMethodConfigured  bool      `gorm:"not null;default:false" json:"payment_method_configured"`
	MonthlyAmountYen         int       `gorm:"not null" json:"monthly_amount_yen"`
	Note                     *string   `gorm:"type:text" json:"note,omitempty"`
	ActiveDialogueObjectKey  *string   `gorm:"type:text" json:"active_dialogue_object_key,omitempty"`
	CreatedAt                time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt                time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Contract) TableName() string { return "contracts" }
