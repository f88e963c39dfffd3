package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/platform/apierr"
	"github.com/ankinstructor/ank-admin-api/internal/repos"
	"github.com/ankinstructor/ank-admin-api/internal/types"
)

type ContractCreateInput struct {
	Email            string  `json:"email"`
	DisplayName      *string `json:"display_name"`
	SeatLimit        int     `json:"seat_limit"`
	KnowledgeCount   int     `json:"knowledge_count"`
	MonthlyAmountYen int     `json:"monthly_amount_yen"`
	Note             *string `json:"note"`
}

type ContractCreateResult struct {
	ContractID string `json:"contract_id"`
	Status     string `json:"status"`
}

// ContractService creates contracts on the relational side: the caller
// becomes the contract's first admin in one transaction.
type ContractService interface {
	Create(ctx context.Context, uid string, input ContractCreateInput) (*ContractCreateResult, error)
}

type contractService struct {
	log           *logger.Logger
	db            *gorm.DB
	users         repos.UserRepo
	contracts     repos.ContractRepo
	userContracts repos.UserContractRepo
}

func NewContractService(
	log *logger.Logger,
	db *gorm.DB,
	users repos.UserRepo,
	contracts repos.ContractRepo,
	userContracts repos.UserContractRepo,
) (ContractService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if db == nil || users == nil || contracts == nil || userContracts == nil {
		return nil, fmt.Errorf("db and repos required")
	}
	return &contractService{
		log:           log.With("service", "ContractService"),
		db:            db,
		users:         users,
		contracts:     contracts,
		userContracts: userContracts,
	}, nil
}

func (s *contractService) Create(ctx context.Context, uid string, input ContractCreateInput) (*ContractCreateResult, error) {
	email := strings.TrimSpace(input.Email)
	if email == "" {
		return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "email required")
	}

	var result ContractCreateResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := s.users.EmailUsedByOther(ctx, tx, email, uid)
		if err != nil {
			return fmt.Errorf("failed to check email uniqueness: %w", err)
		}
		if taken {
			return apierr.Newf(http.StatusConflict, "email_conflict", "email already used by another user")
		}

		now := time.Now().UTC()
		user := &types.User{
			UserID:      uid,
			Email:       email,
			DisplayName: input.DisplayName,
			LastLoginAt: &now,
		}
		if err := s.users.Upsert(ctx, tx, user); err != nil {
			return fmt.Errorf("failed to upsert user: %w", err)
		}

		contract := &types.Contract{
			Status:                  "active",
			StartAt:                 now,
			SeatLimit:               input.SeatLimit,
			KnowledgeCount:          input.KnowledgeCount,
			PaymentMethodConfigured: false,
			MonthlyAmountYen:        input.MonthlyAmountYen,
			Note:                    input.Note,
		}
		if err := s.contracts.Create(ctx, tx, contract); err != nil {
			return fmt.Errorf("failed to create contract: %w", err)
		}

		link := &types.UserContract{
			UserID:     uid,
			ContractID: contract.ContractID,
			Role:       types.ContractRoleAdmin,
			Status:     types.MembershipActive,
		}
		if err := s.userContracts.Create(ctx, tx, link); err != nil {
			return fmt.Errorf("failed to link contract admin: %w", err)
		}

		result = ContractCreateResult{
			ContractID: contract.ContractID.String(),
			Status:     contract.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Contract created", "contract_id", result.ContractID, "uid", uid)
	return &result, nil
}
