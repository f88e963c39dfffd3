package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/platform/apierr"
	"github.com/ankinstructor/ank-admin-api/internal/repos"
)

// ACLService answers contract-level authorization questions from the
// relational membership table.
type ACLService interface {
	RequireContractAdmin(ctx context.Context, uid string, contractID uuid.UUID) error
	RequireContractMember(ctx context.Context, uid string, contractID uuid.UUID) error
}

type aclService struct {
	log           *logger.Logger
	userContracts repos.UserContractRepo
}

func NewACLService(log *logger.Logger, userContracts repos.UserContractRepo) (ACLService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if userContracts == nil {
		return nil, fmt.Errorf("user contract repo required")
	}
	return &aclService{
		log:           log.With("service", "ACLService"),
		userContracts: userContracts,
	}, nil
}

func (s *aclService) RequireContractAdmin(ctx context.Context, uid string, contractID uuid.UUID) error {
	ok, err := s.userContracts.HasRole(ctx, nil, uid, contractID, "admin")
	if err != nil {
		return fmt.Errorf("failed to check contract admin: %w", err)
	}
	if !ok {
		return apierr.Newf(http.StatusForbidden, "not_contract_admin", "not an admin of this contract")
	}
	return nil
}

// RequireContractMember allows any linked role, including still-invited
// memberships for admins created out of band.
func (s *aclService) RequireContractMember(ctx context.Context, uid string, contractID uuid.UUID) error {
	ok, err := s.userContracts.IsMember(ctx, nil, uid, contractID)
	if err != nil {
		return fmt.Errorf("failed to check contract membership: %w", err)
	}
	if !ok {
		return apierr.Newf(http.StatusForbidden, "not_contract_member", "not allowed for this contract")
	}
	return nil
}
