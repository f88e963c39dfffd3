package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/platform/apierr"
	"github.com/ankinstructor/ank-admin-api/internal/platform/gcp"
)

// ContractDocService mutates the older per-contract layout,
// tenants/{contract_id}/contract.json, under GCS generation-match optimistic
// locking. Two admin tabs editing the same contract turn into a 409 instead
// of a lost update.
type ContractDocService interface {
	Update(ctx context.Context, uid string, input ContractDocUpdateInput) error
	MarkPaid(ctx context.Context, uid, contractID string) error
}

type ContractDocUpdateInput struct {
	ContractID       string `json:"contract_id"`
	SeatLimit        int    `json:"seat_limit"`
	KnowledgeCount   int    `json:"knowledge_count"`
	MonthlyAmountYen int    `json:"monthly_amount_yen"`
	Note             string `json:"note"`
}

type contractMemberDoc struct {
	Role   string `json:"role"`
	Status string `json:"status"`
}

type contractDocService struct {
	log    *logger.Logger
	bucket gcp.BucketService
	now    func() time.Time
}

func NewContractDocService(log *logger.Logger, bucket gcp.BucketService) (ContractDocService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if bucket == nil {
		return nil, fmt.Errorf("bucket service required")
	}
	return &contractDocService{
		log:    log.With("service", "ContractDocService"),
		bucket: bucket,
		now:    time.Now,
	}, nil
}

func contractDocKey(contractID string) string {
	return fmt.Sprintf("tenants/%s/contract.json", contractID)
}

func contractMemberKey(contractID, uid string) string {
	return fmt.Sprintf("tenants/%s/members/%s.json", contractID, uid)
}

// requireDocAdmin checks the contract's own member documents, not the
// relational table: this layout predates it.
func (s *contractDocService) requireDocAdmin(ctx context.Context, contractID, uid string) error {
	var member contractMemberDoc
	if err := s.bucket.ReadJSON(ctx, contractMemberKey(contractID, uid), &member); err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return apierr.Newf(http.StatusForbidden, "not_member", "not a member")
		}
		return fmt.Errorf("failed to read member doc: %w", err)
	}
	if member.Status != "active" {
		return apierr.Newf(http.StatusForbidden, "inactive_member", "inactive member")
	}
	role := strings.TrimSpace(member.Role)
	if role != "owner" && role != "admin" {
		return apierr.Newf(http.StatusForbidden, "not_admin", "not an admin")
	}
	return nil
}

func (s *contractDocService) Update(ctx context.Context, uid string, input ContractDocUpdateInput) error {
	contractID := strings.TrimSpace(input.ContractID)
	if contractID == "" {
		return apierr.Newf(http.StatusBadRequest, "validation_error", "contract_id is required")
	}
	if err := s.requireDocAdmin(ctx, contractID, uid); err != nil {
		return err
	}

	return s.mutate(ctx, contractID, func(doc map[string]any) {
		doc["seat_limit"] = input.SeatLimit
		doc["knowledge_count"] = input.KnowledgeCount
		doc["monthly_amount_yen"] = input.MonthlyAmountYen
		if note := strings.TrimSpace(input.Note); note != "" {
			doc["note"] = note
		} else {
			doc["note"] = nil
		}
	})
}

func (s *contractDocService) MarkPaid(ctx context.Context, uid, contractID string) error {
	contractID = strings.TrimSpace(contractID)
	if contractID == "" {
		return apierr.Newf(http.StatusBadRequest, "validation_error", "contract_id is required")
	}
	if err := s.requireDocAdmin(ctx, contractID, uid); err != nil {
		return err
	}

	return s.mutate(ctx, contractID, func(doc map[string]any) {
		doc["payment_method_configured"] = true
		if v, ok := doc["start_at"].(string); !ok || strings.TrimSpace(v) == "" {
			doc["start_at"] = s.now().UTC().Format(time.RFC3339)
		}
	})
}

func (s *contractDocService) mutate(ctx context.Context, contractID string, apply func(doc map[string]any)) error {
	key := contractDocKey(contractID)

	doc := map[string]any{}
	generation, err := s.bucket.ReadJSONWithGeneration(ctx, key, &doc)
	if err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return apierr.Newf(http.StatusNotFound, "not_found", "contract not found")
		}
		return fmt.Errorf("failed to read contract doc: %w", err)
	}

	apply(doc)
	doc["updated_at"] = s.now().UTC().Format(time.RFC3339)

	if err := s.bucket.WriteJSONIfGenerationMatch(ctx, key, doc, generation); err != nil {
		s.log.Warn("contract doc write conflict", "contract_id", contractID, "error", err)
		return apierr.Newf(http.StatusConflict, "conflict", "conflict")
	}
	return nil
}
