package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/platform/apierr"
	"github.com/ankinstructor/ank-admin-api/internal/platform/gcp"
)

// TenantDoc is accounts/{account_id}/tenants/{tenant_id}/tenant.json: the
// tenant itself plus its (single) contract's terms once saved.
type TenantDoc struct {
	TenantID                string  `json:"tenant_id"`
	AccountID               string  `json:"account_id"`
	Name                    string  `json:"name"`
	Status                  string  `json:"status"`
	PaymentMethodConfigured bool    `json:"payment_method_configured"`
	SeatLimit               *int    `json:"seat_limit"`
	KnowledgeCount          *int    `json:"knowledge_count"`
	MonthlyAmountYen        *int    `json:"monthly_amount_yen"`
	PlanID                  *string `json:"plan_id"`
	Note                    *string `json:"note"`
	CreatedAt               string  `json:"created_at"`
	UpdatedAt               string  `json:"updated_at"`
	ContractSavedAt         string  `json:"contract_saved_at,omitempty"`
	PaidAt                  string  `json:"paid_at,omitempty"`
}

// UserTenantIndex is users/{uid}/tenants/{tenant_id}.json, the reverse
// lookup from a user to the owning account.
type UserTenantIndex struct {
	TenantID  string `json:"tenant_id"`
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type TenantSummary struct {
	TenantID                string  `json:"tenant_id"`
	Name                    string  `json:"name"`
	Status                  string  `json:"status"`
	PaymentMethodConfigured bool    `json:"payment_method_configured"`
	SeatLimit               *int    `json:"seat_limit"`
	KnowledgeCount          *int    `json:"knowledge_count"`
	MonthlyAmountYen        *int    `json:"monthly_amount_yen"`
	PlanID                  *string `json:"plan_id"`
	Note                    *string `json:"note"`
}

type SystemLimits struct {
	MaxSeatLimit         int
	MaxKnowledgeCount    int
	MaxTenantsPerAccount int
}

type TenantContractInput struct {
	AccountID        string  `json:"account_id"`
	TenantID         string  `json:"tenant_id"`
	SeatLimit        *int    `json:"seat_limit"`
	KnowledgeCount   *int    `json:"knowledge_count"`
	MonthlyAmountYen *int    `json:"monthly_amount_yen"`
	Note             string  `json:"note"`
	PlanID           *string `json:"plan_id"`
}

type TenantService interface {
	List(ctx context.Context, accountID string) ([]TenantSummary, error)
	Create(ctx context.Context, uid, accountID, name string) (string, error)
	Get(ctx context.Context, uid, tenantID, accountID string) (*TenantDoc, error)
	UpsertContract(ctx context.Context, input TenantContractInput) error
	MarkPaid(ctx context.Context, accountID, tenantID string) error
	Pricing(ctx context.Context) (map[string]any, error)
	System(ctx context.Context) (map[string]any, error)
}

type tenantService struct {
	log         *logger.Logger
	bucket      gcp.BucketService
	provisioner TenantDBProvisioner // nil disables tenant DB creation
	now         func() time.Time
}

func NewTenantService(log *logger.Logger, bucket gcp.BucketService, provisioner TenantDBProvisioner) (TenantService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if bucket == nil {
		return nil, fmt.Errorf("bucket service required")
	}
	return &tenantService{
		log:         log.With("service", "TenantService"),
		bucket:      bucket,
		provisioner: provisioner,
		now:         time.Now,
	}, nil
}

func tenantDocKey(accountID, tenantID string) string {
	return fmt.Sprintf("accounts/%s/tenants/%s/tenant.json", accountID, tenantID)
}

func tenantsPrefix(accountID string) string {
	return fmt.Sprintf("accounts/%s/tenants/", accountID)
}

func userTenantIndexKey(uid, tenantID string) string {
	return fmt.Sprintf("users/%s/tenants/%s.json", uid, tenantID)
}

// List enumerates tenant.json leaves under the account and fetches them
// concurrently; a corrupt leaf is skipped rather than failing the listing.
func (s *tenantService) List(ctx context.Context, accountID string) ([]TenantSummary, error) {
	keys, err := s.bucket.ListKeys(ctx, tenantsPrefix(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to list tenants: %w", err)
	}

	docKeys := []string{}
	for _, k := range keys {
		if strings.HasSuffix(k, "/tenant.json") {
			docKeys = append(docKeys, k)
		}
	}

	out := make([]TenantSummary, len(docKeys))
	ok := make([]bool, len(docKeys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, key := range docKeys {
		g.Go(func() error {
			var doc TenantDoc
			if rerr := s.bucket.ReadJSON(gctx, key, &doc); rerr != nil {
				s.log.Warn("skipping unreadable tenant doc", "key", key, "error", rerr)
				return nil
			}
			status := doc.Status
			if status == "" {
				status = "active"
			}
			out[i] = TenantSummary{
				TenantID:                doc.TenantID,
				Name:                    doc.Name,
				Status:                  status,
				PaymentMethodConfigured: doc.PaymentMethodConfigured,
				SeatLimit:               doc.SeatLimit,
				KnowledgeCount:          doc.KnowledgeCount,
				MonthlyAmountYen:        doc.MonthlyAmountYen,
				PlanID:                  doc.PlanID,
				Note:                    doc.Note,
			}
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tenants := []TenantSummary{}
	for i := range out {
		if ok[i] {
			tenants = append(tenants, out[i])
		}
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].TenantID < tenants[j].TenantID })
	return tenants, nil
}

func (s *tenantService) Create(ctx context.Context, uid, accountID, name string) (string, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", apierr.Newf(http.StatusBadRequest, "validation_error", "account_id required")
	}

	limits, err := s.readSystemLimits(ctx)
	if err != nil {
		return "", err
	}
	if limits.MaxTenantsPerAccount > 0 {
		keys, lerr := s.bucket.ListKeys(ctx, tenantsPrefix(accountID))
		if lerr != nil {
			return "", fmt.Errorf("failed to count tenants: %w", lerr)
		}
		count := 0
		for _, k := range keys {
			if strings.HasSuffix(k, "/tenant.json") {
				count++
			}
		}
		if count >= limits.MaxTenantsPerAccount {
			return "", apierr.Newf(http.StatusBadRequest, "tenant_limit_reached", "tenant count limit reached")
		}
	}

	tenantID := "ten_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	now := s.now().UTC().Format(time.RFC3339)

	doc := TenantDoc{
		TenantID:  tenantID,
		AccountID: accountID,
		Name:      strings.TrimSpace(name),
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.bucket.WriteJSON(ctx, tenantDocKey(accountID, tenantID), doc); err != nil {
		return "", fmt.Errorf("failed to write tenant doc: %w", err)
	}

	index := UserTenantIndex{
		TenantID:  tenantID,
		AccountID: accountID,
		Role:      "admin",
		Status:    "active",
		CreatedAt: now,
	}
	if err := s.bucket.WriteJSON(ctx, userTenantIndexKey(uid, tenantID), index); err != nil {
		return "", fmt.Errorf("failed to write tenant index: %w", err)
	}

	s.log.Info("Tenant created", "tenant_id", tenantID, "account_id", accountID)
	return tenantID, nil
}

// Get resolves the account via the user's index doc when account_id is not
// supplied by the caller.
func (s *tenantService) Get(ctx context.Context, uid, tenantID, accountID string) (*TenantDoc, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "tenant_id required")
	}

	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		var idx UserTenantIndex
		if err := s.bucket.ReadJSON(ctx, userTenantIndexKey(uid, tenantID), &idx); err != nil {
			if errors.Is(err, gcp.ErrObjectNotFound) {
				return nil, apierr.Newf(http.StatusNotFound, "not_found", "tenant index not found")
			}
			return nil, fmt.Errorf("failed to read tenant index: %w", err)
		}
		accountID = strings.TrimSpace(idx.AccountID)
		if accountID == "" {
			return nil, apierr.Newf(http.StatusInternalServerError, "index_corrupt", "tenant index missing account_id")
		}
	}

	var doc TenantDoc
	if err := s.bucket.ReadJSON(ctx, tenantDocKey(accountID, tenantID), &doc); err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return nil, apierr.Newf(http.StatusNotFound, "not_found", "tenant not found")
		}
		return nil, fmt.Errorf("failed to read tenant doc: %w", err)
	}
	return &doc, nil
}

// UpsertContract saves contract terms onto the tenant document. The terms
// stay editable until payment is configured, then lock hard.
func (s *tenantService) UpsertContract(ctx context.Context, input TenantContractInput) error {
	tenantID := strings.TrimSpace(input.TenantID)
	accountID := strings.TrimSpace(input.AccountID)
	if tenantID == "" || accountID == "" {
		return apierr.Newf(http.StatusBadRequest, "validation_error", "tenant_id and account_id required")
	}
	if input.SeatLimit == nil || input.KnowledgeCount == nil {
		return apierr.Newf(http.StatusBadRequest, "validation_error", "seat_limit/knowledge_count must be int")
	}
	if input.MonthlyAmountYen == nil {
		return apierr.Newf(http.StatusBadRequest, "validation_error", "monthly_amount_yen required")
	}

	limits, err := s.readSystemLimits(ctx)
	if err != nil {
		return err
	}
	if limits.MaxSeatLimit > 0 && *input.SeatLimit > limits.MaxSeatLimit {
		return apierr.Newf(http.StatusBadRequest, "limit_exceeded", "seat_limit exceeds system limit")
	}
	if limits.MaxKnowledgeCount > 0 && *input.KnowledgeCount > limits.MaxKnowledgeCount {
		return apierr.Newf(http.StatusBadRequest, "limit_exceeded", "knowledge_count exceeds system limit")
	}

	key := tenantDocKey(accountID, tenantID)
	var doc TenantDoc
	if err := s.bucket.ReadJSON(ctx, key, &doc); err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return apierr.Newf(http.StatusNotFound, "not_found", "tenant not found")
		}
		return fmt.Errorf("failed to read tenant doc: %w", err)
	}
	if doc.PaymentMethodConfigured {
		return apierr.Newf(http.StatusBadRequest, "contract_locked", "contract is locked (payment configured)")
	}

	now := s.now().UTC().Format(time.RFC3339)
	doc.SeatLimit = input.SeatLimit
	doc.KnowledgeCount = input.KnowledgeCount
	doc.MonthlyAmountYen = input.MonthlyAmountYen
	if note := strings.TrimSpace(input.Note); note != "" {
		doc.Note = &note
	} else {
		doc.Note = nil
	}
	doc.PlanID = input.PlanID
	doc.UpdatedAt = now
	if doc.ContractSavedAt == "" {
		doc.ContractSavedAt = now
	}

	if err := s.bucket.WriteJSON(ctx, key, doc); err != nil {
		return fmt.Errorf("failed to write tenant doc: %w", err)
	}

	if s.provisioner != nil {
		if perr := s.provisioner.EnsureTenantDBs(ctx, accountID, tenantID); perr != nil {
			// The contract itself is saved; DB provisioning can be redone on
			// the next save.
			s.log.Error("tenant db provisioning failed", "tenant_id", tenantID, "error", perr)
		}
	}

	s.log.Info("Tenant contract saved", "tenant_id", tenantID, "account_id", accountID)
	return nil
}

func (s *tenantService) MarkPaid(ctx context.Context, accountID, tenantID string) error {
	tenantID = strings.TrimSpace(tenantID)
	accountID = strings.TrimSpace(accountID)
	if tenantID == "" || accountID == "" {
		return apierr.Newf(http.StatusBadRequest, "validation_error", "tenant_id and account_id required")
	}

	key := tenantDocKey(accountID, tenantID)
	var doc TenantDoc
	if err := s.bucket.ReadJSON(ctx, key, &doc); err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return apierr.Newf(http.StatusNotFound, "not_found", "tenant not found")
		}
		return fmt.Errorf("failed to read tenant doc: %w", err)
	}

	now := s.now().UTC().Format(time.RFC3339)
	doc.PaymentMethodConfigured = true
	doc.UpdatedAt = now
	if doc.PaidAt == "" {
		doc.PaidAt = now
	}

	if err := s.bucket.WriteJSON(ctx, key, doc); err != nil {
		return fmt.Errorf("failed to write tenant doc: %w", err)
	}
	s.log.Info("Tenant marked paid", "tenant_id", tenantID, "account_id", accountID)
	return nil
}

// Pricing returns settings/pricing.json unmodified, but refuses to serve an
// empty plan matrix: the UI cannot recover from empty seats/knowledge_count
// so that misconfiguration is a hard 500 here.
func (s *tenantService) Pricing(ctx context.Context) (map[string]any, error) {
	data := map[string]any{}
	if err := s.bucket.ReadJSON(ctx, "settings/pricing.json", &data); err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return nil, apierr.Newf(http.StatusNotFound, "not_found", "settings/pricing.json not found")
		}
		return nil, apierr.New(http.StatusInternalServerError, "pricing_read_error", err)
	}

	seats, _ := data["seats"].([]any)
	kc, _ := data["knowledge_count"].([]any)
	if len(seats) == 0 || len(kc) == 0 {
		return nil, apierr.Newf(http.StatusInternalServerError, "pricing_empty",
			"pricing.json is empty (seats/knowledge_count)")
	}
	return data, nil
}

func (s *tenantService) System(ctx context.Context) (map[string]any, error) {
	data := map[string]any{}
	if err := s.bucket.ReadJSON(ctx, "settings/system.json", &data); err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return nil, apierr.Newf(http.StatusNotFound, "not_found", "settings/system.json not found")
		}
		return nil, fmt.Errorf("failed to read system settings: %w", err)
	}
	return data, nil
}

// readSystemLimits tolerates a missing or partial settings doc: absent
// limits mean "unlimited".
func (s *tenantService) readSystemLimits(ctx context.Context) (SystemLimits, error) {
	data := map[string]any{}
	if err := s.bucket.ReadJSON(ctx, "settings/system.json", &data); err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return SystemLimits{}, nil
		}
		return SystemLimits{}, fmt.Errorf("failed to read system limits: %w", err)
	}
	limits, _ := data["limits"].(map[string]any)
	return SystemLimits{
		MaxSeatLimit:         intFromAny(limits["max_seat_limit"]),
		MaxKnowledgeCount:    intFromAny(limits["max_knowledge_count"]),
		MaxTenantsPerAccount: intFromAny(limits["max_tenants_per_account"]),
	}, nil
}

func intFromAny(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case int:
		return t
	case string:
		n := 0
		_, _ = fmt.Sscanf(strings.TrimSpace(t), "%d", &n)
		return n
	default:
		return 0
	}
}
