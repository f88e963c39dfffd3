package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/platform/apierr"
	"github.com/ankinstructor/ank-admin-api/internal/platform/gcp"
)

// SessionTenant is the entry-screen view of one tenant: enough to route the
// UI, including whether a contract has been saved for it.
type SessionTenant struct {
	TenantID    string `json:"tenant_id"`
	Name        string `json:"name"`
	Status      string `json:"status"`
	HasContract bool   `json:"has_contract"`
}

type SessionView struct {
	Authed        bool            `json:"authed"`
	UID           string          `json:"uid"`
	Email         string          `json:"email"`
	UserExists    bool            `json:"user_exists"`
	AccountID     string          `json:"account_id"`
	AccountExists bool            `json:"account_exists"`
	Tenants       []SessionTenant `json:"tenants"`
}

type SessionService interface {
	Get(ctx context.Context, identity Identity) (*SessionView, error)
}

type sessionService struct {
	log    *logger.Logger
	bucket gcp.BucketService
}

func NewSessionService(log *logger.Logger, bucket gcp.BucketService) (SessionService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if bucket == nil {
		return nil, fmt.Errorf("bucket service required")
	}
	return &sessionService{
		log:    log.With("service", "SessionService"),
		bucket: bucket,
	}, nil
}

func (s *sessionService) Get(ctx context.Context, identity Identity) (*SessionView, error) {
	if identity.Email == "" {
		return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "no email in session")
	}

	accountID := AccountIDForUID(identity.UID)

	userExists, err := s.bucket.Exists(ctx, userDocKey(identity.UID))
	if err != nil {
		return nil, fmt.Errorf("failed to check user doc: %w", err)
	}
	accountExists, err := s.bucket.Exists(ctx, accountDocKey(accountID))
	if err != nil {
		return nil, fmt.Errorf("failed to check account doc: %w", err)
	}

	tenants := []SessionTenant{}
	if accountExists {
		tenants, err = s.listSessionTenants(ctx, accountID)
		if err != nil {
			return nil, err
		}
	}

	return &SessionView{
		Authed:        true,
		UID:           identity.UID,
		Email:         identity.Email,
		UserExists:    userExists,
		AccountID:     accountID,
		AccountExists: accountExists,
		Tenants:       tenants,
	}, nil
}

func (s *sessionService) listSessionTenants(ctx context.Context, accountID string) ([]SessionTenant, error) {
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

	out := make([]SessionTenant, len(docKeys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, key := range docKeys {
		g.Go(func() error {
			// accounts/<aid>/tenants/<tid>/tenant.json
			parts := strings.Split(key, "/")
			if len(parts) < 5 {
				return nil
			}
			tenantID := parts[3]

			entry := SessionTenant{TenantID: tenantID}
			var doc TenantDoc
			if rerr := s.bucket.ReadJSON(gctx, key, &doc); rerr == nil {
				entry.Name = doc.Name
				entry.Status = doc.Status
			}

			// Contract is 1:1 with the tenant; its presence is the flag.
			contractKey := fmt.Sprintf("accounts/%s/tenants/%s/contract.json", accountID, tenantID)
			hasContract, herr := s.bucket.Exists(gctx, contractKey)
			if herr != nil {
				return fmt.Errorf("failed to check contract doc: %w", herr)
			}
			entry.HasContract = hasContract

			out[i] = entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tenants := []SessionTenant{}
	for _, t := range out {
		if t.TenantID != "" {
			tenants = append(tenants, t)
		}
	}
	return tenants, nil
}
