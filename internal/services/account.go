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

// AccountDoc is accounts/{account_id}/account.json. One user owns exactly
// one account, keyed acc_{uid}.
type AccountDoc struct {
	AccountID  string `json:"account_id"`
	Name       string `json:"name"`
	OwnerUID   string `json:"owner_uid"`
	OwnerEmail string `json:"owner_email"`
	CreatedAt  string `json:"created_at"`
}

// UserDoc is users/{uid}/user.json, created on first account creation, not
// on login.
type UserDoc struct {
	UID       string `json:"uid"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

type CreateAccountResult struct {
	AccountID string     `json:"account_id"`
	Created   bool       `json:"created"`
	Account   AccountDoc `json:"account"`
}

type AccountService interface {
	Get(ctx context.Context, uid string) (*AccountDoc, error)
	Create(ctx context.Context, uid, email, name string) (*CreateAccountResult, error)
}

type accountService struct {
	log    *logger.Logger
	bucket gcp.BucketService
	now    func() time.Time
}

func NewAccountService(log *logger.Logger, bucket gcp.BucketService) (AccountService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if bucket == nil {
		return nil, fmt.Errorf("bucket service required")
	}
	return &accountService{
		log:    log.With("service", "AccountService"),
		bucket: bucket,
		now:    time.Now,
	}, nil
}

func AccountIDForUID(uid string) string { return "acc_" + uid }

func accountDocKey(accountID string) string { return "accounts/" + accountID + "/account.json" }
func userDocKey(uid string) string          { return "users/" + uid + "/user.json" }

func (s *accountService) Get(ctx context.Context, uid string) (*AccountDoc, error) {
	var doc AccountDoc
	err := s.bucket.ReadJSON(ctx, accountDocKey(AccountIDForUID(uid)), &doc)
	if err != nil {
		if errors.Is(err, gcp.ErrObjectNotFound) {
			return nil, apierr.Newf(http.StatusNotFound, "account_not_found", "account not found")
		}
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	return &doc, nil
}

// Create is idempotent: a retry or a double click returns the existing
// account instead of failing.
func (s *accountService) Create(ctx context.Context, uid, email, name string) (*CreateAccountResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "no name")
	}
	if strings.TrimSpace(email) == "" {
		return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "no email")
	}

	accountID := AccountIDForUID(uid)
	accountKey := accountDocKey(accountID)

	var existing AccountDoc
	err := s.bucket.ReadJSON(ctx, accountKey, &existing)
	if err == nil {
		return &CreateAccountResult{AccountID: accountID, Created: false, Account: existing}, nil
	}
	if !errors.Is(err, gcp.ErrObjectNotFound) {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}

	now := s.now().UTC().Format(time.RFC3339)

	// The in-app user record is born with its first account.
	userKey := userDocKey(uid)
	if exists, uerr := s.bucket.Exists(ctx, userKey); uerr != nil {
		return nil, fmt.Errorf("failed to check user doc: %w", uerr)
	} else if !exists {
		userDoc := UserDoc{UID: uid, Email: email, CreatedAt: now}
		if werr := s.bucket.WriteJSON(ctx, userKey, userDoc); werr != nil {
			return nil, fmt.Errorf("failed to write user doc: %w", werr)
		}
	}

	doc := AccountDoc{
		AccountID:  accountID,
		Name:       name,
		OwnerUID:   uid,
		OwnerEmail: email,
		CreatedAt:  now,
	}
	if werr := s.bucket.WriteJSON(ctx, accountKey, doc); werr != nil {
		return nil, fmt.Errorf("failed to write account doc: %w", werr)
	}

	s.log.Info("Account created", "account_id", accountID, "uid", uid)
	return &CreateAccountResult{AccountID: accountID, Created: true, Account: doc}, nil
}
