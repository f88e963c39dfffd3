package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/platform/apierr"
	"github.com/ankinstructor/ank-admin-api/internal/platform/sendgrid"
	"github.com/ankinstructor/ank-admin-api/internal/repos"
	"github.com/ankinstructor/ank-admin-api/internal/types"
)

type InviteCreateResult struct {
	OK         bool   `json:"ok"`
	InviteID   string `json:"invite_id"`
	CreatedAt  string `json:"created_at"`
	Email      string `json:"email"`
	ContractID string `json:"contract_id"`
}

type InviteConsumeResult struct {
	OK         bool   `json:"ok"`
	ContractID string `json:"contract_id"`
	Role       string `json:"role"`
}

type InviteService interface {
	Create(ctx context.Context, contractID uuid.UUID, email string) (*InviteCreateResult, error)
	Consume(ctx context.Context, token string) (*InviteConsumeResult, error)
}

type inviteService struct {
	log           *logger.Logger
	db            *gorm.DB
	users         repos.UserRepo
	userContracts repos.UserContractRepo
	invites       repos.InviteRepo
	mailer        sendgrid.Client
	appBaseURL    string
	fromEmail     string
}

func NewInviteService(
	log *logger.Logger,
	db *gorm.DB,
	users repos.UserRepo,
	userContracts repos.UserContractRepo,
	invites repos.InviteRepo,
	mailer sendgrid.Client,
	appBaseURL, fromEmail string,
) (InviteService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if db == nil || users == nil || userContracts == nil || invites == nil {
		return nil, fmt.Errorf("db and repos required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	return &inviteService{
		log:           log.With("service", "InviteService"),
		db:            db,
		users:         users,
		userContracts: userContracts,
		invites:       invites,
		mailer:        mailer,
		appBaseURL:    strings.TrimRight(strings.TrimSpace(appBaseURL), "/"),
		fromEmail:     strings.TrimSpace(fromEmail),
	}, nil
}

// Create precreates the invited user's row and membership link (status
// "invited"), stores the token, then sends the mail. Consume only has to
// flip the precreated link to active.
func (s *inviteService) Create(ctx context.Context, contractID uuid.UUID, email string) (*InviteCreateResult, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "email required")
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	invite := &types.Invite{
		ContractID: contractID,
		Email:      email,
		Token:      &token,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.users.EnsureByEmail(ctx, tx, strings.ReplaceAll(uuid.NewString(), "-", ""), email); err != nil {
			return fmt.Errorf("failed to ensure invited user: %w", err)
		}
		if err := s.userContracts.EnsureInvited(ctx, tx, email, contractID); err != nil {
			return fmt.Errorf("failed to precreate membership: %w", err)
		}
		if err := s.invites.Create(ctx, tx, invite); err != nil {
			return fmt.Errorf("failed to create invite: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	inviteURL := fmt.Sprintf("%s/invite.html?token=%s", s.appBaseURL, token)
	body := fmt.Sprintf(
		"Please sign up using the following link.\n\n%s\n\nIf you did not expect this email, discard it.\n",
		inviteURL,
	)
	_, err = s.mailer.Send(ctx, sendgrid.SendEmailRequest{
		From:    sendgrid.EmailAddress{Email: s.fromEmail},
		To:      []sendgrid.EmailAddress{{Email: email}},
		Subject: "Invitation: account registration",
		Text:    body,
	})
	if err != nil {
		return nil, apierr.New(http.StatusBadGateway, "mail_send_failed",
			fmt.Errorf("SendGrid send failed: %w", err))
	}

	s.log.Info("Invite sent", "invite_id", invite.InviteID.String(), "contract_id", contractID.String())
	return &InviteCreateResult{
		OK:         true,
		InviteID:   invite.InviteID.String(),
		CreatedAt:  invite.CreatedAt.UTC().Format(time.RFC3339),
		Email:      email,
		ContractID: contractID.String(),
	}, nil
}

func (s *inviteService) Consume(ctx context.Context, token string) (*InviteConsumeResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apierr.Newf(http.StatusBadRequest, "validation_error", "token required")
	}

	var result InviteConsumeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invite, err := s.invites.GetByToken(ctx, tx, token)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apierr.Newf(http.StatusNotFound, "invalid_token", "invalid invite token")
			}
			return fmt.Errorf("failed to look up invite: %w", err)
		}

		affected, err := s.userContracts.ActivateByEmail(ctx, tx, invite.Email, invite.ContractID)
		if err != nil {
			return fmt.Errorf("failed to activate membership: %w", err)
		}
		if affected == 0 {
			return apierr.Newf(http.StatusConflict, "membership_missing",
				"user_contracts not precreated for this email/contract")
		}

		if err := s.invites.VoidToken(ctx, tx, invite.InviteID, token); err != nil {
			return fmt.Errorf("failed to void invite token: %w", err)
		}

		result = InviteConsumeResult{
			OK:         true,
			ContractID: invite.ContractID.String(),
			Role:       types.ContractRoleMember,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("Invite consumed", "contract_id", result.ContractID)
	return &result, nil
}
