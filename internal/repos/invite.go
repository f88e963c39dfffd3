package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/types"
)

type InviteRepo interface {
	Create(ctx context.Context, tx *gorm.DB, invite *types.Invite) error
	GetByToken(ctx context.Context, tx *gorm.DB, token string) (*types.Invite, error)
	VoidToken(ctx context.Context, tx *gorm.DB, inviteID uuid.UUID, token string) error
}

type inviteRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewInviteRepo(db *gorm.DB, baseLog *logger.Logger) InviteRepo {
	return &inviteRepo{db: db, log: baseLog.With("repo", "InviteRepo")}
}

func (r *inviteRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *inviteRepo) Create(ctx context.Context, tx *gorm.DB, invite *types.Invite) error {
	return r.tx(tx).WithContext(ctx).Create(invite).Error
}

func (r *inviteRepo) GetByToken(ctx context.Context, tx *gorm.DB, token string) (*types.Invite, error) {
	var invite types.Invite
	err := r.tx(tx).WithContext(ctx).
		Where("token = ?", token).
		First(&invite).Error
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *inviteRepo) VoidToken(ctx context.Context, tx *gorm.DB, inviteID uuid.UUID, token string) error {
	return r.tx(tx).WithContext(ctx).
		Model(&types.Invite{}).
		Where("invite_id = ? AND token = ?", inviteID, token).
		Update("token", nil).Error
}
