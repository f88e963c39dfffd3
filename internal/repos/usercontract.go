package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/types"
)

type UserContractRepo interface {
	Create(ctx context.Context, tx *gorm.DB, link *types.UserContract) error
	EnsureInvited(ctx context.Context, tx *gorm.DB, email string, contractID uuid.UUID) error
	ActivateByEmail(ctx context.Context, tx *gorm.DB, email string, contractID uuid.UUID) (int64, error)
	HasRole(ctx context.Context, tx *gorm.DB, userID string, contractID uuid.UUID, role string) (bool, error)
	IsMember(ctx context.Context, tx *gorm.DB, userID string, contractID uuid.UUID) (bool, error)
	IsAdminAnywhere(ctx context.Context, tx *gorm.DB, userID string) (bool, error)
}

type userContractRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserContractRepo(db *gorm.DB, baseLog *logger.Logger) UserContractRepo {
	return &userContractRepo{db: db, log: baseLog.With("repo", "UserContractRepo")}
}

func (r *userContractRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *userContractRepo) Create(ctx context.Context, tx *gorm.DB, link *types.UserContract) error {
	return r.tx(tx).WithContext(ctx).Create(link).Error
}

// EnsureInvited precreates the membership row for an invited email, keyed on
// whatever user row currently carries that email. No-op when the link exists.
func (r *userContractRepo) EnsureInvited(ctx context.Context, tx *gorm.DB, email string, contractID uuid.UUID) error {
	return r.tx(tx).WithContext(ctx).Exec(`
		INSERT INTO user_contracts (user_id, contract_id, role, status, created_at)
		SELECT u.user_id, ?, 'member', 'invited', NOW()
		FROM users u
		WHERE u.email = ?
		ON CONFLICT DO NOTHING
	`, contractID, email).Error
}

func (r *userContractRepo) ActivateByEmail(ctx context.Context, tx *gorm.DB, email string, contractID uuid.UUID) (int64, error) {
	res := r.tx(tx).WithContext(ctx).Exec(`
		UPDATE user_contracts uc
		SET status = 'active'
		FROM users u
		WHERE u.user_id = uc.user_id
		  AND u.email = ?
		  AND uc.contract_id = ?
	`, email, contractID)
	return res.RowsAffected, res.Error
}

func (r *userContractRepo) HasRole(ctx context.Context, tx *gorm.DB, userID string, contractID uuid.UUID, role string) (bool, error) {
	var count int64
	err := r.tx(tx).WithContext(ctx).
		Model(&types.UserContract{}).
		Where("user_id = ? AND contract_id = ? AND role = ? AND status = ?", userID, contractID, role, types.MembershipActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userContractRepo) IsMember(ctx context.Context, tx *gorm.DB, userID string, contractID uuid.UUID) (bool, error) {
	var count int64
	err := r.tx(tx).WithContext(ctx).
		Model(&types.UserContract{}).
		Where("user_id = ? AND contract_id = ?", userID, contractID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userContractRepo) IsAdminAnywhere(ctx context.Context, tx *gorm.DB, userID string) (bool, error) {
	var count int64
	err := r.tx(tx).WithContext(ctx).
		Model(&types.UserContract{}).
		Where("user_id = ? AND role = ? AND status = ?", userID, types.ContractRoleAdmin, types.MembershipActive).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
