package repos

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/types"
)

type UserRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, user *types.User) error
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error)
	EmailUsedByOther(ctx context.Context, tx *gorm.DB, email, userID string) (bool, error)
	EnsureByEmail(ctx context.Context, tx *gorm.DB, userID, email string) error
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return &userRepo{db: db, log: baseLog.With("repo", "UserRepo")}
}

func (r *userRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *userRepo) Upsert(ctx context.Context, tx *gorm.DB, user *types.User) error {
	now := time.Now().UTC()
	user.LastLoginAt = &now
	return r.tx(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"email", "display_name", "last_login_at",
			}),
		}).
		Create(user).Error
}

func (r *userRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.User, error) {
	var user types.User
	err := r.tx(tx).WithContext(ctx).
		Where("email = ?", email).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) EmailUsedByOther(ctx context.Context, tx *gorm.DB, email, userID string) (bool, error) {
	var count int64
	err := r.tx(tx).WithContext(ctx).
		Model(&types.User{}).
		Where("email = ? AND user_id <> ?", email, userID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *userRepo) EnsureByEmail(ctx context.Context, tx *gorm.DB, userID, email string) error {
	return r.tx(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoNothing: true,
		}).
		Create(&types.User{UserID: userID, Email: email}).Error
}
