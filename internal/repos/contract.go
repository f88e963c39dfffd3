package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ankinstructor/ank-admin-api/internal/logger"
	"github.com/ankinstructor/ank-admin-api/internal/types"
)

type ContractRepo interface {
	Create(ctx context.Context, tx *gorm.DB, contract *types.Contract) error
	GetByID(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) (*types.Contract, error)
}

type contractRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewContractRepo(db *gorm.DB, baseLog *logger.Logger) ContractRepo {
	return &contractRepo{db: db, log: baseLog.With("repo", "ContractRepo")}
}

func (r *contractRepo) tx(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *contractRepo) Create(ctx context.Context, tx *gorm.DB, contract *types.Contract) error {
	return r.tx(tx).WithContext(ctx).Create(contract).Error
}

func (r *contractRepo) GetByID(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) (*types.Contract, error) {
	var contract types.Contract
	err := r.tx(tx).WithContext(ctx).
		Where("contract_id = ?", contractID).
		First(&contract).Error
	if err != nil {
		return nil, err
	}
	return &contract, nil
}
