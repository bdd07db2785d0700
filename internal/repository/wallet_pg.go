package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/GoPolymarket/safegate/internal/model"
	"github.com/GoPolymarket/safegate/internal/store"
)

// PostgresWalletRepo persists user → smart-wallet records.
type PostgresWalletRepo struct {
	db *gorm.DB
}

func NewPostgresWalletRepo(db *gorm.DB) *PostgresWalletRepo {
	return &PostgresWalletRepo{db: db}
}

func (r *PostgresWalletRepo) GetWallet(ctx context.Context, userAddress string) (*model.WalletRecord, error) {
	var record model.WalletRecord
	err := r.db.WithContext(ctx).
		Where("user_address = ?", strings.ToLower(userAddress)).
		First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *PostgresWalletRepo) SaveWallet(ctx context.Context, record *model.WalletRecord) error {
	record.UserAddress = strings.ToLower(record.UserAddress)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_address"}},
			UpdateAll: true,
		}).
		Create(record).Error
}
