package repository

import (
	"context"

	"bank-sync-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 200

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// InsertIgnoreDuplicates stores the transactions, skipping any whose
// external id is already present, and returns how many rows were inserted.
// Existing rows are left untouched, including their account.
func (r *TransactionRepository) InsertIgnoreDuplicates(ctx context.Context, txs []models.Transaction) (int64, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	for i := range txs {
		if txs[i].ID == uuid.Nil {
			txs[i].ID = uuid.New()
		}
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_id"}}, DoNothing: true}).
		CreateInBatches(&txs, insertBatchSize)
	return result.RowsAffected, result.Error
}

func (r *TransactionRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]models.Transaction, error) {
	var txs []models.Transaction
	err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("booking_date DESC, id ASC").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	return txs, err
}

func (r *TransactionRepository) CountByAccount(ctx context.Context, accountID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count, err
}
