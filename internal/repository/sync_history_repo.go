package repository

import (
	"context"

	"bank-sync-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SyncHistoryRepository struct {
	db *gorm.DB
}

func NewSyncHistoryRepository(db *gorm.DB) *SyncHistoryRepository {
	return &SyncHistoryRepository{db: db}
}

func (r *SyncHistoryRepository) Create(ctx context.Context, entry *models.SyncHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// Complete applies fields to the entry only while it is still in progress.
// It returns the number of rows changed, 0 if the entry was already final.
func (r *SyncHistoryRepository) Complete(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.SyncHistory{}).
		Where("id = ? AND status = ?", id, models.HistoryInProgress).
		Updates(fields)
	return result.RowsAffected, result.Error
}

func (r *SyncHistoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SyncHistory, error) {
	var entry models.SyncHistory
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &entry, nil
}

// LatestSuccess returns the most recently completed successful entry for
// the account, or nil when there is none.
func (r *SyncHistoryRepository) LatestSuccess(ctx context.Context, accountID uuid.UUID) (*models.SyncHistory, error) {
	var entries []models.SyncHistory
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND status = ? AND completed_at IS NOT NULL", accountID, models.HistorySuccess).
		Order("completed_at DESC").
		Limit(1).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}

func (r *SyncHistoryRepository) RecentForAccounts(ctx context.Context, accountIDs []uuid.UUID, limit int) ([]models.SyncHistory, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}
	var entries []models.SyncHistory
	err := r.db.WithContext(ctx).
		Where("account_id IN ?", accountIDs).
		Order("started_at DESC").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}
