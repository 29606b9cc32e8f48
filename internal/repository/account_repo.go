package repository

import (
	"context"

	"bank-sync-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// ListByUser returns every account the user owns, oldest first so sync
// order is stable between runs.
func (r *AccountRepository) ListByUser(ctx context.Context, userID string) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&accounts).Error
	return accounts, err
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

// GetForUser fetches an account only if userID owns it.
func (r *AccountRepository) GetForUser(ctx context.Context, userID string, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&account).Error
	if err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

func (r *AccountRepository) GetByExternalID(ctx context.Context, externalID string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "external_id = ?", externalID).Error; err != nil {
		return nil, translate(err)
	}
	return &account, nil
}

// CreateIfAbsent inserts the account unless one with the same external id
// exists already. It reports whether a row was written.
func (r *AccountRepository) CreateIfAbsent(ctx context.Context, account *models.Account) (bool, error) {
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	if account.SyncStatus == "" {
		account.SyncStatus = models.SyncStatusNever
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "external_id"}}, DoNothing: true}).
		Create(account)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateSyncFields writes the given columns of a single account row.
func (r *AccountRepository) UpdateSyncFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("id = ?", id).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
