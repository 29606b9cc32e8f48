package repository

import (
	"context"

	"bank-sync-backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RequisitionRepository struct {
	db *gorm.DB
}

func NewRequisitionRepository(db *gorm.DB) *RequisitionRepository {
	return &RequisitionRepository{db: db}
}

func (r *RequisitionRepository) Create(ctx context.Context, req *models.Requisition) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(req).Error
}

// GetByReference looks a requisition up by its local reference, scoped to
// the owning user.
func (r *RequisitionRepository) GetByReference(ctx context.Context, userID, reference string) (*models.Requisition, error) {
	var req models.Requisition
	err := r.db.WithContext(ctx).
		Where("reference = ? AND user_id = ?", reference, userID).
		First(&req).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r *RequisitionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return r.db.WithContext(ctx).
		Model(&models.Requisition{}).
		Where("id = ?", id).
		Update("status", status).Error
}
