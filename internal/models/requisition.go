package models

import (
	"time"

	"github.com/google/uuid"
)

// Requisition mirrors the aggregator-side consent created when a user
// connects a bank. Reference is generated locally and round-trips through
// the consent redirect.
type Requisition struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        string    `gorm:"index;not null" json:"user_id"`
	ExternalID    string    `gorm:"uniqueIndex;not null" json:"external_id"`
	Reference     string    `gorm:"uniqueIndex;not null" json:"reference"`
	InstitutionID string    `json:"institution_id"`
	Link          string    `json:"link"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
