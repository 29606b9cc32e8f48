package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type SyncStatus string

const (
	SyncStatusNever      SyncStatus = "never"
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusSuccess    SyncStatus = "success"
	SyncStatusError      SyncStatus = "error"
)

type Account struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        string          `gorm:"index;not null" json:"user_id"`
	ExternalID    string          `gorm:"uniqueIndex;not null" json:"external_id"`
	RequisitionID *uuid.UUID      `gorm:"type:uuid;index" json:"requisition_id,omitempty"`
	Name          string          `json:"name"`
	IBAN          string          `json:"iban,omitempty"`
	Currency      string          `gorm:"size:3" json:"currency"`
	Balance       decimal.Decimal `gorm:"type:numeric(20,4)" json:"balance"`
	BalanceType   string          `json:"balance_type,omitempty"`
	LastSyncAt    *time.Time      `json:"last_sync_at"`
	SyncStatus    SyncStatus      `gorm:"index;default:never" json:"sync_status"`
	LastError     *string         `json:"last_error"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// DisplayName prefers the stored name, falling back to the aggregator id.
func (a *Account) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ExternalID
}
