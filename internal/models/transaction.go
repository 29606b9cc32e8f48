package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Transaction is one booked movement on an Account. ExternalID is the
// aggregator-assigned id and the deduplication key; rows are never updated
// by the sync pipeline once inserted.
type Transaction struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ExternalID       string          `gorm:"uniqueIndex;not null" json:"external_id"`
	AccountID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"account_id"`
	BookingDate      time.Time       `gorm:"column:booking_date;index" json:"booking_date"`
	Amount           decimal.Decimal `gorm:"type:numeric(20,4);not null" json:"amount"`
	Currency         string          `gorm:"size:3" json:"currency"`
	Description      string          `json:"description"`
	CounterpartyName *string         `json:"counterparty_name,omitempty"`
	// Category is owned by the categorization engine.
	Category  *string        `gorm:"index" json:"category,omitempty"`
	Raw       datatypes.JSON `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
}
