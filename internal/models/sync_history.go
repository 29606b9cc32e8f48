package models

import (
	"time"

	"github.com/google/uuid"
)

type SyncType string

const (
	SyncTypeInitial     SyncType = "initial"
	SyncTypeIncremental SyncType = "incremental"
)

type SyncHistoryStatus string

const (
	HistoryInProgress SyncHistoryStatus = "in_progress"
	HistorySuccess    SyncHistoryStatus = "success"
	HistoryError      SyncHistoryStatus = "error"
)

type SyncHistory struct {
	ID                  uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID           uuid.UUID         `gorm:"type:uuid;index;not null" json:"account_id"`
	SyncType            SyncType          `json:"sync_type"`
	Status              SyncHistoryStatus `gorm:"index" json:"status"`
	TransactionsFetched int               `json:"transactions_fetched"`
	TransactionsNew     int               `json:"transactions_new"`
	ErrorMessage        *string           `json:"error_message,omitempty"`
	StartedAt           time.Time         `gorm:"index" json:"started_at"`
	CompletedAt         *time.Time        `json:"completed_at"`
}

func (SyncHistory) TableName() string {
	return "sync_history"
}
