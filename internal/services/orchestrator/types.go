package orchestrator

import (
	"context"
	"time"

	"bank-sync-backend/internal/aggregator"
	"bank-sync-backend/internal/models"
	"bank-sync-backend/internal/services/reconciler"
	"bank-sync-backend/internal/services/syncstate"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type AccountStore interface {
	ListByUser(ctx context.Context, userID string) ([]models.Account, error)
	UpdateSyncFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
}

// DataSource is the part of the aggregator client a sync needs.
type DataSource interface {
	GetAccountDetails(ctx context.Context, accountID string) (*aggregator.AccountDetails, error)
	GetBalances(ctx context.Context, accountID string) ([]aggregator.Balance, error)
	GetTransactions(ctx context.Context, accountID string, from, to time.Time) ([]aggregator.Transaction, error)
}

type StateMachine interface {
	Begin(ctx context.Context, accountID uuid.UUID) error
	Succeed(ctx context.Context, accountID uuid.UUID, balance *syncstate.Balance) error
	Fail(ctx context.Context, accountID uuid.UUID, message string) error
}

type HistoryLedger interface {
	Begin(ctx context.Context, accountID uuid.UUID, syncType models.SyncType) (uuid.UUID, error)
	Complete(ctx context.Context, entryID uuid.UUID, fetched, inserted int, status models.SyncHistoryStatus, errMsg string) error
	LastSuccess(ctx context.Context, accountID uuid.UUID) (*time.Time, error)
	Recent(ctx context.Context, accountIDs []uuid.UUID, limit int) ([]models.SyncHistory, error)
}

type TransactionReconciler interface {
	Reconcile(ctx context.Context, raw []aggregator.Transaction, accountID uuid.UUID, fallbackCurrency string) (reconciler.Result, error)
}

// Sleeper blocks for the given duration.
type Sleeper func(time.Duration)

type ResultStatus string

const (
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
)

// AccountResult is the tagged outcome of one account's sync attempt.
// Error is set only when Status is ResultError.
type AccountResult struct {
	AccountID  uuid.UUID       `json:"account_id"`
	ExternalID string          `json:"external_id"`
	Name       string          `json:"name"`
	Status     ResultStatus    `json:"status"`
	SyncType   models.SyncType `json:"sync_type,omitempty"`
	Fetched    int             `json:"transactions_fetched"`
	New        int             `json:"transactions_new"`
	Error      string          `json:"error,omitempty"`
}

type SyncSummary struct {
	AccountsUpdated int             `json:"accounts_updated"`
	TotalAccounts   int             `json:"total_accounts"`
	NewTransactions int             `json:"new_transactions"`
	Results         []AccountResult `json:"results"`
	Message         string          `json:"message,omitempty"`
}

type AccountStatus struct {
	AccountID   uuid.UUID         `json:"account_id"`
	ExternalID  string            `json:"external_id"`
	Name        string            `json:"name"`
	Currency    string            `json:"currency"`
	Balance     decimal.Decimal   `json:"balance"`
	BalanceType string            `json:"balance_type"`
	Status      models.SyncStatus `json:"sync_status"`
	LastSyncAt  *time.Time        `json:"last_sync_at"`
	LastError   *string           `json:"last_error,omitempty"`
}

type SyncStatus struct {
	OverallStatus models.SyncStatus    `json:"overall_status"`
	LastSyncAt    *time.Time           `json:"last_sync_at"`
	NeedsSync     bool                 `json:"needs_sync"`
	Accounts      []AccountStatus      `json:"accounts"`
	RecentHistory []models.SyncHistory `json:"recent_history"`
}
