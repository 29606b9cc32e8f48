package syncstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bank-sync-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrInvalidTransition = errors.New("syncstate: invalid transition")

type AccountStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	UpdateSyncFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
}

// Balance is the figure recorded on a successful sync.
type Balance struct {
	Amount decimal.Decimal
	Type   string
}

var transitions = map[models.SyncStatus][]models.SyncStatus{
	models.SyncStatusNever:      {models.SyncStatusInProgress},
	models.SyncStatusSuccess:    {models.SyncStatusInProgress},
	models.SyncStatusError:      {models.SyncStatusInProgress},
	models.SyncStatusInProgress: {models.SyncStatusInProgress, models.SyncStatusSuccess, models.SyncStatusError},
}

// CanTransition reports whether an account may move from one status to the
// other. in_progress -> in_progress lets a crashed attempt be restarted.
func CanTransition(from, to models.SyncStatus) bool {
	if from == "" {
		from = models.SyncStatusNever
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Machine owns the sync status columns of the account row.
type Machine struct {
	store AccountStore
	now   func() time.Time
}

func NewMachine(store AccountStore, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{store: store, now: now}
}

// Begin marks the account in_progress and clears the previous error.
func (m *Machine) Begin(ctx context.Context, accountID uuid.UUID) error {
	if err := m.check(ctx, accountID, models.SyncStatusInProgress); err != nil {
		return err
	}
	return m.write(ctx, accountID, map[string]interface{}{
		"sync_status": models.SyncStatusInProgress,
		"last_error":  nil,
	})
}

// Succeed records completion. balance may be nil when the upstream
// returned none, in which case the stored balance is left alone.
func (m *Machine) Succeed(ctx context.Context, accountID uuid.UUID, balance *Balance) error {
	if err := m.check(ctx, accountID, models.SyncStatusSuccess); err != nil {
		return err
	}
	fields := map[string]interface{}{
		"sync_status":  models.SyncStatusSuccess,
		"last_sync_at": m.now().UTC(),
		"last_error":   nil,
	}
	if balance != nil {
		fields["balance"] = balance.Amount
		fields["balance_type"] = balance.Type
	}
	return m.write(ctx, accountID, fields)
}

// Fail records the error message and the attempt time.
func (m *Machine) Fail(ctx context.Context, accountID uuid.UUID, message string) error {
	if err := m.check(ctx, accountID, models.SyncStatusError); err != nil {
		return err
	}
	return m.write(ctx, accountID, map[string]interface{}{
		"sync_status":  models.SyncStatusError,
		"last_sync_at": m.now().UTC(),
		"last_error":   message,
	})
}

func (m *Machine) check(ctx context.Context, accountID uuid.UUID, to models.SyncStatus) error {
	account, err := m.store.GetByID(ctx, accountID)
	if err != nil {
		return fmt.Errorf("load account %s: %w", accountID, err)
	}
	if !CanTransition(account.SyncStatus, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, account.SyncStatus, to)
	}
	return nil
}

func (m *Machine) write(ctx context.Context, accountID uuid.UUID, fields map[string]interface{}) error {
	if err := m.store.UpdateSyncFields(ctx, accountID, fields); err != nil {
		return fmt.Errorf("update account %s: %w", accountID, err)
	}
	return nil
}
