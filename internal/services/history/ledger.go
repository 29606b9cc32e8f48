package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bank-sync-backend/internal/models"

	"github.com/google/uuid"
)

// ErrAlreadyCompleted is returned when Complete targets an entry that is no
// longer in progress.
var ErrAlreadyCompleted = errors.New("history: entry already completed")

type Store interface {
	Create(ctx context.Context, entry *models.SyncHistory) error
	Complete(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (int64, error)
	LatestSuccess(ctx context.Context, accountID uuid.UUID) (*models.SyncHistory, error)
	RecentForAccounts(ctx context.Context, accountIDs []uuid.UUID, limit int) ([]models.SyncHistory, error)
}

// Ledger is the append-only audit trail of sync attempts. Entries are
// created in_progress and completed exactly once.
type Ledger struct {
	store Store
	now   func() time.Time
}

func NewLedger(store Store, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, now: now}
}

func (l *Ledger) Begin(ctx context.Context, accountID uuid.UUID, syncType models.SyncType) (uuid.UUID, error) {
	entry := &models.SyncHistory{
		ID:        uuid.New(),
		AccountID: accountID,
		SyncType:  syncType,
		Status:    models.HistoryInProgress,
		StartedAt: l.now().UTC(),
	}
	if err := l.store.Create(ctx, entry); err != nil {
		return uuid.Nil, fmt.Errorf("create history entry: %w", err)
	}
	return entry.ID, nil
}

// Complete finalises an entry. errMsg is stored only for error entries.
func (l *Ledger) Complete(ctx context.Context, entryID uuid.UUID, fetched, inserted int, status models.SyncHistoryStatus, errMsg string) error {
	if status != models.HistorySuccess && status != models.HistoryError {
		return fmt.Errorf("history: invalid final status %q", status)
	}
	fields := map[string]interface{}{
		"status":               status,
		"transactions_fetched": fetched,
		"transactions_new":     inserted,
		"completed_at":         l.now().UTC(),
	}
	if status == models.HistoryError && errMsg != "" {
		fields["error_message"] = errMsg
	}

	n, err := l.store.Complete(ctx, entryID, fields)
	if err != nil {
		return fmt.Errorf("complete history entry %s: %w", entryID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrAlreadyCompleted, entryID)
	}
	return nil
}

// LastSuccess returns when the account last completed a successful sync,
// or nil if it never has.
func (l *Ledger) LastSuccess(ctx context.Context, accountID uuid.UUID) (*time.Time, error) {
	entry, err := l.store.LatestSuccess(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load last successful sync: %w", err)
	}
	if entry == nil {
		return nil, nil
	}
	return entry.CompletedAt, nil
}

func (l *Ledger) Recent(ctx context.Context, accountIDs []uuid.UUID, limit int) ([]models.SyncHistory, error) {
	return l.store.RecentForAccounts(ctx, accountIDs, limit)
}
