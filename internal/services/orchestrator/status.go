package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"bank-sync-backend/internal/models"

	"github.com/google/uuid"
)

// GetSyncStatus summarises the persisted sync state of the user's accounts.
func (s *Service) GetSyncStatus(ctx context.Context, userID string) (*SyncStatus, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUserID
	}

	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	status := &SyncStatus{
		OverallStatus: OverallStatus(accounts),
		LastSyncAt:    latestSync(accounts),
		Accounts:      make([]AccountStatus, 0, len(accounts)),
		RecentHistory: []models.SyncHistory{},
	}
	status.NeedsSync = NeedsSync(accounts, status.LastSyncAt, s.now(), s.config.StaleAfter)

	ids := make([]uuid.UUID, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
		status.Accounts = append(status.Accounts, AccountStatus{
			AccountID:   a.ID,
			ExternalID:  a.ExternalID,
			Name:        a.DisplayName(),
			Currency:    a.Currency,
			Balance:     a.Balance,
			BalanceType: a.BalanceType,
			Status:      normalize(a.SyncStatus),
			LastSyncAt:  a.LastSyncAt,
			LastError:   a.LastError,
		})
	}

	if len(ids) > 0 {
		recent, err := s.ledger.Recent(ctx, ids, s.config.HistoryLimit)
		if err != nil {
			return nil, fmt.Errorf("load sync history: %w", err)
		}
		if recent != nil {
			status.RecentHistory = recent
		}
	}
	return status, nil
}

// OverallStatus folds account statuses: in_progress beats error beats
// success. A user with no accounts, or only never-synced ones, is never.
func OverallStatus(accounts []models.Account) models.SyncStatus {
	var anyError, anySuccess bool
	for _, a := range accounts {
		switch normalize(a.SyncStatus) {
		case models.SyncStatusInProgress:
			return models.SyncStatusInProgress
		case models.SyncStatusError:
			anyError = true
		case models.SyncStatusSuccess:
			anySuccess = true
		}
	}
	switch {
	case anyError:
		return models.SyncStatusError
	case anySuccess:
		return models.SyncStatusSuccess
	default:
		return models.SyncStatusNever
	}
}

// NeedsSync is false only when every account succeeded and the latest sync
// is younger than staleAfter.
func NeedsSync(accounts []models.Account, lastSync *time.Time, now time.Time, staleAfter time.Duration) bool {
	if lastSync == nil || now.Sub(*lastSync) > staleAfter {
		return true
	}
	for _, a := range accounts {
		if normalize(a.SyncStatus) != models.SyncStatusSuccess {
			return true
		}
	}
	return false
}

func latestSync(accounts []models.Account) *time.Time {
	var latest *time.Time
	for _, a := range accounts {
		if a.LastSyncAt == nil {
			continue
		}
		if latest == nil || a.LastSyncAt.After(*latest) {
			t := *a.LastSyncAt
			latest = &t
		}
	}
	return latest
}

func normalize(status models.SyncStatus) models.SyncStatus {
	if status == "" {
		return models.SyncStatusNever
	}
	return status
}
