package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"bank-sync-backend/internal/aggregator"
	"bank-sync-backend/internal/models"
)

func accountWith(status models.SyncStatus, lastSync *time.Time) models.Account {
	return models.Account{SyncStatus: status, LastSyncAt: lastSync}
}

func TestOverallStatus(t *testing.T) {
	cases := []struct {
		name     string
		statuses []models.SyncStatus
		want     models.SyncStatus
	}{
		{"no accounts", nil, models.SyncStatusNever},
		{"all never", []models.SyncStatus{models.SyncStatusNever, ""}, models.SyncStatusNever},
		{"in progress wins", []models.SyncStatus{models.SyncStatusError, models.SyncStatusInProgress}, models.SyncStatusInProgress},
		{"error over success", []models.SyncStatus{models.SyncStatusSuccess, models.SyncStatusError}, models.SyncStatusError},
		{"success", []models.SyncStatus{models.SyncStatusSuccess, models.SyncStatusNever}, models.SyncStatusSuccess},
	}
	for _, tc := range cases {
		var accounts []models.Account
		for _, s := range tc.statuses {
			accounts = append(accounts, accountWith(s, nil))
		}
		if got := OverallStatus(accounts); got != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestNeedsSync(t *testing.T) {
	now := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-time.Hour)
	stale := now.Add(-7 * time.Hour)
	stale6 := 6 * time.Hour

	cases := []struct {
		name     string
		accounts []models.Account
		last     *time.Time
		want     bool
	}{
		{"never synced", []models.Account{accountWith(models.SyncStatusSuccess, nil)}, nil, true},
		{"no accounts", nil, nil, true},
		{"older than six hours", []models.Account{accountWith(models.SyncStatusSuccess, &stale)}, &stale, true},
		{"account in error", []models.Account{accountWith(models.SyncStatusSuccess, &recent), accountWith(models.SyncStatusError, &recent)}, &recent, true},
		{"account never synced", []models.Account{accountWith(models.SyncStatusSuccess, &recent), accountWith(models.SyncStatusNever, nil)}, &recent, true},
		{"account stuck in progress", []models.Account{accountWith(models.SyncStatusSuccess, &recent), accountWith(models.SyncStatusInProgress, &recent)}, &recent, true},
		{"all fresh successes", []models.Account{accountWith(models.SyncStatusSuccess, &recent)}, &recent, false},
	}
	for _, tc := range cases {
		if got := NeedsSync(tc.accounts, tc.last, now, stale6); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestGetSyncStatus(t *testing.T) {
	e := newTestEnv(t)
	e.addAccount(t, "user-1", "acc-1")
	e.addAccount(t, "user-1", "acc-2")
	e.source.errs["details:acc-2"] = &aggregator.APIError{Op: "get_account_details", StatusCode: 401, Summary: "Invalid token", Kind: aggregator.ErrUnauthorized}

	if _, err := e.svc.SyncAll(context.Background(), "user-1"); err != nil {
		t.Fatalf("SyncAll failed: %v", err)
	}

	status, err := e.svc.GetSyncStatus(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetSyncStatus failed: %v", err)
	}
	if status.OverallStatus != models.SyncStatusError || !status.NeedsSync {
		t.Errorf("overall = %s needsSync = %v", status.OverallStatus, status.NeedsSync)
	}
	if status.LastSyncAt == nil || !status.LastSyncAt.Equal(e.now) {
		t.Errorf("LastSyncAt = %v", status.LastSyncAt)
	}
	if len(status.Accounts) != 2 || len(status.RecentHistory) != 2 {
		t.Errorf("accounts = %d history = %d", len(status.Accounts), len(status.RecentHistory))
	}

	delete(e.source.errs, "details:acc-2")
	e.now = e.now.Add(time.Minute)
	if _, err := e.svc.SyncAll(context.Background(), "user-1"); err != nil {
		t.Fatalf("second SyncAll failed: %v", err)
	}
	status, _ = e.svc.GetSyncStatus(context.Background(), "user-1")
	if status.OverallStatus != models.SyncStatusSuccess || status.NeedsSync {
		t.Errorf("after recovery: overall = %s needsSync = %v", status.OverallStatus, status.NeedsSync)
	}

	e.now = e.now.Add(7 * time.Hour)
	status, _ = e.svc.GetSyncStatus(context.Background(), "user-1")
	if !status.NeedsSync {
		t.Error("stale sync should need resync")
	}
}

func TestGetSyncStatus_NoAccounts(t *testing.T) {
	e := newTestEnv(t)
	status, err := e.svc.GetSyncStatus(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("GetSyncStatus failed: %v", err)
	}
	if status.OverallStatus != models.SyncStatusNever || !status.NeedsSync || status.LastSyncAt != nil {
		t.Errorf("unexpected status %+v", status)
	}
	if status.RecentHistory == nil || len(status.Accounts) != 0 {
		t.Error("empty lists expected")
	}
}

func TestGetSyncStatus_MissingUserID(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.svc.GetSyncStatus(context.Background(), ""); !errors.Is(err, ErrMissingUserID) {
		t.Fatalf("expected ErrMissingUserID, got %v", err)
	}
}
