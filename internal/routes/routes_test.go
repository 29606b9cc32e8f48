package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bank-sync-backend/internal/aggregator"
	"bank-sync-backend/internal/models"
	"bank-sync-backend/internal/repository"
	"bank-sync-backend/internal/services/orchestrator"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type stubSource struct{}

func (stubSource) ListInstitutions(context.Context, string) ([]aggregator.Institution, error) {
	return []aggregator.Institution{{ID: "BANK"}}, nil
}

func (stubSource) CreateRequisition(_ context.Context, in aggregator.RequisitionInput) (*aggregator.Requisition, error) {
	return &aggregator.Requisition{ID: "req-1", Status: "CR", Link: "https://bank/consent", Reference: in.Reference}, nil
}

func (stubSource) GetRequisition(context.Context, string) (*aggregator.Requisition, error) {
	return &aggregator.Requisition{ID: "req-1", Status: "LN", Accounts: []string{"acc-1"}}, nil
}

func (stubSource) GetAccountDetails(_ context.Context, id string) (*aggregator.AccountDetails, error) {
	return &aggregator.AccountDetails{ResourceID: id, Name: "Current", Currency: "GBP"}, nil
}

func (stubSource) GetBalances(context.Context, string) ([]aggregator.Balance, error) {
	return []aggregator.Balance{{BalanceAmount: aggregator.Amount{Amount: "42.00", Currency: "GBP"}, BalanceType: "expected"}}, nil
}

func (stubSource) GetTransactions(context.Context, string, time.Time, time.Time) ([]aggregator.Transaction, error) {
	return []aggregator.Transaction{{
		TransactionID:     "tx-1",
		BookingDate:       "2026-10-16",
		TransactionAmount: aggregator.Amount{Amount: "-3.20", Currency: "GBP"},
		CreditorName:      "Bakery",
	}}, nil
}

func newServer(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(&models.Account{}, &models.Transaction{}, &models.SyncHistory{}, &models.Requisition{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	r := gin.New()
	RegisterRoutes(r, Deps{
		DB:      db,
		Source:  stubSource{},
		Sync:    orchestrator.DefaultConfig(),
		Sleeper: func(time.Duration) {},
	})
	return r, db
}

func request(r http.Handler, method, path, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		req.Header.Set("X-User-ID", user)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newServer(t)
	if w := request(r, http.MethodGet, "/api/health", ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestSyncRequiresUser(t *testing.T) {
	r, _ := newServer(t)
	if w := request(r, http.MethodPost, "/api/sync", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestSyncWithoutAccounts(t *testing.T) {
	r, _ := newServer(t)
	w := request(r, http.MethodPost, "/api/sync", "user-1")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var summary orchestrator.SyncSummary
	_ = json.Unmarshal(w.Body.Bytes(), &summary)
	if summary.TotalAccounts != 0 || summary.Message != orchestrator.NoAccountsMessage {
		t.Errorf("unexpected summary %+v", summary)
	}
}

func TestConnectThenSync(t *testing.T) {
	r, db := newServer(t)

	w := request(r, http.MethodPost, "/api/connections", "user-1")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty connect body status = %d, want 400", w.Code)
	}

	req := &models.Requisition{UserID: "user-1", ExternalID: "req-1", Reference: "ref-1", InstitutionID: "BANK", Status: "CR"}
	if err := repository.NewRequisitionRepository(db).Create(context.Background(), req); err != nil {
		t.Fatalf("seed requisition: %v", err)
	}
	if w := request(r, http.MethodPost, "/api/connections/ref-1/complete", "user-1"); w.Code != http.StatusOK {
		t.Fatalf("complete status = %d body = %s", w.Code, w.Body.String())
	}

	w = request(r, http.MethodPost, "/api/sync", "user-1")
	var summary orchestrator.SyncSummary
	_ = json.Unmarshal(w.Body.Bytes(), &summary)
	if summary.AccountsUpdated != 1 || summary.NewTransactions != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	w = request(r, http.MethodGet, "/api/sync/status", "user-1")
	var status orchestrator.SyncStatus
	_ = json.Unmarshal(w.Body.Bytes(), &status)
	if status.OverallStatus != models.SyncStatusSuccess || status.NeedsSync {
		t.Errorf("unexpected status %+v", status)
	}
}
