package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"bank-sync-backend/internal/aggregator"
	"bank-sync-backend/internal/logging"
	"bank-sync-backend/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// PlaceholderDescription is used when a record carries no usable text.
const PlaceholderDescription = "Bank transaction"

type TransactionStore interface {
	InsertIgnoreDuplicates(ctx context.Context, txs []models.Transaction) (int64, error)
}

// Result describes one reconciled batch. New is the number of rows the
// store actually inserted, not the batch size.
type Result struct {
	Fetched int
	New     int
	Skipped int
}

type Reconciler struct {
	store  TransactionStore
	logger *logging.Logger
}

func NewReconciler(store TransactionStore, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Reconciler{store: store, logger: logger.Named("reconciler")}
}

// Reconcile maps raw aggregator records to transactions owned by accountID
// and merges them idempotently by external id.
func (r *Reconciler) Reconcile(ctx context.Context, raw []aggregator.Transaction, accountID uuid.UUID, fallbackCurrency string) (Result, error) {
	txs, skipped, err := r.Map(raw, accountID, fallbackCurrency)
	if err != nil {
		return Result{Fetched: len(raw)}, err
	}

	inserted, err := r.store.InsertIgnoreDuplicates(ctx, txs)
	if err != nil {
		return Result{Fetched: len(raw), Skipped: skipped}, fmt.Errorf("store transactions: %w", err)
	}

	r.logger.Debug("batch reconciled",
		zap.String("account_id", accountID.String()),
		zap.Int("fetched", len(raw)),
		zap.Int64("inserted", inserted),
		zap.Int("skipped", skipped),
	)
	return Result{Fetched: len(raw), New: int(inserted), Skipped: skipped}, nil
}

// Map converts raw records into canonical transactions. Records without any
// id, and repeats of an id already seen in the batch, are skipped and
// counted. An amount that does not parse fails the whole batch.
func (r *Reconciler) Map(raw []aggregator.Transaction, accountID uuid.UUID, fallbackCurrency string) ([]models.Transaction, int, error) {
	out := make([]models.Transaction, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	skipped := 0

	for i, rec := range raw {
		externalID := firstNonEmpty(rec.TransactionID, rec.InternalTransactionID)
		if externalID == "" {
			r.logger.Warn("skipping transaction without id",
				zap.String("account_id", accountID.String()),
				zap.Int("index", i),
			)
			skipped++
			continue
		}
		if _, dup := seen[externalID]; dup {
			skipped++
			continue
		}
		seen[externalID] = struct{}{}

		tx, err := mapOne(rec, externalID, accountID, fallbackCurrency)
		if err != nil {
			return nil, skipped, err
		}
		out = append(out, tx)
	}
	return out, skipped, nil
}

func mapOne(rec aggregator.Transaction, externalID string, accountID uuid.UUID, fallbackCurrency string) (models.Transaction, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(rec.TransactionAmount.Amount))
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s: invalid amount %q: %w", externalID, rec.TransactionAmount.Amount, err)
	}

	date, err := bookingDate(rec)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s: %w", externalID, err)
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("transaction %s: encode raw record: %w", externalID, err)
	}

	return models.Transaction{
		ID:               uuid.New(),
		ExternalID:       externalID,
		AccountID:        accountID,
		BookingDate:      date,
		Amount:           amount,
		Currency:         firstNonEmpty(rec.TransactionAmount.Currency, fallbackCurrency),
		Description:      Description(rec),
		CounterpartyName: counterparty(rec, amount),
		Raw:              datatypes.JSON(raw),
	}, nil
}

// Description picks the first non-empty of remittance text, creditor name
// and debtor name, falling back to PlaceholderDescription.
func Description(rec aggregator.Transaction) string {
	return firstNonEmpty(
		rec.RemittanceInformationUnstructured,
		rec.CreditorName,
		rec.DebtorName,
		PlaceholderDescription,
	)
}

// counterparty is the creditor for money going out and the debtor for
// money coming in.
func counterparty(rec aggregator.Transaction, amount decimal.Decimal) *string {
	var name string
	if amount.IsNegative() {
		name = firstNonEmpty(rec.CreditorName, rec.DebtorName)
	} else {
		name = firstNonEmpty(rec.DebtorName, rec.CreditorName)
	}
	if name == "" {
		return nil
	}
	return &name
}

func bookingDate(rec aggregator.Transaction) (time.Time, error) {
	raw := firstNonEmpty(rec.BookingDate, rec.ValueDate)
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing booking and value date")
	}
	// some banks send full timestamps
	if len(raw) > len(aggregator.DateLayout) {
		raw = raw[:len(aggregator.DateLayout)]
	}
	d, err := time.Parse(aggregator.DateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return d, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
