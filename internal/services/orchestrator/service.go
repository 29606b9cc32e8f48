package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bank-sync-backend/internal/aggregator"
	"bank-sync-backend/internal/logging"
	"bank-sync-backend/internal/metrics"
	"bank-sync-backend/internal/models"
	"bank-sync-backend/internal/services/syncstate"
	"bank-sync-backend/internal/services/window"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var ErrMissingUserID = errors.New("orchestrator: user id is required")

const (
	NoAccountsMessage = "no accounts connected"
	CancelledMessage  = "sync cancelled"
)

type Config struct {
	// CallDelay follows every aggregator call within an account.
	CallDelay time.Duration
	// AccountDelay separates the last call of one account from the first
	// call of the next.
	AccountDelay time.Duration
	// StaleAfter is how old the latest sync may be before a resync is due.
	StaleAfter   time.Duration
	HistoryLimit int
}

func DefaultConfig() Config {
	return Config{
		CallDelay:    time.Second,
		AccountDelay: 3 * time.Second,
		StaleAfter:   6 * time.Hour,
		HistoryLimit: 10,
	}
}

type Option func(*Service)

func WithSleeper(sleep Sleeper) Option {
	return func(s *Service) { s.sleep = sleep }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRecorder(recorder metrics.Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func WithLogger(logger *logging.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

type Service struct {
	accounts   AccountStore
	source     DataSource
	state      StateMachine
	ledger     HistoryLedger
	reconciler TransactionReconciler
	config     Config

	sleep    Sleeper
	now      func() time.Time
	recorder metrics.Recorder
	logger   *logging.Logger
}

func NewService(accounts AccountStore, source DataSource, state StateMachine, ledger HistoryLedger, rec TransactionReconciler, config Config, opts ...Option) *Service {
	s := &Service{
		accounts:   accounts,
		source:     source,
		state:      state,
		ledger:     ledger,
		reconciler: rec,
		config:     config,
		sleep:      time.Sleep,
		now:        time.Now,
		recorder:   metrics.NoOpRecorder{},
		logger:     logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config.StaleAfter <= 0 {
		s.config.StaleAfter = DefaultConfig().StaleAfter
	}
	if s.config.HistoryLimit <= 0 {
		s.config.HistoryLimit = DefaultConfig().HistoryLimit
	}
	s.logger = s.logger.Named("orchestrator")
	return s
}

// SyncAll syncs every account of the user one after another. Only a
// failure to load the accounts is returned as an error; per-account
// failures are reported in the summary. Cancelling ctx stops the batch
// before the next account; an account already started runs to completion
// so its state and history entry are always closed.
func (s *Service) SyncAll(ctx context.Context, userID string) (*SyncSummary, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrMissingUserID
	}

	accounts, err := s.accounts.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	summary := &SyncSummary{TotalAccounts: len(accounts), Results: make([]AccountResult, 0, len(accounts))}
	if len(accounts) == 0 {
		summary.Message = NoAccountsMessage
		return summary, nil
	}

	s.logger.Info("sync started", zap.String("user_id", userID), zap.Int("accounts", len(accounts)))
	work := context.WithoutCancel(ctx)

	for i, account := range accounts {
		if ctx.Err() != nil {
			for _, rest := range accounts[i:] {
				summary.Results = append(summary.Results, cancelledResult(rest))
			}
			s.logger.Warn("sync cancelled", zap.String("user_id", userID), zap.Int("skipped", len(accounts)-i))
			break
		}
		if i > 0 {
			s.pause(s.config.AccountDelay)
		}

		result := s.syncAccount(work, account)
		if result.Status == ResultSuccess {
			summary.AccountsUpdated++
			summary.NewTransactions += result.New
		}
		summary.Results = append(summary.Results, result)
	}

	s.logger.Info("sync finished",
		zap.String("user_id", userID),
		zap.Int("accounts_updated", summary.AccountsUpdated),
		zap.Int("total_accounts", summary.TotalAccounts),
		zap.Int("new_transactions", summary.NewTransactions),
	)
	return summary, nil
}

type outcome struct {
	entryID  uuid.UUID
	syncType models.SyncType
	fetched  int
	inserted int
}

func (s *Service) syncAccount(ctx context.Context, account models.Account) AccountResult {
	started := s.now()
	log := s.logger.With(zap.String("account_id", account.ID.String()), zap.String("external_id", account.ExternalID))

	out, err := s.process(ctx, account)
	result := AccountResult{
		AccountID:  account.ID,
		ExternalID: account.ExternalID,
		Name:       account.DisplayName(),
		SyncType:   out.syncType,
		Fetched:    out.fetched,
		New:        out.inserted,
	}
	duration := s.now().Sub(started)

	if err != nil {
		msg := err.Error()
		if ferr := s.state.Fail(ctx, account.ID, msg); ferr != nil {
			log.Error("failed to record sync error on account", zap.Error(ferr))
		}
		if out.entryID != uuid.Nil {
			if cerr := s.ledger.Complete(ctx, out.entryID, out.fetched, out.inserted, models.HistoryError, msg); cerr != nil {
				log.Error("failed to complete history entry", zap.Error(cerr))
			}
		}
		log.Warn("account sync failed", zap.String("reason", aggregator.Classify(err)), zap.Error(err))
		s.recorder.RecordAccountSync(string(ResultError), duration)

		result.Status = ResultError
		result.Error = msg
		return result
	}

	log.Info("account synced",
		zap.String("sync_type", string(out.syncType)),
		zap.Int("fetched", out.fetched),
		zap.Int("new", out.inserted),
		zap.Duration("duration", duration),
	)
	s.recorder.RecordAccountSync(string(ResultSuccess), duration)
	s.recorder.RecordTransactions(out.fetched, out.inserted)
	result.Status = ResultSuccess
	return result
}

// process runs one attempt. The returned outcome is filled as far as the
// attempt got, so a failure can still close its history entry.
//
// The account is marked success before its history entry is completed. If
// that last write fails the account stays success (success -> error is not
// a valid transition) while the result and the history entry report the
// error.
func (s *Service) process(ctx context.Context, account models.Account) (outcome, error) {
	var out outcome

	if err := s.state.Begin(ctx, account.ID); err != nil {
		return out, fmt.Errorf("mark sync in progress: %w", err)
	}

	last, err := s.ledger.LastSuccess(ctx, account.ID)
	if err != nil {
		return out, err
	}
	out.syncType = window.SyncType(last)

	entryID, err := s.ledger.Begin(ctx, account.ID, out.syncType)
	if err != nil {
		return out, err
	}
	out.entryID = entryID

	win := window.Compute(last, s.now())

	details, err := s.source.GetAccountDetails(ctx, account.ExternalID)
	if err != nil {
		return out, fmt.Errorf("fetch account details: %w", err)
	}
	s.pause(s.config.CallDelay)

	balances, err := s.source.GetBalances(ctx, account.ExternalID)
	if err != nil {
		return out, fmt.Errorf("fetch balances: %w", err)
	}
	s.pause(s.config.CallDelay)

	raw, err := s.source.GetTransactions(ctx, account.ExternalID, win.Start, win.End)
	if err != nil {
		return out, fmt.Errorf("fetch transactions %s..%s: %w", win.From(), win.To(), err)
	}
	s.pause(s.config.CallDelay)

	if err := s.refreshProfile(ctx, &account, details); err != nil {
		return out, err
	}

	result, err := s.reconciler.Reconcile(ctx, raw, account.ID, account.Currency)
	out.fetched = result.Fetched
	out.inserted = result.New
	if err != nil {
		return out, fmt.Errorf("reconcile transactions: %w", err)
	}

	balance, err := firstBalance(balances)
	if err != nil {
		return out, err
	}
	if err := s.state.Succeed(ctx, account.ID, balance); err != nil {
		return out, fmt.Errorf("mark sync success: %w", err)
	}
	if err := s.ledger.Complete(ctx, entryID, out.fetched, out.inserted, models.HistorySuccess, ""); err != nil {
		return out, err
	}
	return out, nil
}

// refreshProfile fills name, IBAN and currency from the upstream details
// where the stored account has none.
func (s *Service) refreshProfile(ctx context.Context, account *models.Account, details *aggregator.AccountDetails) error {
	if details == nil {
		return nil
	}
	fields := map[string]interface{}{}
	if account.Name == "" {
		if name := firstNonEmpty(details.Name, details.Product, details.OwnerName); name != "" {
			fields["name"] = name
			account.Name = name
		}
	}
	if account.IBAN == "" && details.IBAN != "" {
		fields["iban"] = details.IBAN
		account.IBAN = details.IBAN
	}
	if account.Currency == "" && details.Currency != "" {
		fields["currency"] = details.Currency
		account.Currency = details.Currency
	}
	if len(fields) == 0 {
		return nil
	}
	if err := s.accounts.UpdateSyncFields(ctx, account.ID, fields); err != nil {
		return fmt.Errorf("update account details: %w", err)
	}
	return nil
}

// firstBalance uses the first balance the upstream lists.
func firstBalance(balances []aggregator.Balance) (*syncstate.Balance, error) {
	if len(balances) == 0 {
		return nil, nil
	}
	b := balances[0]
	amount, err := decimal.NewFromString(strings.TrimSpace(b.BalanceAmount.Amount))
	if err != nil {
		return nil, fmt.Errorf("invalid balance amount %q: %w", b.BalanceAmount.Amount, err)
	}
	return &syncstate.Balance{Amount: amount, Type: b.BalanceType}, nil
}

func (s *Service) pause(d time.Duration) {
	if d > 0 {
		s.sleep(d)
	}
}

func cancelledResult(account models.Account) AccountResult {
	return AccountResult{
		AccountID:  account.ID,
		ExternalID: account.ExternalID,
		Name:       account.DisplayName(),
		Status:     ResultError,
		Error:      CancelledMessage,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
