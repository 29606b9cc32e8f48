package aggregator

import (
	"context"
	"errors"
	"time"

	"bank-sync-backend/internal/logging"
	"bank-sync-backend/internal/metrics"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// DataSource is the full aggregator surface. *Client implements it, and so
// does ResilientClient.
type DataSource interface {
	ListInstitutions(ctx context.Context, country string) ([]Institution, error)
	CreateRequisition(ctx context.Context, input RequisitionInput) (*Requisition, error)
	GetRequisition(ctx context.Context, requisitionID string) (*Requisition, error)
	GetAccountDetails(ctx context.Context, accountID string) (*AccountDetails, error)
	GetBalances(ctx context.Context, accountID string) ([]Balance, error)
	GetTransactions(ctx context.Context, accountID string, from, to time.Time) ([]Transaction, error)
}

type BreakerConfig struct {
	Name string
	// MaxFailures consecutive transient failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before half-opening.
	OpenTimeout time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:        "aggregator",
		MaxFailures: 5,
		OpenTimeout: time.Minute,
	}
}

// ResilientClient guards a DataSource with a circuit breaker. Only transient
// failures (rate limit, network, 5xx) count against the breaker; consent and
// not-found errors are per-account problems. Calls are never retried.
type ResilientClient struct {
	source  DataSource
	cb      *gobreaker.CircuitBreaker
	metrics metrics.Recorder
	logger  *logging.Logger
}

func NewResilientClient(source DataSource, config BreakerConfig, recorder metrics.Recorder, logger *logging.Logger) *ResilientClient {
	if recorder == nil {
		recorder = metrics.NoOpRecorder{}
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	if config.MaxFailures == 0 {
		config.MaxFailures = DefaultBreakerConfig().MaxFailures
	}
	logger = logger.Named("breaker")

	rc := &ResilientClient{
		source:  source,
		metrics: recorder,
		logger:  logger,
	}

	rc.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: 1,
		Timeout:     config.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.IsTransient()
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			rc.metrics.RecordCircuitState(name, toCircuitState(to))
		},
	})

	return rc
}

func (r *ResilientClient) State() gobreaker.State {
	return r.cb.State()
}

func (r *ResilientClient) ListInstitutions(ctx context.Context, country string) ([]Institution, error) {
	return execute(r, "list_institutions", func() ([]Institution, error) {
		return r.source.ListInstitutions(ctx, country)
	})
}

func (r *ResilientClient) CreateRequisition(ctx context.Context, input RequisitionInput) (*Requisition, error) {
	return execute(r, "create_requisition", func() (*Requisition, error) {
		return r.source.CreateRequisition(ctx, input)
	})
}

func (r *ResilientClient) GetRequisition(ctx context.Context, requisitionID string) (*Requisition, error) {
	return execute(r, "get_requisition", func() (*Requisition, error) {
		return r.source.GetRequisition(ctx, requisitionID)
	})
}

func (r *ResilientClient) GetAccountDetails(ctx context.Context, accountID string) (*AccountDetails, error) {
	return execute(r, "account_details", func() (*AccountDetails, error) {
		return r.source.GetAccountDetails(ctx, accountID)
	})
}

func (r *ResilientClient) GetBalances(ctx context.Context, accountID string) ([]Balance, error) {
	return execute(r, "account_balances", func() ([]Balance, error) {
		return r.source.GetBalances(ctx, accountID)
	})
}

func (r *ResilientClient) GetTransactions(ctx context.Context, accountID string, from, to time.Time) ([]Transaction, error) {
	return execute(r, "account_transactions", func() ([]Transaction, error) {
		return r.source.GetTransactions(ctx, accountID, from, to)
	})
}

func execute[T any](r *ResilientClient, op string, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := r.cb.Execute(func() (interface{}, error) {
		return fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrCircuitOpen
	}
	r.metrics.RecordUpstreamCall(op, Classify(err), time.Since(start))

	if err != nil {
		var zero T
		r.logger.Debug("upstream call failed",
			zap.String("operation", op),
			zap.String("class", Classify(err)),
			zap.Error(err),
		)
		return zero, err
	}
	return result.(T), nil
}

func toCircuitState(s gobreaker.State) metrics.CircuitState {
	switch s {
	case gobreaker.StateOpen:
		return metrics.CircuitOpen
	case gobreaker.StateHalfOpen:
		return metrics.CircuitHalfOpen
	default:
		return metrics.CircuitClosed
	}
}

var (
	_ DataSource = (*Client)(nil)
	_ DataSource = (*ResilientClient)(nil)
)
