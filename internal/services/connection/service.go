package connection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bank-sync-backend/internal/aggregator"
	"bank-sync-backend/internal/cache"
	"bank-sync-backend/internal/logging"
	"bank-sync-backend/internal/models"
	"bank-sync-backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidInput        = errors.New("connection: invalid input")
	ErrRequisitionNotFound = errors.New("connection: requisition not found")
	ErrNotLinked           = errors.New("connection: requisition has no linked accounts")
)

type DataSource interface {
	ListInstitutions(ctx context.Context, country string) ([]aggregator.Institution, error)
	CreateRequisition(ctx context.Context, input aggregator.RequisitionInput) (*aggregator.Requisition, error)
	GetRequisition(ctx context.Context, requisitionID string) (*aggregator.Requisition, error)
}

type AccountStore interface {
	CreateIfAbsent(ctx context.Context, account *models.Account) (bool, error)
	GetByExternalID(ctx context.Context, externalID string) (*models.Account, error)
}

type RequisitionStore interface {
	Create(ctx context.Context, req *models.Requisition) error
	GetByReference(ctx context.Context, userID, reference string) (*models.Requisition, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// CompleteResult lists what a finished bank connection produced. Conflicts
// holds external account ids already owned by another user.
type CompleteResult struct {
	Requisition *models.Requisition `json:"requisition"`
	Created     []models.Account    `json:"created"`
	Existing    int                 `json:"existing"`
	Conflicts   []string            `json:"conflicts,omitempty"`
}

type Service struct {
	source       DataSource
	accounts     AccountStore
	requisitions RequisitionStore
	cache        cache.InstitutionCache
	logger       *logging.Logger
}

func NewService(source DataSource, accounts AccountStore, requisitions RequisitionStore, institutions cache.InstitutionCache, logger *logging.Logger) *Service {
	if institutions == nil {
		institutions = cache.NewMemoryCache(nil)
	}
	if logger == nil {
		logger = logging.NewNoOpLogger()
	}
	return &Service{
		source:       source,
		accounts:     accounts,
		requisitions: requisitions,
		cache:        institutions,
		logger:       logger.Named("connection"),
	}
}

// Institutions lists the banks available in a country, served from cache
// when possible. Cache failures fall through to the aggregator.
func (s *Service) Institutions(ctx context.Context, country string) ([]aggregator.Institution, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	if len(country) != 2 {
		return nil, fmt.Errorf("%w: country must be a two-letter code", ErrInvalidInput)
	}

	cached, err := s.cache.GetInstitutions(ctx, country)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("institution cache read failed", zap.String("country", country), zap.Error(err))
	}

	institutions, err := s.source.ListInstitutions(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}
	if err := s.cache.SetInstitutions(ctx, country, institutions, cache.InstitutionTTL); err != nil {
		s.logger.Warn("institution cache write failed", zap.String("country", country), zap.Error(err))
	}
	return institutions, nil
}

// Connect starts a bank connection and returns the stored requisition
// whose Link the user must visit to grant consent.
func (s *Service) Connect(ctx context.Context, userID, institutionID, redirectURL string) (*models.Requisition, error) {
	if userID == "" || institutionID == "" || redirectURL == "" {
		return nil, fmt.Errorf("%w: user, institution and redirect are required", ErrInvalidInput)
	}

	reference := uuid.NewString()
	remote, err := s.source.CreateRequisition(ctx, aggregator.RequisitionInput{
		InstitutionID: institutionID,
		RedirectURL:   redirectURL,
		Reference:     reference,
	})
	if err != nil {
		return nil, fmt.Errorf("create requisition: %w", err)
	}

	req := &models.Requisition{
		ID:            uuid.New(),
		UserID:        userID,
		ExternalID:    remote.ID,
		Reference:     reference,
		InstitutionID: institutionID,
		Link:          remote.Link,
		Status:        remote.Status,
	}
	if err := s.requisitions.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("store requisition: %w", err)
	}

	s.logger.Info("connection started",
		zap.String("user_id", userID),
		zap.String("institution_id", institutionID),
		zap.String("requisition_id", remote.ID),
	)
	return req, nil
}

// Complete creates an account for every external account the user granted
// access to. Accounts that already exist are left as they are.
func (s *Service) Complete(ctx context.Context, userID, reference string) (*CompleteResult, error) {
	if userID == "" || reference == "" {
		return nil, fmt.Errorf("%w: user and reference are required", ErrInvalidInput)
	}

	req, err := s.requisitions.GetByReference(ctx, userID, reference)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequisitionNotFound
		}
		return nil, fmt.Errorf("load requisition: %w", err)
	}

	remote, err := s.source.GetRequisition(ctx, req.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("fetch requisition: %w", err)
	}
	if remote.Status != req.Status {
		if err := s.requisitions.UpdateStatus(ctx, req.ID, remote.Status); err != nil {
			return nil, fmt.Errorf("update requisition: %w", err)
		}
		req.Status = remote.Status
	}
	if len(remote.Accounts) == 0 {
		return nil, fmt.Errorf("%w (status %s)", ErrNotLinked, remote.Status)
	}

	result := &CompleteResult{Requisition: req, Created: []models.Account{}}
	for _, externalID := range remote.Accounts {
		account := &models.Account{
			UserID:        userID,
			ExternalID:    externalID,
			RequisitionID: &req.ID,
			SyncStatus:    models.SyncStatusNever,
		}
		created, err := s.accounts.CreateIfAbsent(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("create account %s: %w", externalID, err)
		}
		if created {
			result.Created = append(result.Created, *account)
			continue
		}

		existing, err := s.accounts.GetByExternalID(ctx, externalID)
		if err != nil {
			return nil, fmt.Errorf("load account %s: %w", externalID, err)
		}
		if existing.UserID != userID {
			s.logger.Warn("account already connected by another user",
				zap.String("user_id", userID),
				zap.String("external_id", externalID),
			)
			result.Conflicts = append(result.Conflicts, externalID)
			continue
		}
		result.Existing++
	}

	s.logger.Info("connection completed",
		zap.String("user_id", userID),
		zap.Int("created", len(result.Created)),
		zap.Int("existing", result.Existing),
		zap.Int("conflicts", len(result.Conflicts)),
	)
	return result, nil
}
