package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"bank-sync-backend/internal/aggregator"
)

var ErrCacheMiss = errors.New("cache: key not found")

// InstitutionTTL is how long a country's institution list stays cached.
const InstitutionTTL = 24 * time.Hour

// InstitutionCache stores institution lists per country code.
type InstitutionCache interface {
	GetInstitutions(ctx context.Context, country string) ([]aggregator.Institution, error)
	SetInstitutions(ctx context.Context, country string, institutions []aggregator.Institution, ttl time.Duration) error
}

func institutionKey(country string) string {
	return "institutions:" + strings.ToUpper(strings.TrimSpace(country))
}
