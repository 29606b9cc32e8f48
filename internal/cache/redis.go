package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"bank-sync-backend/internal/aggregator"

	"github.com/redis/rueidis"
)

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	DialTimeout time.Duration
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:        "localhost:6379",
		KeyPrefix:   "bank-sync:",
		DialTimeout: 5 * time.Second,
	}
}

// RedisCache is an InstitutionCache shared between server instances.
type RedisCache struct {
	client rueidis.Client
	config RedisConfig
}

func NewRedisCache(config RedisConfig) (*RedisCache, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("redis: no address configured")
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = DefaultRedisConfig().DialTimeout
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:   []string{config.Addr},
		Password:      config.Password,
		SelectDB:      config.DB,
		MaxFlushDelay: 100 * time.Microsecond,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: failed to create client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: failed to ping server: %w", err)
	}

	return &RedisCache{client: client, config: config}, nil
}

func (r *RedisCache) GetInstitutions(ctx context.Context, country string) ([]aggregator.Institution, error) {
	cmd := r.client.B().Get().Key(r.config.KeyPrefix + institutionKey(country)).Build()
	resp := r.client.Do(ctx, cmd)
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get: %w", err)
	}

	data, err := resp.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("redis get: failed to read response: %w", err)
	}
	var institutions []aggregator.Institution
	if err := json.Unmarshal(data, &institutions); err != nil {
		return nil, fmt.Errorf("redis get: failed to unmarshal: %w", err)
	}
	return institutions, nil
}

func (r *RedisCache) SetInstitutions(ctx context.Context, country string, institutions []aggregator.Institution, ttl time.Duration) error {
	data, err := json.Marshal(institutions)
	if err != nil {
		return fmt.Errorf("redis set: failed to marshal: %w", err)
	}
	cmd := r.client.B().Set().Key(r.config.KeyPrefix + institutionKey(country)).Value(string(data)).Ex(ttl).Build()
	if err := r.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Do(ctx, r.client.B().Ping().Build()).Error()
}

func (r *RedisCache) Close() {
	r.client.Close()
}
