package persist

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/lunastore/storefront/internal/cart"
	"github.com/lunastore/storefront/pkg/config"
	pkgerrors "github.com/lunastore/storefront/pkg/errors"
	"github.com/lunastore/storefront/pkg/logger"
)

const redisKeyNamespace = "lunastore"

// RedisStore keeps the cart under a namespaced key so state can be
// shared across devices behind the same account.
type RedisStore struct {
	raw  *redis.Client
	slot string
}

// NewRedisStore bootstraps the Redis-backed slot store and verifies
// connectivity.
func NewRedisStore(ctx context.Context, cfg config.RedisConfig, slot string, logg *logger.Logger) (*RedisStore, error) {
	if slot == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "persist slot name is required")
	}
	opts, err := optionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ping redis")
	}
	if logg != nil {
		logg.Info(ctx, "redis cart storage ready")
	}
	return &RedisStore{raw: raw, slot: slot}, nil
}

func optionsFromConfig(cfg config.RedisConfig) (*redis.Options, error) {
	if cfg.URL == "" && cfg.Address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "redis url or address is required")
	}
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "parsing redis url")
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Address,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if opts.MinIdleConns == 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	return opts, nil
}

// SaveLines replaces the slot's payload with the full line list.
func (s *RedisStore) SaveLines(ctx context.Context, lines []cart.Line) error {
	payload, err := json.Marshal(lines)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding cart lines")
	}
	if err := s.raw.Set(ctx, s.key(), payload, 0).Err(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "writing cart slot")
	}
	return nil
}

// LoadLines returns the stored line list; a missing key is an empty
// cart, not an error.
func (s *RedisStore) LoadLines(ctx context.Context) ([]cart.Line, error) {
	payload, err := s.raw.Get(ctx, s.key()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading cart slot")
	}
	var lines []cart.Line
	if err := json.Unmarshal(payload, &lines); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decoding cart lines")
	}
	return lines, nil
}

// ClearLines deletes the slot key.
func (s *RedisStore) ClearLines(ctx context.Context) error {
	if err := s.raw.Del(ctx, s.key()).Err(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clearing cart slot")
	}
	return nil
}

// Close shuts down the underlying client.
func (s *RedisStore) Close() error {
	return s.raw.Close()
}

func (s *RedisStore) key() string {
	return buildKey("cart", s.slot)
}

func buildKey(parts ...string) string {
	clean := []string{redisKeyNamespace}
	for _, part := range parts {
		if part == "" {
			continue
		}
		clean = append(clean, strings.TrimSpace(part))
	}
	return strings.Join(clean, ":")
}
