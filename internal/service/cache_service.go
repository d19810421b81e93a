package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/ict-admin-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CacheOptions configures a CacheService.
type CacheOptions struct {
	Metrics    *MetricsService
	DefaultTTL time.Duration
	Logger     *zap.Logger
	Enabled    bool
	// Namespace is prepended to every key, separated by a colon.
	Namespace string
}

// CacheService namespaces keys, records hit/miss metrics and logs backend
// failures. A disabled service behaves as an always-missing cache.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
	prefix     string
}

// NewCacheService constructs a cache service over repo.
func NewCacheService(repo CacheRepository, opts CacheOptions) *CacheService {
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 10 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	prefix := strings.Trim(opts.Namespace, ":")
	if prefix != "" {
		prefix += ":"
	}
	return &CacheService{
		repo:       repo,
		metrics:    opts.Metrics,
		defaultTTL: opts.DefaultTTL,
		logger:     opts.Logger,
		enabled:    opts.Enabled,
		prefix:     prefix,
	}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

func (s *CacheService) key(key string) string {
	return s.prefix + key
}

// Get loads key into dest and reports whether the cache was hit. A miss is not an error.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	full := s.key(key)
	start := time.Now()
	err := s.repo.Get(ctx, full, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		return false, nil
	default:
		s.logger.Warn("cache get failed", zap.String("key", full), zap.Error(err))
		return false, err
	}
}

// Set stores value under key. A non-positive ttl uses the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	full := s.key(key)
	start := time.Now()
	err := s.repo.Set(ctx, full, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", full), zap.Error(err))
	}
	return err
}

// Invalidate removes the given keys.
func (s *CacheService) Invalidate(ctx context.Context, keys ...string) error {
	if !s.Enabled() || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, key := range keys {
		full[i] = s.key(key)
	}
	if err := s.repo.Delete(ctx, full...); err != nil {
		s.logger.Warn("cache invalidate failed", zap.Strings("keys", full), zap.Error(err))
		return err
	}
	return nil
}
