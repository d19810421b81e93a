package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/ict-admin-api/pkg/errors"
)

type memoryCacheRepo struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	deleted []string
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCacheRepo) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
		m.deleted = append(m.deleted, key)
	}
	return nil
}

func TestCacheServiceRoundTripAndMetrics(t *testing.T) {
	repo := newMemoryCacheRepo()
	metrics := NewMetricsService()
	svc := NewCacheService(repo, CacheOptions{Metrics: metrics, Enabled: true})
	ctx := context.Background()

	var out map[string]int
	hit, err := svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "k", map[string]int{"v": 1}, 0))
	assert.Equal(t, 10*time.Minute, repo.ttls["k"])

	hit, err = svc.Get(ctx, "k", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, out["v"])

	require.NoError(t, svc.Invalidate(ctx, "k"))
	assert.Equal(t, []string{"k"}, repo.deleted)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(1), snap.CacheMisses)
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.getErr = errors.New("redis down")
	svc := NewCacheService(repo, CacheOptions{DefaultTTL: time.Minute, Enabled: true})

	var out map[string]int
	hit, err := svc.Get(context.Background(), "k", &out)
	assert.False(t, hit)
	assert.Error(t, err)
}

func TestCacheServiceDisabled(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, CacheOptions{DefaultTTL: time.Minute})

	require.NoError(t, svc.Set(context.Background(), "k", 1, 0))
	assert.Empty(t, repo.data)
}

func TestCacheServiceNamespacesKeys(t *testing.T) {
	repo := newMemoryCacheRepo()
	svc := NewCacheService(repo, CacheOptions{Enabled: true, Namespace: "ict-admin:"})
	ctx := context.Background()

	require.NoError(t, svc.Set(ctx, "perm:user:1", 7, time.Minute))
	assert.Contains(t, repo.data, "ict-admin:perm:user:1")

	var out int
	hit, err := svc.Get(ctx, "perm:user:1", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 7, out)

	require.NoError(t, svc.Invalidate(ctx, "perm:user:1"))
	assert.Equal(t, []string{"ict-admin:perm:user:1"}, repo.deleted)
}
