package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/ict-admin-api/internal/models"
)

type syncAuditStore struct {
	mu       sync.Mutex
	logs     []*models.AuditLog
	failures int
}

func (s *syncAuditStore) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("connection reset")
	}
	s.logs = append(s.logs, log)
	return nil
}

func (s *syncAuditStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.logs)
}

func TestAuditDispatcherFlushesOnStop(t *testing.T) {
	store := &syncAuditStore{failures: 1}
	dispatcher := NewAuditDispatcher(store, zap.NewNop(), AuditDispatcherConfig{Workers: 2, MaxRetries: 2, RetryDelay: time.Millisecond})
	dispatcher.Start(context.Background())

	for i := 0; i < 5; i++ {
		require.NoError(t, dispatcher.CreateAuditLog(context.Background(), &models.AuditLog{Action: models.AuditActionFinanceView, Resource: "payments"}))
	}
	require.NoError(t, dispatcher.Stop(context.Background()))

	assert.Equal(t, 5, store.count())
	for _, log := range store.logs {
		assert.False(t, log.CreatedAt.IsZero())
	}
}

func TestAuditDispatcherWritesInlineWhenStopped(t *testing.T) {
	store := &syncAuditStore{}
	dispatcher := NewAuditDispatcher(store, nil, AuditDispatcherConfig{})

	require.NoError(t, dispatcher.CreateAuditLog(context.Background(), &models.AuditLog{Action: models.AuditActionFinanceView}))
	assert.Equal(t, 1, store.count())

	store.failures = 1
	err := dispatcher.CreateAuditLog(context.Background(), &models.AuditLog{Action: models.AuditActionFinanceView})
	assert.Error(t, err)
}
