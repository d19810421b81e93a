package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/ict-admin-api/internal/models"
	"github.com/noah-isme/ict-admin-api/pkg/jobs"
)

// AuditDispatcher writes audit logs in the background so read endpoints do not
// wait on the insert. It satisfies the same CreateAuditLog contract as the store.
type AuditDispatcher struct {
	store  auditWriter
	queue  *jobs.Queue[*models.AuditLog]
	logger *zap.Logger
}

// AuditDispatcherConfig sizes the worker pool.
type AuditDispatcherConfig struct {
	Workers      int
	BufferSize   int
	MaxRetries   int
	RetryDelay   time.Duration
	WriteTimeout time.Duration
}

// NewAuditDispatcher wires a queue in front of store.
func NewAuditDispatcher(store auditWriter, logger *zap.Logger, cfg AuditDispatcherConfig) *AuditDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	d := &AuditDispatcher{store: store, logger: logger}
	d.queue = jobs.New("audit", func(ctx context.Context, log *models.AuditLog) error {
		writeCtx, cancel := context.WithTimeout(ctx, cfg.WriteTimeout)
		defer cancel()
		return store.CreateAuditLog(writeCtx, log)
	}, jobs.Config{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return d
}

// Start launches the workers.
func (d *AuditDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop flushes pending entries.
func (d *AuditDispatcher) Stop(ctx context.Context) error {
	return d.queue.Stop(ctx)
}

// CreateAuditLog enqueues log. When the queue refuses the entry it is written inline.
func (d *AuditDispatcher) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	err := d.queue.Submit(log)
	if err == nil {
		return nil
	}
	d.logger.Warn("audit queue rejected entry, writing inline", zap.String("action", log.Action), zap.Error(err))
	if err := d.store.CreateAuditLog(ctx, log); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}
