package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrQueueClosed is returned by Submit once the queue is not accepting work.
var ErrQueueClosed = errors.New("queue closed")

// ErrQueueFull is returned by Submit when the buffer has no room.
var ErrQueueFull = errors.New("queue full")

// Handler processes one item.
type Handler[T any] func(ctx context.Context, item T) error

// Config configures worker pool behaviour.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

type envelope[T any] struct {
	item    T
	attempt int
}

// Queue is an in-memory worker pool that retries failed items with a fixed delay.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     Config
	logger  *zap.Logger

	items  chan envelope[T]
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex
	open   bool
}

// New builds a queue; Start must be called before Submit.
func New[T any](name string, handler Handler[T], cfg Config) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		items:   make(chan envelope[T], cfg.BufferSize),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.open || q.ctx != nil {
		return
	}
	q.ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	q.open = true
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Submit enqueues item without blocking.
func (q *Queue[T]) Submit(item T) error {
	return q.push(envelope[T]{item: item})
}

func (q *Queue[T]) push(env envelope[T]) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.open {
		return ErrQueueClosed
	}
	select {
	case q.items <- env:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop refuses new items, drains what is buffered and waits for workers to exit
// or ctx to expire.
func (q *Queue[T]) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.open {
		q.mu.Unlock()
		return nil
	}
	q.open = false
	close(q.items)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		q.logger.Info("queue stopped")
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *Queue[T]) work() {
	defer q.wg.Done()
	for env := range q.items {
		q.process(env)
	}
}

func (q *Queue[T]) process(env envelope[T]) {
	for {
		err := q.handler(q.ctx, env.item)
		if err == nil {
			return
		}
		env.attempt++
		if env.attempt > q.cfg.MaxRetries || q.ctx.Err() != nil {
			q.logger.Error("item dropped after retries", zap.Int("attempts", env.attempt), zap.Error(err))
			return
		}
		q.logger.Warn("item failed, retrying", zap.Int("attempt", env.attempt), zap.Error(err))

		timer := time.NewTimer(q.cfg.RetryDelay)
		select {
		case <-q.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
