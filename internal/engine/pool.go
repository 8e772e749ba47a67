package engine

import (
	"context"
	"log/slog"
	"sync"
)

// ScoringPool runs background scoring tasks on a fixed set of workers behind
// a bounded queue. Submissions never block the ingestion path; when the
// queue is full the task is dropped and reported by the caller.
type ScoringPool struct {
	logger *slog.Logger
	tasks  chan func(context.Context)
	wg     sync.WaitGroup

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewScoringPool starts workers immediately. Non-positive sizes fall back to
// a single worker and a small queue.
func NewScoringPool(logger *slog.Logger, workers, queueSize int) *ScoringPool {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	base, cancel := context.WithCancel(context.Background())
	p := &ScoringPool{
		logger: logger,
		tasks:  make(chan func(context.Context), queueSize),
		base:   base,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *ScoringPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *ScoringPool) run(task func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("scoring task panicked", slog.Any("panic", r))
		}
	}()
	task(p.base)
}

// Submit enqueues a task. It reports false when the queue is full or the
// pool is shut down; the task is discarded in both cases.
func (p *ScoringPool) Submit(task func(context.Context)) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// Shutdown stops accepting tasks, drains the queue and waits for workers.
// When ctx expires first, in-flight tasks are cancelled via their context.
func (p *ScoringPool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
