package router

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Shadow pool defaults.
const (
	DefaultShadowWorkers = 2
	DefaultShadowQueue   = 32
	DefaultShadowTimeout = 60 * time.Second
)

// ShadowJob is one background comparison call.
type ShadowJob func(ctx context.Context)

// ShadowPool runs shadow calls on a fixed set of workers. Jobs never block
// the submitter: a full queue, an exhausted rate limit or a closed pool
// drops the job. Each job gets its own context detached from the request,
// and a panicking job is logged and discarded.
type ShadowPool struct {
	jobs    chan ShadowJob
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
	workers int
	queue   int

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// ShadowOption configures a ShadowPool.
type ShadowOption func(*ShadowPool)

// WithShadowLogger sets the pool's own logger.
func WithShadowLogger(l *zap.Logger) ShadowOption {
	return func(p *ShadowPool) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithShadowRate caps dispatches per second with the given burst.
func WithShadowRate(perSecond float64, burst int) ShadowOption {
	return func(p *ShadowPool) {
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithShadowTimeout bounds each job.
func WithShadowTimeout(d time.Duration) ShadowOption {
	return func(p *ShadowPool) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithShadowQueue sets the job buffer size.
func WithShadowQueue(n int) ShadowOption {
	return func(p *ShadowPool) {
		if n > 0 {
			p.queue = n
		}
	}
}

// NewShadowPool starts workers goroutines.
func NewShadowPool(workers int, opts ...ShadowOption) *ShadowPool {
	if workers <= 0 {
		workers = DefaultShadowWorkers
	}
	p := &ShadowPool{
		timeout: DefaultShadowTimeout,
		logger:  zap.NewNop(),
		workers: workers,
		queue:   DefaultShadowQueue,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.jobs = make(chan ShadowJob, p.queue)
	p.logger = p.logger.Named("shadow")

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Submit enqueues job and reports whether it was accepted.
func (p *ShadowPool) Submit(job ShadowJob) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return false
	}
	if p.limiter != nil && !p.limiter.Allow() {
		p.logger.Debug("shadow call dropped", zap.String("reason", "rate limited"))
		return false
	}
	select {
	case p.jobs <- job:
		return true
	default:
		p.logger.Debug("shadow call dropped", zap.String("reason", "queue full"))
		return false
	}
}

// Close stops accepting jobs and waits for queued ones to finish.
func (p *ShadowPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}

// Logger returns the pool's logger.
func (p *ShadowPool) Logger() *zap.Logger {
	return p.logger
}

func (p *ShadowPool) worker() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.run(job)
	}
}

func (p *ShadowPool) run(job ShadowJob) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("shadow call panicked", zap.Any("panic", rec))
		}
	}()
	job(ctx)
}
