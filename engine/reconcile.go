package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ReconcilerOptions configures the background reconciler.
type ReconcilerOptions struct {
	// Interval between reconcile passes.
	Interval time.Duration

	// MergesPerSecond caps how many partition merges run per second across
	// a pass, keeping background re-encoding from starving foreground reads.
	// Zero means unlimited.
	MergesPerSecond float64

	// PoolWorkers sizes the merge worker pool. Non-positive falls back to
	// GOMAXPROCS.
	PoolWorkers int

	// Logger receives pass results. Nil disables logging.
	Logger *slog.Logger
}

// DefaultReconcilerOptions returns the default reconciler options.
func DefaultReconcilerOptions() ReconcilerOptions {
	return ReconcilerOptions{
		Interval: 30 * time.Second,
	}
}

// ReconcilerOption mutates ReconcilerOptions.
type ReconcilerOption func(*ReconcilerOptions)

// WithInterval sets the time between reconcile passes.
func WithInterval(d time.Duration) ReconcilerOption {
	return func(o *ReconcilerOptions) {
		if d > 0 {
			o.Interval = d
		}
	}
}

// WithMergeRate caps partition merges per second.
func WithMergeRate(perSecond float64) ReconcilerOption {
	return func(o *ReconcilerOptions) {
		o.MergesPerSecond = perSecond
	}
}

// WithPoolWorkers sizes the merge worker pool.
func WithPoolWorkers(n int) ReconcilerOption {
	return func(o *ReconcilerOptions) {
		o.PoolWorkers = n
	}
}

// WithReconcilerLogger sets the logger for pass results.
func WithReconcilerLogger(logger *slog.Logger) ReconcilerOption {
	return func(o *ReconcilerOptions) {
		o.Logger = logger
	}
}

// Reconciler periodically merges memtables into sealed blocks in the
// background. Duplicate resolution is commutative and idempotent, so a pass
// that is cancelled halfway leaves the tables fully consistent.
type Reconciler struct {
	nodes *NodeTable
	paths *PathTable
	opts  ReconcilerOptions

	pool    *WorkerPool
	limiter *rate.Limiter

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewReconciler creates a reconciler over the given tables. Either table may
// be nil to exclude it from passes.
func NewReconciler(nodes *NodeTable, paths *PathTable, optFns ...ReconcilerOption) *Reconciler {
	opts := DefaultReconcilerOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	limit := rate.Inf
	if opts.MergesPerSecond > 0 {
		limit = rate.Limit(opts.MergesPerSecond)
	}

	return &Reconciler{
		nodes:   nodes,
		paths:   paths,
		opts:    opts,
		pool:    NewWorkerPool(opts.PoolWorkers),
		limiter: rate.NewLimiter(limit, 1),
		done:    make(chan struct{}),
	}
}

// Start launches the background loop. Calling Start twice is a no-op.
func (r *Reconciler) Start() {
	r.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		r.cancel = cancel
		go r.loop(ctx)
	})
}

func (r *Reconciler) loop(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Pass(ctx); err != nil && ctx.Err() == nil && r.opts.Logger != nil {
				r.opts.Logger.Error("reconcile pass failed", "error", err)
			}
		}
	}
}

// Pass runs one reconcile pass over both tables. It can also be called
// directly for an on-demand pass, with or without Start.
func (r *Reconciler) Pass(ctx context.Context) error {
	start := time.Now()

	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	if r.nodes != nil {
		for _, c := range r.nodes.Partitions() {
			if err := r.limiter.Wait(ctx); err != nil {
				fail(err)
				break
			}
			wg.Add(1)
			err := r.pool.Submit(ctx, func() {
				defer wg.Done()
				if err := r.nodes.Reconcile(ctx, c); err != nil {
					fail(err)
				}
			})
			if err != nil {
				wg.Done()
				fail(err)
				break
			}
		}
	}
	wg.Wait()

	if r.paths != nil && firstErr == nil {
		if err := r.paths.Reconcile(ctx); err != nil {
			fail(err)
		}
	}

	if r.opts.Logger != nil && firstErr == nil {
		r.opts.Logger.Debug("reconcile pass complete", "took", time.Since(start))
	}
	return firstErr
}

// Stop cancels the loop, waits for it to exit and shuts down the pool. Safe
// to call without Start.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() {
		if r.cancel != nil {
			r.cancel()
			<-r.done
		}
		r.pool.Close()
	})
}
