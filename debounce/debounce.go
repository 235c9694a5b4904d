// Package debounce coalesces a rapidly changing input into one call per
// quiet period and delivers only the result of the most recently issued
// call.
//
// Every dispatch takes a sequence number. A result whose sequence is no
// longer the latest issued is dropped, whatever order the calls complete
// in. In-flight calls are never cancelled by newer input.
package debounce

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/storefront/internal/clock"
	"go.uber.org/zap"
)

// Func performs the debounced work for one input value.
type Func[T, R any] func(ctx context.Context, v T) (R, error)

// Deliver receives the result for the latest issued input.
type Deliver[T, R any] func(v T, r R, err error)

// Debouncer is safe for concurrent use.
type Debouncer[T, R any] struct {
	quiet   time.Duration
	fn      Func[T, R]
	deliver Deliver[T, R]
	clock   clock.Clock
	logger  *zap.Logger
	onStale func()
	ctx     context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending T
	timer   clock.Timer
	gen     uint64
	issued  uint64
	closed  bool

	// deliverMu orders the latest-check with the delivery itself.
	deliverMu sync.Mutex

	stale    atomic.Uint64
	inflight sync.WaitGroup
}

// Option configures a Debouncer.
type Option func(*options)

type options struct {
	clock   clock.Clock
	ctx     context.Context
	logger  *zap.Logger
	onStale func()
}

func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithContext sets the parent context passed to Func. Close cancels it.
func WithContext(ctx context.Context) Option {
	return func(o *options) { o.ctx = ctx }
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStaleHook is called each time a result is discarded.
func WithStaleHook(f func()) Option {
	return func(o *options) { o.onStale = f }
}

// New returns a Debouncer that calls fn once input has been stable for quiet.
func New[T, R any](quiet time.Duration, fn Func[T, R], deliver Deliver[T, R], opts ...Option) *Debouncer[T, R] {
	o := options{clock: clock.Real(), ctx: context.Background(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	ctx, cancel := context.WithCancel(o.ctx)
	return &Debouncer[T, R]{
		quiet:   quiet,
		fn:      fn,
		deliver: deliver,
		clock:   o.clock,
		logger:  o.logger,
		onStale: o.onStale,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Submit records v as the latest input and restarts the quiet period.
func (d *Debouncer[T, R]) Submit(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.pending = v
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.clock.AfterFunc(d.quiet, func() { d.fire(gen) })
}

func (d *Debouncer[T, R]) fire(gen uint64) {
	d.mu.Lock()
	if d.closed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.issued++
	seq := d.issued
	v := d.pending
	d.inflight.Add(1)
	d.mu.Unlock()

	go d.run(seq, v)
}

func (d *Debouncer[T, R]) run(seq uint64, v T) {
	defer d.inflight.Done()
	r, err := d.fn(d.ctx, v)

	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	d.mu.Lock()
	latest := !d.closed && seq == d.issued
	d.mu.Unlock()
	if !latest {
		d.stale.Add(1)
		if d.onStale != nil {
			d.onStale()
		}
		d.logger.Debug("discarding stale debounced result", zap.Uint64("seq", seq))
		return
	}
	if d.deliver != nil {
		d.deliver(v, r, err)
	}
}

// Issued returns how many calls have been dispatched.
func (d *Debouncer[T, R]) Issued() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.issued
}

// Stale returns how many results were discarded.
func (d *Debouncer[T, R]) Stale() uint64 {
	return d.stale.Load()
}

// Wait blocks until every dispatched call has returned.
func (d *Debouncer[T, R]) Wait() {
	d.inflight.Wait()
}

// Close drops pending input, cancels the context passed to in-flight calls
// and suppresses their delivery.
func (d *Debouncer[T, R]) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()
	d.cancel()
}
