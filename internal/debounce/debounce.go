// Package debounce turns a stream of query edits into search runs: a run
// starts only once the query has been stable for a quiet interval, a newer
// run cancels the one in flight, and results from superseded runs are
// never delivered.
package debounce

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/runger/fuzz/internal/search"
)

// DefaultInterval is the quiet period after the last edit before a run starts.
const DefaultInterval = 500 * time.Millisecond

// SearchFunc runs one search. It must return promptly once ctx is done.
type SearchFunc func(ctx context.Context, query string) ([]search.Record, error)

// Options configures a Debouncer.
type Options struct {
	Interval time.Duration // Zero means DefaultInterval
	Logger   *slog.Logger
}

// Result is the outcome of one run. Seq increases with every run started.
type Result struct {
	Seq     uint64
	Query   string
	Records []search.Record
	Err     error
}

// Debouncer schedules search runs for a changing query.
type Debouncer struct {
	fn       SearchFunc
	interval time.Duration
	log      *slog.Logger
	results  chan Result

	mu         sync.Mutex
	query      string
	debounceID uint64 // Only the timer carrying the current ID may start a run
	timer      *time.Timer
	seq        uint64 // ID of the latest run; older results are stale
	cancelRun  context.CancelFunc
	closed     bool
	wg         sync.WaitGroup
}

// New creates a Debouncer that runs fn.
func New(fn SearchFunc, opts Options) *Debouncer {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Debouncer{
		fn:       fn,
		interval: interval,
		log:      logger,
		results:  make(chan Result, 1),
	}
}

// Results delivers the latest result. An undelivered result is replaced by
// a newer one. The channel is closed by Close.
func (d *Debouncer) Results() <-chan Result {
	return d.results
}

// QueryChanged records q and restarts the quiet period.
func (d *Debouncer) QueryChanged(q string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	d.query = q
	d.debounceID++
	id := d.debounceID
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() { d.settle(id) })
}

// Now runs q immediately, dropping any pending quiet period.
func (d *Debouncer) Now(q string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	d.query = q
	d.debounceID++
	if d.timer != nil {
		d.timer.Stop()
	}
	d.startLocked()
}

// Close stops the timer, cancels the run in flight, waits for it and
// closes the results channel. Later calls do nothing.
func (d *Debouncer) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	if d.timer != nil {
		d.timer.Stop()
	}
	if d.cancelRun != nil {
		d.cancelRun()
		d.cancelRun = nil
	}
	d.mu.Unlock()

	d.wg.Wait()
	close(d.results)
}

func (d *Debouncer) settle(id uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || id != d.debounceID {
		return
	}
	d.startLocked()
}

// startLocked cancels the live run and starts one for the current query.
// d.mu must be held.
func (d *Debouncer) startLocked() {
	if d.cancelRun != nil {
		d.cancelRun()
	}
	d.seq++
	seq, q := d.seq, d.query

	ctx, cancel := context.WithCancel(context.Background())
	d.cancelRun = cancel

	d.log.Debug("search scheduled", "seq", seq, "query", q)
	d.wg.Add(1)
	go d.run(ctx, seq, q)
}

func (d *Debouncer) run(ctx context.Context, seq uint64, q string) {
	defer d.wg.Done()

	records, err := d.fn(ctx, q)
	if ctx.Err() != nil || search.IsCanceled(err) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || seq != d.seq {
		d.log.Debug("stale result dropped", "seq", seq, "current", d.seq)
		return
	}
	d.cancelRun()
	d.cancelRun = nil

	select {
	case <-d.results:
	default:
	}
	d.results <- Result{Seq: seq, Query: q, Records: records, Err: err}
}
