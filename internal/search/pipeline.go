// Package search runs the scan | rank | limit pipeline that turns a query
// into matching lines, and formats those lines for display.
package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/runger/fuzz/internal/stage"
)

// DefaultStageTimeout bounds the running time of each stage.
const DefaultStageTimeout = 5 * time.Second

// Toolchain builds the three stages of one run.
type Toolchain interface {
	Scan(root string) stage.Stage
	Rank(query string) stage.Stage
	Limit(n int) stage.Stage
}

// Options configures a Pipeline. A zero timeout disables that budget.
type Options struct {
	ScanTimeout  time.Duration
	RankTimeout  time.Duration
	LimitTimeout time.Duration
	Logger       *slog.Logger
}

// DefaultOptions returns options with the default stage budgets.
func DefaultOptions() Options {
	return Options{
		ScanTimeout:  DefaultStageTimeout,
		RankTimeout:  DefaultStageTimeout,
		LimitTimeout: DefaultStageTimeout,
	}
}

// Pipeline wires a toolchain's stages together for each request.
// It is safe for concurrent use; every Run is independent.
type Pipeline struct {
	tools Toolchain
	opts  Options
	log   *slog.Logger
}

// errStageTimeout is the cancellation cause of a stage over budget.
var errStageTimeout = errors.New("stage timed out")

// errLimitReached is the cancellation cause of upstream stages once the
// limit stage has all the lines it needs.
var errLimitReached = errors.New("limit reached")

// NewPipeline creates a pipeline over tools.
func NewPipeline(tools Toolchain, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{tools: tools, opts: opts, log: logger}
}

// Run searches req.RootDir for lines fuzzy-matching req.Query and returns
// at most req.Limit records in ranked order.
//
// An empty query returns no records without starting anything. If ctx is
// done before the run finishes, the error satisfies IsCanceled and no
// records are returned.
func (p *Pipeline) Run(ctx context.Context, req Request) ([]Record, error) {
	if strings.TrimSpace(req.Query) == "" {
		return []Record{}, nil
	}
	if req.RootDir == "" {
		return nil, NoWorkspace()
	}
	if ctx.Err() != nil {
		return nil, canceledError(ctx)
	}

	limit := req.limit()
	log := p.log.With("run_id", uuid.NewString())
	start := time.Now()
	log.Debug("search started", "query", req.Query, "root", req.RootDir, "limit", limit)

	stages := [3]stage.Stage{
		p.tools.Scan(req.RootDir),
		p.tools.Rank(req.Query),
		p.tools.Limit(limit),
	}
	timeouts := [3]time.Duration{p.opts.ScanTimeout, p.opts.RankTimeout, p.opts.LimitTimeout}

	scanR, scanW := io.Pipe()
	rankR, rankW := io.Pipe()
	ins := [3]*io.PipeReader{nil, scanR, rankR}
	outs := [3]*io.PipeWriter{scanW, rankW, nil}
	var out bytes.Buffer

	g, gctx := errgroup.WithContext(ctx)
	upstream, stopUpstream := context.WithCancelCause(gctx)
	defer stopUpstream(nil)

	var (
		mu       sync.Mutex
		observed []stage.Outcome // completion order
	)
	for i, st := range stages {
		parent := upstream
		if i == len(stages)-1 {
			parent = gctx
		}
		g.Go(func() error {
			began := time.Now()
			o := runStage(parent, st, timeouts[i], ins[i], outs[i], &out)

			log.Debug("stage finished",
				"stage", o.Stage,
				"status", o.Status.String(),
				"exit_code", o.ExitCode,
				"duration_ms", time.Since(began).Milliseconds(),
				"error", errString(o.Err),
			)

			mu.Lock()
			observed = append(observed, o)
			mu.Unlock()

			if i == len(stages)-1 && o.Status == stage.Completed {
				stopUpstream(errLimitReached)
			}
			if o.Abnormal() {
				return fmt.Errorf("%s: %s", o.Stage, o.Status)
			}
			return nil
		})
	}
	_ = g.Wait()

	records, err := p.result(ctx, observed, stages[2].Name(), &out, limit)
	log.Debug("search finished",
		"records", len(records),
		"duration_ms", time.Since(start).Milliseconds(),
		"error", errString(err),
	)
	return records, err
}

// result turns the stage outcomes and buffered output into the run's
// return values.
//
// out is only read once every stage completed normally.
func (p *Pipeline) result(ctx context.Context, observed []stage.Outcome, limitTool string, out *bytes.Buffer, limit int) ([]Record, error) {
	if ctx.Err() != nil {
		return nil, canceledError(ctx)
	}
	if err := outcomeError(observed); err != nil {
		return nil, err
	}
	records, err := ParseOutput(out.Bytes(), limit)
	if err != nil {
		return nil, StageFailed(limitTool, err)
	}
	return records, nil
}

// runStage runs st under its own budget and closes its pipes when it stops.
func runStage(parent context.Context, st stage.Stage, timeout time.Duration, in *io.PipeReader, out *io.PipeWriter, sink io.Writer) stage.Outcome {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		ctx, cancel = context.WithTimeoutCause(parent, timeout, errStageTimeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	defer cancel()

	// Unblock any read or write still in flight once the stage is torn down.
	stop := context.AfterFunc(ctx, func() {
		if in != nil {
			_ = in.Close()
		}
		if out != nil {
			_ = out.CloseWithError(context.Cause(ctx))
		}
	})
	defer stop()

	var r io.Reader
	if in != nil {
		r = in
	}
	w := sink
	if out != nil {
		w = out
	}
	o := st.Run(ctx, r, w)

	// Upstream writes now fail fast; downstream sees EOF.
	if in != nil {
		_ = in.Close()
	}
	if out != nil {
		_ = out.Close()
	}

	if o.Status != stage.Completed && errors.Is(context.Cause(ctx), errStageTimeout) {
		o.Status = stage.TimedOut
	}
	return o
}

// outcomeError picks the most severe abnormal outcome: a missing tool,
// then a timeout, then a failure. Ties go to the first observed.
func outcomeError(observed []stage.Outcome) error {
	var worst *stage.Outcome
	for i := range observed {
		o := &observed[i]
		if !o.Abnormal() {
			continue
		}
		if worst == nil || severity(o.Status) > severity(worst.Status) {
			worst = o
		}
	}
	if worst == nil {
		return nil
	}
	switch worst.Status {
	case stage.NotFound:
		return ToolMissing(worst.Stage, worst.Err)
	case stage.TimedOut:
		return Timeout(worst.Stage)
	default:
		return StageFailed(worst.Stage, worst.Err)
	}
}

func severity(s stage.Status) int {
	switch s {
	case stage.NotFound:
		return 3
	case stage.TimedOut:
		return 2
	case stage.Failed:
		return 1
	default:
		return 0
	}
}

func canceledError(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrCanceled, context.Cause(ctx))
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
