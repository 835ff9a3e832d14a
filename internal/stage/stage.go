// Package stage defines the building blocks of a search pipeline: a
// uniform Stage contract, the Outcome each stage reports, and the
// subprocess and in-process implementations of the scan, rank and limit
// steps.
package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall"
)

// Status is the terminal state of a single stage.
type Status int

const (
	Completed Status = iota // Ran to completion (or downstream stopped reading)
	TimedOut                // Exceeded its running-time budget
	NotFound                // Executable missing
	Failed                  // Unexpected exit code or stream error
	Canceled                // Torn down by the caller
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case Completed:
		return "completed"
	case TimedOut:
		return "timed_out"
	case NotFound:
		return "not_found"
	case Failed:
		return "failed"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is what a stage reports when it stops.
type Outcome struct {
	Stage    string
	Status   Status
	ExitCode int
	Err      error
}

// Abnormal reports whether the outcome should fail the pipeline.
// Canceled is not abnormal: cancellation is always initiated by the caller.
func (o Outcome) Abnormal() bool {
	switch o.Status {
	case TimedOut, NotFound, Failed:
		return true
	default:
		return false
	}
}

// Stage is one step of a search pipeline.
//
// Run reads from in (nil for the first stage), writes to out, and blocks
// until the stage stops. It must return promptly once ctx is done.
type Stage interface {
	Name() string
	Run(ctx context.Context, in io.Reader, out io.Writer) Outcome
}

// completed builds a Completed outcome.
func completed(name string, code int) Outcome {
	return Outcome{Stage: name, Status: Completed, ExitCode: code}
}

// canceled builds a Canceled outcome carrying the context's cause.
func canceled(ctx context.Context, name string) Outcome {
	return Outcome{Stage: name, Status: Canceled, Err: context.Cause(ctx)}
}

// failed builds a Failed outcome.
func failed(name string, err error) Outcome {
	return Outcome{Stage: name, Status: Failed, Err: err}
}

// finish maps the error an in-process stage stopped with to an Outcome.
// A write into a pipe whose reader has gone away is natural completion.
func finish(ctx context.Context, name string, err error) Outcome {
	if ctx.Err() != nil {
		return canceled(ctx, name)
	}
	if err == nil || IsBrokenPipe(err) {
		return completed(name, 0)
	}
	return failed(name, err)
}

// IsBrokenPipe reports whether err means the reading side of a stream
// was closed.
func IsBrokenPipe(err error) bool {
	return errors.Is(err, io.ErrClosedPipe) || errors.Is(err, syscall.EPIPE)
}
