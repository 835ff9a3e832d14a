package stage

import (
	"bufio"
	"context"
	"errors"
	"io"
)

// Limiter is the in-process limit stage: it copies the first N lines of
// its input and stops without draining the rest.
type Limiter struct {
	N int
}

// Compile-time check that Limiter implements Stage.
var _ Stage = (*Limiter)(nil)

// Name implements Stage.
func (l *Limiter) Name() string { return "limit" }

// Run implements Stage.
func (l *Limiter) Run(ctx context.Context, in io.Reader, out io.Writer) Outcome {
	if in == nil || l.N <= 0 {
		return finish(ctx, l.Name(), nil)
	}

	br := bufio.NewReader(in)
	for n := 0; n < l.N; n++ {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if _, werr := out.Write(line); werr != nil {
				return finish(ctx, l.Name(), werr)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return finish(ctx, l.Name(), err)
		}
	}
	return finish(ctx, l.Name(), nil)
}
