package stage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLimiter(t *testing.T) {
	tests := []struct {
		name string
		n    int
		in   string
		want string
	}{
		{"fewer lines than limit", 5, "a\nb\n", "a\nb\n"},
		{"truncates", 2, "a\nb\nc\nd\n", "a\nb\n"},
		{"unterminated last line", 3, "a\nb", "a\nb"},
		{"zero", 0, "a\n", ""},
		{"empty input", 3, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			o := (&Limiter{N: tt.n}).Run(context.Background(), strings.NewReader(tt.in), &out)
			assert.Equal(t, Completed, o.Status)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestLimiter_DoesNotDrainInput(t *testing.T) {
	pr, pw := io.Pipe()
	go func() {
		_, _ = pw.Write([]byte("a\nb\n"))
		// Never closed: the limiter must stop after two lines on its own.
	}()

	var out bytes.Buffer
	o := (&Limiter{N: 2}).Run(context.Background(), pr, &out)

	assert.Equal(t, Completed, o.Status)
	assert.Equal(t, "a\nb\n", out.String())
	_ = pr.Close()
}
