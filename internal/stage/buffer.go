package stage

import (
	"strings"
	"sync"
)

// DefaultTailSize is how much of a tool's stderr is kept for error messages.
const DefaultTailSize = 2048

// TailBuffer is a fixed-capacity io.Writer that keeps only the last
// bytes written. Safe for concurrent use.
type TailBuffer struct {
	mu       sync.Mutex
	buf      []byte
	capacity int
	size     int
}

// NewTailBuffer creates a buffer with the given capacity.
func NewTailBuffer(capacity int) *TailBuffer {
	if capacity <= 0 {
		capacity = DefaultTailSize
	}
	return &TailBuffer{
		buf:      make([]byte, capacity),
		capacity: capacity,
	}
}

// Write implements io.Writer. Always returns len(p), nil.
func (b *TailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if n == 0 {
		return 0, nil
	}

	if n >= b.capacity {
		copy(b.buf, p[n-b.capacity:])
		b.size = b.capacity
		return n, nil
	}

	if avail := b.capacity - b.size; n > avail {
		discard := n - avail
		copy(b.buf, b.buf[discard:b.size])
		b.size -= discard
	}
	copy(b.buf[b.size:], p)
	b.size += n

	return n, nil
}

// String returns the buffered bytes.
func (b *TailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf[:b.size])
}

// Summary returns the buffered text trimmed and joined onto one line,
// suitable for an error message.
func (b *TailBuffer) Summary() string {
	return strings.Join(strings.Fields(b.String()), " ")
}

// Len returns the number of bytes currently in the buffer.
func (b *TailBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}
