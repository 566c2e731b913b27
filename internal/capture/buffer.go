// Package capture provides bounded capture of subprocess output streams.
//
// RingBuffer is a thread-safe circular buffer that retains the most recent
// N bytes written to it. Attaching one to a process's stdout or stderr
// keeps memory use flat no matter how much the process prints, while
// preserving the tail of the stream, which is the part a display surface
// actually shows.
package capture

import (
	"strings"
	"sync"
)

// RingBuffer is a fixed-capacity circular buffer implementing io.Writer.
//
// Once the buffer fills, new writes overwrite the oldest bytes, so the
// buffer always holds the most recent data. All methods are safe for
// concurrent use.
type RingBuffer struct {
	data  []byte
	size  int
	start int
	end   int
	full  bool
	mu    sync.RWMutex
}

// NewRingBuffer creates a ring buffer that retains up to size bytes.
// A non-positive size is treated as a 1-byte buffer.
func NewRingBuffer(size int) *RingBuffer {
	if size <= 0 {
		size = 1
	}
	return &RingBuffer{
		data: make([]byte, size),
		size: size,
	}
}

// Write appends p to the buffer, implementing io.Writer. It always
// succeeds and returns len(p). If p is larger than the remaining
// capacity the oldest bytes are dropped to make room.
func (r *RingBuffer) Write(p []byte) (n int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n = len(p)

	// Writes larger than the whole buffer can skip straight to the tail.
	if n >= r.size {
		copy(r.data, p[n-r.size:])
		r.start = 0
		r.end = 0
		r.full = true
		return n, nil
	}

	for _, b := range p {
		r.data[r.end] = b
		r.end = (r.end + 1) % r.size
		if r.full {
			r.start = (r.start + 1) % r.size
		}
		if r.end == r.start {
			r.full = true
		}
	}
	return n, nil
}

// Bytes returns a copy of the buffered data in chronological order.
func (r *RingBuffer) Bytes() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.full && r.start == r.end {
		return []byte{}
	}

	if r.full {
		out := make([]byte, r.size)
		n := copy(out, r.data[r.start:])
		copy(out[n:], r.data[:r.end])
		return out
	}

	out := make([]byte, r.end-r.start)
	copy(out, r.data[r.start:r.end])
	return out
}

// String returns the buffered data as a string.
func (r *RingBuffer) String() string {
	return string(r.Bytes())
}

// Lines splits the buffered data into lines. A single trailing newline
// does not produce an empty final line; an empty buffer yields nil.
func (r *RingBuffer) Lines() []string {
	return SplitLines(r.String())
}

// SplitLines splits captured output into lines. A single trailing
// newline does not produce an empty final line; empty input yields nil.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// Len returns the number of bytes currently buffered.
func (r *RingBuffer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.full {
		return r.size
	}
	if r.end >= r.start {
		return r.end - r.start
	}
	return r.size - r.start + r.end
}

// Reset discards all buffered data.
func (r *RingBuffer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.start = 0
	r.end = 0
	r.full = false
}
