// ABOUTME: Bounded byte buffer connecting the ingestor to the scheduler
// ABOUTME: Thread-safe FIFO of owned chunks with byte-count watermarks
package buffer

import (
	"sync"
)

const (
	// MaxCapacity is the high watermark: Push blocks while the buffer
	// holds at least this many bytes.
	MaxCapacity = 64 * 1024

	// MinPrebuffer is the low watermark: playback waits until this many
	// bytes have arrived, unless the producer finishes first.
	MinPrebuffer = 16 * 1024
)

// Chunk is an owned byte slice moving from producer to consumer.
// The producer must not retain the slice after Push; the consumer owns
// it after Pop.
type Chunk struct {
	Data []byte
}

// Size returns the chunk length in bytes.
func (c Chunk) Size() int { return len(c.Data) }

// Buffer is a bounded FIFO of chunks. Capacity is tracked by total
// bytes, not by chunk count. All waiting is on a single condition
// variable; the lock guards only queue metadata and is never held
// across I/O or decode work.
type Buffer struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Chunk
	total  int
	max    int
	min    int
	closed bool
	done   bool // producer finished
}

// New creates a buffer with the default watermarks.
func New() *Buffer {
	return NewWithWatermarks(MaxCapacity, MinPrebuffer)
}

// NewWithWatermarks creates a buffer with explicit high/low watermarks.
func NewWithWatermarks(maxBytes, minBytes int) *Buffer {
	b := &Buffer{max: maxBytes, min: minBytes}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Push appends a chunk, blocking while the buffer is at or above the
// high watermark. Returns false when the buffer has been closed; the
// chunk is dropped in that case.
func (b *Buffer) Push(c Chunk) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.total >= b.max && !b.closed {
		b.cond.Wait()
	}
	if b.closed {
		return false
	}

	b.queue = append(b.queue, c)
	b.total += c.Size()
	b.cond.Broadcast()
	return true
}

// Pop removes the oldest chunk, blocking while the buffer is empty and
// the producer is still active. Returns ok=false at end of stream: the
// producer has finished (or the buffer was closed) and no data remains.
func (b *Buffer) Pop() (Chunk, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for len(b.queue) == 0 && !b.done && !b.closed {
		b.cond.Wait()
	}
	if len(b.queue) == 0 {
		return Chunk{}, false
	}

	c := b.queue[0]
	b.queue[0] = Chunk{}
	b.queue = b.queue[1:]
	b.total -= c.Size()
	b.cond.Broadcast()
	return c, true
}

// Peek returns the first bytes of the oldest chunk without consuming
// it, for format sniffing. Returns nil when empty.
func (b *Buffer) Peek() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return nil
	}
	return b.queue[0].Data
}

// WaitPrebuffer blocks until the buffer holds at least the low
// watermark, or the producer has finished with data available, or the
// buffer is closed. Returns true when data is available to consume.
func (b *Buffer) WaitPrebuffer() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.total < b.min && !b.done && !b.closed {
		b.cond.Wait()
	}
	return len(b.queue) > 0
}

// Finish marks the producer as done. Consumers drain remaining chunks
// and then see end of stream.
func (b *Buffer) Finish() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
	b.cond.Broadcast()
}

// Close unblocks all waiters. Already-pushed chunks stay poppable until
// Reset, but Pop no longer blocks once the queue drains.
func (b *Buffer) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.cond.Broadcast()
}

// Reset discards all chunks and reopens the buffer for a new session.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = nil
	b.total = 0
	b.closed = false
	b.done = false
	b.cond.Broadcast()
}

// Len returns the current total byte count.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// Finished reports whether the producer has marked the stream complete.
func (b *Buffer) Finished() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}
