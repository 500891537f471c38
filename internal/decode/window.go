// ABOUTME: Sliding byte window over the compressed input stream
// ABOUTME: Supports append with compaction and front consumption
package decode

// DefaultWindowSize is the input window capacity in bytes. Large
// enough for several frames of the highest-bitrate streams we carry.
const DefaultWindowSize = 8 * 1024

// Window is a fixed-capacity byte window. The decoder consumes from
// the front while the scheduler appends to the back; appending
// compacts unread bytes down to offset zero first.
type Window struct {
	buf    []byte
	start  int
	length int
}

// NewWindow returns a window with the given capacity in bytes.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Window{buf: make([]byte, capacity)}
}

// Append copies as much of p as fits and returns the number of bytes
// taken. Unread bytes are moved to the front to make room.
func (w *Window) Append(p []byte) int {
	if w.start > 0 {
		copy(w.buf, w.buf[w.start:w.start+w.length])
		w.start = 0
	}
	n := copy(w.buf[w.length:], p)
	w.length += n
	return n
}

// Bytes returns a view of the unread bytes. The view is invalidated
// by the next Append or Consume.
func (w *Window) Bytes() []byte {
	return w.buf[w.start : w.start+w.length]
}

// Consume drops n bytes from the front of the window.
func (w *Window) Consume(n int) {
	if n > w.length {
		n = w.length
	}
	w.start += n
	w.length -= n
	if w.length == 0 {
		w.start = 0
	}
}

// Len returns the number of unread bytes.
func (w *Window) Len() int {
	return w.length
}

// Free returns how many more bytes Append can take.
func (w *Window) Free() int {
	return len(w.buf) - w.length
}

// Reset discards all buffered bytes.
func (w *Window) Reset() {
	w.start = 0
	w.length = 0
}
