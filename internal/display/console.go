// ABOUTME: Console display for track metadata and lyric lines
// ABOUTME: Simple stderr-friendly output for the CLI player
package display

import (
	"fmt"
	"io"
	"sync"
)

// Console writes now-playing information to a writer, usually stdout.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) ShowTrack(artist, title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if artist == "" {
		fmt.Fprintf(c.w, "♪ %s\n", title)
		return
	}
	fmt.Fprintf(c.w, "♪ %s - %s\n", artist, title)
}

func (c *Console) ShowLyric(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "  %s\n", text)
}

// Clear marks the end of the current track. A terminal has no screen
// to blank, so a separating newline is all that is needed.
func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w)
}
