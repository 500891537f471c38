// ABOUTME: Tests for the playback lifecycle controller
// ABOUTME: Covers session teardown, restart and stop debouncing
package music

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lyrastream/lyra-go/internal/player"
	"github.com/lyrastream/lyra-go/internal/transport"
)

type fakeSink struct {
	mu      sync.Mutex
	samples int
}

func (f *fakeSink) SampleRate() int { return 8000 }
func (f *fakeSink) Ready() bool     { return true }
func (f *fakeSink) Write(s []int16) error {
	f.mu.Lock()
	f.samples += len(s)
	f.mu.Unlock()
	return nil
}
func (f *fakeSink) Close() error { return nil }

// fakeTransport serves a fixed payload, then EOF. With hang set it
// blocks after the payload until closed.
type fakeTransport struct {
	payload []byte
	hang    bool

	mu         sync.Mutex
	served     int
	closed     bool
	closeCalls int
	closedCh   chan struct{}
}

func newFakeTransport(payload []byte, hang bool) *fakeTransport {
	return &fakeTransport{payload: payload, hang: hang, closedCh: make(chan struct{})}
}

func (f *fakeTransport) Open(ctx context.Context, url string, headers map[string]string) error {
	return nil
}

func (f *fakeTransport) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	if f.served < len(f.payload) {
		n := copy(p, f.payload[f.served:])
		f.served += n
		f.mu.Unlock()
		return n, nil
	}
	f.mu.Unlock()
	if f.hang {
		<-f.closedCh
		return 0, io.ErrClosedPipe
	}
	return 0, io.EOF
}

func (f *fakeTransport) StatusCode() int { return 200 }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	if !f.closed {
		f.closed = true
		close(f.closedCh)
	}
	return nil
}

type recordingDisplay struct {
	mu      sync.Mutex
	tracks  []string
	lyrics  []string
	cleared int
}

func (d *recordingDisplay) ShowTrack(artist, title string) {
	d.mu.Lock()
	d.tracks = append(d.tracks, artist+" - "+title)
	d.mu.Unlock()
}

func (d *recordingDisplay) ShowLyric(text string) {
	d.mu.Lock()
	d.lyrics = append(d.lyrics, text)
	d.mu.Unlock()
}

func (d *recordingDisplay) Clear() {
	d.mu.Lock()
	d.cleared++
	d.mu.Unlock()
}

// garbage is a stream head matching no format; playback falls back
// to MP3, finds no frame sync and drains cleanly.
func garbage(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 7)
	}
	return data
}

func newTestController(tr transport.Transport, display Display) *Controller {
	return NewController(Options{
		Sink:         &fakeSink{},
		Display:      display,
		NewTransport: func() transport.Transport { return tr },
		Log:          zerolog.Nop(),
	})
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == player.StateIdle {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("controller never went idle, state %v", c.State())
}

func TestSessionRunsToCompletion(t *testing.T) {
	display := &recordingDisplay{}
	c := newTestController(newFakeTransport(garbage(200), false), display)

	if err := c.StartURL(context.Background(), "http://example/s.mp3", "Artist", "Song"); err != nil {
		t.Fatalf("StartURL: %v", err)
	}
	waitIdle(t, c)

	display.mu.Lock()
	defer display.mu.Unlock()
	if len(display.tracks) != 1 || display.tracks[0] != "Artist - Song" {
		t.Errorf("tracks = %v", display.tracks)
	}
}

func TestStopTearsDownHangingStream(t *testing.T) {
	tr := newFakeTransport(garbage(64), true)
	c := newTestController(tr, nil)

	if err := c.StartURL(context.Background(), "http://example/s.mp3", "", ""); err != nil {
		t.Fatalf("StartURL: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	c.Stop()
	if elapsed := time.Since(start); elapsed > joinTimeout {
		t.Errorf("Stop took %v", elapsed)
	}
	if c.State() != player.StateIdle {
		t.Errorf("state after Stop = %v", c.State())
	}
	tr.mu.Lock()
	closed := tr.closed
	tr.mu.Unlock()
	if !closed {
		t.Error("transport not closed on Stop")
	}
}

func TestStartReplacesRunningSession(t *testing.T) {
	first := newFakeTransport(garbage(64), true)
	second := newFakeTransport(garbage(64), false)
	transports := []transport.Transport{first, second}
	i := 0
	c := NewController(Options{
		Sink: &fakeSink{},
		NewTransport: func() transport.Transport {
			tr := transports[i]
			if i+1 < len(transports) {
				i++
			}
			return tr
		},
		Log: zerolog.Nop(),
	})

	if err := c.StartURL(context.Background(), "http://example/a.mp3", "", "A"); err != nil {
		t.Fatalf("first StartURL: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if err := c.StartURL(context.Background(), "http://example/b.mp3", "", "B"); err != nil {
		t.Fatalf("second StartURL: %v", err)
	}

	first.mu.Lock()
	closed := first.closed
	first.mu.Unlock()
	if !closed {
		t.Error("first transport should be closed by restart")
	}
	if cur := c.Current(); cur == nil || cur.Title != "B" {
		t.Errorf("Current = %+v, want second song", cur)
	}
	waitIdle(t, c)
}

func TestSetTitleUpdatesDisplay(t *testing.T) {
	display := &recordingDisplay{}
	tr := newFakeTransport(garbage(64), true)
	c := newTestController(tr, display)

	if err := c.StartURL(context.Background(), "http://example/s.mp3", "", "stream"); err != nil {
		t.Fatalf("StartURL: %v", err)
	}
	c.SetTitle("Real Artist", "Real Title")

	display.mu.Lock()
	tracks := append([]string(nil), display.tracks...)
	display.mu.Unlock()
	if len(tracks) != 2 || tracks[1] != "Real Artist - Real Title" {
		t.Errorf("tracks = %v", tracks)
	}
	if cur := c.Current(); cur == nil || cur.Title != "Real Title" {
		t.Errorf("Current = %+v", cur)
	}
	c.Stop()
	waitIdle(t, c)
}

func TestStopWithoutSessionIsSafe(t *testing.T) {
	c := newTestController(newFakeTransport(nil, false), nil)
	c.Stop()
	c.Stop()
	if c.State() != player.StateIdle {
		t.Errorf("state = %v", c.State())
	}
	if c.Current() != nil {
		t.Error("Current should be nil without a session")
	}
}

func TestConcurrentStopRunsTeardownOnce(t *testing.T) {
	display := &recordingDisplay{}
	tr := newFakeTransport(garbage(64), true)
	c := newTestController(tr, display)

	if err := c.StartURL(context.Background(), "http://example/s.mp3", "", ""); err != nil {
		t.Fatalf("StartURL: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Stop()
		}()
	}
	wg.Wait()

	tr.mu.Lock()
	calls := tr.closeCalls
	tr.mu.Unlock()
	if calls != 1 {
		t.Errorf("transport closed %d times, want 1", calls)
	}
	display.mu.Lock()
	cleared := display.cleared
	display.mu.Unlock()
	if cleared != 1 {
		t.Errorf("display cleared %d times, want 1", cleared)
	}
}

func TestStopDebounced(t *testing.T) {
	tr := newFakeTransport(garbage(64), true)
	c := newTestController(tr, nil)

	if err := c.StartURL(context.Background(), "http://example/a.mp3", "", ""); err != nil {
		t.Fatalf("StartURL: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	c.Stop()

	// A second session started immediately must survive a Stop
	// landing inside the debounce window.
	tr2 := newFakeTransport(garbage(64), true)
	c.opts.NewTransport = func() transport.Transport { return tr2 }
	if err := c.StartURL(context.Background(), "http://example/b.mp3", "", ""); err != nil {
		t.Fatalf("second StartURL: %v", err)
	}
	c.Stop() // inside debounce window, ignored
	if c.Current() == nil {
		t.Error("debounced Stop should not tear down the new session")
	}

	time.Sleep(stopDebounce + 20*time.Millisecond)
	c.Stop()
	waitIdle(t, c)
}
