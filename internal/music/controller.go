// ABOUTME: Playback lifecycle controller, one session at a time
// ABOUTME: Wires catalog, transport, ingest, scheduler and lyrics
package music

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lyrastream/lyra-go/internal/api"
	"github.com/lyrastream/lyra-go/internal/auth"
	"github.com/lyrastream/lyra-go/internal/buffer"
	"github.com/lyrastream/lyra-go/internal/decode"
	"github.com/lyrastream/lyra-go/internal/ingest"
	"github.com/lyrastream/lyra-go/internal/lyrics"
	"github.com/lyrastream/lyra-go/internal/player"
	"github.com/lyrastream/lyra-go/internal/transport"
)

const (
	// stopDebounce swallows duplicate stop requests arriving in a
	// burst, typically repeated key presses.
	stopDebounce = 100 * time.Millisecond

	// joinTimeout bounds how long teardown waits for a worker. A
	// worker stuck past this is detached; its buffer and transport
	// are already closed, so it exits on its own.
	joinTimeout = 2 * time.Second
)

// Display receives track metadata and lyric lines. Implementations
// must not block; calls come from playback goroutines.
type Display interface {
	ShowTrack(artist, title string)
	ShowLyric(text string)
	Clear()
}

// Options configures a Controller.
type Options struct {
	Catalog      *api.Client
	Sink         player.Sink
	Device       auth.Device
	Display      Display
	FetchLyrics  bool
	NewTransport func() transport.Transport
	Log          zerolog.Logger
}

// Controller runs playback sessions. Start tears down any running
// session first; Stop is idempotent and safe from any goroutine,
// including the scheduler's own.
type Controller struct {
	opts Options
	log  zerolog.Logger

	mu      sync.Mutex
	current *session

	lastStop atomic.Int64
}

// session is the per-track wiring: one buffer, one transport, one
// ingestor and one scheduler, plus an optional lyric fetch.
type session struct {
	id     string
	song   *api.Song
	cancel context.CancelFunc
	buf    *buffer.Buffer
	tr     transport.Transport
	sched  *player.Scheduler

	ingestDone chan struct{}
	schedDone  chan struct{}
	lyricsDone chan struct{}

	stopped atomic.Bool
}

func NewController(opts Options) *Controller {
	if opts.NewTransport == nil {
		opts.NewTransport = func() transport.Transport { return transport.NewHTTP() }
	}
	return &Controller{
		opts: opts,
		log:  opts.Log.With().Str("component", "controller").Logger(),
	}
}

// Start resolves songName through the catalog and begins playback,
// replacing any session already running.
func (c *Controller) Start(ctx context.Context, songName string) error {
	c.stop(nil)

	song, err := c.opts.Catalog.Lookup(ctx, songName)
	if err != nil {
		return fmt.Errorf("start playback: %w", err)
	}
	return c.startSong(ctx, song)
}

// StartURL begins playback of a direct stream URL, bypassing the
// catalog. Artist and title are whatever the caller knows.
func (c *Controller) StartURL(ctx context.Context, url, artist, title string) error {
	c.stop(nil)
	return c.startSong(ctx, &api.Song{Artist: artist, Title: title, AudioURL: url})
}

func (c *Controller) startSong(ctx context.Context, song *api.Song) error {
	sctx, cancel := context.WithCancel(ctx)
	sess := &session{
		id:         uuid.NewString(),
		song:       song,
		cancel:     cancel,
		buf:        buffer.New(),
		tr:         c.opts.NewTransport(),
		ingestDone: make(chan struct{}),
		schedDone:  make(chan struct{}),
		lyricsDone: make(chan struct{}),
	}

	var cell decode.FormatCell
	sess.sched = player.NewScheduler(sess.buf, &cell, c.opts.Sink, c.log)
	ing := ingest.New(sess.tr, sess.buf, &cell, c.log)

	log := c.log.With().Str("session", sess.id).Logger()
	log.Info().
		Str("artist", song.Artist).
		Str("title", song.Title).
		Msg("session starting")

	if c.opts.Display != nil {
		c.opts.Display.ShowTrack(song.Artist, song.Title)
	}

	headers := c.opts.Device.Headers(time.Now())
	go func() {
		defer close(sess.ingestDone)
		if err := ing.Run(sctx, song.AudioURL, headers); err != nil && sctx.Err() == nil {
			log.Warn().Err(err).Msg("ingest ended with error")
		}
	}()

	go func() {
		err := sess.sched.Run(sctx)
		close(sess.schedDone)
		if err != nil && sctx.Err() == nil {
			log.Error().Err(err).Msg("playback failed")
		}
		// Natural completion tears the session down from inside
		// the scheduler goroutine; stop must not join itself.
		c.stopSession(sess, sess.schedDone)
	}()

	if c.opts.FetchLyrics && song.LyricURL != "" {
		go func() {
			defer close(sess.lyricsDone)
			c.fetchLyrics(sctx, sess, log)
		}()
	} else {
		close(sess.lyricsDone)
	}

	c.mu.Lock()
	c.current = sess
	c.mu.Unlock()
	return nil
}

// fetchLyrics downloads and attaches lyrics while audio is already
// flowing; the reporter can join mid-song.
func (c *Controller) fetchLyrics(ctx context.Context, sess *session, log zerolog.Logger) {
	fetcher := lyrics.NewFetcher(c.opts.NewTransport, c.log)
	text, err := fetcher.Fetch(ctx, sess.song.LyricURL, c.opts.Device.Headers(time.Now()))
	if err != nil {
		log.Warn().Err(err).Msg("continuing without lyrics")
		return
	}

	lines := lyrics.ParseLRC(text)
	if len(lines) == 0 {
		log.Debug().Msg("lyric file held no timed lines")
		return
	}

	display := c.opts.Display
	sess.sched.SetReporter(lyrics.NewReporter(lyrics.NewStore(lines), func(l lyrics.Line) {
		if display != nil {
			display.ShowLyric(l.Text)
		}
	}))
	log.Debug().Int("lines", len(lines)).Msg("lyrics attached")
}

// Stop ends the current session. Requests inside the debounce window
// of the previous stop are ignored.
func (c *Controller) Stop() {
	last := time.Unix(0, c.lastStop.Load())
	if time.Since(last) < stopDebounce {
		return
	}
	c.stop(nil)
}

func (c *Controller) stop(skip chan struct{}) {
	c.mu.Lock()
	sess := c.current
	c.current = nil
	c.mu.Unlock()
	c.stopSession(sess, skip)
}

// stopSession tears one session down exactly once. skip names a done
// channel belonging to the calling goroutine, which cannot be joined
// without deadlocking.
func (c *Controller) stopSession(sess *session, skip chan struct{}) {
	if sess == nil {
		return
	}
	if !sess.stopped.CompareAndSwap(false, true) {
		return
	}

	c.mu.Lock()
	if c.current == sess {
		c.current = nil
	}
	c.mu.Unlock()

	log := c.log.With().Str("session", sess.id).Logger()
	log.Debug().Msg("session stopping")

	sess.cancel()
	sess.tr.Close()
	sess.buf.Close()

	for _, w := range []struct {
		name string
		done chan struct{}
	}{
		{"ingest", sess.ingestDone},
		{"scheduler", sess.schedDone},
		{"lyrics", sess.lyricsDone},
	} {
		if w.done == skip {
			continue
		}
		select {
		case <-w.done:
		case <-time.After(joinTimeout):
			log.Warn().Str("worker", w.name).Msg("worker did not exit, detaching")
		}
	}

	if c.opts.Display != nil {
		c.opts.Display.Clear()
	}

	c.lastStop.Store(time.Now().UnixNano())
	log.Info().Msg("session stopped")
}

// SetTitle overrides the displayed metadata of the active session,
// for callers that learn the real title from another channel than
// the catalog.
func (c *Controller) SetTitle(artist, title string) {
	c.mu.Lock()
	sess := c.current
	if sess != nil {
		sess.song.Artist = artist
		sess.song.Title = title
	}
	c.mu.Unlock()
	if sess != nil && c.opts.Display != nil {
		c.opts.Display.ShowTrack(artist, title)
	}
}

// Current returns the song of the active session, or nil.
func (c *Controller) Current() *api.Song {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	return c.current.song
}

// State reports the scheduler phase of the active session.
func (c *Controller) State() player.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return player.StateIdle
	}
	return c.current.sched.State()
}

// PositionMs reports playback position of the active session.
func (c *Controller) PositionMs() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return 0
	}
	return c.current.sched.PositionMs()
}
