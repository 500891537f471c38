// ABOUTME: Playback scheduler, drives decode and feeds the sink
// ABOUTME: State machine from prebuffer through decode to drain
package player

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/lyrastream/lyra-go/internal/buffer"
	"github.com/lyrastream/lyra-go/internal/decode"
	"github.com/lyrastream/lyra-go/internal/lyrics"
	"github.com/lyrastream/lyra-go/internal/resample"
)

const (
	// windowLowWater triggers an input top-up; a few compressed
	// frames worth of bytes.
	windowLowWater = 4096

	// batchPercent sizes one sink write as a percentage of the
	// device rate, roughly 70 ms of audio.
	batchPercent = 7

	// lyricLeadMs shifts lyric display ahead of the playback
	// clock so lines land on the ear, not after it.
	lyricLeadMs = 600

	deviceWait = 5 * time.Millisecond
)

// State is the scheduler's phase, readable from other goroutines.
type State int32

const (
	StateIdle State = iota
	StatePrebuffering
	StateDecoding
	StateWaitingData
	StateDraining
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePrebuffering:
		return "prebuffering"
	case StateDecoding:
		return "decoding"
	case StateWaitingData:
		return "waiting-data"
	case StateDraining:
		return "draining"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Scheduler consumes the shared buffer, decodes, resamples to the
// device rate and writes batched PCM to the sink. One Scheduler
// serves one playback session.
type Scheduler struct {
	buf    *buffer.Buffer
	format *decode.FormatCell
	sink   Sink
	log    zerolog.Logger

	clock    *Clock
	state    atomic.Int32
	reporter atomic.Pointer[lyrics.Reporter]

	win      *decode.Window
	leftover []byte
	pcm      []int16

	// newDecoder is swappable in tests.
	newDecoder func(decode.Format, *decode.Window, zerolog.Logger) (decode.Decoder, error)
}

func NewScheduler(buf *buffer.Buffer, format *decode.FormatCell, sink Sink, log zerolog.Logger) *Scheduler {
	s := &Scheduler{
		buf:        buf,
		format:     format,
		sink:       sink,
		log:        log.With().Str("component", "scheduler").Logger(),
		clock:      NewClock(sink.SampleRate()),
		win:        decode.NewWindow(decode.DefaultWindowSize),
		newDecoder: decode.New,
	}
	// A constructed scheduler is about to run; reporting idle here
	// would let callers mistake startup for completion.
	s.setState(StatePrebuffering)
	return s
}

// State returns the current phase.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

func (s *Scheduler) setState(st State) {
	s.state.Store(int32(st))
}

// PositionMs is the playback position in milliseconds.
func (s *Scheduler) PositionMs() int64 {
	return s.clock.Ms()
}

// SetReporter attaches lyric reporting. Safe to call while the
// scheduler is running; lyrics often arrive after playback starts.
func (s *Scheduler) SetReporter(r *lyrics.Reporter) {
	s.reporter.Store(r)
}

// Run executes one session. It returns nil when the stream played to
// completion or the session was torn down, an error otherwise.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.setState(StateDone)

	s.setState(StatePrebuffering)
	if !s.buf.WaitPrebuffer() {
		return nil
	}

	format := s.format.Get()
	if format == decode.FormatUnknown {
		return errors.New("player: stream format never detected")
	}

	dec, err := s.newDecoder(format, s.win, s.log)
	if err != nil {
		return err
	}
	defer dec.Close()

	s.log.Info().
		Str("format", format.String()).
		Int("device_rate", s.sink.SampleRate()).
		Msg("playback starting")

	batch := s.sink.SampleRate() * batchPercent / 100
	s.setState(StateDecoding)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.topUp(false)

		f, err := dec.NextFrame()
		if errors.Is(err, decode.ErrNeedMoreData) {
			if s.leftover != nil || s.buf.Len() > 0 {
				// The window holds less than one frame; a frame can
				// be larger than the low-water mark, so fill past it.
				s.topUp(true)
				continue
			}
			if s.buf.Finished() {
				return s.drain(ctx, dec, batch)
			}
			s.setState(StateWaitingData)
			chunk, ok := s.buf.Pop()
			if !ok {
				return s.drain(ctx, dec, batch)
			}
			s.appendBytes(chunk.Data)
			s.setState(StateDecoding)
			continue
		}
		if err != nil {
			s.log.Error().Err(err).Msg("decode failed")
			return err
		}
		if err := s.emit(ctx, f, batch); err != nil {
			return err
		}
	}
}

// topUp refills the window from the buffer without blocking. The
// scheduler is the only consumer, so a positive Len guarantees Pop
// returns immediately. With force set the low-water mark is ignored
// and the window fills as far as its free space allows.
func (s *Scheduler) topUp(force bool) {
	if !force && s.win.Len() >= windowLowWater {
		return
	}
	if s.leftover != nil {
		data := s.leftover
		s.leftover = nil
		s.appendBytes(data)
	}
	for s.leftover == nil && s.win.Free() > 0 && s.buf.Len() > 0 {
		chunk, ok := s.buf.Pop()
		if !ok {
			return
		}
		s.appendBytes(chunk.Data)
	}
}

// appendBytes pushes data into the window, parking whatever does not
// fit until the decoder consumes some input.
func (s *Scheduler) appendBytes(data []byte) {
	n := s.win.Append(data)
	if n < len(data) {
		rest := make([]byte, len(data)-n)
		copy(rest, data[n:])
		s.leftover = rest
	}
}

// emit resamples one decoded frame to the device rate and writes
// full batches to the sink.
func (s *Scheduler) emit(ctx context.Context, f decode.Frame, batch int) error {
	samples := f.Samples
	if f.SampleRate != s.sink.SampleRate() {
		samples = resample.Resample(samples, f.SampleRate, s.sink.SampleRate())
	}
	s.pcm = append(s.pcm, samples...)

	for len(s.pcm) >= batch {
		if err := s.writeBatch(ctx, s.pcm[:batch]); err != nil {
			return err
		}
		s.pcm = append(s.pcm[:0], s.pcm[batch:]...)
	}
	return nil
}

// writeBatch waits out a busy device, commits samples and moves the
// clock and lyric reporter forward.
func (s *Scheduler) writeBatch(ctx context.Context, samples []int16) error {
	for !s.sink.Ready() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(deviceWait):
		}
	}
	if err := s.sink.Write(samples); err != nil {
		return fmt.Errorf("sink write: %w", err)
	}
	s.clock.Advance(len(samples))

	if r := s.reporter.Load(); r != nil {
		r.Tick(int(s.clock.Ms()) + lyricLeadMs)
	}
	return nil
}

// drain flushes the decoder and any accumulated partial batch, then
// ends the session.
func (s *Scheduler) drain(ctx context.Context, dec decode.Decoder, batch int) error {
	s.setState(StateDraining)
	for _, f := range dec.Drain() {
		if err := s.emit(ctx, f, batch); err != nil {
			return err
		}
	}
	if len(s.pcm) > 0 {
		if err := s.writeBatch(ctx, s.pcm); err != nil {
			return err
		}
		s.pcm = nil
	}
	s.log.Info().Int64("position_ms", s.clock.Ms()).Msg("playback complete")
	return nil
}
