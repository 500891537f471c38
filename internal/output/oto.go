// ABOUTME: Audio device sink using the oto library
// ABOUTME: Persistent mono player with software volume control
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// busyMs is how much queued audio counts as a busy device. The
// scheduler backs off while more than this is waiting.
const busyMs = 500

// Sink plays mono 16-bit PCM through the platform audio device. A
// single persistent oto player pulls from a pipe, so writes from the
// scheduler stream gaplessly instead of starting a player per batch.
type Sink struct {
	sampleRate int
	busyBytes  int

	otoCtx *oto.Context
	player *oto.Player
	pw     *io.PipeWriter

	mu     sync.Mutex
	volume int
	muted  bool
}

// New opens the audio device at the given rate. Blocks until the
// device is ready.
func New(sampleRate int) (*Sink, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	<-ready

	pr, pw := io.Pipe()
	player := ctx.NewPlayer(pr)
	player.Play()

	return &Sink{
		sampleRate: sampleRate,
		busyBytes:  sampleRate * 2 * busyMs / 1000,
		otoCtx:     ctx,
		player:     player,
		pw:         pw,
		volume:     100,
	}, nil
}

func (s *Sink) SampleRate() int {
	return s.sampleRate
}

// Ready reports whether the device wants more audio.
func (s *Sink) Ready() bool {
	return s.player.BufferedSize() < s.busyBytes
}

// Write queues samples on the device, applying volume on the way.
// Blocks while the player catches up.
func (s *Sink) Write(samples []int16) error {
	s.mu.Lock()
	mult := volumeMultiplier(s.volume, s.muted)
	s.mu.Unlock()

	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		scaled := int16(float64(sample) * mult)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(scaled))
	}
	if _, err := s.pw.Write(out); err != nil {
		return fmt.Errorf("write audio: %w", err)
	}
	return nil
}

// SetVolume sets playback volume, clamped to 0-100.
func (s *Sink) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}
	s.mu.Lock()
	s.volume = volume
	s.mu.Unlock()
}

// SetMuted silences output without touching the volume setting.
func (s *Sink) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

func (s *Sink) Volume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *Sink) Close() error {
	s.pw.Close()
	if s.player != nil {
		s.player.Close()
	}
	if s.otoCtx != nil {
		s.otoCtx.Suspend()
	}
	return nil
}

func volumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}
