// ABOUTME: Decode engine facade shared by the MP3 and AAC paths
// ABOUTME: Defines the Frame contract and decoder construction
package decode

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrNeedMoreData signals that the window holds no complete frame and
// no decoded output is waiting; the caller should append more input
// bytes, or drain if the stream has ended.
var ErrNeedMoreData = errors.New("decode: need more data")

// Frame is one batch of decoded audio. Samples are mono 16-bit PCM;
// multichannel source material is downmixed by averaging.
type Frame struct {
	Samples    []int16
	SampleRate int
}

// Decoder turns compressed bytes in a Window into PCM frames. Not
// safe for concurrent use; a single goroutine drives the session.
type Decoder interface {
	// NextFrame returns the next decoded frame, ErrNeedMoreData
	// when the window is exhausted, or a hard failure.
	NextFrame() (Frame, error)
	// Drain flushes whatever the codec still buffers at end of
	// stream. The decoder is done afterwards.
	Drain() []Frame
	Close() error
}

// New returns a decoder for the detected format reading from win.
func New(format Format, win *Window, log zerolog.Logger) (Decoder, error) {
	switch format {
	case FormatMP3:
		return newMP3Decoder(win, log), nil
	case FormatAAC:
		return newAACDecoder(win, log), nil
	default:
		return nil, fmt.Errorf("decode: no decoder for format %s", format)
	}
}
