// ABOUTME: AAC decode path over ADTS framing
// ABOUTME: Slices ADTS frames from the window and decodes via go-aac
package decode

import (
	aac "github.com/llehouerou/go-aac"
	"github.com/rs/zerolog"
)

const adtsHeaderSize = 7

// adtsFrameLength extracts the 13-bit frame length, header included,
// from an ADTS header.
func adtsFrameLength(data []byte) int {
	if len(data) < 6 {
		return 0
	}
	return int(data[3]&0x03)<<11 | int(data[4])<<3 | int(data[5])>>5
}

// findADTSSync returns the offset of the first plausible ADTS header
// in data, or -1.
func findADTSSync(data []byte) int {
	for i := 0; i+adtsHeaderSize <= len(data); i++ {
		if data[i] == 0xFF && isADTSHeader(data[i:]) {
			return i
		}
	}
	return -1
}

// aacDecoder decodes ADTS-framed AAC one frame at a time. Unlike the
// MP3 path it is fully synchronous: every complete ADTS frame maps to
// one decoder call.
type aacDecoder struct {
	win *Window
	dec *aac.Decoder
	log zerolog.Logger

	initialized bool
	sampleRate  int
	channels    int
	warnedMulti bool
}

func newAACDecoder(win *Window, log zerolog.Logger) *aacDecoder {
	return &aacDecoder{win: win, dec: aac.NewDecoder(), log: log}
}

// NextFrame decodes the next complete ADTS frame into mono PCM. It
// returns ErrNeedMoreData when the window holds no complete frame.
// A frame the codec rejects is abandoned by skipping one byte and
// resynchronizing.
func (d *aacDecoder) NextFrame() (Frame, error) {
	for {
		data := d.win.Bytes()
		off := findADTSSync(data)
		if off < 0 {
			if d.win.Len() > adtsHeaderSize-1 {
				d.win.Consume(d.win.Len() - (adtsHeaderSize - 1))
			}
			return Frame{}, ErrNeedMoreData
		}
		if off > 0 {
			d.win.Consume(off)
			data = d.win.Bytes()
		}

		frameLen := adtsFrameLength(data)
		if frameLen < adtsHeaderSize {
			d.win.Consume(1)
			continue
		}
		if frameLen > d.win.Len() {
			return Frame{}, ErrNeedMoreData
		}

		frame := data[:frameLen]
		if !d.initialized {
			rate, ch, err := d.dec.SimpleInit(frame)
			if err != nil {
				d.win.Consume(1)
				continue
			}
			d.sampleRate = int(rate)
			d.channels = int(ch)
			d.initialized = true
		}

		samples, err := d.dec.DecodeInt16(frame)
		if err != nil {
			d.win.Consume(1)
			continue
		}
		d.win.Consume(frameLen)

		// Stream parameters can change mid-session; trust the
		// decoder over the init-time values.
		if r := int(d.dec.SampleRate()); r > 0 {
			d.sampleRate = r
		}
		if c := int(d.dec.Channels()); c > 0 {
			d.channels = c
		}
		if d.channels > 2 && !d.warnedMulti {
			d.log.Warn().Int("channels", d.channels).
				Msg("unsupported channel count, keeping first channel")
			d.warnedMulti = true
		}

		return Frame{
			Samples:    downmixInterleaved(samples, d.channels),
			SampleRate: d.sampleRate,
		}, nil
	}
}

// Drain is a no-op: the AAC path buffers no output.
func (d *aacDecoder) Drain() []Frame {
	return nil
}

func (d *aacDecoder) Close() error {
	if d.dec != nil {
		d.dec.Close()
	}
	return nil
}

// downmixInterleaved reduces interleaved multichannel samples to mono.
// Stereo is averaged; anything wider keeps the first channel only.
// Mono input passes through untouched.
func downmixInterleaved(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]int16, frames)
	if channels == 2 {
		for i := 0; i < frames; i++ {
			out[i] = int16((int32(samples[2*i]) + int32(samples[2*i+1])) / 2)
		}
		return out
	}
	for i := 0; i < frames; i++ {
		out[i] = samples[i*channels]
	}
	return out
}
