// ABOUTME: MP3 decode path, frame framing plus go-mp3 bridge
// ABOUTME: Validates frames from the window and emits mono PCM
package decode

import (
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/rs/zerolog"
)

// mp3BitrateKbps indexes [versionGroup][layer][bitrateIndex] where
// versionGroup 0 is MPEG1 and 1 is MPEG2/2.5, layer 0 is Layer I,
// 1 is Layer II, 2 is Layer III. Index 0 and 15 are invalid.
var mp3BitrateKbps = [2][3][16]int{
	{
		{0, 32, 64, 96, 128, 160, 192, 224, 256, 288, 320, 352, 384, 416, 448, 0},
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 384, 0},
		{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320, 0},
	},
	{
		{0, 32, 48, 56, 64, 80, 96, 112, 128, 144, 160, 176, 192, 224, 256, 0},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
		{0, 8, 16, 24, 32, 40, 48, 56, 64, 80, 96, 112, 128, 144, 160, 0},
	},
}

// mp3SampleRates indexes [version][sampleRateIndex]: MPEG2.5,
// reserved, MPEG2, MPEG1.
var mp3SampleRates = [4][3]int{
	{11025, 12000, 8000},
	{0, 0, 0},
	{22050, 24000, 16000},
	{44100, 48000, 32000},
}

// mp3FrameLength returns the byte length of the MP3 frame whose
// 4-byte header starts at data, or 0 when the header is invalid.
func mp3FrameLength(data []byte) int {
	if !isMP3FrameHeader(data) {
		return 0
	}

	version := (data[1] >> 3) & 0x03 // 00=2.5, 10=2, 11=1
	layerBits := (data[1] >> 1) & 0x03
	layer := 3 - int(layerBits) // 0=I, 1=II, 2=III
	bitrateIndex := (data[2] >> 4) & 0x0F
	sampleRateIndex := (data[2] >> 2) & 0x03
	padding := int((data[2] >> 1) & 0x01)

	group := 0
	if version != 0x03 {
		group = 1
	}
	bitrate := mp3BitrateKbps[group][layer][bitrateIndex] * 1000
	sampleRate := mp3SampleRates[version][sampleRateIndex]
	if bitrate == 0 || sampleRate == 0 {
		return 0
	}

	switch layer {
	case 0:
		return (12*bitrate/sampleRate + padding) * 4
	case 1:
		return 144*bitrate/sampleRate + padding
	default:
		if group == 0 {
			return 144*bitrate/sampleRate + padding
		}
		return 72*bitrate/sampleRate + padding
	}
}

const id3HeaderSize = 10

// id3TagSize returns the total byte length of an ID3v2 leader tag,
// header included, or 0 when data does not start with one. The size
// field is four synchsafe bytes.
func id3TagSize(data []byte) int {
	if len(data) < id3HeaderSize {
		return 0
	}
	if data[0] != 'I' || data[1] != 'D' || data[2] != '3' {
		return 0
	}
	size := int(data[6]&0x7F)<<21 | int(data[7]&0x7F)<<14 |
		int(data[8]&0x7F)<<7 | int(data[9]&0x7F)
	return id3HeaderSize + size
}

// pcmBatch carries one Read worth of decoded samples out of the
// go-mp3 goroutine, or the terminal error.
type pcmBatch struct {
	samples    []int16
	sampleRate int
	err        error
}

// mp3Decoder frames the raw stream itself and hands complete frames
// to go-mp3 through a pipe. go-mp3 keeps the bit reservoir across
// frames, so one decoder instance spans the session; when it rejects
// the input outright the bridge is replaced and framing resyncs.
type mp3Decoder struct {
	win     *Window
	log     zerolog.Logger
	pw      *io.PipeWriter
	batches chan pcmBatch

	id3Checked bool
	id3Left    int
	pending    []Frame
	failed     error
}

func newMP3Decoder(win *Window, log zerolog.Logger) *mp3Decoder {
	d := &mp3Decoder{win: win, log: log}
	d.startBridge()
	return d
}

// startBridge wires a fresh pipe and go-mp3 goroutine.
func (d *mp3Decoder) startBridge() {
	pr, pw := io.Pipe()
	d.pw = pw
	d.batches = make(chan pcmBatch, 8)
	go d.run(pr, d.batches)
}

// restartBridge tears the dead bridge down and starts a new one, so a
// frame go-mp3 cannot handle costs a resync instead of the session.
func (d *mp3Decoder) restartBridge() {
	d.log.Warn().Err(d.failed).Msg("mp3 decoder rejected input, resyncing")
	d.failed = nil
	d.pw.Close()
	for range d.batches {
	}
	d.startBridge()
}

// run owns the go-mp3 decoder. It blocks reading the pipe until
// NextFrame feeds it validated frames, and publishes decoded batches.
// Closing the reader on exit unblocks any in-flight feed.
func (d *mp3Decoder) run(pr *io.PipeReader, batches chan pcmBatch) {
	defer close(batches)
	defer pr.Close()

	dec, err := gomp3.NewDecoder(pr)
	if err != nil {
		if err != io.EOF && err != io.ErrUnexpectedEOF {
			batches <- pcmBatch{err: fmt.Errorf("mp3 decoder init: %w", err)}
		}
		return
	}

	buf := make([]byte, 8192)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			batches <- pcmBatch{
				samples:    downmixStereoS16LE(buf[:n]),
				sampleRate: dec.SampleRate(),
			}
		}
		if err != nil {
			if err != io.EOF && err != io.ErrUnexpectedEOF {
				batches <- pcmBatch{err: fmt.Errorf("mp3 decode: %w", err)}
			}
			return
		}
	}
}

// NextFrame returns the next decoded mono frame. It returns
// ErrNeedMoreData when the window does not yet hold a complete MP3
// frame and nothing decoded is waiting.
func (d *mp3Decoder) NextFrame() (Frame, error) {
	if f, ok := d.takePending(); ok {
		return f, nil
	}

	if err := d.skipID3(); err != nil {
		return Frame{}, err
	}

	for {
		data := d.win.Bytes()
		off := findMP3Sync(data)
		if off < 0 {
			// No frame header anywhere: the window is noise.
			d.win.Consume(d.win.Len())
			return d.frameOrStarve()
		}
		if off > 0 {
			d.win.Consume(off)
			data = d.win.Bytes()
		}

		frameLen := mp3FrameLength(data)
		if frameLen == 0 {
			// Sync pattern without a decodable header; resync
			// one byte further on.
			d.win.Consume(1)
			continue
		}
		if frameLen > d.win.Len() {
			return d.frameOrStarve()
		}

		if _, err := d.pw.Write(data[:frameLen]); err != nil {
			// The bridge shut down mid-feed; skip one byte and
			// resync on a fresh decoder.
			d.win.Consume(1)
			d.restartBridge()
			continue
		}
		d.win.Consume(frameLen)

		d.drainBatches()
		if d.failed != nil {
			d.restartBridge()
			continue
		}
		if f, ok := d.takePending(); ok {
			return f, nil
		}
		// No output yet; feed the next frame if one is complete.
	}
}

// skipID3 drops a leading ID3v2 tag, which may span several appends.
func (d *mp3Decoder) skipID3() error {
	if d.id3Left > 0 {
		n := d.id3Left
		if n > d.win.Len() {
			n = d.win.Len()
		}
		d.win.Consume(n)
		d.id3Left -= n
		if d.id3Left > 0 {
			return ErrNeedMoreData
		}
		return nil
	}
	if d.id3Checked {
		return nil
	}

	data := d.win.Bytes()
	if len(data) >= 3 && data[0] == 'I' && data[1] == 'D' && data[2] == '3' {
		if len(data) < id3HeaderSize {
			return ErrNeedMoreData
		}
		d.id3Left = id3TagSize(data)
		d.id3Checked = true
		return d.skipID3()
	}
	d.id3Checked = true
	return nil
}

// frameOrStarve drains batches the decode goroutine has produced and
// returns one frame, or ErrNeedMoreData when none is ready yet.
func (d *mp3Decoder) frameOrStarve() (Frame, error) {
	d.drainBatches()
	if d.failed != nil {
		d.restartBridge()
	}
	if f, ok := d.takePending(); ok {
		return f, nil
	}
	return Frame{}, ErrNeedMoreData
}

func (d *mp3Decoder) drainBatches() {
	for {
		select {
		case b, ok := <-d.batches:
			if !ok {
				return
			}
			if b.err != nil {
				d.failed = b.err
				return
			}
			d.pending = append(d.pending, Frame{
				Samples:    b.samples,
				SampleRate: b.sampleRate,
			})
		default:
			return
		}
	}
}

func (d *mp3Decoder) takePending() (Frame, bool) {
	if len(d.pending) == 0 {
		return Frame{}, false
	}
	f := d.pending[0]
	d.pending = d.pending[1:]
	return f, true
}

// Drain closes the feed and collects everything go-mp3 still holds.
// The decoder is unusable afterwards.
func (d *mp3Decoder) Drain() []Frame {
	d.pw.Close()
	for b := range d.batches {
		if b.err != nil {
			break
		}
		d.pending = append(d.pending, Frame{
			Samples:    b.samples,
			SampleRate: b.sampleRate,
		})
	}
	out := d.pending
	d.pending = nil
	return out
}

// Close tears down the decode goroutine without collecting output.
func (d *mp3Decoder) Close() error {
	d.pw.Close()
	for range d.batches {
	}
	return nil
}

// findMP3Sync returns the offset of the first plausible MP3 frame
// header in data, or -1.
func findMP3Sync(data []byte) int {
	for i := 0; i+4 <= len(data); i++ {
		if data[i] == 0xFF && isMP3FrameHeader(data[i:]) {
			return i
		}
	}
	return -1
}

// downmixStereoS16LE folds interleaved 16-bit little-endian stereo
// bytes into mono samples by averaging the channel pair.
func downmixStereoS16LE(p []byte) []int16 {
	pairs := len(p) / 4
	out := make([]int16, pairs)
	for i := 0; i < pairs; i++ {
		l := int16(uint16(p[i*4]) | uint16(p[i*4+1])<<8)
		r := int16(uint16(p[i*4+2]) | uint16(p[i*4+3])<<8)
		out[i] = int16((int32(l) + int32(r)) / 2)
	}
	return out
}
