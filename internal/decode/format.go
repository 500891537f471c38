// ABOUTME: Stream format detection from leading bytes
// ABOUTME: Classifies a stream as MP3 or AAC-ADTS once per session
package decode

import "sync/atomic"

// Format identifies the compressed stream encoding.
type Format int32

const (
	FormatUnknown Format = iota
	FormatMP3
	FormatAAC
)

func (f Format) String() string {
	switch f {
	case FormatMP3:
		return "mp3"
	case FormatAAC:
		return "aac-adts"
	default:
		return "unknown"
	}
}

// Detect classifies the first bytes of a stream. Rules are checked in
// order: ID3 leader tag, ADTS sync pattern, raw MP3 frame sync. Needs
// at least 4 bytes to attempt classification.
func Detect(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}

	if data[0] == 'I' && data[1] == 'D' && data[2] == '3' {
		return FormatMP3
	}
	if isADTSHeader(data) {
		return FormatAAC
	}
	if isMP3FrameHeader(data) {
		return FormatMP3
	}
	return FormatUnknown
}

// isMP3FrameHeader reports whether data starts with a plausible MP3
// frame header: 11 sync bits, non-reserved layer, bitrate index and
// sample rate index.
func isMP3FrameHeader(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	if data[0] != 0xFF || data[1]&0xE0 != 0xE0 {
		return false
	}

	layer := (data[1] >> 1) & 0x03
	if layer == 0x00 {
		return false
	}

	bitrateIndex := (data[2] >> 4) & 0x0F
	if bitrateIndex == 0x0F || bitrateIndex == 0x00 {
		return false
	}

	sampleRateIndex := (data[2] >> 2) & 0x03
	return sampleRateIndex != 0x03
}

// isADTSHeader reports whether data starts with an ADTS frame header:
// 12 sync bits, layer 00 and a frame length of at least the 7-byte
// header itself.
func isADTSHeader(data []byte) bool {
	if len(data) < 7 {
		return false
	}
	if data[0] != 0xFF || data[1]&0xF0 != 0xF0 {
		return false
	}
	if (data[1]>>1)&0x03 != 0x00 {
		return false
	}
	return adtsFrameLength(data) >= adtsHeaderSize
}

// FormatCell is a write-once stream format shared across goroutines.
// The first successful Set wins; later writes are ignored.
type FormatCell struct {
	v atomic.Int32
}

// Set publishes the detected format. Only the first non-Unknown value
// is stored; returns true when this call performed the write.
func (c *FormatCell) Set(f Format) bool {
	if f == FormatUnknown {
		return false
	}
	return c.v.CompareAndSwap(int32(FormatUnknown), int32(f))
}

// Get returns the published format, or FormatUnknown before any Set.
func (c *FormatCell) Get() Format {
	return Format(c.v.Load())
}

// Reset clears the cell for a new session.
func (c *FormatCell) Reset() {
	c.v.Store(int32(FormatUnknown))
}
