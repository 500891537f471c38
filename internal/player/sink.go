// ABOUTME: Output sink contract for decoded audio
// ABOUTME: Implemented by the oto device and by test fakes
package player

// Sink is where scheduled PCM goes. Samples are mono 16-bit at the
// sink's fixed rate; the scheduler resamples before writing.
type Sink interface {
	// SampleRate is the device rate the sink expects.
	SampleRate() int
	// Ready reports whether the device can take another batch.
	// The scheduler holds scheduled audio while this is false.
	Ready() bool
	// Write queues samples on the device. Blocking is allowed.
	Write(samples []int16) error
	Close() error
}
