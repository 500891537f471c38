// ABOUTME: Stream ingestor, pulls HTTP audio bytes into the buffer
// ABOUTME: Sniffs the stream format from the leading bytes
package ingest

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/lyrastream/lyra-go/internal/buffer"
	"github.com/lyrastream/lyra-go/internal/decode"
	"github.com/lyrastream/lyra-go/internal/transport"
)

const (
	// readSize is one network read. Small enough to keep the
	// prebuffer check responsive, large enough to stay off the
	// syscall hot path.
	readSize = 4096

	// sniffBytes is how much of the stream head format detection
	// wants before deciding; the ADTS rule needs a full header.
	sniffBytes = 7

	openAttempts   = 3
	openRetryDelay = time.Second
)

// Ingestor copies one audio stream into the shared buffer. It owns
// the producer side: it marks the buffer finished on end of stream
// and publishes the detected format exactly once.
type Ingestor struct {
	tr     transport.Transport
	buf    *buffer.Buffer
	format *decode.FormatCell
	log    zerolog.Logger

	prefix    []byte
	sniffDone bool
}

func New(tr transport.Transport, buf *buffer.Buffer, format *decode.FormatCell, log zerolog.Logger) *Ingestor {
	return &Ingestor{
		tr:     tr,
		buf:    buf,
		format: format,
		log:    log.With().Str("component", "ingest").Logger(),
	}
}

// Run opens the stream and pumps it into the buffer until end of
// stream, a read failure, or cancellation. The buffer is always
// marked finished on the way out so the consumer can drain. The
// transport stays open; the session owner closes it exactly once
// during teardown.
func (g *Ingestor) Run(ctx context.Context, url string, headers map[string]string) error {
	if err := g.open(ctx, url, headers); err != nil {
		g.buf.Finish()
		return err
	}
	defer g.buf.Finish()

	chunk := make([]byte, readSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, err := g.tr.Read(chunk)
		if n > 0 {
			g.sniff(chunk[:n], false)
			data := make([]byte, n)
			copy(data, chunk[:n])
			if !g.buf.Push(buffer.Chunk{Data: data}) {
				// Consumer tore the buffer down; session over.
				return nil
			}
		}
		if err != nil {
			g.sniff(nil, true)
			if errors.Is(err, io.EOF) {
				g.log.Debug().Msg("stream ended")
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			g.log.Warn().Err(err).Msg("stream read failed")
			return err
		}
	}
}

func (g *Ingestor) open(ctx context.Context, url string, headers map[string]string) error {
	var err error
	for attempt := 1; attempt <= openAttempts; attempt++ {
		err = g.tr.Open(ctx, url, headers)
		if err == nil {
			g.log.Debug().Int("status", g.tr.StatusCode()).Msg("stream open")
			return nil
		}
		g.log.Warn().Err(err).Int("attempt", attempt).Msg("stream open failed")
		if attempt == openAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(openRetryDelay):
		}
	}
	return err
}

// sniff classifies the stream from its first bytes. Detection runs
// once per session; when the head bytes match no known pattern the
// stream is treated as MP3.
func (g *Ingestor) sniff(data []byte, final bool) {
	if g.sniffDone {
		return
	}
	g.prefix = append(g.prefix, data...)
	if len(g.prefix) < sniffBytes && !final {
		return
	}
	g.sniffDone = true

	f := decode.Detect(g.prefix)
	if f == decode.FormatUnknown {
		g.log.Warn().
			Hex("head", head(g.prefix, 8)).
			Msg("unrecognized stream head, assuming mp3")
		f = decode.FormatMP3
	}
	if g.format.Set(f) {
		g.log.Info().Str("format", f.String()).Msg("stream format detected")
	}
	g.prefix = nil
}

func head(p []byte, n int) []byte {
	if len(p) < n {
		return p
	}
	return p[:n]
}
