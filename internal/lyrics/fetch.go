// ABOUTME: Lyric file download over the streaming transport
// ABOUTME: Retries whole downloads, tolerates truncated reads
package lyrics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/lyrastream/lyra-go/internal/transport"
)

const (
	fetchAttempts   = 3
	fetchRetryDelay = 500 * time.Millisecond
)

// Fetcher downloads lyric files. Each attempt uses a fresh transport
// from the factory since a failed connection is not reusable.
type Fetcher struct {
	newTransport func() transport.Transport
	log          zerolog.Logger
}

func NewFetcher(newTransport func() transport.Transport, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		newTransport: newTransport,
		log:          log.With().Str("component", "lyrics").Logger(),
	}
}

// Fetch downloads the lyric file at url. Servers habitually drop the
// connection after the final chunk, so a read error after partial
// data counts as a complete download; only an empty result retries.
func (f *Fetcher) Fetch(ctx context.Context, url string, headers map[string]string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		data, err := f.fetchOnce(ctx, url, headers)
		if err == nil && len(data) > 0 {
			return string(data), nil
		}
		if err == nil {
			err = fmt.Errorf("empty lyric response")
		}
		lastErr = err
		f.log.Warn().Err(err).Int("attempt", attempt).Msg("lyric fetch failed")
		if attempt == fetchAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(fetchRetryDelay):
		}
	}
	return "", fmt.Errorf("fetch lyrics: %w", lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	tr := f.newTransport()
	if err := tr.Open(ctx, url, headers); err != nil {
		return nil, err
	}
	defer tr.Close()

	var data []byte
	chunk := make([]byte, 1024)
	for {
		n, err := tr.Read(chunk)
		if n > 0 {
			data = append(data, chunk[:n]...)
		}
		if err != nil {
			if len(data) > 0 {
				// Truncated tail after real content.
				return data, nil
			}
			return nil, err
		}
	}
}
