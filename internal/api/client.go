// ABOUTME: Catalog API client for song metadata lookups
// ABOUTME: Resolves a song name to stream and lyric URLs
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/lyrastream/lyra-go/internal/auth"
)

// Song is the catalog's answer for one track.
type Song struct {
	Artist   string
	Title    string
	AudioURL string
	LyricURL string
}

type songResponse struct {
	Artist   string `json:"artist"`
	Title    string `json:"title"`
	AudioURL string `json:"audio_url"`
	LyricURL string `json:"lyric_url"`
}

// Client talks to the catalog service.
type Client struct {
	http    *resty.Client
	baseURL string
	device  auth.Device
	log     zerolog.Logger
}

func New(baseURL string, device auth.Device, log zerolog.Logger) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(10 * time.Second),
		baseURL: baseURL,
		device:  device,
		log:     log.With().Str("component", "api").Logger(),
	}
}

// Lookup resolves a song name to its stream and lyric locations.
func (c *Client) Lookup(ctx context.Context, name string) (*Song, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.device.Headers(time.Now())).
		SetQueryParam("song", name).
		Get("/stream_pcm")
	if err != nil {
		return nil, fmt.Errorf("catalog lookup: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, fmt.Errorf("catalog lookup: status %d", resp.StatusCode())
	}

	// Decode the body directly; catalogs in the wild answer JSON
	// under text/plain, which resty's typed result would skip.
	var body songResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("catalog lookup: decode: %w", err)
	}
	if body.AudioURL == "" {
		return nil, fmt.Errorf("catalog lookup: no stream for %q", name)
	}

	song := &Song{
		Artist:   body.Artist,
		Title:    body.Title,
		AudioURL: NormalizeURL(c.baseURL, body.AudioURL),
		LyricURL: NormalizeURL(c.baseURL, body.LyricURL),
	}
	c.log.Debug().Str("song", name).Str("url", song.AudioURL).Msg("song resolved")
	return song, nil
}

// NormalizeURL turns catalog URL fields into fetchable URLs: JSON
// escape artifacts are undone, relative paths are joined onto the
// service base, and spaces are percent-encoded.
func NormalizeURL(base, raw string) string {
	if raw == "" {
		return ""
	}
	raw = strings.ReplaceAll(raw, "\\/", "/")
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(raw, "/")
	}
	return strings.ReplaceAll(raw, " ", "%20")
}
