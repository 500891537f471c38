// ABOUTME: Device authentication headers for the streaming service
// ABOUTME: Derives a per-request dynamic key from device identity
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Device identifies this client to the service.
type Device struct {
	MAC    string
	ChipID string
	Secret string
}

// Headers returns the authentication headers for one request. The
// dynamic key is the hex form of the first 16 bytes of
// SHA-256("mac:chipID:timestamp:secret").
func (d Device) Headers(now time.Time) map[string]string {
	ts := fmt.Sprintf("%d", now.Unix())
	return map[string]string{
		"X-MAC-Address": d.MAC,
		"X-Chip-ID":     d.ChipID,
		"X-Timestamp":   ts,
		"X-Dynamic-Key": d.dynamicKey(ts),
	}
}

func (d Device) dynamicKey(timestamp string) string {
	material := fmt.Sprintf("%s:%s:%s:%s", d.MAC, d.ChipID, timestamp, d.Secret)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:16])
}
