// ABOUTME: Version and product identity constants
// ABOUTME: Reported in logs and, with device identity, to the service
package version

// Version is the player release, overridden at build time with
// -ldflags "-X .../internal/version.Version=x.y.z".
var Version = "0.1.0"

const (
	Product      = "Lyra Player"
	Manufacturer = "LyraStream"
)
