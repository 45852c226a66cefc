// Package ap holds the domain model for a radio operating in access-point
// mode: bands, capability snapshots, desired/active configurations, the
// channel/band resolver and the client admission policy.
package ap

import (
	"fmt"
	"net"
	"strings"
)

// Band is a bitmask of frequency bands. A single AP instance may cover
// more than one band (the driver picks the channel); a bridged AP carries
// one mask per instance leg.
type Band int

const (
	Band2GHz Band = 1 << iota
	Band5GHz
	Band6GHz
)

// BandTypes lists the individual bands in ascending frequency order.
var BandTypes = []Band{Band2GHz, Band5GHz, Band6GHz}

// Contains reports whether b includes every band in other.
func (b Band) Contains(other Band) bool {
	return b&other == other
}

func (b Band) String() string {
	var parts []string
	if b.Contains(Band2GHz) {
		parts = append(parts, "2.4GHz")
	}
	if b.Contains(Band5GHz) {
		parts = append(parts, "5GHz")
	}
	if b.Contains(Band6GHz) {
		parts = append(parts, "6GHz")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// RequiresCountryCode reports whether any band in the mask is regulatorily
// unusable without a configured country code.
func (b Band) RequiresCountryCode() bool {
	return b.Contains(Band5GHz) || b.Contains(Band6GHz)
}

// Security identifies the authentication mode of the AP.
type Security int

const (
	SecurityOpen Security = iota
	SecurityWPA2PSK
	SecurityWPA3SAETransition
	SecurityWPA3SAE
	SecurityOWETransition
	SecurityOWE
)

func (s Security) String() string {
	switch s {
	case SecurityOpen:
		return "open"
	case SecurityWPA2PSK:
		return "wpa2-psk"
	case SecurityWPA3SAETransition:
		return "wpa3-sae-transition"
	case SecurityWPA3SAE:
		return "wpa3-sae"
	case SecurityOWETransition:
		return "owe-transition"
	case SecurityOWE:
		return "owe"
	default:
		return fmt.Sprintf("security(%d)", int(s))
	}
}

// Allows6GHz reports whether the security mode is permitted on the 6GHz
// band. Transition modes and legacy modes are excluded there.
func (s Security) Allows6GHz() bool {
	return s == SecurityWPA3SAE || s == SecurityOWE
}

// MAC is a normalized (lower-case, colon-separated) hardware address.
type MAC string

// ParseMAC normalizes a textual hardware address.
func ParseMAC(s string) (MAC, error) {
	hw, err := net.ParseMAC(s)
	if err != nil {
		return "", fmt.Errorf("invalid mac address %q: %w", s, err)
	}
	return MAC(strings.ToLower(hw.String())), nil
}

// MustMAC is a test helper that panics on an invalid address.
func MustMAC(s string) MAC {
	m, err := ParseMAC(s)
	if err != nil {
		panic(err)
	}
	return m
}

// Client is a station associated (or associating) with one AP instance.
type Client struct {
	MAC      MAC    `json:"mac"`
	Instance string `json:"instance"`
}

// Standard is the wireless generation an instance is serving.
type Standard int

const (
	StandardUnknown Standard = iota
	StandardLegacy
	Standard11N
	Standard11AC
	Standard11AX
	Standard11BE
)

// InstanceInfo describes one single-band leg of a (possibly bridged) AP
// as reported by the hardware.
type InstanceInfo struct {
	Instance     string   `json:"instance"`
	Frequency    int      `json:"frequencyMhz"`
	BandwidthMHz int      `json:"bandwidthMhz"`
	Standard     Standard `json:"standard"`
	BSSID        MAC      `json:"bssid,omitempty"`

	// AutoShutdownTimeoutMillis mirrors the effective idle timeout so the
	// owner can surface it; zero when auto shutdown is disabled.
	AutoShutdownTimeoutMillis int64 `json:"autoShutdownTimeoutMillis"`
}

// Feature flags advertised by the hardware/regulatory capability snapshot.
type Feature uint32

const (
	FeatureClientForceDisconnect Feature = 1 << iota
	FeatureMACCustomization
	FeatureACSOffload
	FeatureIEEE80211BE
	FeatureWPA3SAE
)

// Capability is an immutable snapshot of what the hardware and the current
// regulatory domain allow. It is replaced wholesale on a capability-update
// command, never mutated in place.
type Capability struct {
	// Channels lists the legal channel numbers per individual band.
	Channels map[Band][]int

	// MaxClients is the hardware/carrier limit on concurrent stations.
	MaxClients int

	Features Feature

	// CountryCode is the regulatory domain the driver currently operates
	// in ("" when unknown).
	CountryCode string
}

// Supports reports whether every feature in f is advertised.
func (c Capability) Supports(f Feature) bool {
	return c.Features&f == f
}

// SupportedBands returns the union of bands with at least one legal channel.
func (c Capability) SupportedBands() Band {
	var out Band
	for band, chans := range c.Channels {
		if len(chans) > 0 {
			out |= band
		}
	}
	return out
}

// Clone returns a deep copy so a snapshot handed across the command
// boundary can never be mutated by the sender afterwards.
func (c Capability) Clone() Capability {
	out := c
	out.Channels = make(map[Band][]int, len(c.Channels))
	for band, chans := range c.Channels {
		out.Channels[band] = append([]int(nil), chans...)
	}
	return out
}
