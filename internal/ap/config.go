package ap

import (
	"errors"
	"fmt"
	"time"
)

// Configuration is the operator-requested shape of the AP. It is treated
// as immutable once handed to the state machine; updates replace it
// wholesale.
type Configuration struct {
	SSID   string `json:"ssid"`
	Hidden bool   `json:"hidden"`

	Security   Security `json:"security"`
	Passphrase string   `json:"-"`

	// Bands holds one mask per requested instance. Two entries request a
	// bridged AP; the resolver may collapse them to one.
	Bands []Band `json:"bands"`

	// BSSID pins the AP hardware address when non-empty.
	BSSID MAC `json:"bssid,omitempty"`

	// MaxClients caps concurrent stations when positive; zero defers to
	// the hardware limit.
	MaxClients int `json:"maxClients"`

	BlockedClients []MAC `json:"blockedClients,omitempty"`
	AllowedClients []MAC `json:"allowedClients,omitempty"`

	// ClientControlByUser enables allow-list enforcement.
	ClientControlByUser bool `json:"clientControlByUser"`

	AutoShutdownEnabled bool          `json:"autoShutdownEnabled"`
	ShutdownTimeout     time.Duration `json:"shutdownTimeout"`

	BridgedIdleShutdownEnabled bool          `json:"bridgedIdleShutdownEnabled"`
	BridgedIdleShutdownTimeout time.Duration `json:"bridgedIdleShutdownTimeout"`

	IEEE80211BE bool `json:"ieee80211be"`

	// CountryCode is the regulatory domain the operator wants the AP in;
	// empty defers to whatever the driver already has.
	CountryCode string `json:"countryCode,omitempty"`

	// VendorData is passed through to the driver opaquely.
	VendorData map[string]string `json:"-"`
}

// Bridged reports whether the configuration requests two instances.
func (c Configuration) Bridged() bool {
	return len(c.Bands) > 1
}

// BandUnion returns the union of every requested band mask.
func (c Configuration) BandUnion() Band {
	var out Band
	for _, b := range c.Bands {
		out |= b
	}
	return out
}

// Clone returns a deep copy of the configuration.
func (c Configuration) Clone() Configuration {
	out := c
	out.Bands = append([]Band(nil), c.Bands...)
	out.BlockedClients = append([]MAC(nil), c.BlockedClients...)
	out.AllowedClients = append([]MAC(nil), c.AllowedClients...)
	if c.VendorData != nil {
		out.VendorData = make(map[string]string, len(c.VendorData))
		for k, v := range c.VendorData {
			out.VendorData[k] = v
		}
	}
	return out
}

var (
	ErrEmptySSID             = errors.New("ssid must not be empty")
	ErrNoBands               = errors.New("at least one band is required")
	ErrSecurityBandConflict  = errors.New("security type not allowed on requested band")
	ErrPassphraseRequired    = errors.New("security type requires a passphrase")
	ErrRestartRequiredChange = errors.New("change requires a stop/start cycle")
	ErrUnsupportedBSSID      = errors.New("hardware cannot honor a fixed bssid")
	ErrTooManyInstances      = errors.New("at most two instances may be requested")
)

// Validate rejects configurations that can never come up regardless of
// capability. Capability-dependent checks belong to the resolver.
func (c Configuration) Validate() error {
	if c.SSID == "" {
		return ErrEmptySSID
	}
	if len(c.Bands) == 0 {
		return ErrNoBands
	}
	if len(c.Bands) > 2 {
		return ErrTooManyInstances
	}
	for _, b := range c.Bands {
		if b == 0 {
			return ErrNoBands
		}
		// A 6GHz-only leg under a security type barred from 6GHz can
		// never resolve to anything.
		if b == Band6GHz && !c.Security.Allows6GHz() {
			return fmt.Errorf("%w: %s on 6GHz", ErrSecurityBandConflict, c.Security)
		}
	}
	switch c.Security {
	case SecurityWPA2PSK, SecurityWPA3SAETransition, SecurityWPA3SAE:
		if c.Passphrase == "" {
			return ErrPassphraseRequired
		}
	}
	return nil
}

// RestartRequired reports whether switching from old to next cannot be done
// in place on a running AP. Client lists, capacity and shutdown timers are
// live-applicable; anything touching the over-the-air identity is not.
func RestartRequired(old, next Configuration) bool {
	if old.SSID != next.SSID || old.Hidden != next.Hidden {
		return true
	}
	if old.Security != next.Security || old.Passphrase != next.Passphrase {
		return true
	}
	if old.BSSID != next.BSSID || old.CountryCode != next.CountryCode {
		return true
	}
	if old.IEEE80211BE != next.IEEE80211BE {
		return true
	}
	if len(old.Bands) != len(next.Bands) {
		return true
	}
	for i := range old.Bands {
		if old.Bands[i] != next.Bands[i] {
			return true
		}
	}
	return false
}

// ApplyRuntime copies the live-applicable fields of src onto dst and
// returns the result. dst's identity fields are preserved.
func ApplyRuntime(dst, src Configuration) Configuration {
	out := dst.Clone()
	out.MaxClients = src.MaxClients
	out.BlockedClients = append([]MAC(nil), src.BlockedClients...)
	out.AllowedClients = append([]MAC(nil), src.AllowedClients...)
	out.ClientControlByUser = src.ClientControlByUser
	out.AutoShutdownEnabled = src.AutoShutdownEnabled
	out.ShutdownTimeout = src.ShutdownTimeout
	out.BridgedIdleShutdownEnabled = src.BridgedIdleShutdownEnabled
	out.BridgedIdleShutdownTimeout = src.BridgedIdleShutdownTimeout
	return out
}
