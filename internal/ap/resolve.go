package ap

import (
	"errors"
	"fmt"
)

var (
	// ErrNoUsableChannel means no band in the request has a legal,
	// coexistence-safe channel left.
	ErrNoUsableChannel = errors.New("no usable channel on any requested band")

	// ErrUnsupportedConfiguration means the request can never be honored
	// under the given capability.
	ErrUnsupportedConfiguration = errors.New("configuration unsupported by capability")
)

// ResolveInput carries everything the resolver needs. The resolver itself
// holds no state; the same input always yields the same output.
type ResolveInput struct {
	Desired    Configuration
	Capability Capability

	// Unsafe lists frequencies (MHz) excluded by coexistence restrictions.
	Unsafe map[int]bool

	// WorldMode is true when the driver's country code is the wildcard
	// world-mode domain; bridged operation is not attempted there.
	WorldMode bool

	// BridgedCreatable reports whether a dual-radio interface can come up
	// without destroying an unrelated interface.
	BridgedCreatable bool

	// DowngradeForConcurrency forces single mode to keep room for another
	// radio use case.
	DowngradeForConcurrency bool

	// StationFrequency is the frequency (MHz) of an active station-mode
	// connection on the shared hardware, or zero. A bridged AP is not
	// started while the station sits on an unsafe frequency.
	StationFrequency int

	// ForceSingle overrides the band plan to a single instance regardless
	// of the checks above (operator fallback).
	ForceSingle bool
}

// Resolve turns a desired configuration into the configuration actually
// put on the air. It strips bands the security type or capability cannot
// carry, decides bridged-vs-single mode, and never invents bands the
// operator did not ask for. Deterministic and idempotent.
func Resolve(in ResolveInput) (Configuration, error) {
	out := in.Desired.Clone()

	bands := make([]Band, 0, len(out.Bands))
	for _, b := range out.Bands {
		b = restrictBand(b, out.Security, in.Capability)
		if b == 0 {
			continue
		}
		bands = append(bands, b)
	}
	if len(bands) == 0 {
		return Configuration{}, fmt.Errorf("%w: no requested band is supported", ErrUnsupportedConfiguration)
	}
	out.Bands = bands

	if len(out.Bands) > 1 && !bridgedFeasible(in, out) {
		out.Bands = []Band{singleFallbackBand(in.Desired, in.Capability)}
	}

	if !HasSafeChannel(out.BandUnion(), in.Capability, in.Unsafe) {
		return Configuration{}, ErrNoUsableChannel
	}

	if out.IEEE80211BE && !in.Capability.Supports(FeatureIEEE80211BE) {
		out.IEEE80211BE = false
	}

	return out, nil
}

// restrictBand drops the 6GHz bit under a security type barred from it and
// any band the capability has no channels for.
func restrictBand(b Band, sec Security, cap Capability) Band {
	if b.Contains(Band6GHz) && !sec.Allows6GHz() {
		b &^= Band6GHz
	}
	return b & cap.SupportedBands()
}

// bridgedFeasible runs the fallback checks in order. Any failed check
// downgrades to single mode; none of them fails the start.
func bridgedFeasible(in ResolveInput, resolved Configuration) bool {
	if in.ForceSingle || in.WorldMode {
		return false
	}
	if in.DowngradeForConcurrency || !in.BridgedCreatable {
		return false
	}
	if in.StationFrequency > 0 {
		safe := SafeChannelFrequencies(resolved.BandUnion(), in.Capability, in.Unsafe)
		if !safe[in.StationFrequency] {
			return false
		}
	}
	// Both legs need at least one usable channel or bridging is pointless.
	for _, b := range resolved.Bands {
		if !HasSafeChannel(b, in.Capability, in.Unsafe) {
			return false
		}
	}
	return true
}

// singleFallbackBand is the union of every requested band, with 2.4GHz
// appended when supported so the widest client population can still join.
func singleFallbackBand(desired Configuration, cap Capability) Band {
	union := desired.BandUnion()
	if cap.SupportedBands().Contains(Band2GHz) {
		union |= Band2GHz
	}
	if !desired.Security.Allows6GHz() {
		union &^= Band6GHz
	}
	return union & cap.SupportedBands()
}

// HighestFrequencyInstance returns the instance with the highest reported
// frequency, or "" when infos is empty. Used when one leg of a bridged AP
// has to go.
func HighestFrequencyInstance(infos map[string]InstanceInfo) string {
	var name string
	best := -1
	for id, info := range infos {
		if info.Frequency > best || (info.Frequency == best && id < name) {
			best = info.Frequency
			name = id
		}
	}
	return name
}
