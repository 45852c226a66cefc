// Package hal defines the southbound hardware control contract for a
// radio in access-point mode, plus deterministic normalization of driver
// error strings to stable codes.
package hal

import (
	"context"

	"github.com/radio-control/sapd/internal/ap"
)

// InterfaceRequest describes the interface to bring up.
type InterfaceRequest struct {
	// Bands holds one mask per instance leg; two entries request a
	// bridged interface.
	Bands []ap.Band

	Bridged bool

	// Requestor attributes the interface for conflict arbitration.
	Requestor string

	// VendorData is passed to the driver opaquely.
	VendorData map[string]string
}

// InterfaceState as reported by interface status callbacks.
type InterfaceState int

const (
	InterfaceDown InterfaceState = iota
	InterfaceUp
)

// EventSink receives asynchronous driver notifications. Implementations
// must not block; the state machine enqueues and returns.
type EventSink interface {
	// OnInterfaceStateChanged fires when the managed interface flips
	// between up and down.
	OnInterfaceStateChanged(iface string, state InterfaceState)

	// OnInterfaceDestroyed fires when the interface is torn down
	// underneath us (by the driver or a competing use case).
	OnInterfaceDestroyed(iface string)

	// OnFailure reports a driver failure. instance is empty for a
	// whole-interface failure, otherwise names the failed bridged leg.
	OnFailure(iface, instance string)

	// OnConnectedClientsChanged delivers the full station list for one
	// instance after any association or disassociation.
	OnConnectedClientsChanged(iface, instance string, clients []ap.Client)

	// OnInfoChanged delivers updated per-instance radio facts.
	OnInfoChanged(iface string, info ap.InstanceInfo)
}

// Driver is the port the lifecycle state machine drives the hardware
// through. All synchronous calls take a context; the driver decides what
// cancellation means for a half-programmed radio.
type Driver interface {
	// CanCreateInterface reports whether an AP interface of the given
	// shape can come up without destroying an unrelated interface.
	CanCreateInterface(bridged bool, requestor string) bool

	// ShouldDowngradeForConcurrency reports whether a bridged AP must be
	// avoided to keep room for another pending radio use case.
	ShouldDowngradeForConcurrency(requestor string) bool

	// CreateInterface allocates the network interface and returns its
	// name.
	CreateInterface(ctx context.Context, req InterfaceRequest) (string, error)

	// RegisterEventSink subscribes sink to the interface's asynchronous
	// notifications. A failure here is fatal for the start attempt.
	RegisterEventSink(iface string, sink EventSink) error

	// TeardownInterface releases the interface. Safe to call on an
	// interface that is already gone.
	TeardownInterface(iface string)

	// StartAccessPoint programs the resolved configuration and starts
	// beaconing.
	StartAccessPoint(ctx context.Context, iface string, cfg ap.Configuration) error

	// SetCountryCode programs the regulatory domain on the interface.
	SetCountryCode(ctx context.Context, iface, code string) error

	// SetMACAddress pins the interface hardware address.
	SetMACAddress(ctx context.Context, iface string, mac ap.MAC) error

	// ResetFactoryMAC restores the factory hardware address.
	ResetFactoryMAC(ctx context.Context, iface string) error

	// MACSettingSupported reports whether the driver honors explicit
	// hardware addresses at all.
	MACSettingSupported() bool

	// ForceClientDisconnect kicks one station off one interface.
	ForceClientDisconnect(ctx context.Context, iface string, mac ap.MAC, reason ap.DisconnectReason) error

	// BridgedInstances lists the single-band legs of a bridged interface.
	BridgedInstances(iface string) []string

	// RemoveBridgedInstance tears down one leg, leaving the sibling up.
	RemoveBridgedInstance(ctx context.Context, iface, instance string) error
}
