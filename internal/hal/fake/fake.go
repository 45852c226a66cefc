// Package fake provides an in-memory hal.Driver for tests and for running
// the daemon without radio hardware. Failures are injected per method and
// driver events are pushed through the registered sink.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/radio-control/sapd/internal/ap"
	"github.com/radio-control/sapd/internal/hal"
)

// DisconnectCall records one forced-disconnect request.
type DisconnectCall struct {
	Iface  string
	MAC    ap.MAC
	Reason ap.DisconnectReason
}

// Driver implements hal.Driver. The zero value is usable: interfaces come
// up, every capability question is answered yes, nothing fails.
type Driver struct {
	mu sync.Mutex

	// Failure injection. A nil entry means the call succeeds.
	CreateErr      error
	RegisterErr    error
	StartErr       error
	CountryErr     error
	SetMACErr      error
	ResetMACErr    error
	DisconnectErr  error
	RemoveErr      error
	MACUnsupported bool
	DenyCreate     bool
	ForceDowngrade bool

	ifaceSeq    int
	sink        hal.EventSink
	iface       string
	instances   []string
	torndown    []string
	started     []ap.Configuration
	countrySet  []string
	macSet      []ap.MAC
	macResets   int
	disconnects []DisconnectCall
	removed     []string
}

var _ hal.Driver = (*Driver)(nil)

func (d *Driver) CanCreateInterface(bridged bool, requestor string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.DenyCreate
}

func (d *Driver) ShouldDowngradeForConcurrency(requestor string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ForceDowngrade
}

func (d *Driver) CreateInterface(ctx context.Context, req hal.InterfaceRequest) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.CreateErr != nil {
		return "", d.CreateErr
	}
	d.ifaceSeq++
	d.iface = fmt.Sprintf("wlan%d", d.ifaceSeq)
	if req.Bridged {
		d.instances = []string{d.iface + "_0", d.iface + "_1"}
	} else {
		d.instances = []string{d.iface}
	}
	return d.iface, nil
}

func (d *Driver) RegisterEventSink(iface string, sink hal.EventSink) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RegisterErr != nil {
		return d.RegisterErr
	}
	d.sink = sink
	return nil
}

func (d *Driver) TeardownInterface(iface string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.torndown = append(d.torndown, iface)
}

func (d *Driver) StartAccessPoint(ctx context.Context, iface string, cfg ap.Configuration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.StartErr != nil {
		return d.StartErr
	}
	d.started = append(d.started, cfg.Clone())
	return nil
}

func (d *Driver) SetCountryCode(ctx context.Context, iface, code string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.CountryErr != nil {
		return d.CountryErr
	}
	d.countrySet = append(d.countrySet, code)
	return nil
}

func (d *Driver) SetMACAddress(ctx context.Context, iface string, mac ap.MAC) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.SetMACErr != nil {
		return d.SetMACErr
	}
	d.macSet = append(d.macSet, mac)
	return nil
}

func (d *Driver) ResetFactoryMAC(ctx context.Context, iface string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ResetMACErr != nil {
		return d.ResetMACErr
	}
	d.macResets++
	return nil
}

func (d *Driver) MACSettingSupported() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.MACUnsupported
}

func (d *Driver) ForceClientDisconnect(ctx context.Context, iface string, mac ap.MAC, reason ap.DisconnectReason) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnects = append(d.disconnects, DisconnectCall{Iface: iface, MAC: mac, Reason: reason})
	return d.DisconnectErr
}

func (d *Driver) BridgedInstances(iface string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.instances...)
}

func (d *Driver) RemoveBridgedInstance(ctx context.Context, iface, instance string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.RemoveErr != nil {
		return d.RemoveErr
	}
	d.removed = append(d.removed, instance)
	rest := d.instances[:0]
	for _, in := range d.instances {
		if in != instance {
			rest = append(rest, in)
		}
	}
	d.instances = rest
	return nil
}

// Interface returns the name of the last created interface.
func (d *Driver) Interface() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.iface
}

// Started returns the configurations passed to StartAccessPoint.
func (d *Driver) Started() []ap.Configuration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ap.Configuration(nil), d.started...)
}

// CountryCodes returns every code passed to SetCountryCode in order.
func (d *Driver) CountryCodes() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.countrySet...)
}

// Disconnects returns every forced-disconnect call in order.
func (d *Driver) Disconnects() []DisconnectCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]DisconnectCall(nil), d.disconnects...)
}

// TorndownInterfaces returns every interface handed to TeardownInterface.
func (d *Driver) TorndownInterfaces() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.torndown...)
}

// RemovedInstances returns every bridged leg removed so far.
func (d *Driver) RemovedInstances() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.removed...)
}

// MACResets returns how many times the factory address was restored.
func (d *Driver) MACResets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.macResets
}

// SetMACs returns every explicit address handed to SetMACAddress.
func (d *Driver) SetMACs() []ap.MAC {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]ap.MAC(nil), d.macSet...)
}

func (d *Driver) currentSink() (hal.EventSink, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sink, d.iface
}

// PushInterfaceState delivers an interface up/down event.
func (d *Driver) PushInterfaceState(state hal.InterfaceState) {
	if sink, iface := d.currentSink(); sink != nil {
		sink.OnInterfaceStateChanged(iface, state)
	}
}

// PushInterfaceDestroyed delivers an interface-destroyed event.
func (d *Driver) PushInterfaceDestroyed() {
	if sink, iface := d.currentSink(); sink != nil {
		sink.OnInterfaceDestroyed(iface)
	}
}

// PushFailure delivers a driver failure; empty instance means the whole
// interface failed.
func (d *Driver) PushFailure(instance string) {
	if sink, iface := d.currentSink(); sink != nil {
		sink.OnFailure(iface, instance)
	}
}

// PushClients delivers a connected-stations update for one instance.
func (d *Driver) PushClients(instance string, clients []ap.Client) {
	if sink, iface := d.currentSink(); sink != nil {
		sink.OnConnectedClientsChanged(iface, instance, clients)
	}
}

// PushInfo delivers a per-instance info update.
func (d *Driver) PushInfo(info ap.InstanceInfo) {
	if sink, iface := d.currentSink(); sink != nil {
		sink.OnInfoChanged(iface, info)
	}
}
