package softap

import (
	"github.com/radio-control/sapd/internal/ap"
	"github.com/radio-control/sapd/internal/hal"
)

// command is the single currency of the state machine: every external
// input (owner calls, driver callbacks, timer firings) becomes one of
// these values on the queue. Commands carry immutable copies only.
type command interface{ isCommand() }

type startCmd struct {
	cfg        ap.Configuration
	capability ap.Capability
	requestor  string
}

type stopCmd struct{}

type updateCapabilityCmd struct {
	capability ap.Capability
}

type updateConfigCmd struct {
	cfg ap.Configuration
}

type updateCountryCmd struct {
	code string
}

// countryChangedCmd is the driver's confirmation that the regulatory
// domain actually changed.
type countryChangedCmd struct {
	code string
}

type countryWaitTimeoutCmd struct{}

type interfaceStatusCmd struct {
	iface string
	state hal.InterfaceState
}

type interfaceDestroyedCmd struct {
	iface string
}

type failureCmd struct {
	iface    string
	instance string // empty for a whole-interface failure
}

type clientsChangedCmd struct {
	instance string
	clients  []ap.Client
}

type infoChangedCmd struct {
	info ap.InstanceInfo
}

type unsafeChannelsCmd struct {
	unsafe map[int]bool
}

type stationFrequencyCmd struct {
	frequencyMHz int
}

type pluggedCmd struct {
	plugged bool
}

type wholeTimeoutCmd struct{}

type instanceTimeoutCmd struct {
	instance string
}

type retryPendingCmd struct{}

// barrierCmd lets tests wait until everything enqueued before it has been
// processed.
type barrierCmd struct {
	done chan struct{}
}

func (startCmd) isCommand()              {}
func (stopCmd) isCommand()               {}
func (updateCapabilityCmd) isCommand()   {}
func (updateConfigCmd) isCommand()       {}
func (updateCountryCmd) isCommand()      {}
func (countryChangedCmd) isCommand()     {}
func (countryWaitTimeoutCmd) isCommand() {}
func (interfaceStatusCmd) isCommand()    {}
func (interfaceDestroyedCmd) isCommand() {}
func (failureCmd) isCommand()            {}
func (clientsChangedCmd) isCommand()     {}
func (infoChangedCmd) isCommand()        {}
func (unsafeChannelsCmd) isCommand()     {}
func (stationFrequencyCmd) isCommand()   {}
func (pluggedCmd) isCommand()            {}
func (wholeTimeoutCmd) isCommand()       {}
func (instanceTimeoutCmd) isCommand()    {}
func (retryPendingCmd) isCommand()       {}
func (barrierCmd) isCommand()            {}
