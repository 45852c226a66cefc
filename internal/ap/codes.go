package ap

import "fmt"

// State is the owner-visible AP state.
type State int

const (
	StateDisabled State = iota
	StateEnabling
	StateEnabled
	StateDisabling
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "DISABLED"
	case StateEnabling:
		return "ENABLING"
	case StateEnabled:
		return "ENABLED"
	case StateDisabling:
		return "DISABLING"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StartResult enumerates the outcome of a start attempt. Exactly one
// result is reported per attempt.
type StartResult int

const (
	StartResultUnknown StartResult = iota
	StartResultSuccess
	StartResultFailureGeneral
	StartResultFailureNoChannel
	StartResultFailureUnsupportedConfig
	StartResultFailureBringUpHardware
	StartResultFailureStartDriver
	StartResultFailureInterfaceConflictUserRejected
	StartResultFailureInterfaceConflict
	StartResultFailureCreateInterface
	StartResultFailureSetCountryCode
	StartResultFailureSetMACAddress
	StartResultFailureRegisterCallback
)

func (r StartResult) String() string {
	switch r {
	case StartResultUnknown:
		return "UNKNOWN"
	case StartResultSuccess:
		return "SUCCESS"
	case StartResultFailureGeneral:
		return "FAILURE_GENERAL"
	case StartResultFailureNoChannel:
		return "FAILURE_NO_CHANNEL"
	case StartResultFailureUnsupportedConfig:
		return "FAILURE_UNSUPPORTED_CONFIG"
	case StartResultFailureBringUpHardware:
		return "FAILURE_BRING_UP_HARDWARE"
	case StartResultFailureStartDriver:
		return "FAILURE_START_DRIVER"
	case StartResultFailureInterfaceConflictUserRejected:
		return "FAILURE_INTERFACE_CONFLICT_USER_REJECTED"
	case StartResultFailureInterfaceConflict:
		return "FAILURE_INTERFACE_CONFLICT"
	case StartResultFailureCreateInterface:
		return "FAILURE_CREATE_INTERFACE"
	case StartResultFailureSetCountryCode:
		return "FAILURE_SET_COUNTRY_CODE"
	case StartResultFailureSetMACAddress:
		return "FAILURE_SET_MAC_ADDRESS"
	case StartResultFailureRegisterCallback:
		return "FAILURE_REGISTER_CALLBACK"
	default:
		return fmt.Sprintf("startResult(%d)", int(r))
	}
}

// FailureReason is the coarse failure classification carried on a
// state-changed callback when the new state is FAILED.
type FailureReason int

const (
	FailureNone FailureReason = iota
	FailureGeneral
	FailureNoChannel
	FailureUnsupportedConfiguration
	FailureUserRejected
)

// FailureReasonFor maps a start result to the owner-visible failure reason.
func FailureReasonFor(r StartResult) FailureReason {
	switch r {
	case StartResultFailureNoChannel:
		return FailureNoChannel
	case StartResultFailureUnsupportedConfig:
		return FailureUnsupportedConfiguration
	case StartResultFailureInterfaceConflictUserRejected:
		return FailureUserRejected
	default:
		return FailureGeneral
	}
}

func (f FailureReason) String() string {
	switch f {
	case FailureNone:
		return "NONE"
	case FailureGeneral:
		return "GENERAL"
	case FailureNoChannel:
		return "NO_CHANNEL"
	case FailureUnsupportedConfiguration:
		return "UNSUPPORTED_CONFIGURATION"
	case FailureUserRejected:
		return "USER_REJECTED"
	default:
		return fmt.Sprintf("failureReason(%d)", int(f))
	}
}

// StopEvent enumerates why the radio (or the whole manager) stopped.
type StopEvent int

const (
	StopEventUnknown StopEvent = iota
	StopEventStopped
	StopEventInterfaceDown
	StopEventInterfaceDestroyed
	StopEventHostapdFailure
	StopEventNoUsageTimeout
)

func (e StopEvent) String() string {
	switch e {
	case StopEventUnknown:
		return "UNKNOWN"
	case StopEventStopped:
		return "STOPPED"
	case StopEventInterfaceDown:
		return "INTERFACE_DOWN"
	case StopEventInterfaceDestroyed:
		return "INTERFACE_DESTROYED"
	case StopEventHostapdFailure:
		return "HOSTAPD_FAILURE"
	case StopEventNoUsageTimeout:
		return "NO_USAGE_TIMEOUT"
	default:
		return fmt.Sprintf("stopEvent(%d)", int(e))
	}
}

// DisconnectReason is handed to the hardware on a forced disconnect and
// carried on blocked-client callbacks.
type DisconnectReason int

const (
	DisconnectUnspecified DisconnectReason = iota
	DisconnectBlockedByUser
	DisconnectNoMoreStations
)

func (r DisconnectReason) String() string {
	switch r {
	case DisconnectUnspecified:
		return "UNSPECIFIED"
	case DisconnectBlockedByUser:
		return "BLOCKED_BY_USER"
	case DisconnectNoMoreStations:
		return "NO_MORE_STATIONS"
	default:
		return fmt.Sprintf("disconnectReason(%d)", int(r))
	}
}
