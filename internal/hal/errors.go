package hal

import (
	"errors"
	"fmt"
	"strings"
)

// Normalized driver errors. Everything a driver reports collapses onto one
// of these; callers branch on the code, never on message text.
var (
	ErrNoChannel   = errors.New("NO_CHANNEL")
	ErrUnsupported = errors.New("UNSUPPORTED")
	ErrBusy        = errors.New("BUSY")
	ErrUnavailable = errors.New("UNAVAILABLE")
	ErrInternal    = errors.New("INTERNAL")
)

// DriverMap defines the error token mapping for a specific driver family.
type DriverMap struct {
	NoChannel   []string // Tokens that map to NO_CHANNEL
	Unsupported []string // Tokens that map to UNSUPPORTED
	Busy        []string // Tokens that map to BUSY
	Unavailable []string // Tokens that map to UNAVAILABLE
}

// DriverErrorMappings holds the deterministic mapping tables per driver
// family. Unknown tokens map to INTERNAL; unknown drivers fall back to
// "generic".
var DriverErrorMappings = map[string]DriverMap{
	"hostapd": {
		NoChannel: []string{
			"ACS_FAILED",
			"NO_VALID_CHANNEL",
			"CHANNEL_LIST_EMPTY",
			"DFS_UNAVAILABLE",
		},
		Unsupported: []string{
			"UNSUPPORTED_CONFIG",
			"INVALID_SECURITY",
			"BAND_NOT_SUPPORTED",
			"HE_NOT_SUPPORTED",
			"EHT_NOT_SUPPORTED",
		},
		Busy: []string{
			"IFACE_BUSY",
			"OPERATION_IN_PROGRESS",
			"COUNTRY_UPDATE_PENDING",
		},
		Unavailable: []string{
			"HOSTAPD_NOT_RUNNING",
			"IFACE_GONE",
			"DRIVER_OFFLINE",
			"FIRMWARE_CRASH",
		},
	},
	"generic": {
		NoChannel: []string{
			"NO_CHANNEL",
			"CHANNEL_UNAVAILABLE",
		},
		Unsupported: []string{
			"UNSUPPORTED",
			"INVALID_PARAMETER",
			"NOT_SUPPORTED",
		},
		Busy: []string{
			"BUSY",
			"RETRY",
			"IN_PROGRESS",
		},
		Unavailable: []string{
			"UNAVAILABLE",
			"OFFLINE",
			"NOT_READY",
			"REBOOT",
		},
	},
}

// DriverError wraps a raw driver error with its normalized code and the
// opaque diagnostic payload.
type DriverError struct {
	Code     error
	Original error
	Details  interface{}
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("%v (driver: %v)", e.Code, e.Original)
}

func (e *DriverError) Unwrap() error {
	return e.Code
}

// Normalize maps a driver error using the generic token table.
func Normalize(driverErr error, payload interface{}) error {
	return NormalizeWithDriver(driverErr, payload, "generic")
}

// NormalizeWithDriver maps a driver error using a specific driver family's
// token table.
func NormalizeWithDriver(driverErr error, payload interface{}, driverID string) error {
	if driverErr == nil {
		return nil
	}
	return &DriverError{
		Code:     mapDriverErrorToCode(driverErr.Error(), driverID),
		Original: driverErr,
		Details:  payload,
	}
}

func mapDriverErrorToCode(msg, driverID string) error {
	m, ok := DriverErrorMappings[driverID]
	if !ok {
		m = DriverErrorMappings["generic"]
	}

	upper := strings.ToUpper(msg)
	for _, token := range m.NoChannel {
		if strings.Contains(upper, token) {
			return ErrNoChannel
		}
	}
	for _, token := range m.Unsupported {
		if strings.Contains(upper, token) {
			return ErrUnsupported
		}
	}
	for _, token := range m.Busy {
		if strings.Contains(upper, token) {
			return ErrBusy
		}
	}
	for _, token := range m.Unavailable {
		if strings.Contains(upper, token) {
			return ErrUnavailable
		}
	}
	return ErrInternal
}
