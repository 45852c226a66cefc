package hal

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeNil(t *testing.T) {
	assert.NoError(t, Normalize(nil, nil))
}

func TestNormalizeHostapdTokens(t *testing.T) {
	cases := []struct {
		msg  string
		want error
	}{
		{"ACS_FAILED: survey incomplete", ErrNoChannel},
		{"channel_list_empty", ErrNoChannel},
		{"UNSUPPORTED_CONFIG: sae on legacy chip", ErrUnsupported},
		{"iface_busy", ErrBusy},
		{"HOSTAPD_NOT_RUNNING", ErrUnavailable},
		{"FIRMWARE_CRASH detected", ErrUnavailable},
		{"something entirely else", ErrInternal},
	}
	for _, tc := range cases {
		err := NormalizeWithDriver(errors.New(tc.msg), nil, "hostapd")
		assert.ErrorIs(t, err, tc.want, tc.msg)
	}
}

func TestNormalizeUnknownDriverFallsBackToGeneric(t *testing.T) {
	err := NormalizeWithDriver(errors.New("device OFFLINE"), nil, "no-such-driver")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDriverErrorPreservesOriginal(t *testing.T) {
	orig := fmt.Errorf("IFACE_BUSY on wlan1")
	err := NormalizeWithDriver(orig, map[string]string{"iface": "wlan1"}, "hostapd")

	var de *DriverError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, ErrBusy, de.Code)
	assert.Equal(t, orig, de.Original)
	assert.NotNil(t, de.Details)
	assert.Contains(t, err.Error(), "IFACE_BUSY")
}
