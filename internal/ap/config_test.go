package ap

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Configuration {
	return Configuration{
		SSID:       "lab",
		Security:   SecurityWPA2PSK,
		Passphrase: "hunter22",
		Bands:      []Band{Band2GHz},
	}
}

func TestConfigurationValidate(t *testing.T) {
	assert.NoError(t, validConfig().Validate())

	c := validConfig()
	c.SSID = ""
	assert.ErrorIs(t, c.Validate(), ErrEmptySSID)

	c = validConfig()
	c.Bands = nil
	assert.ErrorIs(t, c.Validate(), ErrNoBands)

	c = validConfig()
	c.Bands = []Band{Band2GHz, Band5GHz, Band6GHz}
	assert.ErrorIs(t, c.Validate(), ErrTooManyInstances)

	c = validConfig()
	c.Bands = []Band{Band6GHz}
	assert.ErrorIs(t, c.Validate(), ErrSecurityBandConflict)

	c = validConfig()
	c.Security = SecurityWPA3SAE
	c.Bands = []Band{Band6GHz}
	assert.NoError(t, c.Validate())

	c = validConfig()
	c.Passphrase = ""
	assert.ErrorIs(t, c.Validate(), ErrPassphraseRequired)

	c = validConfig()
	c.Security = SecurityOpen
	c.Passphrase = ""
	assert.NoError(t, c.Validate())
}

func TestRestartRequired(t *testing.T) {
	base := validConfig()

	runtime := base.Clone()
	runtime.MaxClients = 4
	runtime.BlockedClients = []MAC{MustMAC("aa:bb:cc:dd:ee:ff")}
	runtime.AutoShutdownEnabled = true
	runtime.ShutdownTimeout = 5 * time.Minute
	assert.False(t, RestartRequired(base, runtime))

	ssid := base.Clone()
	ssid.SSID = "other"
	assert.True(t, RestartRequired(base, ssid))

	sec := base.Clone()
	sec.Security = SecurityWPA3SAE
	assert.True(t, RestartRequired(base, sec))

	band := base.Clone()
	band.Bands = []Band{Band5GHz}
	assert.True(t, RestartRequired(base, band))

	bridged := base.Clone()
	bridged.Bands = []Band{Band2GHz, Band5GHz}
	assert.True(t, RestartRequired(base, bridged))
}

func TestApplyRuntimeKeepsIdentity(t *testing.T) {
	base := validConfig()
	next := base.Clone()
	next.SSID = "ignored"
	next.MaxClients = 7
	next.ClientControlByUser = true
	next.AllowedClients = []MAC{MustMAC("00:11:22:33:44:55")}

	out := ApplyRuntime(base, next)
	assert.Equal(t, "lab", out.SSID)
	assert.Equal(t, 7, out.MaxClients)
	assert.True(t, out.ClientControlByUser)
	require.Len(t, out.AllowedClients, 1)
}

func TestConfigurationCloneIsDeep(t *testing.T) {
	c := validConfig()
	c.BlockedClients = []MAC{MustMAC("aa:bb:cc:dd:ee:ff")}
	c.VendorData = map[string]string{"oui": "001122"}

	cp := c.Clone()
	cp.BlockedClients[0] = MustMAC("00:00:00:00:00:01")
	cp.VendorData["oui"] = "mutated"
	cp.Bands[0] = Band6GHz

	assert.Equal(t, MustMAC("aa:bb:cc:dd:ee:ff"), c.BlockedClients[0])
	assert.Equal(t, "001122", c.VendorData["oui"])
	assert.Equal(t, Band2GHz, c.Bands[0])
}

func TestBandHelpers(t *testing.T) {
	c := validConfig()
	c.Bands = []Band{Band2GHz, Band5GHz}
	assert.True(t, c.Bridged())
	assert.Equal(t, Band2GHz|Band5GHz, c.BandUnion())
	assert.True(t, (Band5GHz | Band6GHz).RequiresCountryCode())
	assert.False(t, Band2GHz.RequiresCountryCode())
	assert.Equal(t, "2.4GHz|5GHz", (Band2GHz | Band5GHz).String())
}
