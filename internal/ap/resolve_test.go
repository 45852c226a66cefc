package ap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dualBandCap() Capability {
	return Capability{
		Channels: map[Band][]int{
			Band2GHz: {1, 6, 11},
			Band5GHz: {36, 40, 44},
			Band6GHz: {5, 21},
		},
		MaxClients: 16,
		Features:   FeatureClientForceDisconnect,
	}
}

func bridgedInput(cfg Configuration) ResolveInput {
	return ResolveInput{
		Desired:          cfg,
		Capability:       dualBandCap(),
		BridgedCreatable: true,
	}
}

func TestResolveKeepsBridgedWhenFeasible(t *testing.T) {
	in := bridgedInput(Configuration{
		SSID:     "lab",
		Security: SecurityWPA2PSK,
		Bands:    []Band{Band2GHz, Band5GHz},
	})

	out, err := Resolve(in)
	require.NoError(t, err)
	assert.Equal(t, []Band{Band2GHz, Band5GHz}, out.Bands)
	assert.True(t, out.Bridged())
}

func TestResolveDowngradesWhenBridgedNotCreatable(t *testing.T) {
	in := bridgedInput(Configuration{
		SSID:     "lab",
		Security: SecurityWPA2PSK,
		Bands:    []Band{Band2GHz, Band5GHz},
	})
	in.BridgedCreatable = false

	out, err := Resolve(in)
	require.NoError(t, err)
	require.Len(t, out.Bands, 1)
	assert.Equal(t, Band2GHz|Band5GHz, out.Bands[0])
}

func TestResolveDowngradesInWorldMode(t *testing.T) {
	in := bridgedInput(Configuration{
		SSID:     "lab",
		Security: SecurityWPA2PSK,
		Bands:    []Band{Band2GHz, Band5GHz},
	})
	in.WorldMode = true

	out, err := Resolve(in)
	require.NoError(t, err)
	assert.False(t, out.Bridged())
}

func TestResolveDowngradesOnUnsafeStationFrequency(t *testing.T) {
	in := bridgedInput(Configuration{
		SSID:     "lab",
		Security: SecurityWPA2PSK,
		Bands:    []Band{Band2GHz, Band5GHz},
	})
	in.StationFrequency = 5180
	in.Unsafe = map[int]bool{5180: true}

	out, err := Resolve(in)
	require.NoError(t, err)
	assert.False(t, out.Bridged())
}

func TestResolveSingleBandCapabilityForcesSingle(t *testing.T) {
	// A one-band capability can never yield a bridged plan.
	in := bridgedInput(Configuration{
		SSID:     "lab",
		Security: SecurityWPA2PSK,
		Bands:    []Band{Band2GHz, Band5GHz},
	})
	in.Capability = Capability{Channels: map[Band][]int{Band2GHz: {1, 6}}}

	out, err := Resolve(in)
	require.NoError(t, err)
	require.Len(t, out.Bands, 1)
	assert.Equal(t, Band2GHz, out.Bands[0])
}

func TestResolveStrips6GHzForRestrictedSecurity(t *testing.T) {
	in := bridgedInput(Configuration{
		SSID:     "lab",
		Security: SecurityWPA2PSK,
		Bands:    []Band{Band2GHz, Band5GHz | Band6GHz},
	})

	out, err := Resolve(in)
	require.NoError(t, err)
	for _, b := range out.Bands {
		assert.False(t, b.Contains(Band6GHz))
	}
}

func TestResolveKeeps6GHzForSAE(t *testing.T) {
	in := bridgedInput(Configuration{
		SSID:       "lab",
		Security:   SecurityWPA3SAE,
		Passphrase: "hunter22",
		Bands:      []Band{Band2GHz, Band5GHz | Band6GHz},
	})

	out, err := Resolve(in)
	require.NoError(t, err)
	assert.True(t, out.Bands[1].Contains(Band6GHz))
}

func TestResolveNoUsableChannel(t *testing.T) {
	in := bridgedInput(Configuration{
		SSID:     "lab",
		Security: SecurityWPA2PSK,
		Bands:    []Band{Band5GHz},
	})
	in.Unsafe = map[int]bool{5180: true, 5200: true, 5220: true}

	_, err := Resolve(in)
	assert.ErrorIs(t, err, ErrNoUsableChannel)
}

func TestResolveUnsupportedBands(t *testing.T) {
	in := bridgedInput(Configuration{
		SSID:     "lab",
		Security: SecurityWPA2PSK,
		Bands:    []Band{Band5GHz},
	})
	in.Capability = Capability{Channels: map[Band][]int{Band2GHz: {1}}}

	_, err := Resolve(in)
	assert.ErrorIs(t, err, ErrUnsupportedConfiguration)
}

func TestResolveDowngrades11BEWithoutFeature(t *testing.T) {
	in := bridgedInput(Configuration{
		SSID:        "lab",
		Security:    SecurityWPA2PSK,
		Bands:       []Band{Band5GHz},
		IEEE80211BE: true,
	})

	out, err := Resolve(in)
	require.NoError(t, err)
	assert.False(t, out.IEEE80211BE)
}

func TestResolveIdempotent(t *testing.T) {
	// Resolving twice on identical input yields identical output, and
	// resolving the output again is a fixed point.
	in := bridgedInput(Configuration{
		SSID:     "lab",
		Security: SecurityWPA2PSK,
		Bands:    []Band{Band2GHz, Band5GHz},
	})
	in.BridgedCreatable = false

	first, err := Resolve(in)
	require.NoError(t, err)
	second, err := Resolve(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	in.Desired = first
	again, err := Resolve(in)
	require.NoError(t, err)
	assert.Equal(t, first.Bands, again.Bands)
}

func TestHighestFrequencyInstance(t *testing.T) {
	infos := map[string]InstanceInfo{
		"wlan1": {Instance: "wlan1", Frequency: 2437},
		"wlan2": {Instance: "wlan2", Frequency: 5180},
	}
	assert.Equal(t, "wlan2", HighestFrequencyInstance(infos))
	assert.Equal(t, "", HighestFrequencyInstance(nil))
}
