package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radio-control/sapd/internal/ap"
	"github.com/radio-control/sapd/internal/hal"
)

type recordingSink struct {
	states    []hal.InterfaceState
	destroyed int
	failures  []string
	clients   [][]ap.Client
	infos     []ap.InstanceInfo
}

func (r *recordingSink) OnInterfaceStateChanged(_ string, s hal.InterfaceState) {
	r.states = append(r.states, s)
}
func (r *recordingSink) OnInterfaceDestroyed(string) { r.destroyed++ }
func (r *recordingSink) OnFailure(_, instance string) {
	r.failures = append(r.failures, instance)
}
func (r *recordingSink) OnConnectedClientsChanged(_, _ string, c []ap.Client) {
	r.clients = append(r.clients, c)
}
func (r *recordingSink) OnInfoChanged(_ string, info ap.InstanceInfo) {
	r.infos = append(r.infos, info)
}

func TestCreateInterfaceSingleAndBridged(t *testing.T) {
	d := &Driver{}
	ctx := context.Background()

	iface, err := d.CreateInterface(ctx, hal.InterfaceRequest{Bands: []ap.Band{ap.Band2GHz}})
	require.NoError(t, err)
	assert.Equal(t, "wlan1", iface)
	assert.Equal(t, []string{"wlan1"}, d.BridgedInstances(iface))

	iface, err = d.CreateInterface(ctx, hal.InterfaceRequest{
		Bands:   []ap.Band{ap.Band2GHz, ap.Band5GHz},
		Bridged: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"wlan2_0", "wlan2_1"}, d.BridgedInstances(iface))
}

func TestFailureInjection(t *testing.T) {
	boom := errors.New("boom")
	ctx := context.Background()

	d := &Driver{CreateErr: boom}
	_, err := d.CreateInterface(ctx, hal.InterfaceRequest{})
	assert.ErrorIs(t, err, boom)

	d = &Driver{StartErr: boom}
	_, err = d.CreateInterface(ctx, hal.InterfaceRequest{})
	require.NoError(t, err)
	assert.ErrorIs(t, d.StartAccessPoint(ctx, d.Interface(), ap.Configuration{}), boom)

	d = &Driver{RegisterErr: boom}
	assert.ErrorIs(t, d.RegisterEventSink("wlan1", &recordingSink{}), boom)
}

func TestEventsReachRegisteredSink(t *testing.T) {
	d := &Driver{}
	ctx := context.Background()
	iface, err := d.CreateInterface(ctx, hal.InterfaceRequest{Bridged: true})
	require.NoError(t, err)

	sink := &recordingSink{}
	require.NoError(t, d.RegisterEventSink(iface, sink))

	d.PushInterfaceState(hal.InterfaceUp)
	d.PushClients(iface+"_0", []ap.Client{{MAC: ap.MustMAC("aa:bb:cc:dd:ee:ff")}})
	d.PushInfo(ap.InstanceInfo{Instance: iface + "_0", Frequency: 2437})
	d.PushFailure(iface + "_1")
	d.PushInterfaceDestroyed()

	assert.Equal(t, []hal.InterfaceState{hal.InterfaceUp}, sink.states)
	require.Len(t, sink.clients, 1)
	require.Len(t, sink.infos, 1)
	assert.Equal(t, 2437, sink.infos[0].Frequency)
	assert.Equal(t, []string{iface + "_1"}, sink.failures)
	assert.Equal(t, 1, sink.destroyed)
}

func TestRemoveBridgedInstance(t *testing.T) {
	d := &Driver{}
	ctx := context.Background()
	iface, err := d.CreateInterface(ctx, hal.InterfaceRequest{Bridged: true})
	require.NoError(t, err)

	require.NoError(t, d.RemoveBridgedInstance(ctx, iface, iface+"_1"))
	assert.Equal(t, []string{iface + "_0"}, d.BridgedInstances(iface))
	assert.Equal(t, []string{iface + "_1"}, d.RemovedInstances())
}

func TestDisconnectRecording(t *testing.T) {
	d := &Driver{}
	mac := ap.MustMAC("aa:bb:cc:dd:ee:ff")
	require.NoError(t, d.ForceClientDisconnect(context.Background(), "wlan1", mac, ap.DisconnectBlockedByUser))

	calls := d.Disconnects()
	require.Len(t, calls, 1)
	assert.Equal(t, DisconnectCall{Iface: "wlan1", MAC: mac, Reason: ap.DisconnectBlockedByUser}, calls[0])
}
