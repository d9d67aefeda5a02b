package audio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	devices     []Device
	listErr     error
	loopback    Device
	loopbackErr error

	listCalls     int
	loopbackCalls int
}

func (f *fakeProvider) InputDevices() ([]Device, error) {
	f.listCalls++
	return f.devices, f.listErr
}

func (f *fakeProvider) DefaultLoopback() (Device, error) {
	f.loopbackCalls++
	return f.loopback, f.loopbackErr
}

func TestResolve_PrefersVirtualCable(t *testing.T) {
	p := &fakeProvider{
		devices: []Device{
			{Index: 0, Name: "Built-in Microphone"},
			{Index: 3, Name: "CABLE Output (VB-Audio Virtual Cable)"},
			{Index: 5, Name: "BlackHole 2ch"},
		},
		loopback: Device{Index: 9, Name: "Monitor of Speakers"},
	}
	var out bytes.Buffer

	s, err := NewResolver(p, []string{"cable", "blackhole"}, &out).Resolve(ModeLive)
	require.NoError(t, err)

	assert.Equal(t, VirtualCable{DeviceIndex: 3, DeviceName: "CABLE Output (VB-Audio Virtual Cable)"}, s)
	assert.Zero(t, p.loopbackCalls, "loopback must not be probed when a cable exists")
	assert.Contains(t, out.String(), "encontrado no índice 3")
}

func TestResolve_KeywordMatchIsCaseInsensitive(t *testing.T) {
	p := &fakeProvider{devices: []Device{{Index: 1, Name: "blackhole 16ch"}}}

	s, err := NewResolver(p, []string{" BlackHole "}, nil).Resolve(ModeLive)
	require.NoError(t, err)
	assert.Equal(t, VirtualCable{DeviceIndex: 1, DeviceName: "blackhole 16ch"}, s)
}

func TestResolve_FallsBackToLoopback(t *testing.T) {
	p := &fakeProvider{
		devices:  []Device{{Index: 0, Name: "Built-in Microphone"}},
		loopback: Device{Index: 7, Name: "Monitor of Built-in Audio Analog Stereo"},
	}
	var out bytes.Buffer

	s, err := NewResolver(p, []string{"cable", "blackhole"}, &out).Resolve(ModeLive)
	require.NoError(t, err)

	assert.Equal(t, SystemLoopback{DeviceIndex: 7, DeviceName: "Monitor of Built-in Audio Analog Stereo"}, s)
	assert.Contains(t, out.String(), "Cabo de áudio virtual não encontrado")
	assert.Contains(t, out.String(), "Fallback")
	assert.Contains(t, out.String(), "Sucesso! Usando fallback")
}

func TestResolve_FallsBackWhenEnumerationFails(t *testing.T) {
	p := &fakeProvider{
		listErr:  errors.New("host api unavailable"),
		loopback: Device{Index: 2, Name: "Stereo Mix"},
	}

	s, err := NewResolver(p, []string{"cable"}, nil).Resolve(ModeLive)
	require.NoError(t, err)
	assert.IsType(t, SystemLoopback{}, s)
}

func TestResolve_NoDeviceFails(t *testing.T) {
	loopErr := errors.New("no default speaker")
	p := &fakeProvider{
		devices:     []Device{{Index: 0, Name: "Built-in Microphone"}},
		loopbackErr: loopErr,
	}
	var out bytes.Buffer

	s, err := NewResolver(p, []string{"cable", "blackhole"}, &out).Resolve(ModeLive)
	assert.Nil(t, s)

	var noDev *NoCaptureDeviceError
	require.ErrorAs(t, err, &noDev)
	assert.ErrorIs(t, err, loopErr)
	assert.Contains(t, out.String(), "VB-CABLE")
	assert.Contains(t, out.String(), "BlackHole")
}

func TestResolve_LocalModeNeverProbes(t *testing.T) {
	p := &fakeProvider{devices: []Device{{Index: 3, Name: "CABLE Output"}}}

	s, err := NewResolver(p, []string{"cable"}, nil).Resolve(ModeLocal)
	require.NoError(t, err)

	assert.Equal(t, DefaultMicrophone{}, s)
	assert.Zero(t, p.listCalls)
	assert.Zero(t, p.loopbackCalls)
}

func TestResolve_Deterministic(t *testing.T) {
	p := &fakeProvider{
		devices: []Device{
			{Index: 4, Name: "CABLE-A Output"},
			{Index: 6, Name: "CABLE-B Output"},
		},
	}
	r := NewResolver(p, []string{"cable"}, nil)

	for i := 0; i < 5; i++ {
		s, err := r.Resolve(ModeLive)
		require.NoError(t, err)
		assert.Equal(t, 4, s.(VirtualCable).DeviceIndex)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"1": ModeLive, " 2 ": ModeLocal, "LIVE": ModeLive, "local": ModeLocal} {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("3")
	assert.Error(t, err)
}
