package drivers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfjsystems/virtbench/instrument"
	"github.com/pfjsystems/virtbench/protocol"
)

func TestVSourceQuantization(t *testing.T) {
	tests := []struct {
		set  string
		want string
	}{
		{"0", "0.000"},
		{"2.5", "2.500"},
		{"-7", "-7.000"},
		{"7", "7.000"},
		{"12", "12.000"},
		{"20", "19.895"}, // coarse dial lands on 19.8, fine dial adds 95 mV
		{"-20", "-15.000"},
		{"40", "30.000"},
	}
	for _, tt := range tests {
		t.Run(tt.set, func(t *testing.T) {
			vs := mustBuild(t, "vsource", "vs", nil)
			dev := vs.Device()
			assert.Equal(t, protocol.Ack, dispatchOne(t, dev, "volt "+tt.set))
			assert.Equal(t, tt.want, dispatchOne(t, dev, "volt?"))
		})
	}
}

func TestVSourceBadArgumentKeepsState(t *testing.T) {
	vs := mustBuild(t, "vsource", "vs", nil)
	dev := vs.Device()
	dispatchOne(t, dev, "volt 2.5")

	// rejected values still ack but leave the level alone
	assert.Equal(t, protocol.Ack, dispatchOne(t, dev, "volt abc"))
	assert.Equal(t, protocol.Ack, dispatchOne(t, dev, "volt"))
	assert.Equal(t, "2.500", dispatchOne(t, dev, "volt?"))
}

func TestVSourceOutputSignal(t *testing.T) {
	inst := mustBuild(t, "vsource", "vs", instrument.Options{"voltage": 2.5, "noise": false})
	vs, ok := inst.(*VSource)
	require.True(t, ok)

	wf := vs.OutputSignal()
	require.Len(t, wf, 10)
	for _, v := range wf {
		assert.Equal(t, 2.5, v)
	}

	vs.SetSampler(fixedSampler{dt: 1e-6, points: 25})
	assert.Len(t, vs.OutputSignal(), 25)

	vs.SetNoise(true)
	wf = vs.OutputSignal()
	exact := 0
	for _, v := range wf {
		assert.InDelta(t, 2.5, v, vsourceNoise/2)
		if v == 2.5 {
			exact++
		}
	}
	assert.Less(t, exact, len(wf))
}

func TestVSourceIdentity(t *testing.T) {
	vs := mustBuild(t, "vsource", "vs", nil)
	assert.Equal(t, vsourceIDN, dispatchOne(t, vs.Device(), "*idn?"))
	assert.Equal(t, 6.4, vs.(*VSource).Impedance())
}
