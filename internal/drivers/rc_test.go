package drivers

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfjsystems/virtbench/instrument"
	"github.com/pfjsystems/virtbench/internal/waveform"
	"github.com/pfjsystems/virtbench/protocol"
)

func TestRCSettings(t *testing.T) {
	c := mustBuild(t, "rc", "rc", nil)
	dev := c.Device()

	assert.Equal(t, "C", dispatchOne(t, dev, "out?"))
	assert.Equal(t, protocol.Ack, dispatchOne(t, dev, "out r"))
	assert.Equal(t, "R", dispatchOne(t, dev, "out?"))
	assert.Equal(t, protocol.Ack, dispatchOne(t, dev, "out C"))
	assert.Equal(t, "C", dispatchOne(t, dev, "out?"))

	// other taps ack without switching
	dispatchOne(t, dev, "out x")
	assert.Equal(t, "C", dispatchOne(t, dev, "out?"))

	dispatchOne(t, dev, "c 4.7")
	assert.InEpsilon(t, 4.7, asFloat(t, dispatchOne(t, dev, "c?")), 1e-9)
	dispatchOne(t, dev, "r 220")
	assert.InEpsilon(t, 220, asFloat(t, dispatchOne(t, dev, "r?")), 1e-9)

	// zero and negative parts keep the previous value
	dispatchOne(t, dev, "c 0")
	assert.InEpsilon(t, 4.7, asFloat(t, dispatchOne(t, dev, "c?")), 1e-9)
	dispatchOne(t, dev, "r -5")
	assert.InEpsilon(t, 220, asFloat(t, dispatchOne(t, dev, "r?")), 1e-9)
}

func TestRCStepResponse(t *testing.T) {
	inst := mustBuild(t, "rc", "rc", instrument.Options{"c": 1.0, "r": 1000.0})
	c := inst.(*RC)

	// a DC step through RC: Vc climbs toward the input level
	src := &stubSource{data: waveform.Constant(1, 500), imp: 6.4}
	require.NoError(t, c.AddInput(src))
	c.SetSampler(fixedSampler{dt: 0.01, points: 500}) // 10 time constants

	vc := c.OutputSignal()
	require.Len(t, vc, 500)
	assert.InDelta(t, 0, vc[0], 1e-9)
	assert.InDelta(t, 1, vc[499], 0.01)

	// the resistor sees the rest of the input
	dispatchOne(t, c.Device(), "out r")
	vr := c.OutputSignal()
	require.Len(t, vr, 500)
	assert.InDelta(t, 1, vr[0], 1e-9)
	assert.InDelta(t, 0, vr[499], 0.01)

	// the fixture mutes the upstream noise before measuring
	calls := src.noiseCalls()
	require.NotEmpty(t, calls)
	assert.False(t, calls[0])
}

func TestRCTimeConstant(t *testing.T) {
	inst := mustBuild(t, "rc", "rc", instrument.Options{"c": 1.0, "r": 1000.0})
	c := inst.(*RC)
	require.NoError(t, c.AddInput(&stubSource{data: waveform.Constant(1, 1000)}))
	c.SetSampler(fixedSampler{dt: 1e-3, points: 1000}) // exactly one tau

	vc := c.OutputSignal()
	assert.InDelta(t, 1-math.Exp(-1), vc[999], 0.01)
}

func TestRCUnwired(t *testing.T) {
	c := mustBuild(t, "rc", "rc", nil).(*RC)

	wf := c.OutputSignal()
	require.Len(t, wf, rcDefaultPts)
	for _, v := range wf {
		assert.Zero(t, v)
	}

	// defaults when nothing dictates the window
	assert.Equal(t, rcDefaultPts, c.OutputPoints())
	assert.InEpsilon(t, 2/rcDefaultFreq, c.OutputSampleTime(), 1e-9)
	assert.Equal(t, rcImpedance, c.Impedance())
}

func TestRCSamplerPassthrough(t *testing.T) {
	c := mustBuild(t, "rc", "rc", nil).(*RC)
	c.SetSampler(fixedSampler{dt: 0.25, points: 64})
	assert.Equal(t, 0.25, c.OutputSampleTime())
	assert.Equal(t, 64, c.OutputPoints())
}

func TestRCIdentity(t *testing.T) {
	c := mustBuild(t, "rc", "rc", nil)
	assert.Equal(t, rcIDN, dispatchOne(t, c.Device(), "*idn?"))
}
