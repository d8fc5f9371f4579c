package drivers

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfjsystems/virtbench/instrument"
)

func measFloat(t *testing.T, dev *instrument.Device, line string) float64 {
	t.Helper()
	reply := dispatchOne(t, dev, line)
	val, err := strconv.ParseFloat(reply, 64)
	require.NoError(t, err, reply)
	return val
}

func TestMultimeterOpenProbe(t *testing.T) {
	mm := mustBuild(t, "multimeter", "mm", nil)
	dev := mm.Device()

	assert.InDelta(t, 0, measFloat(t, dev, "meas:volt?"), multimeterVoltNoise/2)
	assert.InDelta(t, 0, measFloat(t, dev, "meas:curr?"), multimeterCurrNoise/2)
	assert.InDelta(t, multimeterOpenOhms, measFloat(t, dev, "meas:ohms?"), multimeterOhmsNoise/2)
}

func TestMultimeterWiredSource(t *testing.T) {
	inst := mustBuild(t, "multimeter", "mm", nil)
	mm := inst.(*Multimeter)
	src := &stubSource{data: []float64{2, 2, 2, 2}, imp: 50}
	require.NoError(t, mm.AddInput(src))

	dev := mm.Device()
	assert.InDelta(t, 2, measFloat(t, dev, "meas:volt?"), multimeterVoltNoise/2)
	assert.InDelta(t, 0.04, measFloat(t, dev, "meas:curr?"), multimeterCurrNoise/2)
	assert.InDelta(t, 50, measFloat(t, dev, "meas:ohms?"), multimeterOhmsNoise/2)

	// every mode integrates a fresh trace
	assert.Equal(t, 3, src.pullCount())
}

func TestMultimeterSingleInput(t *testing.T) {
	mm := mustBuild(t, "multimeter", "mm", nil).(*Multimeter)
	require.NoError(t, mm.AddInput(&stubSource{}))

	err := mm.AddInput(&stubSource{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already wired")
}

func TestMultimeterSampler(t *testing.T) {
	mm := mustBuild(t, "multimeter", "mm", nil).(*Multimeter)
	assert.Equal(t, 0.1, mm.OutputSampleTime())
	assert.Equal(t, 10, mm.OutputPoints())
	assert.Equal(t, multimeterIDN, dispatchOne(t, mm.Device(), "*idn?"))
}
