package drivers

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfjsystems/virtbench/protocol"
)

func asFloat(t *testing.T, resp string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(resp, 64)
	require.NoError(t, err, "response %q is not numeric", resp)
	return v
}

func TestSigGenFreqRanges(t *testing.T) {
	tests := []struct {
		set  string
		want float64
	}{
		{"5", 5},
		{"440", 440},
		{"12344", 12340}, // the 10 kHz range dial resolves 10 Hz
		{"1e6", 1e6},
		{"250e6", 250e6},
		{"2e9", 2e9},
		{"0.01", 0.1}, // clamps at the low limit
		{"99e9", 10e9},
	}
	for _, tt := range tests {
		t.Run(tt.set, func(t *testing.T) {
			g := mustBuild(t, "siggen", "sg", nil)
			dev := g.Device()
			assert.Equal(t, protocol.Ack, dispatchOne(t, dev, "freq:freq "+tt.set))
			got := asFloat(t, dispatchOne(t, dev, "freq:freq?"))
			assert.InEpsilon(t, tt.want, got, 1e-9)
		})
	}
}

func TestSigGenAmpAndOffset(t *testing.T) {
	g := mustBuild(t, "siggen", "sg", nil)
	dev := g.Device()

	dispatchOne(t, dev, "amp:amp 0.5")
	assert.InEpsilon(t, 0.5, asFloat(t, dispatchOne(t, dev, "amp:amp?")), 1e-9)

	// below the floor and above the ceiling both saturate
	dispatchOne(t, dev, "amp:amp 1e-9")
	assert.InEpsilon(t, 1e-3, asFloat(t, dispatchOne(t, dev, "amp:amp?")), 1e-9)
	dispatchOne(t, dev, "amp:amp 5000")
	assert.InEpsilon(t, 100, asFloat(t, dispatchOne(t, dev, "amp:amp?")), 1e-9)

	dispatchOne(t, dev, "amp:offs -3.2")
	assert.InEpsilon(t, -3.2, asFloat(t, dispatchOne(t, dev, "amp:offs?")), 1e-9)
	dispatchOne(t, dev, "amp:offs 500")
	assert.InEpsilon(t, 100, asFloat(t, dispatchOne(t, dev, "amp:offs?")), 1e-9)
}

func TestSigGenWaveSelection(t *testing.T) {
	g := mustBuild(t, "siggen", "sg", nil)
	dev := g.Device()

	assert.Equal(t, "sine", dispatchOne(t, dev, "wave:wave?"))
	for _, shape := range []string{"triangle", "square", "saw", "rsaw", "pulse", "sine"} {
		assert.Equal(t, protocol.Ack, dispatchOne(t, dev, "wave:wave "+shape))
		assert.Equal(t, shape, dispatchOne(t, dev, "wave:wave?"))
	}

	// unknown shapes ack and keep the current one
	assert.Equal(t, protocol.Ack, dispatchOne(t, dev, "wave:wave sinc"))
	assert.Equal(t, "sine", dispatchOne(t, dev, "wave:wave?"))
}

func TestSigGenDutyClamp(t *testing.T) {
	g := mustBuild(t, "siggen", "sg", nil)
	dev := g.Device()

	dispatchOne(t, dev, "wave:dc 30")
	assert.InEpsilon(t, 30, asFloat(t, dispatchOne(t, dev, "wave:dc?")), 1e-6)

	// the risetime floor keeps a pulse from filling the whole period
	dispatchOne(t, dev, "wave:dc 100")
	got := asFloat(t, dispatchOne(t, dev, "wave:dc?"))
	assert.Less(t, got, 100.0)
	assert.Greater(t, got, 99.0)
}

func TestSigGenOutputToggleAndSignal(t *testing.T) {
	inst := mustBuild(t, "siggen", "sg", nil)
	g, ok := inst.(*SigGen)
	require.True(t, ok)
	dev := g.Device()
	g.SetNoise(false)

	assert.Equal(t, "0", dispatchOne(t, dev, "out?"))

	// output off synthesizes silence
	g.SetSampler(fixedSampler{dt: 2e-6, points: 200})
	wf := g.OutputSignal()
	require.Len(t, wf, 200)
	for _, v := range wf {
		assert.Zero(t, v)
	}

	dispatchOne(t, dev, "out on")
	assert.Equal(t, "1", dispatchOne(t, dev, "out?"))

	wf = g.OutputSignal()
	require.Len(t, wf, 200)
	var peak float64
	for _, v := range wf {
		peak = math.Max(peak, math.Abs(v))
	}
	// sine peaks at half the configured amplitude
	assert.InDelta(t, 0.5, peak, 0.05)
}

func TestSigGenPhaseLock(t *testing.T) {
	inst := mustBuild(t, "siggen", "sg", nil)
	g := inst.(*SigGen)
	dev := g.Device()
	g.SetNoise(false)
	g.SetSampler(fixedSampler{dt: 2e-6, points: 1000})
	dispatchOne(t, dev, "out on")

	// pinning the phase reference half a turn apart flips the trace
	g.SetPhaseRef(0)
	a := g.OutputSignal()
	g.SetPhaseRef(math.Pi)
	b := g.OutputSignal()
	require.Len(t, b, len(a))
	assert.InDelta(t, -a[250], b[250], 0.05)
	assert.InDelta(t, -a[500], b[500], 0.05)
}

func TestSigGenChirpSettings(t *testing.T) {
	g := mustBuild(t, "siggen", "sg", nil)
	dev := g.Device()

	assert.Equal(t, "0", dispatchOne(t, dev, "freq:chrp?"))
	dispatchOne(t, dev, "freq:chrp 1")
	assert.Equal(t, "1", dispatchOne(t, dev, "freq:chrp?"))

	dispatchOne(t, dev, "freq:cvar 25")
	assert.InEpsilon(t, 25, asFloat(t, dispatchOne(t, dev, "freq:cvar?")), 1e-9)
	dispatchOne(t, dev, "freq:cper 0.5")
	assert.InEpsilon(t, 0.5, asFloat(t, dispatchOne(t, dev, "freq:cper?")), 1e-9)

	// a zero period would divide the chirp phase by zero
	assert.Equal(t, protocol.Ack, dispatchOne(t, dev, "freq:cper 0"))
	assert.InEpsilon(t, 0.5, asFloat(t, dispatchOne(t, dev, "freq:cper?")), 1e-9)
}

func TestSigGenIdentity(t *testing.T) {
	g := mustBuild(t, "siggen", "sg", nil)
	assert.Equal(t, siggenIDN, dispatchOne(t, g.Device(), "*idn?"))
	assert.Equal(t, 50.0, g.(*SigGen).Impedance())
	assert.Equal(t, 1e6, g.(*SigGen).OutputFreq())
}
