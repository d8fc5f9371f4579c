package drivers

import (
	"fmt"
	"sync"

	"github.com/pfjsystems/virtbench/instrument"
	"github.com/pfjsystems/virtbench/internal/logging"
	"github.com/pfjsystems/virtbench/internal/waveform"
	"github.com/pfjsystems/virtbench/protocol"
)

const vsourceIDN = "PFJ Systems Inc., Virtual Voltage Source VVS1, S/N V5437"

const (
	vsourceNoise     = 0.003 // output noise, peak to peak volts
	vsourceImpedance = 6.4
	vsourcePoints    = 10
)

// VSource models a bench DC voltage source. The requested voltage
// snaps to the positions of a coarse and a fine dial, so readbacks
// report the level the hardware can actually produce.
//
// Commands: volt, volt?.
type VSource struct {
	dev *instrument.Device

	mu       sync.Mutex
	voltage  float64
	sampler  instrument.Sampler
	addNoise bool
}

func init() {
	instrument.RegisterDriver("vsource", newVSource)
}

func newVSource(name string, opts instrument.Options) (instrument.Instrument, error) {
	v := &VSource{
		voltage:  quantizeVolt(opts.Float("voltage", 0)),
		addNoise: opts.Bool("noise", true),
	}
	v.dev = instrument.NewDevice(name, logging.Named(name))
	v.dev.SetIDN(vsourceIDN)

	root := v.dev.Root()
	root.Register("volt?", v.getVolt)
	root.Register("volt", v.setVolt)
	return v, nil
}

// Device returns the command surface.
func (v *VSource) Device() *instrument.Device { return v.dev }

func (v *VSource) getVolt(protocol.Args) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return fmt.Sprintf("%.3f", v.voltage), nil
}

func (v *VSource) setVolt(args protocol.Args) (string, error) {
	val, err := finiteArg(args, 0)
	if err != nil {
		return "", err
	}
	v.mu.Lock()
	v.voltage = quantizeVolt(val)
	v.mu.Unlock()
	return "", nil
}

// quantizeVolt snaps a requested voltage to the dial mechanics of the
// front panel. The value picks one of four ranges; the coarse dial
// holds integer percent positions across that range and the fine dial
// adds up to half a volt in 5 mV steps. Requests beyond the outermost
// ranges saturate at the range limits.
func quantizeVolt(val float64) float64 {
	var span, base, lo, hi float64
	var mult int

	switch {
	case val < -10 || (val > 10 && val <= 15):
		span, base, lo, hi = 30, -15, -15, 15
		mult = int(100*(val/30) + 50)
	case (val < -5 && val >= -10) || (val > 5 && val <= 10):
		span, base, lo, hi = 20, -10, -10, 10
		mult = int(100*(val/20) + 50)
	case val >= -5 && val <= 5:
		span, base, lo, hi = 10, -5, -5, 5
		mult = int(100*(val/10) + 50)
	default: // above 15 V only the unipolar 0-30 V range reaches
		span, base, lo, hi = 30, 0, 0, 30
		mult = int(100 * (val / 30))
	}

	coarse := float64(mult)/100*span + base
	fine := clampInt(int(100*(val-coarse)), -100, 100)
	mult = clampInt(mult, 0, 100)

	out := float64(mult)/100*span + base + 0.5*float64(fine)/100
	return waveform.Clamp(out, lo, hi)
}

// SetSampler points the source at the instrument that defines how many
// points a waveform readout carries.
func (v *VSource) SetSampler(s instrument.Sampler) {
	v.mu.Lock()
	v.sampler = s
	v.mu.Unlock()
}

// SetNoise switches the additive output noise.
func (v *VSource) SetNoise(on bool) {
	v.mu.Lock()
	v.addNoise = on
	v.mu.Unlock()
}

// Impedance is the source output impedance in ohms.
func (v *VSource) Impedance() float64 { return vsourceImpedance }

// OutputSignal renders the DC level as a flat trace with a little
// thermal noise on top.
func (v *VSource) OutputSignal() []float64 {
	v.mu.Lock()
	sampler := v.sampler
	v.mu.Unlock()

	n := vsourcePoints
	if sampler != nil {
		n = sampler.OutputPoints()
	}

	v.mu.Lock()
	volt, noisy := v.voltage, v.addNoise
	v.mu.Unlock()

	wf := waveform.Constant(volt, n)
	if noisy {
		waveform.AddNoise(wf, vsourceNoise)
	}
	return wf
}
