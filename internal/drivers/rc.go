package drivers

import (
	"fmt"
	"sync"

	"github.com/pfjsystems/virtbench/instrument"
	"github.com/pfjsystems/virtbench/internal/logging"
	"github.com/pfjsystems/virtbench/internal/waveform"
	"github.com/pfjsystems/virtbench/protocol"
)

const rcIDN = "PFJ Systems Inc., Virtual RC Circuit VRC1, S/N R0934567"

const (
	rcImpedance   = 1.0
	rcDefaultFreq = 1000.0
	rcDefaultPts  = 1000
)

// RC models a first order RC filter stage between two instruments. The
// input source drives the circuit model, and the output tap picks
// either the capacitor voltage or the resistor voltage. Measuring
// through the circuit forces the upstream source's noise off, the way
// the real fixture shorts it out.
//
// Commands: out, out?, c, c?, r, r?. Capacitance is in microfarads,
// resistance in ohms.
type RC struct {
	dev *instrument.Device

	mu      sync.Mutex
	capUF   float64
	res     float64
	tapC    bool
	input   instrument.Source
	sampler instrument.Sampler
}

func init() {
	instrument.RegisterDriver("rc", newRC)
}

func newRC(name string, opts instrument.Options) (instrument.Instrument, error) {
	c := &RC{
		capUF: opts.Float("c", 1.0),
		res:   opts.Float("r", 1000.0),
		tapC:  true,
	}
	c.dev = instrument.NewDevice(name, logging.Named(name))
	c.dev.SetIDN(rcIDN)

	root := c.dev.Root()
	root.Register("out?", c.getTap)
	root.Register("out", c.setTap)
	root.Register("c?", c.getC)
	root.Register("c", c.setC)
	root.Register("r?", c.getR)
	root.Register("r", c.setR)
	return c, nil
}

// Device returns the command surface.
func (c *RC) Device() *instrument.Device { return c.dev }

func (c *RC) getTap(protocol.Args) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tapC {
		return "C", nil
	}
	return "R", nil
}

func (c *RC) setTap(args protocol.Args) (string, error) {
	s, err := args.Word(0)
	if err != nil {
		return "", err
	}
	switch s {
	case "c":
		c.mu.Lock()
		c.tapC = true
		c.mu.Unlock()
	case "r":
		c.mu.Lock()
		c.tapC = false
		c.mu.Unlock()
	default:
		return "", protocol.NewBadArgument(s, "tap is c or r")
	}
	return "", nil
}

func (c *RC) getC(protocol.Args) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.FormatFloat(c.capUF), nil
}

func (c *RC) setC(args protocol.Args) (string, error) {
	v, err := finiteArg(args, 0)
	if err != nil {
		return "", err
	}
	if v <= 0 {
		return "", protocol.NewBadArgument(args[0], "capacitance must be positive")
	}
	c.mu.Lock()
	c.capUF = spin(v, 3)
	c.mu.Unlock()
	return "", nil
}

func (c *RC) getR(protocol.Args) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.FormatFloat(c.res), nil
}

func (c *RC) setR(args protocol.Args) (string, error) {
	v, err := finiteArg(args, 0)
	if err != nil {
		return "", err
	}
	if v <= 0 {
		return "", protocol.NewBadArgument(args[0], "resistance must be positive")
	}
	c.mu.Lock()
	c.res = spin(v, 3)
	c.mu.Unlock()
	return "", nil
}

// AddInput wires the circuit input to one upstream source.
func (c *RC) AddInput(src instrument.Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.input != nil {
		return fmt.Errorf("%s: input already wired", c.dev.Name())
	}
	c.input = src
	return nil
}

// SetSampler points the stage at the downstream instrument that defines
// the acquisition window it relays upstream.
func (c *RC) SetSampler(s instrument.Sampler) {
	c.mu.Lock()
	c.sampler = s
	c.mu.Unlock()
}

// Impedance is the output impedance of the tap in ohms.
func (c *RC) Impedance() float64 { return rcImpedance }

// inputFreq refreshes the fundamental from the wired source.
func (c *RC) inputFreq() float64 {
	c.mu.Lock()
	input := c.input
	c.mu.Unlock()

	if fs, ok := input.(instrument.FreqSource); ok {
		return fs.OutputFreq()
	}
	return rcDefaultFreq
}

// OutputSampleTime relays the downstream window, or two periods of the
// driving signal when the stage is the end of the chain.
func (c *RC) OutputSampleTime() float64 {
	c.mu.Lock()
	sampler := c.sampler
	c.mu.Unlock()
	if sampler != nil {
		return sampler.OutputSampleTime()
	}
	return 2 / c.inputFreq()
}

// OutputPoints relays the downstream point count.
func (c *RC) OutputPoints() int {
	c.mu.Lock()
	sampler := c.sampler
	c.mu.Unlock()
	if sampler != nil {
		return sampler.OutputPoints()
	}
	return rcDefaultPts
}

// OutputSignal drives the circuit model with the input trace and
// returns the selected tap. The capacitor voltage integrates
// dVc/dt = (Vin - Vc)/RC across the window; the resistor sees the
// rest of the input.
func (c *RC) OutputSignal() []float64 {
	st := c.OutputSampleTime()
	n := c.OutputPoints()

	c.mu.Lock()
	input := c.input
	rc := c.res * 1e-6 * c.capUF
	tapC := c.tapC
	c.mu.Unlock()

	var data []float64
	if input != nil {
		if nc, ok := input.(instrument.NoiseControl); ok {
			nc.SetNoise(false)
		}
		data = input.OutputSignal()
	} else {
		data = make([]float64, n)
	}
	if len(data) == 0 {
		return nil
	}

	vc := make([]float64, len(data))
	if anyNonzero(data) && len(data) > 1 {
		ts := waveform.Linspace(0, st, len(data))
		vin := waveform.Sampled(ts, data)
		vc = waveform.Integrate(func(t, y float64) float64 {
			return (vin(t) - y) / rc
		}, 0, ts)
	}

	if tapC {
		return vc
	}
	vr := make([]float64, len(data))
	for i := range data {
		vr[i] = data[i] - vc[i]
	}
	return vr
}

func anyNonzero(data []float64) bool {
	for _, v := range data {
		if v != 0 {
			return true
		}
	}
	return false
}
