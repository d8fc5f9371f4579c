package drivers

import (
	"fmt"
	"sync"

	"github.com/pfjsystems/virtbench/instrument"
	"github.com/pfjsystems/virtbench/internal/logging"
	"github.com/pfjsystems/virtbench/internal/waveform"
	"github.com/pfjsystems/virtbench/protocol"
)

const multimeterIDN = "PFJ Systems Inc., Virtual Multimeter VM1, S/N T347596"

const (
	multimeterVoltNoise = 0.001
	multimeterCurrNoise = 0.001
	multimeterOhmsNoise = 0.5

	// an open probe measures as a gigaohm of leakage
	multimeterOpenOhms = 1e9

	multimeterSampleTime = 0.1
	multimeterPoints     = 10
)

type measMode int

const (
	measVolt measMode = iota
	measCurr
	measOhms
)

// Multimeter models a bench DMM probing one upstream source. Voltage is
// the mean of the source trace, current follows from the source
// impedance and resistance reads the impedance itself, each with its
// own measurement noise.
//
// Commands: meas:volt?, meas:curr?, meas:ohms?.
type Multimeter struct {
	dev *instrument.Device

	mu    sync.Mutex
	input instrument.Source
}

func init() {
	instrument.RegisterDriver("multimeter", newMultimeter)
}

func newMultimeter(name string, _ instrument.Options) (instrument.Instrument, error) {
	m := &Multimeter{}
	m.dev = instrument.NewDevice(name, logging.Named(name))
	m.dev.SetIDN(multimeterIDN)

	meas := m.dev.Namespace("meas")
	meas.Register("volt?", func(protocol.Args) (string, error) { return m.measure(measVolt), nil })
	meas.Register("curr?", func(protocol.Args) (string, error) { return m.measure(measCurr), nil })
	meas.Register("ohms?", func(protocol.Args) (string, error) { return m.measure(measOhms), nil })
	return m, nil
}

// Device returns the command surface.
func (m *Multimeter) Device() *instrument.Device { return m.dev }

func (m *Multimeter) measure(mode measMode) string {
	m.mu.Lock()
	input := m.input
	m.mu.Unlock()

	imp := multimeterOpenOhms
	var data []float64
	if input != nil {
		imp = input.Impedance()
		data = input.OutputSignal()
	} else {
		data = make([]float64, multimeterPoints)
	}

	var val float64
	switch mode {
	case measVolt:
		val = waveform.Mean(data) + waveform.Uniform(-multimeterVoltNoise/2, multimeterVoltNoise/2)
	case measCurr:
		val = waveform.Mean(data)/imp + waveform.Uniform(-multimeterCurrNoise/2, multimeterCurrNoise/2)
	case measOhms:
		val = imp + waveform.Uniform(-multimeterOhmsNoise/2, multimeterOhmsNoise/2)
	}
	return fmt.Sprintf("%.3f", val)
}

// AddInput wires the probe to one upstream source.
func (m *Multimeter) AddInput(src instrument.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.input != nil {
		return fmt.Errorf("%s: input already wired", m.dev.Name())
	}
	m.input = src
	return nil
}

// OutputSampleTime is the meter integration window in seconds.
func (m *Multimeter) OutputSampleTime() float64 { return multimeterSampleTime }

// OutputPoints is how many samples one reading integrates.
func (m *Multimeter) OutputPoints() int { return multimeterPoints }
