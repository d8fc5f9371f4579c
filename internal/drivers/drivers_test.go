package drivers

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pfjsystems/virtbench/instrument"
	"github.com/pfjsystems/virtbench/protocol"
)

func dispatchOne(t *testing.T, dev *instrument.Device, line string) string {
	t.Helper()
	replies := dev.Dispatcher().DispatchBatch(protocol.Split([]byte(line)))
	require.Len(t, replies, 1)
	return replies[0]
}

func mustBuild(t *testing.T, kind, name string, opts instrument.Options) instrument.Instrument {
	t.Helper()
	inst, err := instrument.NewInstrument(kind, name, opts)
	require.NoError(t, err)
	return inst
}

// fixedSampler stands in for a downstream instrument that dictates the
// acquisition window.
type fixedSampler struct {
	dt     float64
	points int
}

func (s fixedSampler) OutputSampleTime() float64 { return s.dt }
func (s fixedSampler) OutputPoints() int         { return s.points }

// stubSource is a minimal upstream instrument. It records how the
// instrument under test drives it.
type stubSource struct {
	mu    sync.Mutex
	data  []float64
	imp   float64
	pulls int
	noise []bool
}

func (s *stubSource) OutputSignal() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pulls++
	out := make([]float64, len(s.data))
	copy(out, s.data)
	return out
}

func (s *stubSource) Impedance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.imp
}

func (s *stubSource) SetNoise(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noise = append(s.noise, on)
}

func (s *stubSource) pullCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pulls
}

func (s *stubSource) noiseCalls() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bool(nil), s.noise...)
}

// stubSignal adds the frequency and phase surface of a generator on top
// of stubSource.
type stubSignal struct {
	stubSource
	freq   float64
	phases []float64
}

func (s *stubSignal) OutputFreq() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.freq
}

func (s *stubSignal) SetPhaseRef(rad float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phases = append(s.phases, rad)
}

func (s *stubSignal) phaseCalls() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]float64(nil), s.phases...)
}
