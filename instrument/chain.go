package instrument

// The chaining interfaces below model how bench instruments feed each
// other. A downstream instrument pulls: asking a meter for a reading
// makes it call OutputSignal on its source, which in turn asks its own
// sampler how many points to synthesize. Nothing runs until a client
// asks, the scope's sweep loop being the one exception.

// Source is an instrument output another instrument can sample.
type Source interface {
	// OutputSignal synthesizes the current output as a series of
	// voltage points. Length and duration follow the source's sampler.
	OutputSignal() []float64

	// Impedance is the output impedance in ohms, used by current
	// and resistance measurements downstream.
	Impedance() float64
}

// FreqSource is a Source with a defined fundamental frequency, which
// trigger and filter stages need.
type FreqSource interface {
	Source
	OutputFreq() float64
}

// Sampler exposes the acquisition settings a source needs to know how
// long and how densely to synthesize.
type Sampler interface {
	OutputSampleTime() float64
	OutputPoints() int
}

// PhaseRef is implemented by sources whose phase reference a trigger
// can pin. The value is folded into the waveform argument modulo 2π.
type PhaseRef interface {
	SetPhaseRef(rad float64)
}

// NoiseControl is implemented by sources whose additive noise a
// downstream stage may disable, the way a filter presents a clean
// input to its circuit model.
type NoiseControl interface {
	SetNoise(on bool)
}

// InputTaker is an instrument that measures upstream sources. Channel
// assignment follows the order of AddInput calls.
type InputTaker interface {
	AddInput(src Source) error
}

// SamplerTaker is a source that asks a downstream instrument for its
// acquisition settings.
type SamplerTaker interface {
	SetSampler(s Sampler)
}
