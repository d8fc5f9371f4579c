package drivers

import (
	"math"
	"sync"
	"time"

	"github.com/pfjsystems/virtbench/instrument"
	"github.com/pfjsystems/virtbench/internal/logging"
	"github.com/pfjsystems/virtbench/internal/waveform"
	"github.com/pfjsystems/virtbench/protocol"
)

const siggenIDN = "PFJ Systems Inc., Virtual Signal Generator SG1, S/N M9874235"

const (
	siggenMaxFreq   = 10e9
	siggenMinFreq   = 0.1
	siggenMaxAmp    = 100.0
	siggenMinAmp    = 1e-3
	siggenMaxOffset = 100.0

	// risetime of the output stage, flat out to the maximum frequency
	siggenRisetime = 0.4 / siggenMaxFreq
	siggenFalltime = siggenRisetime

	siggenNoise     = 5 * siggenMinAmp // noise floor, peak to peak volts
	siggenJitter    = 20e-12
	siggenImpedance = 50.0

	siggenDefaultPoints = 10000
)

type waveShape int

const (
	waveSine waveShape = iota
	waveTriangle
	waveSquare
	waveSaw
	waveRSaw
	wavePulse
)

var waveNames = map[waveShape]string{
	waveSine:     "sine",
	waveTriangle: "triangle",
	waveSquare:   "square",
	waveSaw:      "saw",
	waveRSaw:     "rsaw",
	wavePulse:    "pulse",
}

// SigGen models a bench signal generator. Frequency and amplitude snap
// to a decade range switch with a three decimal multiplier dial, the
// duty cycle is bounded by the risetime of the output stage, and the
// synthesized wave carries jitter, a noise floor and an optional
// sinusoidal chirp.
//
// Commands: out, out?, freq:{freq,chrp,cvar,cper}[?],
// amp:{amp,offs}[?], wave:{wave,dc,phas}[?].
type SigGen struct {
	dev *instrument.Device

	mu       sync.Mutex
	output   bool
	freq     float64
	amp      float64
	offset   float64
	duty     float64 // fraction of a period
	shape    waveShape
	phase    float64 // user phase, radians
	chirp    bool
	chirpVar float64 // percent frequency excursion
	chirpPer float64 // seconds
	base     float64 // phase reference, pinned by a triggered scope
	epoch    time.Time
	sampler  instrument.Sampler
	addNoise bool
}

func init() {
	instrument.RegisterDriver("siggen", newSigGen)
}

func newSigGen(name string, opts instrument.Options) (instrument.Instrument, error) {
	g := &SigGen{
		freq:     quantizeFreq(opts.Float("freq", 1e6)),
		amp:      quantizeAmp(opts.Float("amp", 1.0)),
		duty:     0.5,
		chirpVar: 10,
		chirpPer: 1,
		base:     waveform.Uniform(0, 2*math.Pi),
		epoch:    time.Now(),
		addNoise: true,
	}
	g.dev = instrument.NewDevice(name, logging.Named(name))
	g.dev.SetIDN(siggenIDN)

	root := g.dev.Root()
	root.Register("out?", g.getOutput)
	root.Register("out", g.setOutput)

	freq := g.dev.Namespace("freq")
	freq.Register("freq?", g.getFreq)
	freq.Register("freq", g.setFreq)
	freq.Register("chrp?", g.getChirp)
	freq.Register("chrp", g.setChirp)
	freq.Register("cvar?", g.getChirpVar)
	freq.Register("cvar", g.setChirpVar)
	freq.Register("cper?", g.getChirpPer)
	freq.Register("cper", g.setChirpPer)

	amp := g.dev.Namespace("amp")
	amp.Register("amp?", g.getAmp)
	amp.Register("amp", g.setAmp)
	amp.Register("offs?", g.getOffset)
	amp.Register("offs", g.setOffset)

	wave := g.dev.Namespace("wave")
	wave.Register("wave?", g.getWave)
	wave.Register("wave", g.setWave)
	wave.Register("dc?", g.getDuty)
	wave.Register("dc", g.setDuty)
	wave.Register("phas?", g.getPhase)
	wave.Register("phas", g.setPhase)
	return g, nil
}

// Device returns the command surface.
func (g *SigGen) Device() *instrument.Device { return g.dev }

func (g *SigGen) getOutput(protocol.Args) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return protocol.FormatBool(g.output), nil
}

func (g *SigGen) setOutput(args protocol.Args) (string, error) {
	s, err := args.Word(0)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case truthy(s):
		g.output = true
	case falsy(s):
		g.output = false
	}
	return "", nil
}

func (g *SigGen) getFreq(protocol.Args) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return protocol.FormatFloat(g.freq), nil
}

func (g *SigGen) setFreq(args protocol.Args) (string, error) {
	v, err := finiteArg(args, 0)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	g.freq = quantizeFreq(v)
	// The duty cycle bounds move with the period.
	g.duty = waveform.Clamp(g.duty, minDuty(g.freq), maxDuty(g.freq))
	g.mu.Unlock()
	return "", nil
}

func (g *SigGen) getChirp(protocol.Args) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return protocol.FormatBool(g.chirp), nil
}

func (g *SigGen) setChirp(args protocol.Args) (string, error) {
	s, err := args.Word(0)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case truthy(s):
		g.chirp = true
	case falsy(s):
		g.chirp = false
	}
	return "", nil
}

func (g *SigGen) getChirpVar(protocol.Args) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return protocol.FormatFloat(g.chirpVar), nil
}

func (g *SigGen) setChirpVar(args protocol.Args) (string, error) {
	v, err := finiteArg(args, 0)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	g.chirpVar = spin(v, 2)
	g.mu.Unlock()
	return "", nil
}

func (g *SigGen) getChirpPer(protocol.Args) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return protocol.FormatFloat(g.chirpPer), nil
}

func (g *SigGen) setChirpPer(args protocol.Args) (string, error) {
	v, err := finiteArg(args, 0)
	if err != nil {
		return "", err
	}
	if v <= 0 {
		return "", protocol.NewBadArgument(args[0], "period must be positive")
	}
	g.mu.Lock()
	g.chirpPer = spin(v, 3)
	g.mu.Unlock()
	return "", nil
}

func (g *SigGen) getAmp(protocol.Args) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return protocol.FormatFloat(g.amp), nil
}

func (g *SigGen) setAmp(args protocol.Args) (string, error) {
	v, err := finiteArg(args, 0)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	g.amp = quantizeAmp(v)
	g.mu.Unlock()
	return "", nil
}

func (g *SigGen) getOffset(protocol.Args) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return protocol.FormatFloat(g.offset), nil
}

func (g *SigGen) setOffset(args protocol.Args) (string, error) {
	v, err := finiteArg(args, 0)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	g.offset = waveform.Clamp(spin(v, 3), -siggenMaxOffset, siggenMaxOffset)
	g.mu.Unlock()
	return "", nil
}

func (g *SigGen) getWave(protocol.Args) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return waveNames[g.shape], nil
}

func (g *SigGen) setWave(args protocol.Args) (string, error) {
	s, err := args.Word(0)
	if err != nil {
		return "", err
	}
	for shape, name := range waveNames {
		if s == name {
			g.mu.Lock()
			g.shape = shape
			g.mu.Unlock()
			return "", nil
		}
	}
	return "", protocol.NewBadArgument(s, "unknown wave shape")
}

func (g *SigGen) getDuty(protocol.Args) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return protocol.FormatFloat(g.duty * 100), nil
}

func (g *SigGen) setDuty(args protocol.Args) (string, error) {
	v, err := finiteArg(args, 0)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	g.duty = waveform.Clamp(spin(v, 2)/100, minDuty(g.freq), maxDuty(g.freq))
	g.mu.Unlock()
	return "", nil
}

func (g *SigGen) getPhase(protocol.Args) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return protocol.FormatFloat(g.phase * 180 / math.Pi), nil
}

func (g *SigGen) setPhase(args protocol.Args) (string, error) {
	v, err := finiteArg(args, 0)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	g.phase = spin(v, 2) * math.Pi / 180
	g.mu.Unlock()
	return "", nil
}

// quantizeFreq snaps a requested frequency to the decade range switch
// and its three decimal multiplier dial, saturating at the instrument
// limits.
func quantizeFreq(v float64) float64 {
	var r float64
	switch {
	case v <= 10:
		r = 1
	case v <= 1e3:
		r = 100
	case v <= 100e3:
		r = 10e3
	case v <= 10e6:
		r = 1e6
	case v <= 1e9:
		r = 100e6
	default:
		r = 1e9
	}
	return waveform.Clamp(r*spin(v/r, 3), siggenMinFreq, siggenMaxFreq)
}

// quantizeAmp does the same for the amplitude ranges.
func quantizeAmp(v float64) float64 {
	var r float64
	switch {
	case v <= 10e-3:
		r = 1e-3
	case v <= 100e-3:
		r = 10e-3
	case v <= 1:
		r = 100e-3
	case v <= 10:
		r = 1
	default:
		r = 10
	}
	return waveform.Clamp(r*spin(v/r, 3), siggenMinAmp, siggenMaxAmp)
}

// The narrowest and widest pulse a given period can carry follow from
// the rise and fall times; every shape shares the bounds.
func minDuty(freq float64) float64 {
	return (siggenRisetime + siggenFalltime) * freq
}

func maxDuty(freq float64) float64 {
	return 1 - minDuty(freq)
}

// SetSampler points the generator at the downstream instrument that
// defines its synthesis window.
func (g *SigGen) SetSampler(s instrument.Sampler) {
	g.mu.Lock()
	g.sampler = s
	g.mu.Unlock()
}

// SetNoise switches the output noise floor.
func (g *SigGen) SetNoise(on bool) {
	g.mu.Lock()
	g.addNoise = on
	g.mu.Unlock()
}

// SetPhaseRef pins the free-running phase reference, the hook a
// triggered oscilloscope uses to lock the display.
func (g *SigGen) SetPhaseRef(rad float64) {
	g.mu.Lock()
	g.base = rad
	g.mu.Unlock()
}

// Impedance is the generator output impedance in ohms.
func (g *SigGen) Impedance() float64 { return siggenImpedance }

// OutputFreq is the configured fundamental frequency.
func (g *SigGen) OutputFreq() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.freq
}

// OutputSignal synthesizes the current output. The window and point
// count follow the downstream sampler; standalone the generator renders
// two periods at ten thousand points with a fixed phase.
func (g *SigGen) OutputSignal() []float64 {
	g.mu.Lock()
	sampler := g.sampler
	g.mu.Unlock()

	st, n := 0.0, siggenDefaultPoints
	if sampler != nil {
		st = sampler.OutputSampleTime()
		n = sampler.OutputPoints()
	}

	g.mu.Lock()
	snap := siggenSnap{
		output: g.output, freq: g.freq, amp: g.amp, offset: g.offset,
		duty: g.duty, shape: g.shape, phase: g.phase, base: g.base,
		chirp: g.chirp, chirpVar: g.chirpVar, chirpPer: g.chirpPer,
		addNoise: g.addNoise,
	}
	epoch := g.epoch
	g.mu.Unlock()

	chirpT := time.Since(epoch).Seconds()
	base := snap.base
	if sampler == nil {
		st = 2 / snap.freq
		base = 0
		chirpT = 0
	}
	if n <= 0 {
		return nil
	}

	// Pad the window on both sides so the risetime filter has real
	// samples to settle on, then cut the padding back off.
	delta := st / float64(n)
	pad := n / 10
	tot := n + 2*pad
	padT := delta * float64(pad)
	ts := waveform.Linspace(-padT, st+padT, tot)

	freq := snap.freq
	if snap.chirp {
		freq *= 1 + (snap.chirpVar/100)*math.Sin(2*math.Pi*chirpT/snap.chirpPer)
	}

	wf := make([]float64, tot)
	if snap.output {
		jitter := waveform.Uniform(-siggenJitter/2, siggenJitter/2)
		phase := math.Mod(base, 2*math.Pi) + snap.phase
		for i, t := range ts {
			arg := 2*math.Pi*freq*(t+jitter) + phase
			switch snap.shape {
			case waveSine:
				wf[i] = 0.5 * snap.amp * math.Sin(arg)
			case waveTriangle:
				wf[i] = 0.3183 * snap.amp * math.Asin(math.Cos(arg))
			case waveSquare:
				wf[i] = 0.3183 * snap.amp * (math.Atan(math.Sin(arg)) + math.Atan(1/math.Sin(arg)))
			case waveSaw:
				half := math.Pi*freq*(t+jitter) + phase
				wf[i] = -0.3183 * snap.amp * math.Atan(1/math.Tan(half))
			case waveRSaw:
				half := math.Pi*freq*(t+jitter) + phase
				wf[i] = 0.3183 * snap.amp * math.Atan(1/math.Tan(half))
			case wavePulse:
				if positiveMod(arg, 2*math.Pi) < snap.duty*2*math.Pi {
					wf[i] = 0.5 * snap.amp
				} else {
					wf[i] = -0.5 * snap.amp
				}
			}
		}
	}

	width := clampInt(int(siggenRisetime/delta), 3, tot)
	if width%2 == 0 {
		width--
	}
	wf = waveform.Smooth(wf, width)
	wf = wf[pad : tot-pad]

	if snap.addNoise {
		waveform.AddNoise(wf, siggenNoise)
	}
	waveform.Offset(wf, snap.offset)
	waveform.Clip(wf, -siggenMaxOffset, siggenMaxOffset)
	return wf
}

// siggenSnap is the settings picture one synthesis run works from, so
// the generator never holds its mutex while pulling its sampler.
type siggenSnap struct {
	output   bool
	freq     float64
	amp      float64
	offset   float64
	duty     float64
	shape    waveShape
	phase    float64
	base     float64
	chirp    bool
	chirpVar float64
	chirpPer float64
	addNoise bool
}

// positiveMod folds v into [0, m) for negative arguments too.
func positiveMod(v, m float64) float64 {
	r := math.Mod(v, m)
	if r < 0 {
		r += m
	}
	return r
}
