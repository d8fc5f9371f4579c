package drivers

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pfjsystems/virtbench/instrument"
	"github.com/pfjsystems/virtbench/internal/logging"
	"github.com/pfjsystems/virtbench/internal/waveform"
	"github.com/pfjsystems/virtbench/protocol"
)

const scopeIDN = "PFJ Systems Inc., Virtual Oscilloscope VOSC1, S/N P92348"

const (
	scopeChannels = 4

	// internal acquisition resolution; the points setting only changes
	// what data? hands back
	scopeAcqPoints = 1000

	scopeMinPoints = 100
	scopeMaxPoints = 10000
	scopeMaxAvgs   = 1024
	scopeMinHoldN  = 2
	scopeMaxHoldN  = 1024

	scopeSweepEvery = 10 * time.Millisecond

	// dial geometry of the 1-2-5 scale knobs
	scopeHorizBase    = 1e-12 // fastest timebase, s/div
	scopeHorizDecade  = -12
	scopeHorizDials   = 39
	scopeVertBase     = 1e-4 // finest vertical scale, V/div
	scopeVertDecade   = -4
	scopeVertDials    = 15
	scopeDivsPerSweep = 10
)

type trigMode int

const (
	trigFree trigMode = iota
	trigAuto
)

// scopeChan is the per-channel state. Channels are plain array slots
// addressed by index; the cN command namespaces bind to them at
// construction.
type scopeChan struct {
	enabled bool
	asX     bool
	voltdiv float64
	offset  float64
	input   instrument.Source
	trace   []float64
}

// Scope models a four channel oscilloscope. A sweep loop ticks while
// acquisition runs, pulling every enabled channel's source, applying
// trigger phase, and folding the result into the averaging or hold
// buffers. Trace queries hand back the latest sweep resampled to the
// points setting.
//
// Commands: run, run?, stop, horiz:{scale,offset,data?},
// trig:{mode?,free,auto}, acq:{points,avgs,hold,holdn},
// c1..c4:{enable,asx,scale,offset,data?}.
type Scope struct {
	dev *instrument.Device

	mu        sync.Mutex
	running   bool
	timediv   float64
	hoffset   float64 // percent of the sweep window
	points    int
	avgs      int
	hold      bool
	holdn     int
	trig      trigMode
	chans     [scopeChannels]scopeChan
	xAxis     []float64
	avgBuf    [scopeChannels][][]float64 // newest first
	holdBuf   [scopeChannels][][]float64
	avgCount  int
	holdCount int

	stopC    chan struct{}
	stopOnce sync.Once
}

func init() {
	instrument.RegisterDriver("scope", newScope)
}

func newScope(name string, opts instrument.Options) (instrument.Instrument, error) {
	s := &Scope{
		timediv: opts.Float("timediv", 100e-9),
		points:  clampInt(opts.Int("points", scopeAcqPoints), scopeMinPoints, scopeMaxPoints),
		avgs:    1,
		holdn:   scopeMinHoldN,
		stopC:   make(chan struct{}),
	}
	for i := range s.chans {
		s.chans[i].voltdiv = 0.5
		s.chans[i].trace = make([]float64, scopeAcqPoints)
	}
	s.chans[0].enabled = true
	s.xAxis = waveform.Linspace(0, s.sweepTimeLocked(), scopeAcqPoints)

	s.dev = instrument.NewDevice(name, logging.Named(name))
	s.dev.SetIDN(scopeIDN)

	root := s.dev.Root()
	root.Register("run?", s.getRun)
	root.Register("run", s.run)
	root.Register("stop", s.stop)

	horiz := s.dev.Namespace("horiz")
	horiz.Register("scale?", s.getHScale)
	horiz.Register("scale", s.setHScale)
	horiz.Register("offset?", s.getHOffset)
	horiz.Register("offset", s.setHOffset)
	horiz.Register("data?", s.getHData)

	trig := s.dev.Namespace("trig")
	trig.Register("mode?", s.getTrigMode)
	trig.Register("free", s.setTrigFree)
	trig.Register("auto", s.setTrigAuto)

	acq := s.dev.Namespace("acq")
	acq.Register("points?", s.getPoints)
	acq.Register("points", s.setPoints)
	acq.Register("avgs?", s.getAvgs)
	acq.Register("avgs", s.setAvgs)
	acq.Register("hold?", s.getHold)
	acq.Register("hold", s.setHold)
	acq.Register("holdn?", s.getHoldN)
	acq.Register("holdn", s.setHoldN)

	for i := 0; i < scopeChannels; i++ {
		ch := i
		ns := s.dev.Namespace(fmt.Sprintf("c%d", ch+1))
		ns.Register("enable?", func(protocol.Args) (string, error) { return s.getChanEnable(ch) })
		ns.Register("enable", func(a protocol.Args) (string, error) { return s.setChanEnable(ch, a) })
		ns.Register("asx?", func(protocol.Args) (string, error) { return s.getChanAsX(ch) })
		ns.Register("asx", func(a protocol.Args) (string, error) { return s.setChanAsX(ch, a) })
		ns.Register("scale?", func(protocol.Args) (string, error) { return s.getChanScale(ch) })
		ns.Register("scale", func(a protocol.Args) (string, error) { return s.setChanScale(ch, a) })
		ns.Register("offset?", func(protocol.Args) (string, error) { return s.getChanOffset(ch) })
		ns.Register("offset", func(a protocol.Args) (string, error) { return s.setChanOffset(ch, a) })
		ns.Register("data?", func(protocol.Args) (string, error) { return s.getChanData(ch) })
	}

	go s.sweepLoop()
	return s, nil
}

// Device returns the command surface.
func (s *Scope) Device() *instrument.Device { return s.dev }

// Close stops the sweep loop. Idempotent.
func (s *Scope) Close() error {
	s.stopOnce.Do(func() { close(s.stopC) })
	return nil
}

func (s *Scope) getRun(protocol.Args) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.FormatBool(s.running), nil
}

func (s *Scope) run(protocol.Args) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		s.running = true
		s.resetBuffersLocked()
	}
	return "", nil
}

func (s *Scope) stop(protocol.Args) (string, error) {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return "", nil
}

func (s *Scope) getHScale(protocol.Args) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.FormatFloat(s.timediv), nil
}

func (s *Scope) setHScale(args protocol.Args) (string, error) {
	v, err := finiteArg(args, 0)
	if err != nil {
		return "", err
	}
	dial, err := snap125(v, scopeHorizDecade, scopeHorizDials)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.timediv = dialValue(dial, scopeHorizBase)
	s.resetBuffersLocked()
	s.mu.Unlock()
	return "", nil
}

func (s *Scope) getHOffset(protocol.Args) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.FormatFloat(s.hoffset), nil
}

func (s *Scope) setHOffset(args protocol.Args) (string, error) {
	v, err := finiteArg(args, 0)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.hoffset = waveform.Clamp(v, -100, 100)
	s.mu.Unlock()
	return "", nil
}

func (s *Scope) getHData(protocol.Args) (string, error) {
	s.mu.Lock()
	x := s.xAxis
	n := s.displayLenLocked(len(x))
	s.mu.Unlock()
	return protocol.FormatFloats(waveform.Resample(x, n)), nil
}

func (s *Scope) getTrigMode(protocol.Args) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.trig == trigAuto {
		return "AUTO", nil
	}
	return "FREE", nil
}

func (s *Scope) setTrigFree(protocol.Args) (string, error) {
	s.mu.Lock()
	s.trig = trigFree
	s.mu.Unlock()
	return "", nil
}

func (s *Scope) setTrigAuto(protocol.Args) (string, error) {
	s.mu.Lock()
	s.trig = trigAuto
	s.mu.Unlock()
	return "", nil
}

func (s *Scope) getPoints(protocol.Args) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%d", s.points), nil
}

func (s *Scope) setPoints(args protocol.Args) (string, error) {
	v, err := args.Int(0)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.points = clampInt(v, scopeMinPoints, scopeMaxPoints)
	s.mu.Unlock()
	return "", nil
}

func (s *Scope) getAvgs(protocol.Args) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%d", s.avgs), nil
}

func (s *Scope) setAvgs(args protocol.Args) (string, error) {
	v, err := args.Int(0)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.avgs = clampInt(v, 1, scopeMaxAvgs)
	s.resetBuffersLocked()
	s.mu.Unlock()
	return "", nil
}

func (s *Scope) getHold(protocol.Args) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.FormatBool(s.hold), nil
}

func (s *Scope) setHold(args protocol.Args) (string, error) {
	v, err := args.Bool(0)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.hold = v
	s.resetBuffersLocked()
	s.mu.Unlock()
	return "", nil
}

func (s *Scope) getHoldN(protocol.Args) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%d", s.holdn), nil
}

func (s *Scope) setHoldN(args protocol.Args) (string, error) {
	v, err := args.Int(0)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.holdn = clampInt(v, scopeMinHoldN, scopeMaxHoldN)
	s.resetBuffersLocked()
	s.mu.Unlock()
	return "", nil
}

func (s *Scope) getChanEnable(ch int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.FormatBool(s.chans[ch].enabled), nil
}

func (s *Scope) setChanEnable(ch int, args protocol.Args) (string, error) {
	v, err := args.Bool(0)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.chans[ch].enabled = v
	s.mu.Unlock()
	return "", nil
}

func (s *Scope) getChanAsX(ch int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.FormatBool(s.chans[ch].asX), nil
}

// setChanAsX selects the channel driving the x deflection in XY mode.
// Only one channel can be the x axis; picking one clears the rest and
// enables the picked channel.
func (s *Scope) setChanAsX(ch int, args protocol.Args) (string, error) {
	v, err := args.Bool(0)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	for i := range s.chans {
		s.chans[i].asX = false
	}
	if v {
		s.chans[ch].asX = true
		s.chans[ch].enabled = true
	}
	s.mu.Unlock()
	return "", nil
}

func (s *Scope) getChanScale(ch int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.FormatFloat(s.chans[ch].voltdiv), nil
}

func (s *Scope) setChanScale(ch int, args protocol.Args) (string, error) {
	v, err := finiteArg(args, 0)
	if err != nil {
		return "", err
	}
	dial, err := snap125(v, scopeVertDecade, scopeVertDials)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.chans[ch].voltdiv = dialValue(dial, scopeVertBase)
	s.mu.Unlock()
	return "", nil
}

func (s *Scope) getChanOffset(ch int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return protocol.FormatFloat(s.chans[ch].offset), nil
}

func (s *Scope) setChanOffset(ch int, args protocol.Args) (string, error) {
	v, err := finiteArg(args, 0)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.chans[ch].offset = waveform.Clamp(v, -100, 100)
	s.mu.Unlock()
	return "", nil
}

func (s *Scope) getChanData(ch int) (string, error) {
	s.mu.Lock()
	trace := s.chans[ch].trace
	n := s.displayLenLocked(len(trace))
	s.mu.Unlock()
	return protocol.FormatFloats(waveform.Resample(trace, n)), nil
}

// displayLenLocked scales the points setting by the number of held
// segments a trace currently concatenates.
func (s *Scope) displayLenLocked(traceLen int) int {
	segments := traceLen / scopeAcqPoints
	if segments < 1 {
		segments = 1
	}
	return s.points * segments
}

// AddInput wires the next free channel, in call order.
func (s *Scope) AddInput(src instrument.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.chans {
		if s.chans[i].input == nil {
			s.chans[i].input = src
			return nil
		}
	}
	return fmt.Errorf("%s: all %d channels wired", s.dev.Name(), scopeChannels)
}

// OutputSampleTime is the sweep window upstream sources synthesize
// over.
func (s *Scope) OutputSampleTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepTimeLocked()
}

// OutputPoints is the acquisition resolution upstream sources
// synthesize at.
func (s *Scope) OutputPoints() int { return scopeAcqPoints }

func (s *Scope) sweepTimeLocked() float64 {
	return scopeDivsPerSweep * s.timediv
}

// resetBuffersLocked discards averaging and hold history after a
// setting change, like the front panel does.
func (s *Scope) resetBuffersLocked() {
	for i := range s.chans {
		s.avgBuf[i] = nil
		s.holdBuf[i] = nil
	}
	s.avgCount = 0
	s.holdCount = 0
}

func (s *Scope) sweepLoop() {
	ticker := time.NewTicker(scopeSweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopC:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep acquires one trace per enabled wired channel. Sources are
// pulled without holding the scope mutex; the pull chain circles back
// into OutputSampleTime and OutputPoints.
func (s *Scope) sweep() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	st := s.sweepTimeLocked()
	toffs := 0.01 * s.hoffset * st
	trig := s.trig
	hold, holdn := s.hold, s.holdn
	avgs := s.avgs
	var inputs [scopeChannels]instrument.Source
	for i := range s.chans {
		if s.chans[i].enabled {
			inputs[i] = s.chans[i].input
		}
	}
	s.mu.Unlock()

	var traces [scopeChannels][]float64
	for i, input := range inputs {
		if input == nil {
			continue
		}
		if ref, ok := input.(instrument.PhaseRef); ok {
			if fs, isFreq := input.(instrument.FreqSource); trig == trigAuto && isFreq {
				ref.SetPhaseRef(2 * math.Pi * fs.OutputFreq() * toffs)
			} else {
				ref.SetPhaseRef(waveform.Uniform(0, 2*math.Pi))
			}
		}
		data := input.OutputSignal()
		traces[i] = waveform.Resample(data, scopeAcqPoints)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}

	s.xAxis = waveform.Linspace(toffs, toffs+st, scopeAcqPoints)
	if hold {
		s.xAxis = waveform.Tile(s.xAxis, s.holdCount+1)
	}

	for i := range s.chans {
		if traces[i] == nil {
			continue
		}
		switch {
		case hold:
			s.holdBuf[i] = prepend(s.holdBuf[i], traces[i], holdn)
			s.chans[i].trace = concat(s.holdBuf[i][:min(len(s.holdBuf[i]), s.holdCount+1)])
		case avgs > 1:
			s.avgBuf[i] = prepend(s.avgBuf[i], traces[i], avgs)
			s.chans[i].trace = waveform.ColumnMean(s.avgBuf[i][:min(len(s.avgBuf[i]), s.avgCount+1)])
		default:
			s.chans[i].trace = traces[i]
		}
	}

	if hold {
		if s.holdCount < holdn-1 {
			s.holdCount++
		}
	} else if avgs > 1 {
		if s.avgCount < avgs-1 {
			s.avgCount++
		}
	}
}

// prepend pushes a trace onto the front of a bounded history.
func prepend(buf [][]float64, trace []float64, limit int) [][]float64 {
	buf = append([][]float64{trace}, buf...)
	if len(buf) > limit {
		buf = buf[:limit]
	}
	return buf
}

func concat(rows [][]float64) []float64 {
	var out []float64
	for _, row := range rows {
		out = append(out, row...)
	}
	return out
}

// snap125 snaps a requested scale to the nearest 1-2-5 dial position,
// expressed as a dial index counted from the decade of the
// instrument's finest setting. Zero cannot sit on a log dial.
func snap125(v float64, baseDecade, maxDial int) (int, error) {
	v = math.Abs(v)
	if v == 0 {
		return 0, protocol.NewBadArgument("0", "scale cannot be zero")
	}
	l := math.Log10(v)
	sci := math.Ceil(l) - 1
	num := math.Pow(10, l-math.Ceil(l)+1)

	step := 0
	switch {
	case num >= 7.5:
		step = 0
		sci++
	case num >= 3.5:
		step = 2
	case num >= 0.5:
		step = 1
	}

	dial := (int(sci)-baseDecade)*3 + step
	return clampInt(dial, 0, maxDial), nil
}

// dialValue is the scale a dial position selects.
func dialValue(dial int, base float64) float64 {
	steps := [3]float64{1, 2, 5}
	return steps[dial%3] * base * math.Pow(10, float64(dial/3))
}
