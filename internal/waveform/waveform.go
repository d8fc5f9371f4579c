// Package waveform carries the array math behind the instrument
// physics models: sampling grids, window smoothing, uniform noise and
// the ODE stepper the analog models integrate with.
package waveform

import (
	"math/rand"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// Linspace returns n evenly spaced points from start to stop inclusive.
func Linspace(start, stop float64, n int) []float64 {
	switch {
	case n <= 0:
		return nil
	case n == 1:
		return []float64{start}
	}
	return floats.Span(make([]float64, n), start, stop)
}

// Constant returns n copies of v.
func Constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Tile repeats src n times back to back.
func Tile(src []float64, n int) []float64 {
	out := make([]float64, 0, len(src)*n)
	for i := 0; i < n; i++ {
		out = append(out, src...)
	}
	return out
}

// Blackman returns the m point Blackman window.
func Blackman(m int) []float64 {
	switch {
	case m <= 0:
		return nil
	case m == 1:
		return []float64{1}
	}
	return window.Blackman(Constant(1, m))
}

// ConvolveSame convolves x with the kernel and returns the centered
// part of the result, the same length as x.
func ConvolveSame(x, kernel []float64) []float64 {
	full := make([]float64, len(x)+len(kernel)-1)
	for i, xv := range x {
		for j, kv := range kernel {
			full[i+j] += xv * kv
		}
	}
	start := (len(kernel) - 1) / 2
	return full[start : start+len(x)]
}

// Smooth runs data through a normalized Blackman window of the given
// width. Widths below 3 leave the data untouched.
func Smooth(data []float64, width int) []float64 {
	if width < 3 || len(data) == 0 {
		return data
	}
	win := Blackman(width)
	out := ConvolveSame(data, win)
	floats.Scale(1/floats.Sum(win), out)
	return out
}

// ColumnMean returns the elementwise mean across rows. All rows must
// share one length.
func ColumnMean(rows [][]float64) []float64 {
	if len(rows) == 0 {
		return nil
	}
	out := make([]float64, len(rows[0]))
	for _, row := range rows {
		floats.Add(out, row)
	}
	floats.Scale(1/float64(len(rows)), out)
	return out
}

// Mean returns the arithmetic mean, zero for an empty series.
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// Offset shifts every point by v in place.
func Offset(data []float64, v float64) {
	floats.AddConst(v, data)
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// Clip limits every point to [lo, hi] in place.
func Clip(data []float64, lo, hi float64) {
	for i, v := range data {
		data[i] = Clamp(v, lo, hi)
	}
}

// AddNoise adds uniform noise with the given peak to peak width to
// every point in place.
func AddNoise(data []float64, width float64) {
	for i := range data {
		data[i] += (rand.Float64() - 0.5) * width
	}
}

// Uniform draws one sample from [lo, hi).
func Uniform(lo, hi float64) float64 {
	return lo + rand.Float64()*(hi-lo)
}

// Resample maps data onto n evenly spaced points across the same span,
// fitting an Akima spline through the original samples.
func Resample(data []float64, n int) []float64 {
	switch {
	case n <= 0 || len(data) == 0:
		return nil
	case len(data) == 1:
		return Constant(data[0], n)
	case len(data) == n:
		out := make([]float64, n)
		copy(out, data)
		return out
	}

	var spline interp.AkimaSpline
	if err := spline.Fit(Linspace(0, 1, len(data)), data); err != nil {
		// Non-increasing grids cannot happen with Linspace.
		panic(err)
	}
	out := make([]float64, n)
	for i, x := range Linspace(0, 1, n) {
		out[i] = spline.Predict(x)
	}
	return out
}

// Sampled fits a piecewise linear interpolant over the series data
// sampled at the grid ts, for models that need the value between grid
// points.
func Sampled(ts, data []float64) func(t float64) float64 {
	var line interp.PiecewiseLinear
	if err := line.Fit(ts, data); err != nil {
		panic(err)
	}
	return line.Predict
}

// Integrate solves dy/dt = f(t, y) across the sample grid ts with the
// classic fourth order Runge-Kutta step, starting from y0. The result
// holds one value per grid point.
func Integrate(f func(t, y float64) float64, y0 float64, ts []float64) []float64 {
	out := make([]float64, len(ts))
	if len(ts) == 0 {
		return out
	}
	y := y0
	out[0] = y
	for i := 1; i < len(ts); i++ {
		t := ts[i-1]
		h := ts[i] - t
		k1 := f(t, y)
		k2 := f(t+h/2, y+h/2*k1)
		k3 := f(t+h/2, y+h/2*k2)
		k4 := f(t+h, y+h*k3)
		y += h / 6 * (k1 + 2*k2 + 2*k3 + k4)
		out[i] = y
	}
	return out
}
