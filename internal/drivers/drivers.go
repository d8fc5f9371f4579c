// Package drivers holds the virtual instrument implementations. Every
// driver registers itself on import, so a binary pulls the whole set
// in with a blank import:
//
//	import _ "github.com/pfjsystems/virtbench/internal/drivers"
//
// The instruments model their physics on demand: a readback or a data
// query pulls fresh samples through the instrument chain. The one
// exception is the oscilloscope, whose sweep loop keeps feeding the
// averaging and hold buffers while acquisition runs.
//
// Locking rule for chained instruments: an instrument never holds its
// own mutex while calling into another one. The pull chains on a bench
// can be circular (the scope samples the filter, the filter asks the
// scope for its acquisition settings), so every driver snapshots its
// state, pulls upstream unlocked, then relocks to store results.
package drivers

import (
	"math"

	"github.com/pfjsystems/virtbench/protocol"
)

func clampInt(v, lo, hi int) int {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// spin rounds v to the given number of decimals, the resolution of the
// front panel spin boxes.
func spin(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

// truthy reports whether a switch argument means on. For handlers with
// loose parsing anything else means off.
func truthy(s string) bool {
	return s == "1" || s == "true" || s == "on"
}

// falsy reports whether a switch argument explicitly means off.
// Handlers with strict parsing ignore arguments that are neither.
func falsy(s string) bool {
	return s == "0" || s == "false" || s == "off"
}

// finiteArg reads args[i] as a float and rejects NaN and infinities,
// which no physical setting accepts.
func finiteArg(args protocol.Args, i int) (float64, error) {
	v, err := args.Float(i)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, protocol.NewBadArgument(args[i], "not a finite number")
	}
	return v, nil
}
