package protocol

import (
	"math"
	"strconv"
	"strings"
)

// FormatFloat renders v the way instrument readouts traditionally do:
// plain decimal with a trailing .0 for integral values, scientific
// notation only below 1e-4 or at 1e16 and beyond. Shortest digits that
// round-trip.
func FormatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	a := math.Abs(v)
	if v == math.Trunc(v) && a < 1e16 {
		return strconv.FormatFloat(v, 'f', -1, 64) + ".0"
	}
	if a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatFloats renders a series as comma separated readout values, the
// format trace queries answer with.
func FormatFloats(vals []float64) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = FormatFloat(v)
	}
	return strings.Join(parts, ",")
}

// FormatBool renders a flag as the 1/0 literals instrument queries use.
func FormatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
