package instrument

import (
	"fmt"

	"github.com/spf13/cast"
)

// Instrument is one live virtual instrument. Concrete types additionally
// implement the chaining interfaces matching their physics: a generator
// is a Source, a meter accepts inputs, and so on. The rack discovers
// those capabilities by type assertion when it wires a bench together.
type Instrument interface {
	Device() *Device
}

// Factory builds one instrument from its configured options.
type Factory func(name string, opts Options) (Instrument, error)

var registeredDrivers = make(map[string]Factory)

// RegisterDriver adds a driver under a unique kind name, e.g. "vsource".
// Drivers register themselves from init, so a blank import of the
// drivers package is all a binary needs.
func RegisterDriver(kind string, f Factory) {
	if _, exists := registeredDrivers[kind]; exists {
		panic(fmt.Sprintf("driver already registered: %s", kind))
	}
	registeredDrivers[kind] = f
}

// NewInstrument builds an instrument of the given kind.
func NewInstrument(kind, name string, opts Options) (Instrument, error) {
	f, ok := registeredDrivers[kind]
	if !ok {
		return nil, fmt.Errorf("no driver registered with kind: %s", kind)
	}
	return f(name, opts)
}

// Drivers lists the registered driver kinds.
func Drivers() []string {
	kinds := make([]string, 0, len(registeredDrivers))
	for k := range registeredDrivers {
		kinds = append(kinds, k)
	}
	return kinds
}

// Options carries driver-specific settings from the bench config file.
// Values arrive as whatever YAML unmarshaling produced; the accessors
// convert leniently and fall back to the given default.
type Options map[string]any

func (o Options) Float(key string, def float64) float64 {
	if v, ok := o[key]; ok {
		if f, err := cast.ToFloat64E(v); err == nil {
			return f
		}
	}
	return def
}

func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		if n, err := cast.ToIntE(v); err == nil {
			return n
		}
	}
	return def
}

func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, err := cast.ToStringE(v); err == nil && s != "" {
			return s
		}
	}
	return def
}

func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, err := cast.ToBoolE(v); err == nil {
			return b
		}
	}
	return def
}
