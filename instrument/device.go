// Package instrument defines the shared surface of every virtual
// instrument: the device facade carrying the command tree with its
// baseline '*' set, the driver registry concrete instrument types
// register with, and the chaining interfaces instruments use to feed
// signals into each other.
package instrument

import (
	"go.uber.org/zap"

	"github.com/pfjsystems/virtbench/dispatch"
	"github.com/pfjsystems/virtbench/protocol"
)

// DefaultIDN is the *idn? reply of an instrument nobody named.
const DefaultIDN = "Unknown Instrument - No IDN set"

// Device is the command surface of one instrument. Drivers hang their
// commands off Root and Namespace during construction; once a device is
// serving, the tree is fixed.
//
// Every device answers the baseline '*' set, the test self-check and
// the close/exit/quit housekeeping commands out of the box.
type Device struct {
	name     string
	idn      string
	root     *dispatch.Registry
	baseline *dispatch.Registry
	disp     *dispatch.Dispatcher
	log      *zap.SugaredLogger
	closer   func()
}

// NewDevice builds an empty device with the stock command set.
func NewDevice(name string, log *zap.SugaredLogger) *Device {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	d := &Device{
		name:     name,
		idn:      DefaultIDN,
		root:     dispatch.NewRegistry(""),
		baseline: dispatch.NewRegistry(protocol.Baseline),
		log:      log,
	}
	d.disp = dispatch.New(d.root, d.baseline, log)
	d.registerBaseline()
	d.registerHousekeeping()
	return d
}

// Name returns the instrument's configured name.
func (d *Device) Name() string { return d.name }

// Root returns the root namespace for command registration.
func (d *Device) Root() *dispatch.Registry { return d.root }

// Namespace resolves a nested namespace path, creating levels on first
// use, so a driver can write dev.Namespace("freq").Register(...).
func (d *Device) Namespace(tokens ...string) *dispatch.Registry {
	ns := d.root
	for _, tok := range tokens {
		ns = ns.Namespace(tok)
	}
	return ns
}

// Dispatcher returns the dispatcher serving this device's tree.
func (d *Device) Dispatcher() *dispatch.Dispatcher { return d.disp }

// SetIDN overrides the *idn? reply. Call during setup, before serving.
func (d *Device) SetIDN(idn string) {
	if idn != "" {
		d.idn = idn
	}
}

// OnClose installs the function run when a client issues close, exit or
// quit. The rack points it at the endpoint's Stop.
func (d *Device) OnClose(fn func()) { d.closer = fn }

// registerBaseline installs the common '*' commands. The status
// mutators accept and do nothing; the status queries all report 1, a
// healthy instrument with empty registers.
func (d *Device) registerBaseline() {
	noop := func(protocol.Args) (string, error) { return "", nil }
	one := func(protocol.Args) (string, error) { return "1", nil }

	for _, tok := range []string{"*cls", "*ese", "*opc", "*psc", "*rcl", "*rst", "*sav", "*sre", "*trg", "*wai"} {
		d.baseline.Register(tok, noop)
	}
	for _, tok := range []string{"*esr?", "*opc?", "*opt?", "*stb?", "*tst?"} {
		d.baseline.Register(tok, one)
	}
	d.baseline.Register("*idn?", func(protocol.Args) (string, error) {
		return d.idn, nil
	})
}

// registerHousekeeping installs the connectivity self-check and the
// close commands. The scksrv namespace keeps the older client scripts
// working that still address them there.
func (d *Device) registerHousekeeping() {
	test := func(protocol.Args) (string, error) { return "Communication test successful!", nil }
	d.root.Register("test?", test)
	d.root.Register("test", test)

	for _, ns := range []*dispatch.Registry{d.root, d.root.Namespace("scksrv")} {
		for _, tok := range []string{"close", "exit", "quit"} {
			ns.Register(tok, d.handleClose)
		}
	}
}

func (d *Device) handleClose(protocol.Args) (string, error) {
	d.log.Infow("close requested", "instrument", d.name)
	if d.closer != nil {
		d.closer()
	}
	return "", nil
}
