// Package rack builds and manages a bench of virtual instruments. It
// instantiates drivers from the daemon configuration, resolves the
// input and sampler wiring between them, and owns the lifecycle of
// each instrument's protocol server.
package rack

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pfjsystems/virtbench/instrument"
	"github.com/pfjsystems/virtbench/internal/configd"
	"github.com/pfjsystems/virtbench/internal/server"
	"github.com/pfjsystems/virtbench/internal/telemetry"
)

// Instance is one built instrument on the rack and, once started, its
// protocol server.
type Instance struct {
	ID   string // rack-unique instance identifier
	Name string
	Kind string

	cfg  configd.Instrument
	inst instrument.Instrument
	srv  *server.Server
}

// Rack holds the live instruments of one bench.
type Rack struct {
	bench string
	pub   telemetry.Publisher
	log   *zap.SugaredLogger

	mu        sync.Mutex
	instances map[string]*Instance
}

// New assembles an empty rack for the named bench. A nil publisher
// disables telemetry on the instrument servers.
func New(bench string, pub telemetry.Publisher, log *zap.SugaredLogger) *Rack {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Rack{
		bench:     bench,
		pub:       pub,
		log:       log,
		instances: make(map[string]*Instance),
	}
}

// Build instantiates every configured instrument and resolves the
// wiring between them. It must run before Start; any unknown kind,
// unknown reference, or capability mismatch is a hard error.
func (r *Rack) Build(cfgs map[string]configd.Instrument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range sortedNames(cfgs) {
		ic := cfgs[name]
		inst, err := instrument.NewInstrument(ic.Kind, name, instrument.Options(ic.Params))
		if err != nil {
			return fmt.Errorf("instrument '%s': %w", name, err)
		}
		r.instances[name] = &Instance{
			ID:   uuid.New().String(),
			Name: name,
			Kind: ic.Kind,
			cfg:  ic,
			inst: inst,
		}
		r.log.Infow("instrument built", "name", name, "kind", ic.Kind, "id", r.instances[name].ID)
	}

	// Wiring runs as a second pass so references may point anywhere
	// on the rack, regardless of declaration order.
	for _, name := range sortedNames(cfgs) {
		if err := r.wireLocked(r.instances[name]); err != nil {
			return err
		}
	}
	return nil
}

func (r *Rack) wireLocked(in *Instance) error {
	if len(in.cfg.Inputs) > 0 {
		taker, ok := in.inst.(instrument.InputTaker)
		if !ok {
			return fmt.Errorf("instrument '%s' (%s) takes no inputs", in.Name, in.Kind)
		}
		for _, ref := range in.cfg.Inputs {
			up, ok := r.instances[ref]
			if !ok {
				return fmt.Errorf("instrument '%s': input '%s' not found on rack", in.Name, ref)
			}
			src, ok := up.inst.(instrument.Source)
			if !ok {
				return fmt.Errorf("instrument '%s': input '%s' (%s) is not a source", in.Name, ref, up.Kind)
			}
			if err := taker.AddInput(src); err != nil {
				return fmt.Errorf("instrument '%s': %w", in.Name, err)
			}
			r.log.Infow("input wired", "name", in.Name, "source", ref)
		}
	}

	if in.cfg.Sampler != "" {
		taker, ok := in.inst.(instrument.SamplerTaker)
		if !ok {
			return fmt.Errorf("instrument '%s' (%s) takes no sampler", in.Name, in.Kind)
		}
		down, ok := r.instances[in.cfg.Sampler]
		if !ok {
			return fmt.Errorf("instrument '%s': sampler '%s' not found on rack", in.Name, in.cfg.Sampler)
		}
		smp, ok := down.inst.(instrument.Sampler)
		if !ok {
			return fmt.Errorf("instrument '%s': sampler '%s' (%s) has no acquisition settings", in.Name, in.cfg.Sampler, down.Kind)
		}
		taker.SetSampler(smp)
		r.log.Infow("sampler wired", "name", in.Name, "sampler", in.cfg.Sampler)
	}
	return nil
}

// StartAutostart starts the protocol server of every instrument marked
// autostart. A bind failure is fatal and aborts the rack.
func (r *Rack) StartAutostart() error {
	r.mu.Lock()
	names := sortedInstanceNames(r.instances)
	r.mu.Unlock()

	for _, name := range names {
		r.mu.Lock()
		auto := r.instances[name].cfg.Autostart
		r.mu.Unlock()
		if !auto {
			continue
		}
		if err := r.Start(name); err != nil {
			return err
		}
	}
	return nil
}

// Start binds and runs the protocol server of one instrument.
func (r *Rack) Start(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, ok := r.instances[name]
	if !ok {
		return fmt.Errorf("instrument '%s' not found on rack", name)
	}
	if in.srv != nil {
		return fmt.Errorf("instrument '%s' already started", name)
	}

	dev := in.inst.Device()
	srv := server.New(server.Config{
		Name:  in.Name,
		Bench: r.bench,
		Bind:  in.cfg.Bind,
		Port:  in.cfg.Port,
	}, dev.Dispatcher(), r.pub, r.log.Named(in.Name))
	dev.OnClose(srv.Stop)

	if err := srv.Start(); err != nil {
		return fmt.Errorf("instrument '%s': %w", in.Name, err)
	}
	in.srv = srv
	r.log.Infow("instrument online", "name", in.Name, "kind", in.Kind, "addr", srv.Addr())
	return nil
}

// Stop ends one instrument's server, letting open connections finish
// their current batch. The instrument stays built and can be started
// again.
func (r *Rack) Stop(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	in, ok := r.instances[name]
	if !ok {
		return fmt.Errorf("instrument '%s' not found on rack", name)
	}
	if in.srv == nil {
		return nil
	}
	in.srv.Stop()
	in.srv = nil
	r.log.Infow("instrument offline", "name", in.Name)
	return nil
}

// Addr returns the bound address of a started instrument.
func (r *Rack) Addr(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.instances[name]
	if !ok || in.srv == nil {
		return "", false
	}
	return in.srv.Addr(), true
}

// Instruments lists the built instrument names, sorted.
func (r *Rack) Instruments() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return sortedInstanceNames(r.instances)
}

// Shutdown stops every running server, waiting up to the context
// deadline for open connections, then releases instrument resources
// such as the scope's sweep loop.
func (r *Rack) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, name := range sortedInstanceNames(r.instances) {
		in := r.instances[name]
		if in.srv != nil {
			r.log.Infow("shutting down instrument", "name", in.Name)
			if err := in.srv.Shutdown(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
			in.srv = nil
		}
		if c, ok := in.inst.(io.Closer); ok {
			if err := c.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func sortedNames(cfgs map[string]configd.Instrument) []string {
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func sortedInstanceNames(m map[string]*Instance) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
