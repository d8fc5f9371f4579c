package dispatch

import (
	"errors"

	"go.uber.org/zap"

	"github.com/pfjsystems/virtbench/protocol"
)

// Dispatcher resolves parsed commands against a registry tree and
// renders every outcome as exactly one response line.
type Dispatcher struct {
	root     *Registry
	baseline *Registry
	log      *zap.SugaredLogger
}

// New creates a Dispatcher over a root namespace and the reserved '*'
// namespace. A nil logger disables dispatch logging.
func New(root, baseline *Registry, log *zap.SugaredLogger) *Dispatcher {
	if baseline == nil {
		baseline = NewRegistry(protocol.Baseline)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Dispatcher{root: root, baseline: baseline, log: log}
}

// Dispatch resolves and runs one command, returning the response line to
// send, terminator excluded. A command that reaches no handler is
// answered with an error line; a handler that fails is logged and
// acknowledged as if it had succeeded, leaving state untouched.
func (d *Dispatcher) Dispatch(cmd protocol.Command) string {
	reply, err := d.resolve(cmd)
	if err != nil {
		var cerr *protocol.CmdError
		if errors.As(err, &cerr) && cerr.Kind != protocol.BadArgument {
			d.log.Warnw("command not understood", "cmd", cmd.Raw, "err", err)
			return cerr.Wire()
		}
		d.log.Warnw("handler rejected command", "cmd", cmd.Raw, "err", err)
		return protocol.Ack
	}
	if reply == "" {
		return protocol.Ack
	}
	return reply
}

// DispatchBatch runs every command of one network read in arrival order
// and returns one response line per command.
func (d *Dispatcher) DispatchBatch(cmds []protocol.Command) []string {
	lines := make([]string, len(cmds))
	for i, cmd := range cmds {
		lines[i] = d.Dispatch(cmd)
	}
	return lines
}

func (d *Dispatcher) resolve(cmd protocol.Command) (string, error) {
	ns := d.root
	if cmd.IsBaseline() {
		ns = d.baseline
	} else {
		for _, tok := range cmd.Path {
			child, ok := ns.child(tok)
			if !ok {
				return "", protocol.NewUnknownNamespace(cmd, tok)
			}
			ns = child
		}
	}

	h, ok := ns.handler(cmd.Leaf)
	if !ok {
		return "", protocol.NewUnknownCommand(cmd)
	}
	return h(protocol.Args(cmd.Args))
}
