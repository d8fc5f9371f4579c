package dispatch

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfjsystems/virtbench/protocol"
)

func newTestDispatcher() (*Dispatcher, *Registry, *Registry) {
	root := NewRegistry("")
	baseline := NewRegistry(protocol.Baseline)
	return New(root, baseline, nil), root, baseline
}

func dispatchLine(d *Dispatcher, line string) string {
	cmds := protocol.Split([]byte(line + "\n"))
	return d.Dispatch(cmds[0])
}

func TestDispatchQueryAndAck(t *testing.T) {
	d, root, _ := newTestDispatcher()

	var volts float64
	root.Register("volt?", func(protocol.Args) (string, error) {
		return "2.500", nil
	})
	root.Register("volt", func(args protocol.Args) (string, error) {
		v, err := args.Float(0)
		if err != nil {
			return "", err
		}
		volts = v
		return "", nil
	})

	assert.Equal(t, "2.500", dispatchLine(d, "volt?"))
	assert.Equal(t, protocol.Ack, dispatchLine(d, "volt 3.3"))
	assert.Equal(t, 3.3, volts)
}

func TestDispatchNamespaceDescent(t *testing.T) {
	d, root, _ := newTestDispatcher()

	root.Namespace("meas").Register("volt?", func(protocol.Args) (string, error) {
		return "0.001", nil
	})

	assert.Equal(t, "0.001", dispatchLine(d, "meas:volt?"))

	// Same leaf at root is a separate binding.
	assert.Contains(t, dispatchLine(d, "volt?"), "unknown command")
}

func TestDispatchUnknownNamespace(t *testing.T) {
	d, root, _ := newTestDispatcher()
	root.Namespace("freq")

	line := dispatchLine(d, "nosuch:freq 10")
	assert.Equal(t, "Error: Command 'nosuch:freq 10' not understood: unknown namespace 'nosuch'.", line)

	// The first unresolved token is the one reported.
	line = dispatchLine(d, "freq:deeper:freq 10")
	assert.Contains(t, line, "unknown namespace 'deeper'")
}

func TestDispatchUnknownCommand(t *testing.T) {
	d, _, _ := newTestDispatcher()
	line := dispatchLine(d, "bogus")
	assert.Equal(t, "Error: Command 'bogus' not understood: unknown command 'bogus'.", line)
}

func TestDispatchBaselineStar(t *testing.T) {
	d, root, baseline := newTestDispatcher()

	baseline.Register("*idn?", func(protocol.Args) (string, error) {
		return "ACME Instruments", nil
	})
	root.Register("test?", func(protocol.Args) (string, error) {
		return "Communication test successful!", nil
	})

	assert.Equal(t, "ACME Instruments", dispatchLine(d, "*idn?"))
	assert.Equal(t, "Communication test successful!", dispatchLine(d, "test?"))

	// A starred leaf under a path goes through the regular tree.
	assert.Contains(t, dispatchLine(d, "meas:*idn?"), "unknown namespace")
}

// A handler error must not surface on the wire: the client sees a plain
// acknowledgment and the handler leaves its state alone.
func TestDispatchHandlerErrorAcks(t *testing.T) {
	d, root, _ := newTestDispatcher()

	volts := 1.25
	root.Register("volt", func(args protocol.Args) (string, error) {
		v, err := args.Float(0)
		if err != nil {
			return "", err
		}
		volts = v
		return "", nil
	})

	assert.Equal(t, protocol.Ack, dispatchLine(d, "volt abc"))
	assert.Equal(t, 1.25, volts)

	assert.Equal(t, protocol.Ack, dispatchLine(d, "volt"))
	assert.Equal(t, 1.25, volts)
}

func TestDispatchBatchOrder(t *testing.T) {
	d, root, _ := newTestDispatcher()

	n := 0
	root.Register("bump", func(protocol.Args) (string, error) {
		n++
		return "", nil
	})
	root.Register("n?", func(protocol.Args) (string, error) {
		return strconv.Itoa(n), nil
	})

	lines := d.DispatchBatch(protocol.Split([]byte("n?\nbump\nbump\nn?\n")))
	require.Equal(t, []string{"0", "1", "1", "2"}, lines)
}

func TestRegistryDuplicatePanics(t *testing.T) {
	root := NewRegistry("")
	root.Register("volt?", func(protocol.Args) (string, error) { return "", nil })

	assert.PanicsWithValue(t, "dispatch: handler already registered: volt?", func() {
		root.Register("volt?", func(protocol.Args) (string, error) { return "", nil })
	})

	// Reusing a namespace is not a duplicate; the same child comes back.
	ns := root.Namespace("meas")
	assert.Same(t, ns, root.Namespace("meas"))
}

func TestRegistryTokensFoldedLower(t *testing.T) {
	d, root, _ := newTestDispatcher()
	root.Register("VOLT?", func(protocol.Args) (string, error) { return "ok", nil })

	assert.Equal(t, "ok", dispatchLine(d, "volt?"))
	assert.Equal(t, "ok", dispatchLine(d, "VOLT?"))
}
