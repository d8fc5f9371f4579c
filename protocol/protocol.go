// Package protocol defines the wire format shared by virtual instruments
// and their clients: newline-terminated text commands with hierarchical
// colon-separated namespace addressing, SCPI style. It can be used
// externally to build additional tooling or integrations.
package protocol

import "strings"

// Wire constants.
const (
	// Terminator ends every request and response line.
	Terminator = "\n"

	// Ack is the fixed literal sent when a handler acknowledges a
	// command without returning a payload.
	Ack = "1"

	// ErrorPrefix starts every error response line.
	ErrorPrefix = "Error: "

	// MaxRequestBytes bounds a single socket read. One read may carry
	// several commands; each is answered in arrival order.
	MaxRequestBytes = 1024000

	// Baseline is the reserved prefix selecting the common
	// instrument-status namespace (*idn?, *rst, ...).
	Baseline = "*"
)

// Command is one parsed request: the namespace path walked to reach the
// handler, the leaf token naming it, and any argument tokens.
type Command struct {
	Path []string // namespace tokens, outermost first; empty for root
	Leaf string   // command token, lower-cased, queries end in '?'
	Args []string // argument tokens, lower-cased, passed through as strings
	Raw  string   // full lower-cased command text, kept for error reporting
}

// IsBaseline reports whether the command addresses the reserved '*'
// namespace: no path and a '*'-prefixed leaf.
func (c Command) IsBaseline() bool {
	return len(c.Path) == 0 && strings.HasPrefix(c.Leaf, Baseline)
}

// PathString returns the namespace path joined with ':', or "" for root.
func (c Command) PathString() string {
	return strings.Join(c.Path, ":")
}
