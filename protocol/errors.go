package protocol

import "fmt"

// ErrorKind classifies a command failure.
type ErrorKind int

const (
	// UnknownNamespace means a path token matched no registered namespace.
	UnknownNamespace ErrorKind = iota
	// UnknownCommand means the path resolved but the leaf is not registered.
	UnknownCommand
	// BadArgument means a handler rejected one of its argument tokens.
	BadArgument
)

func (k ErrorKind) String() string {
	switch k {
	case UnknownNamespace:
		return "unknown namespace"
	case UnknownCommand:
		return "unknown command"
	case BadArgument:
		return "bad argument"
	default:
		return "unknown error"
	}
}

// CmdError is a typed command failure. The kind selects the wire
// treatment: resolution failures are reported back to the client while
// argument failures are logged and acknowledged (see package dispatch).
type CmdError struct {
	Kind   ErrorKind
	Token  string // offending path token, leaf, or argument
	Raw    string // full command text as received
	Detail string // optional human detail for logs
}

func (e *CmdError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s %q: %s", e.Kind, e.Token, e.Detail)
	}
	return fmt.Sprintf("%s %q in %q", e.Kind, e.Token, e.Raw)
}

// Wire renders the failure as a response line, terminator excluded.
func (e *CmdError) Wire() string {
	return fmt.Sprintf("%sCommand '%s' not understood: %s '%s'.", ErrorPrefix, e.Raw, e.Kind, e.Token)
}

// NewUnknownNamespace reports that token, part of cmd's path, named no
// registered namespace.
func NewUnknownNamespace(cmd Command, token string) *CmdError {
	return &CmdError{Kind: UnknownNamespace, Token: token, Raw: cmd.Raw}
}

// NewUnknownCommand reports that cmd's leaf is not registered in the
// namespace its path resolved to.
func NewUnknownCommand(cmd Command) *CmdError {
	return &CmdError{Kind: UnknownCommand, Token: cmd.Leaf, Raw: cmd.Raw}
}

// NewBadArgument reports an argument token a handler could not use.
func NewBadArgument(token, detail string) *CmdError {
	return &CmdError{Kind: BadArgument, Token: token, Detail: detail}
}
