// Package dispatch provides the command registry and dispatcher that
// route parsed protocol commands to instrument handlers.
package dispatch

import (
	"strings"

	"github.com/pfjsystems/virtbench/protocol"
)

// HandlerFunc is the signature of a command handler. The reply becomes
// the response payload; an empty reply is acknowledged with
// protocol.Ack. A returned error is logged and acknowledged without
// touching instrument state, so one bad command never stalls a batch.
type HandlerFunc func(args protocol.Args) (string, error)

// Registry is one namespace level of the command tree: leaf handlers
// plus child namespaces. Trees are assembled during instrument setup and
// must not change once a dispatcher serves them, which keeps lookups
// free of locking.
type Registry struct {
	name     string
	handlers map[string]HandlerFunc
	children map[string]*Registry
}

// NewRegistry returns an empty namespace. The name appears in panic
// messages and logs; use "" for a root.
func NewRegistry(name string) *Registry {
	return &Registry{
		name:     name,
		handlers: make(map[string]HandlerFunc),
		children: make(map[string]*Registry),
	}
}

// Register binds a leaf token to a handler. Tokens are folded to lower
// case to match the parser. Binding a token twice is a wiring mistake in
// the instrument definition and panics.
func (r *Registry) Register(token string, h HandlerFunc) {
	token = strings.ToLower(token)
	if _, exists := r.handlers[token]; exists {
		panic("dispatch: handler already registered: " + r.qualify(token))
	}
	r.handlers[token] = h
}

// Namespace returns the child namespace for token, creating it on first
// use so several components can hang commands under a shared prefix.
func (r *Registry) Namespace(token string) *Registry {
	token = strings.ToLower(token)
	if child, ok := r.children[token]; ok {
		return child
	}
	child := NewRegistry(r.qualify(token))
	r.children[token] = child
	return child
}

func (r *Registry) handler(token string) (HandlerFunc, bool) {
	h, ok := r.handlers[token]
	return h, ok
}

func (r *Registry) child(token string) (*Registry, bool) {
	c, ok := r.children[token]
	return c, ok
}

func (r *Registry) qualify(token string) string {
	if r.name == "" {
		return token
	}
	return r.name + ":" + token
}
