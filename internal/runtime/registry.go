// Package runtime executes Manifest commands: it resolves a registered
// definition for an (entity, command) pair, evaluates its guards, applies the
// mutation, and writes outbox events and idempotency records inside one
// database transaction.
package runtime

import (
	"fmt"

	"github.com/angriff36/manifest/internal/model"
)

type registryKey struct {
	entity  string
	command string
}

// Registry holds immutable command definitions keyed by (entity, command).
// Populated once at process start; lookups at request time are a plain map
// miss, never reflection.
type Registry struct {
	defs map[registryKey]*Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[registryKey]*Definition)}
}

// Register adds a definition. Registering the same (entity, command) pair
// twice is a programming error.
func (r *Registry) Register(def *Definition) error {
	if def.Entity == "" || def.Command == "" {
		return fmt.Errorf("runtime: definition missing entity or command name")
	}
	k := registryKey{entity: def.Entity, command: def.Command}
	if _, exists := r.defs[k]; exists {
		return fmt.Errorf("runtime: command %s.%s already registered", def.Entity, def.Command)
	}
	r.defs[k] = def
	return nil
}

// MustRegister registers a definition and panics on conflict. Intended for
// static registration at startup.
func (r *Registry) MustRegister(def *Definition) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

// Resolve looks up the definition for an (entity, command) pair.
func (r *Registry) Resolve(entity, command string) (*Definition, error) {
	def, ok := r.defs[registryKey{entity: entity, command: command}]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", model.ErrUnknownCommand, entity, command)
	}
	return def, nil
}

// Commands returns every registered (entity, command) pair. Used by the HTTP
// adapter's discovery endpoint and by tests.
func (r *Registry) Commands() []struct{ Entity, Command string } {
	out := make([]struct{ Entity, Command string }, 0, len(r.defs))
	for k := range r.defs {
		out = append(out, struct{ Entity, Command string }{k.entity, k.command})
	}
	return out
}
