package modules

import (
	"fmt"

	"github.com/nooga/ecmacore/pkg/values"
)

// Environment is the module-scoped lexical environment InitializeEnvironment
// builds. It is deliberately narrow: only the binding kinds the linker and
// statement executor need, not a general environment record: hoisted
// var/let/const/function bindings, import bindings forwarding into another
// module's environment, and namespace bindings.
type Environment struct {
	bindings map[string]binding
}

// NewEnvironment creates an empty module environment. The realm's global
// environment it conceptually extends belongs to the host; this type only
// tracks module-local bindings.
func NewEnvironment() *Environment {
	return &Environment{bindings: make(map[string]binding)}
}

// Get reads a binding's current value. Returns an error if the name is
// unbound or still uninitialized (a lexical temporal-dead-zone read).
func (e *Environment) Get(name string) (values.Value, error) {
	b, ok := e.bindings[name]
	if !ok {
		return nil, fmt.Errorf("unbound name %q", name)
	}
	return b.get()
}

// Set assigns a binding's value. Returns an error for unbound names,
// initialized immutable bindings (const), namespace bindings, or
// assignment to a forwarded import binding (imports are always immutable
// from the importing module's side). Set on a still-uninitialized const
// binding initializes it.
func (e *Environment) Set(name string, v values.Value) error {
	b, ok := e.bindings[name]
	if !ok {
		return fmt.Errorf("unbound name %q", name)
	}
	return b.set(v)
}

// Has reports whether name is bound in this environment.
func (e *Environment) Has(name string) bool {
	_, ok := e.bindings[name]
	return ok
}

// DefineMutable creates a mutable binding already initialized to initial
// (var hoisting, function declarations).
func (e *Environment) DefineMutable(name string, initial values.Value) {
	e.bindings[name] = &localBinding{value: initial, initialized: true}
}

// DefineImmutable creates an immutable binding initialized to initial
// (an initialized `const`).
func (e *Environment) DefineImmutable(name string, initial values.Value) {
	e.bindings[name] = &localBinding{value: initial, initialized: true, immutable: true}
}

// DefineUninitialized reserves a lexical binding (`let`/`const`) before its
// declaration executes; reading it before initialization is a TDZ error.
func (e *Environment) DefineUninitialized(name string, immutable bool) {
	e.bindings[name] = &localBinding{immutable: immutable}
}

// Initialize completes a previously-uninitialized lexical binding the first
// time its declaration executes.
func (e *Environment) Initialize(name string, v values.Value) error {
	b, ok := e.bindings[name].(*localBinding)
	if !ok {
		return fmt.Errorf("cannot initialize unknown binding %q", name)
	}
	b.value = v
	b.initialized = true
	return nil
}

// DefineImportBinding creates a pointer-like binding: local reads forward to
// target's binding at resolvedName. Import bindings are always immutable
// from the importing side.
func (e *Environment) DefineImportBinding(localName string, target *Environment, resolvedName string) {
	e.bindings[localName] = &importBinding{target: target, name: resolvedName}
}

// DefineNamespaceBinding binds localName to an immutable namespace object
// value (a star import, or a namespace re-export's "*namespace*" binding).
func (e *Environment) DefineNamespaceBinding(localName string, namespace values.Value) {
	e.bindings[localName] = &namespaceBinding{value: namespace}
}

type binding interface {
	get() (values.Value, error)
	set(v values.Value) error
}

type localBinding struct {
	value       values.Value
	initialized bool
	immutable   bool
}

func (b *localBinding) get() (values.Value, error) {
	if !b.initialized {
		return nil, fmt.Errorf("cannot access binding before initialization")
	}
	return b.value, nil
}

func (b *localBinding) set(v values.Value) error {
	if b.immutable && b.initialized {
		return fmt.Errorf("assignment to constant binding")
	}
	b.value = v
	b.initialized = true
	return nil
}

type importBinding struct {
	target *Environment
	name   string
}

func (b *importBinding) get() (values.Value, error) { return b.target.Get(b.name) }
func (b *importBinding) set(v values.Value) error {
	return fmt.Errorf("assignment to import binding")
}

type namespaceBinding struct {
	value values.Value
}

func (b *namespaceBinding) get() (values.Value, error) { return b.value, nil }
func (b *namespaceBinding) set(v values.Value) error {
	return fmt.Errorf("assignment to namespace binding")
}
