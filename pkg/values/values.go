// Package values defines the narrow value contract the core depends on.
// The object model and intrinsics (Object, Array, error constructors,
// property descriptors, ...) are external collaborators; this
// package only names the handful of behaviors the module linker, statement
// executor, and promise/await machinery must be able to ask of an opaque
// host value.
package values

// Value is an opaque ECMAScript value owned by the host's object model.
// The core never inspects a Value's shape directly; it only asks the
// host-provided predicates below, or passes it through unexamined (e.g. a
// completion's carried value, a promise's settled result).
type Value = any

// Undefined is the zero Value, used as the default completion/export value
// when no host value is available.
var Undefined Value = nil

// Callable is implemented by host values that can be invoked as functions
// (e.g. a promise executor, a .then handler, an async function body).
type Callable interface {
	Call(thisArg Value, args []Value) (Value, error)
}

// Thenable is implemented by host values that expose a callable `then`
// without being one of this package's own *promise.Promise values;
// `resolve(x)` must unwrap such thenables by chaining to them the same way
// it chains to a native promise.
type Thenable interface {
	Then(onFulfilled, onRejected Value) (Value, error)
}

// AsCallable reports whether v implements Callable.
func AsCallable(v Value) (Callable, bool) {
	c, ok := v.(Callable)
	return c, ok
}

// AsThenable reports whether v implements Thenable.
func AsThenable(v Value) (Thenable, bool) {
	t, ok := v.(Thenable)
	return t, ok
}
