// Package promise implements the ECMAScript Promise state machine:
// Pending→Fulfilled/Rejected transitions, reaction queues, and capability
// (resolve/reject) creation. A Promise here owns no prototype chain or
// property storage (the object model belongs to the host), only state,
// result, and reaction queues.
package promise

import (
	"fmt"

	"github.com/nooga/ecmacore/pkg/host"
	"github.com/nooga/ecmacore/pkg/runtime"
	"github.com/nooga/ecmacore/pkg/values"
)

// State is the promise's lifecycle state. Once non-Pending it
// is immutable; transitions are one-shot.
type State int

const (
	Pending State = iota
	Fulfilled
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "invalid"
	}
}

// Reaction represents a callback registered via PerformThen: either a
// handler function to invoke, or (when Handler is absent) a pass-through
// that forwards the settled value/reason to the paired resolve/reject.
type Reaction struct {
	Handler    values.Value
	HasHandler bool
	Resolve    func(values.Value)
	Reject     func(values.Value)
}

// Promise is a JavaScript Promise. Owns its own reaction queues, and is
// shared: any number of reactions and capability holders may reference the
// same *Promise.
type Promise struct {
	state            State
	result           values.Value
	fulfillReactions []Reaction
	rejectReactions  []Reaction
}

// New creates a new Pending promise with no reactions registered.
func New() *Promise {
	return &Promise{state: Pending}
}

// State returns the promise's current state.
func (p *Promise) State() State { return p.state }

// Value returns the settled value or rejection reason. Precondition: the
// promise must not be Pending.
func (p *Promise) Value() values.Value { return p.result }

// Capability is a promise paired with its single-use resolve/reject
// functions. Resolve/Reject settle exactly
// one promise; the second call on either is a no-op.
type Capability struct {
	Promise *Promise
	queue   runtime.ContinuationQueue
	realm   host.Realm
}

// NewCapability creates a new pending promise and its capability. queue is
// the engine-scoped continuation queue reactions are scheduled onto; realm
// supplies the TypeError constructor used when resolve is handed a promise
// that would resolve to itself.
func NewCapability(queue runtime.ContinuationQueue, realm host.Realm) *Capability {
	return &Capability{Promise: New(), queue: queue, realm: realm}
}

// Resolve fulfills the capability's promise, unwrapping thenables.
// Idempotent: a second call on an already-settled promise is a no-op.
func (c *Capability) Resolve(value values.Value) {
	resolvePromise(c.queue, c.realm, c.Promise, value)
}

// Reject rejects the capability's promise with reason. Idempotent.
func (c *Capability) Reject(reason values.Value) {
	rejectPromise(c.queue, c.Promise, reason)
}

func resolvePromise(queue runtime.ContinuationQueue, realm host.Realm, p *Promise, value values.Value) {
	if p.state != Pending {
		return
	}

	if other, ok := value.(*Promise); ok {
		if other == p {
			rejectPromise(queue, p, realm.NewTypeError("Chaining cycle detected for promise"))
			return
		}
		switch other.state {
		case Fulfilled:
			value = other.result
		case Rejected:
			rejectPromise(queue, p, other.result)
			return
		default: // Pending: chain to it.
			addReaction(queue, other, true, func(v values.Value) { resolvePromise(queue, realm, p, v) })
			addReaction(queue, other, false, func(r values.Value) { rejectPromise(queue, p, r) })
			return
		}
	} else if th, ok := values.AsThenable(value); ok {
		queue.Enqueue(func() {
			_, err := th.Then(
				values.Value(callbackValue(func(args []values.Value) (values.Value, error) {
					v := values.Undefined
					if len(args) > 0 {
						v = args[0]
					}
					resolvePromise(queue, realm, p, v)
					return values.Undefined, nil
				})),
				values.Value(callbackValue(func(args []values.Value) (values.Value, error) {
					r := values.Undefined
					if len(args) > 0 {
						r = args[0]
					}
					rejectPromise(queue, p, r)
					return values.Undefined, nil
				})),
			)
			if err != nil {
				rejectPromise(queue, p, realm.NewTypeError(err.Error()))
			}
		})
		return
	}

	p.state = Fulfilled
	p.result = value
	triggerReactions(queue, p, true)
}

func rejectPromise(queue runtime.ContinuationQueue, p *Promise, reason values.Value) {
	if p.state != Pending {
		return
	}
	p.state = Rejected
	p.result = reason
	triggerReactions(queue, p, false)
}

// callbackValue adapts a Go closure to values.Callable so it can be handed
// to an external Thenable's Then method.
type callbackValue func(args []values.Value) (values.Value, error)

func (f callbackValue) Call(thisArg values.Value, args []values.Value) (values.Value, error) {
	return f(args)
}

func triggerReactions(queue runtime.ContinuationQueue, p *Promise, fulfilled bool) {
	var reactions []Reaction
	if fulfilled {
		reactions = p.fulfillReactions
		p.fulfillReactions = nil
	} else {
		reactions = p.rejectReactions
		p.rejectReactions = nil
	}

	for _, reaction := range reactions {
		reaction := reaction
		value := p.result
		queue.Enqueue(func() {
			if !reaction.HasHandler {
				if fulfilled {
					reaction.Resolve(value)
				} else {
					reaction.Reject(value)
				}
				return
			}
			callable, ok := values.AsCallable(reaction.Handler)
			if !ok {
				if fulfilled {
					reaction.Resolve(value)
				} else {
					reaction.Reject(value)
				}
				return
			}
			result, err := callable.Call(values.Undefined, []values.Value{value})
			if err != nil {
				reaction.Reject(err)
				return
			}
			reaction.Resolve(result)
		})
	}
}

// OnSettle registers two native Go callbacks directly against p's reaction
// queues, bypassing the JS-visible .then machinery entirely. This is how
// the async module driver attaches AsyncModuleExecutionFulfilled/Rejected
// to a module's execution promise without
// allocating a chained promise or going through a values.Callable handler.
func OnSettle(queue runtime.ContinuationQueue, p *Promise, onFulfilled, onRejected func(values.Value)) {
	addReaction(queue, p, true, onFulfilled)
	addReaction(queue, p, false, onRejected)
}

func addReaction(queue runtime.ContinuationQueue, p *Promise, fulfilled bool, callback func(values.Value)) {
	reaction := Reaction{Resolve: callback, Reject: callback}
	if fulfilled {
		p.fulfillReactions = append(p.fulfillReactions, reaction)
		if p.state == Fulfilled {
			triggerReactions(queue, p, true)
		}
	} else {
		p.rejectReactions = append(p.rejectReactions, reaction)
		if p.state == Rejected {
			triggerReactions(queue, p, false)
		}
	}
}

// PerformThen implements PerformPromiseThen (ECMA-262 27.2.5.4.1): registers
// onFulfilled/onRejected against p, returning a freshly created chained
// promise (the result capability, always allocated here).
// If p is already settled, the matching reaction is scheduled onto the
// continuation queue immediately, never run synchronously.
func PerformThen(queue runtime.ContinuationQueue, realm host.Realm, p *Promise, onFulfilled, onRejected values.Value) *Promise {
	result := NewCapability(queue, realm)

	fulfillReaction := Reaction{
		Resolve: result.Resolve,
		Reject:  result.Reject,
	}
	if callable, ok := values.AsCallable(onFulfilled); ok {
		fulfillReaction.Handler = callable
		fulfillReaction.HasHandler = true
	}

	rejectReaction := Reaction{
		Resolve: result.Resolve,
		Reject:  result.Reject,
	}
	if callable, ok := values.AsCallable(onRejected); ok {
		rejectReaction.Handler = callable
		rejectReaction.HasHandler = true
	}

	p.fulfillReactions = append(p.fulfillReactions, fulfillReaction)
	p.rejectReactions = append(p.rejectReactions, rejectReaction)

	switch p.state {
	case Fulfilled:
		triggerReactions(queue, p, true)
	case Rejected:
		triggerReactions(queue, p, false)
	}

	return result.Promise
}

// FromExecutor runs executor(resolve, reject) synchronously, the way a
// `new Promise(executor)` construction does, and returns the resulting
// promise.
func FromExecutor(queue runtime.ContinuationQueue, realm host.Realm, executor values.Callable) (*Promise, error) {
	cap := NewCapability(queue, realm)

	resolveFn := callbackValue(func(args []values.Value) (values.Value, error) {
		v := values.Undefined
		if len(args) > 0 {
			v = args[0]
		}
		cap.Resolve(v)
		return values.Undefined, nil
	})
	rejectFn := callbackValue(func(args []values.Value) (values.Value, error) {
		r := values.Undefined
		if len(args) > 0 {
			r = args[0]
		}
		cap.Reject(r)
		return values.Undefined, nil
	})

	if _, err := executor.Call(values.Undefined, []values.Value{resolveFn, rejectFn}); err != nil {
		cap.Reject(fmt.Sprintf("%v", err))
	}

	return cap.Promise, nil
}

// Resolved creates an already-fulfilled promise.
func Resolved(value values.Value) *Promise {
	return &Promise{state: Fulfilled, result: value}
}

// RejectedWith creates an already-rejected promise.
func RejectedWith(reason values.Value) *Promise {
	return &Promise{state: Rejected, result: reason}
}
