// Package await implements the suspension bridge between synchronous
// statement execution and externally resolved promises.
// It has no dependency on the statement executor or module graph; it only
// knows how to turn an already-evaluated value into either an immediate
// result, an immediate JS exception, or a still-pending promise the caller
// must park on.
package await

import (
	ecerrors "github.com/nooga/ecmacore/pkg/errors"
	"github.com/nooga/ecmacore/pkg/promise"
	"github.com/nooga/ecmacore/pkg/runtime"
	"github.com/nooga/ecmacore/pkg/values"
)

// Bridge evaluates an awaited value against a single engine's continuation
// queue.
type Bridge struct {
	Queue runtime.ContinuationQueue
}

// New creates a Bridge bound to queue.
func New(queue runtime.ContinuationQueue) *Bridge {
	return &Bridge{Queue: queue}
}

// Resolve applies the await contract to an already-evaluated value v
// (evaluating the awaited expression itself is the external evaluator's
// job; this bridge only handles what happens to its result):
//
//   - v is not a promise: returns (v, nil, nil); passthrough.
//   - v is a settled, fulfilled promise: returns (settledValue, nil, nil).
//   - v is a settled, rejected promise: returns (nil, JSException, nil);
//     the caller must fold this into a Throw completion sourced at the
//     await expression.
//   - v is pending: first drains the continuation queue, since some queued
//     reaction may settle it synchronously; if it is still pending after
//     draining, returns (nil, nil, v's *promise.Promise); the caller must
//     suspend, keyed by that pending promise.
func (b *Bridge) Resolve(v values.Value) (result values.Value, err error, pending *promise.Promise) {
	p, ok := v.(*promise.Promise)
	if !ok {
		return v, nil, nil
	}

	if p.State() == promise.Pending {
		b.Queue.RunUntilIdle()
	}

	switch p.State() {
	case promise.Fulfilled:
		return p.Value(), nil, nil
	case promise.Rejected:
		return nil, &ecerrors.JSException{Value: p.Value()}, nil
	default:
		return nil, nil, p
	}
}
