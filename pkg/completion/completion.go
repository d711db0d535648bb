// Package completion implements the uniform result carrier for statement
// execution: a CompletionRecord tagged Normal, Break,
// Continue, Return, or Throw, with an optional value and an opaque source
// element used only for diagnostics.
package completion

import "github.com/nooga/ecmacore/pkg/values"

// Type is the completion's control-flow tag.
type Type int

const (
	Normal Type = iota
	Break
	Continue
	Return
	Throw
)

func (t Type) String() string {
	switch t {
	case Normal:
		return "normal"
	case Break:
		return "break"
	case Continue:
		return "continue"
	case Return:
		return "return"
	case Throw:
		return "throw"
	default:
		return "invalid"
	}
}

// SourceElement is an opaque AST reference carried on a completion purely
// for diagnostics; the core never dereferences it.
type SourceElement any

// Record is the uniform result of executing a statement or statement list.
//
// Invariant: a Throw completion always carries a value (the error object);
// HasValue is always true when Type == Throw; constructing one any other
// way is a programmer error in this package's callers.
type Record struct {
	Type     Type
	Value    values.Value
	HasValue bool
	// Target is the label for Break/Continue, or empty for an unlabeled one.
	Target string
	Source SourceElement
	// Suspended marks a Normal completion produced when a statement parked
	// on a pending promise mid-evaluation: higher layers
	// must stop folding and propagate it unchanged rather than treat it as
	// the statement list's final value.
	Suspended bool
}

// SuspendedNormal constructs the Normal-with-suspended-flag completion the
// statement list executor propagates when a statement parks on a pending
// promise.
func SuspendedNormal() Record {
	return Record{Type: Normal, Suspended: true}
}

// IsAbrupt reports whether this completion is anything other than Normal;
// the signal the statement list executor uses to stop folding and propagate.
func (r Record) IsAbrupt() bool { return r.Type != Normal }

// NormalValue constructs a Normal completion carrying v.
func NormalValue(v values.Value) Record {
	return Record{Type: Normal, Value: v, HasValue: true}
}

// NormalEmpty constructs a Normal completion with no value; the statement
// executor folds an empty value forward from the previous statement's
// lastSuccessfulValue.
func NormalEmpty() Record {
	return Record{Type: Normal}
}

// ThrowValue constructs a Throw completion. err must be non-nil; per the
// data model invariant a Throw completion always carries a value.
func ThrowValue(err values.Value, src SourceElement) Record {
	return Record{Type: Throw, Value: err, HasValue: true, Source: src}
}

// BreakTarget constructs a Break completion, optionally labeled.
func BreakTarget(label string) Record {
	return Record{Type: Break, Target: label}
}

// ContinueTarget constructs a Continue completion, optionally labeled.
func ContinueTarget(label string) Record {
	return Record{Type: Continue, Target: label}
}

// ReturnValue constructs a Return completion carrying v.
func ReturnValue(v values.Value) Record {
	return Record{Type: Return, Value: v, HasValue: true}
}

// ValueOrDefault returns the completion's carried value if present, or
// fallback otherwise; this is how the executor applies ECMAScript's
// "value of completion" rule when an abrupt completion has no value of its
// own.
func (r Record) ValueOrDefault(fallback values.Value) values.Value {
	if r.HasValue {
		return r.Value
	}
	return fallback
}

// WithFallbackValue returns a copy of r with its value replaced by fallback
// when r has no value of its own; used by the statement list executor to
// carry the prior lastSuccessfulValue into an abrupt completion that has
// none.
func (r Record) WithFallbackValue(fallback values.Value) Record {
	if r.HasValue {
		return r
	}
	r.Value = fallback
	r.HasValue = true
	return r
}
