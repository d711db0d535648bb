package exec

import (
	"github.com/nooga/ecmacore/pkg/completion"
	ecerrors "github.com/nooga/ecmacore/pkg/errors"
	"github.com/nooga/ecmacore/pkg/values"
)

// compiledStatement pairs a statement with its FastResolve-cached
// completion, if any.
type compiledStatement struct {
	stmt   Statement
	cached *completion.Record
}

// CompiledList is a built statement list: build once,
// execute many times. Each Execute call produces a fresh fold over the
// statements, but per-statement build state (the FastResolve cache, and
// the suspended-resume index across a parked/resumed pair) is shared
// across calls on the same CompiledList.
type CompiledList struct {
	stmts []compiledStatement

	pendingResume bool
	resumeIndex   int
}

// Build compiles stmts into a CompiledList. When debug is true, FastResolve
// is disabled entirely so every statement is observably executed.
func Build(stmts []Statement, debug bool) *CompiledList {
	compiled := make([]compiledStatement, len(stmts))
	for i, s := range stmts {
		cs := compiledStatement{stmt: s}
		if !debug {
			if lit, ok := s.(LiteralStatement); ok {
				if rec, ok := lit.Literal(); ok {
					cs.cached = &rec
				}
			}
		}
		compiled[i] = cs
	}
	return &CompiledList{stmts: compiled}
}

// Execute folds the statement list into a single completion.
// On abrupt completion it stops and returns it immediately,
// carrying forward the prior lastSuccessfulValue when the abrupt
// completion itself has none. On suspension (a statement parked on a
// pending promise) it returns a Normal completion with Suspended set and
// remembers where to resume.
func (cl *CompiledList) Execute(ctx *Context) (completion.Record, error) {
	startIndex := 0
	resuming := cl.pendingResume
	if resuming {
		startIndex = cl.resumeIndex
	}

	var lastValue values.Value
	hasLast := false

	for i := startIndex; i < len(cl.stmts); i++ {
		cs := cl.stmts[i]

		var rec completion.Record
		var err error

		switch {
		case resuming && i == startIndex:
			suspendable, ok := cs.stmt.(Suspendable)
			if !ok {
				return completion.Record{}, ecerrors.NewInvariantError(
					"resume target at statement %d is not Suspendable", i)
			}
			rec, err = suspendable.Resume(ctx, ctx.ResumeValue, ctx.ResumeErr)
			cl.pendingResume = false
			resuming = false
		case cs.cached != nil && !ctx.Debug:
			rec = *cs.cached
		default:
			rec, err = cs.stmt.Execute(ctx)
		}

		if err != nil {
			mapped, mapErr := mapExceptionToThrow(ctx, err, cs.stmt)
			if mapErr != nil {
				// Any other exception is a host bug; surface unmodified.
				return completion.Record{}, mapErr
			}
			rec = mapped
		}

		if ctx.Suspended {
			cl.resumeIndex = i
			cl.pendingResume = true
			return completion.SuspendedNormal(), nil
		}

		if rec.IsAbrupt() {
			fallback := values.Undefined
			if hasLast {
				fallback = lastValue
			}
			return rec.WithFallbackValue(fallback), nil
		}

		if rec.HasValue {
			lastValue = rec.Value
			hasLast = true
		}
	}

	if hasLast {
		return completion.NormalValue(lastValue), nil
	}
	return completion.NormalValue(values.Undefined), nil
}

// mapExceptionToThrow converts an evaluator error at the statement boundary.
// *errors.JSException becomes a Throw carrying its value; *errors.TypeError
// and *errors.RangeError are constructed into realm-native error values via
// ctx.Realm and then wrapped as Throw. Any other error is returned as
// mapErr, signaling a host bug that must propagate unmodified.
func mapExceptionToThrow(ctx *Context, err error, src Statement) (completion.Record, error) {
	switch e := err.(type) {
	case *ecerrors.JSException:
		return completion.ThrowValue(e.Value, src), nil
	case *ecerrors.TypeError:
		return completion.ThrowValue(ctx.Realm.NewTypeError(e.Msg), src), nil
	case *ecerrors.RangeError:
		return completion.ThrowValue(ctx.Realm.NewRangeError(e.Msg), src), nil
	default:
		return completion.Record{}, err
	}
}
