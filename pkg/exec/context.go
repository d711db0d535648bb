// Package exec implements the statement-list executor:
// folding an ordered sequence of statement AST nodes into a single
// completion, with FastResolve literal caching and host-exception-to-Throw
// mapping. The lexer/parser/expression evaluator are external
// collaborators; this package only defines the narrow Statement/Evaluator
// contract a host AST must satisfy to be run here.
package exec

import (
	"github.com/nooga/ecmacore/pkg/host"
	"github.com/nooga/ecmacore/pkg/runtime"
	"github.com/nooga/ecmacore/pkg/values"
)

// Expression is an opaque, externally-produced expression AST node. The
// executor never inspects one itself; it only hands it to the Evaluator.
type Expression any

// Evaluator evaluates non-control-flow expressions, an external
// collaborator like the parser. Errors returned may be one of
// *errors.TypeError, *errors.RangeError, or *errors.JSException, which the
// executor maps to Throw completions at the statement boundary; any other
// error is treated as a host bug and surfaced unmodified.
type Evaluator interface {
	EvaluateExpression(expr Expression, ctx *Context) (values.Value, error)
}

// Context carries everything a single statement's Execute/Resume needs:
// the expression evaluator, the engine's continuation queue and realm
// error constructors, the debug-mode flag FastResolve must honor, and the
// in-flight suspension/resume state the await bridge and this package's
// executor coordinate through.
type Context struct {
	Evaluator Evaluator
	Queue     runtime.ContinuationQueue
	Realm     host.Realm
	// Debug disables FastResolve: every statement must be observably
	// executed.
	Debug bool
	// Environment is an opaque, externally-owned binding record (module or
	// function scope). The executor passes it through to the evaluator
	// without interpreting it.
	Environment any

	// Suspended and SuspendValue are set by a statement's Execute/Resume
	// when it parks on a pending promise; the executor reads Suspended
	// immediately after the call and must not consult SuspendValue unless
	// it is set.
	Suspended    bool
	SuspendValue values.Value

	// ResumeValue/ResumeErr carry the settled await result into the next
	// Resume call; ResumeErr is set when the awaited promise rejected.
	ResumeValue values.Value
	ResumeErr   error
}
