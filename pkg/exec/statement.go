package exec

import "github.com/nooga/ecmacore/pkg/completion"

// Statement is the narrow AST contract the executor consumes: a module
// body is an ordered list of these. Execute must set
// ctx.Suspended (and ctx.SuspendValue) rather than block when it parks on a
// pending promise.
type Statement interface {
	Execute(ctx *Context) (completion.Record, error)
}

// LiteralStatement is implemented by statements whose completion is
// statically determinable (a bare literal at statement position, certain
// trivial returns); the FastResolve optimization precomputes Literal()
// once at build time and reuses it on every execution, bypassing Execute
// entirely, unless the context is in debug mode.
type LiteralStatement interface {
	Statement
	Literal() (completion.Record, bool)
}

// Suspendable is implemented by statements that may park on a pending
// promise mid-evaluation (an expression statement containing an `await`).
// When Execute sets ctx.Suspended, the executor records this statement's
// index and, on the next Execute call on the same CompiledList, calls
// Resume instead of Execute for it.
type Suspendable interface {
	Statement
	Resume(ctx *Context, resumeValue any, resumeErr error) (completion.Record, error)
}
