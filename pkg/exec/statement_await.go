package exec

import (
	"github.com/nooga/ecmacore/pkg/await"
	"github.com/nooga/ecmacore/pkg/completion"
	ecerrors "github.com/nooga/ecmacore/pkg/errors"
)

// AwaitExpressionStatement evaluates an expression containing a top-level
// `await` and, if the awaited value is a still-pending promise, parks the
// list executor rather than blocking. Bridge does the
// promise-state inspection; this statement only owns the suspend/resume
// bookkeeping the executor's Suspendable contract expects.
type AwaitExpressionStatement struct {
	Expr   Expression
	Bridge *await.Bridge
}

func (s *AwaitExpressionStatement) Execute(ctx *Context) (completion.Record, error) {
	v, err := ctx.Evaluator.EvaluateExpression(s.Expr, ctx)
	if err != nil {
		return completion.Record{}, err
	}
	return s.settle(ctx, v)
}

// Resume is invoked by the executor once the promise this statement parked
// on has settled; resumeErr is set when it rejected.
func (s *AwaitExpressionStatement) Resume(ctx *Context, resumeValue any, resumeErr error) (completion.Record, error) {
	if resumeErr != nil {
		if jsErr, ok := resumeErr.(*ecerrors.JSException); ok {
			return completion.ThrowValue(jsErr.Value, s), nil
		}
		return completion.Record{}, resumeErr
	}
	return completion.NormalValue(resumeValue), nil
}

func (s *AwaitExpressionStatement) settle(ctx *Context, v any) (completion.Record, error) {
	result, err, pending := s.Bridge.Resolve(v)
	if pending != nil {
		ctx.Suspended = true
		ctx.SuspendValue = pending
		return completion.Record{}, nil
	}
	if err != nil {
		if jsErr, ok := err.(*ecerrors.JSException); ok {
			return completion.ThrowValue(jsErr.Value, s), nil
		}
		return completion.Record{}, err
	}
	return completion.NormalValue(result), nil
}
