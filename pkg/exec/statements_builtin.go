package exec

import (
	"github.com/nooga/ecmacore/pkg/completion"
	"github.com/nooga/ecmacore/pkg/values"
)

// LiteralReturn is a return statement whose operand is a constant, computed
// once at parse time by the external collaborator that builds the AST. It
// implements LiteralStatement so Build caches its completion and FastResolve
// bypasses Execute entirely outside debug mode.
type LiteralReturn struct {
	Val values.Value
}

func (s *LiteralReturn) Execute(ctx *Context) (completion.Record, error) {
	return completion.ReturnValue(s.Val), nil
}

func (s *LiteralReturn) Literal() (completion.Record, bool) {
	return completion.ReturnValue(s.Val), true
}

// ThrowStatement evaluates an expression and throws its value.
type ThrowStatement struct {
	Expr Expression
}

func (s *ThrowStatement) Execute(ctx *Context) (completion.Record, error) {
	v, err := ctx.Evaluator.EvaluateExpression(s.Expr, ctx)
	if err != nil {
		return completion.Record{}, err
	}
	return completion.ThrowValue(v, s), nil
}

// BreakStatement yields an (optionally labeled) Break completion.
type BreakStatement struct {
	Label string
}

func (s *BreakStatement) Execute(ctx *Context) (completion.Record, error) {
	return completion.BreakTarget(s.Label), nil
}

// ContinueStatement yields an (optionally labeled) Continue completion.
type ContinueStatement struct {
	Label string
}

func (s *ContinueStatement) Execute(ctx *Context) (completion.Record, error) {
	return completion.ContinueTarget(s.Label), nil
}

// ExpressionStatement evaluates an expression for its side effects (and,
// for the last statement in a list, its completion value). It carries no
// await; AwaitExpressionStatement (statement_await.go) is the Suspendable
// counterpart.
type ExpressionStatement struct {
	Expr Expression
}

func (s *ExpressionStatement) Execute(ctx *Context) (completion.Record, error) {
	v, err := ctx.Evaluator.EvaluateExpression(s.Expr, ctx)
	if err != nil {
		return completion.Record{}, err
	}
	return completion.NormalValue(v), nil
}
