// Package fixture is a minimal JSON-described module/expression model used
// to exercise pkg/modules and pkg/engine end to end without a real
// lexer/parser/object model, which belong to the embedding host. It is a
// small reusable SourceBuilder/Evaluator pair so both package tests and
// the CLI demo can describe a module graph as data.
package fixture

import (
	"encoding/json"
	"fmt"

	"github.com/nooga/ecmacore/pkg/await"
	"github.com/nooga/ecmacore/pkg/completion"
	ecerrors "github.com/nooga/ecmacore/pkg/errors"
	"github.com/nooga/ecmacore/pkg/exec"
	"github.com/nooga/ecmacore/pkg/host"
	"github.com/nooga/ecmacore/pkg/modules"
	"github.com/nooga/ecmacore/pkg/values"
)

// Node is an expression in the fixture's tiny expression language. Exactly
// one of the fields matching Kind is populated:
//
//	"lit"  - Value is used verbatim.
//	"ref"  - Name is read from the current module environment.
//	"set"  - Name is assigned the result of evaluating Arg, which is also
//	         the expression's own value (`result.v = x`-style side effects
//	         without a real object model).
//	"call" - Fn names a host function registered on the Evaluator; Args are
//	         evaluated left to right and passed to it.
type Node struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
	Name  string          `json:"name,omitempty"`
	Arg   *Node           `json:"arg,omitempty"`
	Fn    string          `json:"fn,omitempty"`
	Args  []*Node         `json:"args,omitempty"`
}

// Stmt is one statement in a fixture module body.
//
//	"expr"     - an ExpressionStatement evaluating Expr for effect/value.
//	"await"    - an AwaitExpressionStatement evaluating Expr as the awaited
//	             operand; its settled value becomes the statement's
//	             completion value and is not bound to any name.
//	"awaitset" - like "await", but binds the settled value to Name in the
//	             module environment (the fixture stand-in for
//	             `const x = await f();`).
//	"throw"    - a ThrowStatement throwing the value of Expr.
type Stmt struct {
	Type string `json:"type"`
	Expr *Node  `json:"expr"`
	Name string `json:"name,omitempty"`
}

// ImportDef mirrors modules.ImportEntry as JSON.
type ImportDef struct {
	ModuleRequest string `json:"moduleRequest"`
	ImportName    string `json:"importName"`
	LocalName     string `json:"localName"`
}

// ExportDef mirrors modules.ExportEntry as JSON; which fields apply depends
// on which of the ModuleDef's three export lists it appears in.
type ExportDef struct {
	ExportName    string `json:"exportName"`
	ModuleRequest string `json:"moduleRequest"`
	ImportName    string `json:"importName"`
	LocalName     string `json:"localName"`
}

// LexicalDeclDef mirrors modules.LexicalDecl as JSON.
type LexicalDeclDef struct {
	Name  string `json:"name"`
	Const bool   `json:"const"`
}

// ModuleDef is the JSON shape of one fixture module: the serialized form of
// modules.ModuleSource, minus FunctionDecls (the fixture model has no
// function objects to instantiate).
type ModuleDef struct {
	RequestedModules      []string         `json:"requestedModules"`
	ImportEntries         []ImportDef      `json:"importEntries"`
	LocalExportEntries    []ExportDef      `json:"localExportEntries"`
	IndirectExportEntries []ExportDef      `json:"indirectExportEntries"`
	StarExportEntries     []ExportDef      `json:"starExportEntries"`
	HasTLA                bool             `json:"hasTLA"`
	VarNames              []string         `json:"varNames"`
	LexicalDecls          []LexicalDeclDef `json:"lexicalDecls"`
	Body                  []Stmt           `json:"body"`
}

// Builder implements modules.SourceBuilder by treating resolved.Source as
// the JSON encoding of a ModuleDef. Bridge backs every "await" statement
// the fixture body contains; it is shared across every
// module the Builder builds, the same way one engine owns one continuation
// queue.
type Builder struct {
	Bridge *await.Bridge
}

// NewBuilder constructs a fixture Builder whose await statements suspend
// through bridge.
func NewBuilder(bridge *await.Bridge) *Builder { return &Builder{Bridge: bridge} }

// BuildModule implements modules.SourceBuilder.
func (b *Builder) BuildModule(resolved *host.ResolvedSource) (*modules.ModuleSource, error) {
	var def ModuleDef
	if err := json.Unmarshal([]byte(resolved.Source), &def); err != nil {
		return nil, fmt.Errorf("fixture: invalid module JSON for %s: %w", resolved.ResolvedPath, err)
	}

	source := &modules.ModuleSource{
		RequestedModules: def.RequestedModules,
		HasTLA:           def.HasTLA,
		VarNames:         def.VarNames,
	}

	for _, i := range def.ImportEntries {
		source.ImportEntries = append(source.ImportEntries, modules.ImportEntry{
			ModuleRequest: i.ModuleRequest,
			ImportName:    i.ImportName,
			LocalName:     i.LocalName,
		})
	}
	for _, e := range def.LocalExportEntries {
		source.LocalExportEntries = append(source.LocalExportEntries, modules.ExportEntry{
			ExportName: e.ExportName, LocalName: e.LocalName,
		})
	}
	for _, e := range def.IndirectExportEntries {
		source.IndirectExportEntries = append(source.IndirectExportEntries, modules.ExportEntry{
			ExportName: e.ExportName, ModuleRequest: e.ModuleRequest, ImportName: e.ImportName,
		})
	}
	for _, e := range def.StarExportEntries {
		source.StarExportEntries = append(source.StarExportEntries, modules.ExportEntry{
			ModuleRequest: e.ModuleRequest,
		})
	}
	for _, ld := range def.LexicalDecls {
		source.LexicalDecls = append(source.LexicalDecls, modules.LexicalDecl{Name: ld.Name, Const: ld.Const})
	}

	for _, s := range def.Body {
		stmt, err := b.buildStatement(s)
		if err != nil {
			return nil, err
		}
		source.Body = append(source.Body, stmt)
	}

	return source, nil
}

func (b *Builder) buildStatement(s Stmt) (exec.Statement, error) {
	switch s.Type {
	case "expr":
		return &exec.ExpressionStatement{Expr: s.Expr}, nil
	case "throw":
		return &exec.ThrowStatement{Expr: s.Expr}, nil
	case "await":
		return &exec.AwaitExpressionStatement{Expr: s.Expr, Bridge: b.Bridge}, nil
	case "awaitset":
		return &AwaitSetStatement{Expr: s.Expr, Name: s.Name, Bridge: b.Bridge}, nil
	default:
		return nil, fmt.Errorf("fixture: unknown statement type %q", s.Type)
	}
}

// AwaitSetStatement is a fixture-only Suspendable statement combining an
// await with a binding: the stand-in for `const x = await f();`, which
// pkg/exec's AwaitExpressionStatement alone does not model since it has no
// notion of binding its settled value anywhere. Suspension/resume mechanics
// mirror AwaitExpressionStatement exactly; only the settled step differs.
type AwaitSetStatement struct {
	Expr   *Node
	Name   string
	Bridge *await.Bridge
}

func (s *AwaitSetStatement) Execute(ctx *exec.Context) (completion.Record, error) {
	v, err := ctx.Evaluator.EvaluateExpression(s.Expr, ctx)
	if err != nil {
		return completion.Record{}, err
	}
	return s.settle(ctx, v)
}

func (s *AwaitSetStatement) Resume(ctx *exec.Context, resumeValue any, resumeErr error) (completion.Record, error) {
	if resumeErr != nil {
		if jsErr, ok := resumeErr.(*ecerrors.JSException); ok {
			return completion.ThrowValue(jsErr.Value, s), nil
		}
		return completion.Record{}, resumeErr
	}
	return s.bind(ctx, resumeValue)
}

func (s *AwaitSetStatement) settle(ctx *exec.Context, v values.Value) (completion.Record, error) {
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
	return s.bind(ctx, result)
}

func (s *AwaitSetStatement) bind(ctx *exec.Context, v values.Value) (completion.Record, error) {
	env, ok := ctx.Environment.(*modules.Environment)
	if !ok {
		return completion.Record{}, fmt.Errorf("fixture: environment is not a *modules.Environment")
	}
	if err := env.Set(s.Name, v); err != nil {
		if err := env.Initialize(s.Name, v); err != nil {
			return completion.Record{}, err
		}
	}
	return completion.NormalValue(v), nil
}

// HostFunc is a fixture-callable host function.
type HostFunc func(args []values.Value) (values.Value, error)

// Evaluator implements exec.Evaluator over Node expressions: literals,
// environment reads/writes, and calls into a small registry of named host
// functions the embedder supplies (e.g. to hand back an external promise
// for an `await` expression to park on).
type Evaluator struct {
	Functions map[string]HostFunc
}

// NewEvaluator constructs an Evaluator with no host functions registered.
func NewEvaluator() *Evaluator {
	return &Evaluator{Functions: make(map[string]HostFunc)}
}

// Register adds a callable host function under name.
func (e *Evaluator) Register(name string, fn HostFunc) {
	e.Functions[name] = fn
}

// EvaluateExpression implements exec.Evaluator.
func (e *Evaluator) EvaluateExpression(expr exec.Expression, ctx *exec.Context) (values.Value, error) {
	node, ok := expr.(*Node)
	if !ok {
		return nil, fmt.Errorf("fixture: expression is not a *fixture.Node: %T", expr)
	}
	return e.eval(node, ctx)
}

func (e *Evaluator) eval(node *Node, ctx *exec.Context) (values.Value, error) {
	if node == nil {
		return values.Undefined, nil
	}

	switch node.Kind {
	case "lit":
		var v any
		if len(node.Value) > 0 {
			if err := json.Unmarshal(node.Value, &v); err != nil {
				return nil, fmt.Errorf("fixture: invalid literal: %w", err)
			}
		}
		return v, nil

	case "ref":
		env, ok := ctx.Environment.(*modules.Environment)
		if !ok {
			return nil, fmt.Errorf("fixture: environment is not a *modules.Environment")
		}
		return env.Get(node.Name)

	case "set":
		env, ok := ctx.Environment.(*modules.Environment)
		if !ok {
			return nil, fmt.Errorf("fixture: environment is not a *modules.Environment")
		}
		v, err := e.eval(node.Arg, ctx)
		if err != nil {
			return nil, err
		}
		if err := env.Set(node.Name, v); err != nil {
			if err := env.Initialize(node.Name, v); err != nil {
				return nil, err
			}
		}
		return v, nil

	case "call":
		fn, ok := e.Functions[node.Fn]
		if !ok {
			return nil, fmt.Errorf("fixture: no host function registered as %q", node.Fn)
		}
		args := make([]values.Value, len(node.Args))
		for i, a := range node.Args {
			v, err := e.eval(a, ctx)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return fn(args)

	default:
		return nil, fmt.Errorf("fixture: unknown expression kind %q", node.Kind)
	}
}
