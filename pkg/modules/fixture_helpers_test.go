package modules

// This file is an in-package copy of pkg/fixture's SourceBuilder/Evaluator
// pair, needed only because pkg/fixture imports pkg/modules: an internal
// (same-package) test file in pkg/modules cannot import a package that
// imports pkg/modules back without creating an import cycle. The logic
// below is unchanged from pkg/fixture.Builder/pkg/fixture.Evaluator, just
// de-qualified since it now lives inside package modules itself.

import (
	"encoding/json"
	"fmt"

	"github.com/nooga/ecmacore/pkg/await"
	"github.com/nooga/ecmacore/pkg/completion"
	ecerrors "github.com/nooga/ecmacore/pkg/errors"
	"github.com/nooga/ecmacore/pkg/exec"
	"github.com/nooga/ecmacore/pkg/host"
	"github.com/nooga/ecmacore/pkg/values"
)

type fxNode struct {
	Kind  string          `json:"kind"`
	Value json.RawMessage `json:"value,omitempty"`
	Name  string          `json:"name,omitempty"`
	Arg   *fxNode         `json:"arg,omitempty"`
	Fn    string          `json:"fn,omitempty"`
	Args  []*fxNode       `json:"args,omitempty"`
}

type fxStmt struct {
	Type string  `json:"type"`
	Expr *fxNode `json:"expr"`
	Name string  `json:"name,omitempty"`
}

type fxImportDef struct {
	ModuleRequest string `json:"moduleRequest"`
	ImportName    string `json:"importName"`
	LocalName     string `json:"localName"`
}

type fxExportDef struct {
	ExportName    string `json:"exportName"`
	ModuleRequest string `json:"moduleRequest"`
	ImportName    string `json:"importName"`
	LocalName     string `json:"localName"`
}

type fxLexicalDeclDef struct {
	Name  string `json:"name"`
	Const bool   `json:"const"`
}

type fxModuleDef struct {
	RequestedModules      []string           `json:"requestedModules"`
	ImportEntries         []fxImportDef      `json:"importEntries"`
	LocalExportEntries    []fxExportDef      `json:"localExportEntries"`
	IndirectExportEntries []fxExportDef      `json:"indirectExportEntries"`
	StarExportEntries     []fxExportDef      `json:"starExportEntries"`
	HasTLA                bool               `json:"hasTLA"`
	VarNames              []string           `json:"varNames"`
	LexicalDecls          []fxLexicalDeclDef `json:"lexicalDecls"`
	Body                  []fxStmt           `json:"body"`
}

type fxBuilder struct {
	Bridge *await.Bridge
}

func newFxBuilder(bridge *await.Bridge) *fxBuilder { return &fxBuilder{Bridge: bridge} }

func (b *fxBuilder) BuildModule(resolved *host.ResolvedSource) (*ModuleSource, error) {
	var def fxModuleDef
	if err := json.Unmarshal([]byte(resolved.Source), &def); err != nil {
		return nil, fmt.Errorf("fixture: invalid module JSON for %s: %w", resolved.ResolvedPath, err)
	}

	source := &ModuleSource{
		RequestedModules: def.RequestedModules,
		HasTLA:           def.HasTLA,
		VarNames:         def.VarNames,
	}

	for _, i := range def.ImportEntries {
		source.ImportEntries = append(source.ImportEntries, ImportEntry{
			ModuleRequest: i.ModuleRequest,
			ImportName:    i.ImportName,
			LocalName:     i.LocalName,
		})
	}
	for _, e := range def.LocalExportEntries {
		source.LocalExportEntries = append(source.LocalExportEntries, ExportEntry{
			ExportName: e.ExportName, LocalName: e.LocalName,
		})
	}
	for _, e := range def.IndirectExportEntries {
		source.IndirectExportEntries = append(source.IndirectExportEntries, ExportEntry{
			ExportName: e.ExportName, ModuleRequest: e.ModuleRequest, ImportName: e.ImportName,
		})
	}
	for _, e := range def.StarExportEntries {
		source.StarExportEntries = append(source.StarExportEntries, ExportEntry{
			ModuleRequest: e.ModuleRequest,
		})
	}
	for _, ld := range def.LexicalDecls {
		source.LexicalDecls = append(source.LexicalDecls, LexicalDecl{Name: ld.Name, Const: ld.Const})
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

func (b *fxBuilder) buildStatement(s fxStmt) (exec.Statement, error) {
	switch s.Type {
	case "expr":
		return &exec.ExpressionStatement{Expr: s.Expr}, nil
	case "throw":
		return &exec.ThrowStatement{Expr: s.Expr}, nil
	case "await":
		return &exec.AwaitExpressionStatement{Expr: s.Expr, Bridge: b.Bridge}, nil
	case "awaitset":
		return &fxAwaitSetStatement{Expr: s.Expr, Name: s.Name, Bridge: b.Bridge}, nil
	default:
		return nil, fmt.Errorf("fixture: unknown statement type %q", s.Type)
	}
}

type fxAwaitSetStatement struct {
	Expr   *fxNode
	Name   string
	Bridge *await.Bridge
}

func (s *fxAwaitSetStatement) Execute(ctx *exec.Context) (completion.Record, error) {
	v, err := ctx.Evaluator.EvaluateExpression(s.Expr, ctx)
	if err != nil {
		return completion.Record{}, err
	}
	return s.settle(ctx, v)
}

func (s *fxAwaitSetStatement) Resume(ctx *exec.Context, resumeValue any, resumeErr error) (completion.Record, error) {
	if resumeErr != nil {
		if jsErr, ok := resumeErr.(*ecerrors.JSException); ok {
			return completion.ThrowValue(jsErr.Value, s), nil
		}
		return completion.Record{}, resumeErr
	}
	return s.bind(ctx, resumeValue)
}

func (s *fxAwaitSetStatement) settle(ctx *exec.Context, v values.Value) (completion.Record, error) {
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

func (s *fxAwaitSetStatement) bind(ctx *exec.Context, v values.Value) (completion.Record, error) {
	env, ok := ctx.Environment.(*Environment)
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

type fxHostFunc func(args []values.Value) (values.Value, error)

type fxEvaluator struct {
	Functions map[string]fxHostFunc
}

func newFxEvaluator() *fxEvaluator {
	return &fxEvaluator{Functions: make(map[string]fxHostFunc)}
}

func (e *fxEvaluator) Register(name string, fn fxHostFunc) {
	e.Functions[name] = fn
}

func (e *fxEvaluator) EvaluateExpression(expr exec.Expression, ctx *exec.Context) (values.Value, error) {
	node, ok := expr.(*fxNode)
	if !ok {
		return nil, fmt.Errorf("fixture: expression is not a *fxNode: %T", expr)
	}
	return e.eval(node, ctx)
}

func (e *fxEvaluator) eval(node *fxNode, ctx *exec.Context) (values.Value, error) {
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
		env, ok := ctx.Environment.(*Environment)
		if !ok {
			return nil, fmt.Errorf("fixture: environment is not a *modules.Environment")
		}
		return env.Get(node.Name)

	case "set":
		env, ok := ctx.Environment.(*Environment)
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
