// Package modules implements the ECMAScript Cyclic Module Record algorithms
// (ECMA-262 §16.2.1): exported-name resolution, the two-phase DFS
// linker, and the evaluate/async driver that handles top-level await.
// Both Link and Evaluate run a Tarjan-style depth-first traversal that
// seals strongly connected components of the import graph, so cycles
// link and evaluate exactly once.
package modules

import (
	"fmt"

	"github.com/nooga/ecmacore/pkg/completion"
	"github.com/nooga/ecmacore/pkg/exec"
	"github.com/nooga/ecmacore/pkg/promise"
	"github.com/nooga/ecmacore/pkg/values"
)

// unlinkedIndex is the sentinel dfsIndex/dfsAncestorIndex value before a
// module has entered either DFS.
const unlinkedIndex = -1

// Module is the engine's CyclicModuleRecord. One instance
// always corresponds to exactly one resolved module path within a Graph,
// so resolving the same (referrer, specifier) pair twice yields the same
// instance.
type Module struct {
	Specifier    string
	ResolvedPath string
	Status       ModuleStatus
	Environment  *Environment

	namespace values.Value
	hasNS     bool

	RequestedModules      []string
	ImportEntries         []ImportEntry
	LocalExportEntries    []ExportEntry
	IndirectExportEntries []ExportEntry
	StarExportEntries     []ExportEntry

	Body   []exec.Statement
	HasTLA bool
	list   *exec.CompiledList

	// Hoisting info. The parser that classifies
	// declarations is an external collaborator; the module
	// builder supplies these lists alongside Body.
	VarNames      []string
	LexicalDecls  []LexicalDecl
	FunctionDecls []FunctionDecl

	dfsIndex         int
	dfsAncestorIndex int

	AsyncEvaluation          bool
	AsyncEvalOrder           int
	PendingAsyncDependencies int
	AsyncParentModules       []*Module
	CycleRoot                *Module

	TopLevelCapability *promise.Capability
	EvalError          *completion.Record

	// resumeValue/resumeErr carry a settled await's result into the next
	// Execute call on this module's body; consumed and cleared by
	// newExecContext.
	resumeValue values.Value
	resumeErr   error

	graph *Graph
}

// LexicalDecl is a hoisted `let`/`const` declaration name:
// reserved at InitializeEnvironment time, initialized when its
// declaration statement executes.
type LexicalDecl struct {
	Name  string
	Const bool
}

// FunctionDecl is a hoisted function declaration:
// bound eagerly to a freshly instantiated function object. Instantiate is
// supplied by the module builder since function object construction is an
// external collaborator.
type FunctionDecl struct {
	Name        string
	Instantiate func() values.Value
}

// hoistDeclarations performs declaration instantiation: var names get mutable
// bindings initialized to undefined, lexical declarations get reserved
// uninitialized bindings, and function declarations get mutable bindings
// initialized to a freshly instantiated function object immediately.
func (m *Module) hoistDeclarations(env *Environment) {
	for _, name := range m.VarNames {
		env.DefineMutable(name, values.Undefined)
	}
	for _, ld := range m.LexicalDecls {
		env.DefineUninitialized(ld.Name, ld.Const)
	}
	for _, fd := range m.FunctionDecls {
		env.DefineMutable(fd.Name, fd.Instantiate())
	}
}

func newModule(graph *Graph, specifier, resolvedPath string) *Module {
	return &Module{
		Specifier:        specifier,
		ResolvedPath:     resolvedPath,
		Status:           Unlinked,
		dfsIndex:         unlinkedIndex,
		dfsAncestorIndex: unlinkedIndex,
		graph:            graph,
	}
}

func (m *Module) String() string {
	return fmt.Sprintf("Module(%s, %s)", m.Specifier, m.Status)
}

// Namespace lazily builds and caches this module's namespace object: an
// opaque host value keyed by exported name, built by the Graph's
// NamespaceFactory. The object model itself belongs to the host; this package
// only owns when the namespace gets built and what exported names back it.
func (m *Module) Namespace() values.Value {
	if m.hasNS {
		return m.namespace
	}
	m.hasNS = true
	m.namespace = m.graph.buildNamespace(m)
	return m.namespace
}

// resolveRequested resolves specifier as imported from m, through the
// owning Graph, applying the same-instance-per-(referrer,specifier)
// guarantee.
func (m *Module) resolveRequested(specifier string) (*Module, error) {
	return m.graph.ResolveImportedModule(m, specifier)
}

// GetExportedNames returns the ordered list of names this module exports
// (ECMA-262 16.2.1.6.2), breaking `export *` cycles via visited.
func (m *Module) GetExportedNames(visited map[*Module]bool) ([]string, error) {
	if visited[m] {
		return nil, nil
	}
	visited[m] = true

	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	for _, e := range m.LocalExportEntries {
		add(e.ExportName)
	}
	for _, e := range m.IndirectExportEntries {
		add(e.ExportName)
	}

	for _, e := range m.StarExportEntries {
		target, err := m.resolveRequested(e.ModuleRequest)
		if err != nil {
			return nil, err
		}
		starNames, err := target.GetExportedNames(visited)
		if err != nil {
			return nil, err
		}
		for _, n := range starNames {
			if n != "default" {
				add(n)
			}
		}
	}

	return names, nil
}

// resolveKey identifies one (module, name) pair visited during
// ResolveExport's circularity tracking.
type resolveKey struct {
	module *Module
	name   string
}

// ResolveExport returns name's binding (ECMA-262 16.2.1.6.3): a resolved
// (module, bindingName) pair, the Ambiguous sentinel, or Absent.
// resolveSet tracks (module, name) pairs already visited in this call tree
// to break `export *` cycles without infinite recursion.
func (m *Module) ResolveExport(name string, resolveSet map[resolveKey]bool) (ResolvedBinding, error) {
	key := resolveKey{m, name}
	if resolveSet[key] {
		return absentBinding, nil
	}
	resolveSet[key] = true

	for _, e := range m.LocalExportEntries {
		if e.ExportName == name {
			bindingName := e.LocalName
			if bindingName == "" {
				bindingName = e.ExportName
			}
			return ResolvedBinding{Kind: BindingResolved, Module: m, BindingName: bindingName}, nil
		}
	}

	for _, e := range m.IndirectExportEntries {
		if e.ExportName == name {
			target, err := m.resolveRequested(e.ModuleRequest)
			if err != nil {
				return ResolvedBinding{}, err
			}
			if e.ImportName == "*" {
				return ResolvedBinding{Kind: BindingResolved, Module: target, BindingName: NamespaceBindingName}, nil
			}
			return target.ResolveExport(e.ImportName, resolveSet)
		}
	}

	if name == "default" {
		return absentBinding, nil
	}

	result := absentBinding
	for _, e := range m.StarExportEntries {
		target, err := m.resolveRequested(e.ModuleRequest)
		if err != nil {
			return ResolvedBinding{}, err
		}
		r, err := target.ResolveExport(name, resolveSet)
		if err != nil {
			return ResolvedBinding{}, err
		}
		if r.Kind == BindingAmbiguous {
			return ambiguousBinding, nil
		}
		if r.Kind == BindingResolved {
			if result.Kind == BindingAbsent {
				result = r
			} else if result.Module != r.Module || result.BindingName != r.BindingName {
				return ambiguousBinding, nil
			}
		}
	}

	return result, nil
}
