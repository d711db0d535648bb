package modules

import (
	ecerrors "github.com/nooga/ecmacore/pkg/errors"
)

// Link is the public entry point for linking a module graph (ECMA-262
// 16.2.1.5.1). On any error during linking, every module left on the stack is
// rolled back to Unlinked with its environment cleared and DFS indices
// reset, so no module is left Linking. Dependencies whose SCC was already
// sealed as Linked before the failure keep that status.
func (m *Module) Link() error {
	stack := newModuleStack()
	if _, err := innerModuleLinking(m, stack, 0); err != nil {
		for _, s := range stack.all() {
			s.Status = Unlinked
			s.Environment = nil
			s.dfsIndex = unlinkedIndex
			s.dfsAncestorIndex = unlinkedIndex
		}
		return err
	}
	if !stack.empty() {
		return ecerrors.NewInvariantError("Link: stack not empty after successful linking")
	}
	if m.Status != Linked && m.Status != Unlinked {
		return ecerrors.NewInvariantError("Link: unexpected terminal status %s", m.Status)
	}
	return nil
}

// innerModuleLinking implements the InnerModuleLinking abstract operation
// (ECMA-262 16.2.1.5.1.1).
func innerModuleLinking(m *Module, stack *moduleStack, index int) (int, error) {
	switch m.Status {
	case Linking, Linked, EvaluatingAsync, Evaluating:
		return index, nil
	}

	if m.Status != Unlinked {
		return 0, ecerrors.NewInvariantError("innerModuleLinking: module %s not Unlinked", m.Specifier)
	}

	m.Status = Linking
	m.dfsIndex = index
	m.dfsAncestorIndex = index
	index++
	stack.push(m)
	if max := m.graph.config.MaxModuleDepth; max > 0 && len(stack.items) > max {
		return 0, ecerrors.NewInvariantError(
			"innerModuleLinking: import chain exceeds MaxModuleDepth %d at %s", max, m.Specifier)
	}

	for _, spec := range m.RequestedModules {
		target, err := m.resolveRequested(spec)
		if err != nil {
			return 0, err
		}

		if target.Status == Unlinked {
			index, err = innerModuleLinking(target, stack, index)
			if err != nil {
				return 0, err
			}
		}

		switch target.Status {
		case Linking, Linked, Evaluated:
		default:
			return 0, ecerrors.NewInvariantError(
				"innerModuleLinking: dependency %s in unexpected status %s", target.Specifier, target.Status)
		}

		if target.Status == Linking {
			if !stack.contains(target) {
				return 0, ecerrors.NewInvariantError(
					"innerModuleLinking: Linking dependency %s missing from stack", target.Specifier)
			}
			if target.dfsAncestorIndex < m.dfsAncestorIndex {
				m.dfsAncestorIndex = target.dfsAncestorIndex
			}
		}
	}

	if err := m.initializeEnvironment(); err != nil {
		return 0, err
	}

	if !stack.containsExactlyOnce(m) {
		return 0, ecerrors.NewInvariantError("innerModuleLinking: module %s not singly on stack", m.Specifier)
	}
	if m.dfsAncestorIndex > m.dfsIndex {
		return 0, ecerrors.NewInvariantError("innerModuleLinking: ancestor index exceeds index for %s", m.Specifier)
	}

	if m.dfsAncestorIndex == m.dfsIndex {
		for {
			popped := stack.pop()
			popped.Status = Linked
			if popped == m {
				break
			}
		}
	}

	return index, nil
}

// initializeEnvironment implements the InitializeEnvironment abstract
// operation (ECMA-262 16.2.1.6.4):
// pre-resolving indirect exports, building the module environment, binding
// imports, and hoisting declarations.
func (m *Module) initializeEnvironment() error {
	for _, e := range m.IndirectExportEntries {
		binding, err := m.ResolveExport(e.ExportName, make(map[resolveKey]bool))
		if err != nil {
			return err
		}
		switch binding.Kind {
		case BindingAbsent:
			return &ecerrors.SyntaxError{Msg: "unresolved export " + e.ExportName + " in module " + m.Specifier}
		case BindingAmbiguous:
			return &ecerrors.SyntaxError{Msg: "ambiguous export " + e.ExportName + " in module " + m.Specifier}
		}
	}

	env := NewEnvironment()
	m.Environment = env

	for _, imp := range m.ImportEntries {
		target, err := m.resolveRequested(imp.ModuleRequest)
		if err != nil {
			return err
		}

		if imp.ImportName == "*" {
			env.DefineNamespaceBinding(imp.LocalName, target.Namespace())
			continue
		}

		binding, err := target.ResolveExport(imp.ImportName, make(map[resolveKey]bool))
		if err != nil {
			return err
		}
		switch binding.Kind {
		case BindingAbsent:
			return &ecerrors.SyntaxError{
				Msg: "module " + target.Specifier + " has no export named " + imp.ImportName,
			}
		case BindingAmbiguous:
			return &ecerrors.SyntaxError{
				Msg: "ambiguous import " + imp.ImportName + " from module " + target.Specifier,
			}
		}

		if binding.BindingName == NamespaceBindingName {
			env.DefineNamespaceBinding(imp.LocalName, binding.Module.Namespace())
		} else {
			env.DefineImportBinding(imp.LocalName, binding.Module.Environment, binding.BindingName)
		}
	}

	m.hoistDeclarations(env)

	return nil
}

// moduleStack is the DFS stack both the linker and evaluator push modules
// onto while sealing strongly connected components.
type moduleStack struct {
	items []*Module
	index map[*Module]int // count of occurrences, used by containsExactlyOnce
}

func newModuleStack() *moduleStack {
	return &moduleStack{index: make(map[*Module]int)}
}

func (s *moduleStack) push(m *Module) {
	s.items = append(s.items, m)
	s.index[m]++
}

func (s *moduleStack) pop() *Module {
	n := len(s.items) - 1
	m := s.items[n]
	s.items = s.items[:n]
	s.index[m]--
	if s.index[m] == 0 {
		delete(s.index, m)
	}
	return m
}

func (s *moduleStack) contains(m *Module) bool {
	return s.index[m] > 0
}

func (s *moduleStack) containsExactlyOnce(m *Module) bool {
	return s.index[m] == 1
}

func (s *moduleStack) empty() bool {
	return len(s.items) == 0
}

func (s *moduleStack) all() []*Module {
	return s.items
}
