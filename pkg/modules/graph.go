package modules

import (
	"fmt"
	"time"

	"golang.org/x/text/unicode/norm"

	ecerrors "github.com/nooga/ecmacore/pkg/errors"
	"github.com/nooga/ecmacore/pkg/exec"
	"github.com/nooga/ecmacore/pkg/host"
	"github.com/nooga/ecmacore/pkg/runtime"
	"github.com/nooga/ecmacore/pkg/values"
)

// Graph owns every Module instance resolved for one embedder session, so
// cyclic AsyncParentModules/CycleRoot back-references are plain pointers
// into an arena the Graph keeps alive. It guarantees resolveImportedModule
// returns the same instance for the same (referrer, specifier) pair, and is
// the collaborator every *Module holds a back-pointer to for resolving its
// own requestedModules.
type Graph struct {
	resolver  host.ModuleResolver
	builder   SourceBuilder
	namespace NamespaceFactory
	evaluator exec.Evaluator
	realm     host.Realm
	queue     runtime.ContinuationQueue
	config    *LinkerConfig

	reg   *registry
	total int
}

// NewGraph constructs a Graph. resolver and builder are the host's
// collaborators for module resolution and source classification; namespace
// builds the exotic namespace object backing GetModuleNamespace;
// evaluator runs non-control-flow expressions for the statement
// executor; realm supplies error constructors;
// queue is the engine-scoped continuation FIFO.
func NewGraph(
	resolver host.ModuleResolver,
	builder SourceBuilder,
	namespace NamespaceFactory,
	evaluator exec.Evaluator,
	realm host.Realm,
	queue runtime.ContinuationQueue,
	config *LinkerConfig,
) *Graph {
	if config == nil {
		config = DefaultLinkerConfig()
	}
	return &Graph{
		resolver:  resolver,
		builder:   builder,
		namespace: namespace,
		evaluator: evaluator,
		realm:     realm,
		queue:     queue,
		config:    config,
		reg:       newRegistry(config.Registry),
	}
}

// EntryModule resolves and (if not already cached) builds the module at
// specifier as the graph's entry point: the host's first call into a
// fresh module graph, with no referrer.
func (g *Graph) EntryModule(specifier string) (*Module, error) {
	return g.ResolveImportedModule(nil, specifier)
}

// ResolveImportedModule implements the host resolution contract: referrer
// may be nil for the entry module. Returns the
// same *Module instance for the same resolved path every time, building a
// fresh one via the SourceBuilder only on a cache miss.
func (g *Graph) ResolveImportedModule(referrer *Module, specifier string) (*Module, error) {
	referrerPath := ""
	if referrer != nil {
		referrerPath = referrer.ResolvedPath
	}

	normSpec := norm.NFC.String(specifier)

	resolved, err := g.resolveWithTimeout(referrerPath, normSpec)
	if err != nil {
		return nil, &ecerrors.TypeError{Msg: fmt.Sprintf("cannot resolve module %q: %v", specifier, err)}
	}

	if cached := g.reg.get(resolved.ResolvedPath); cached != nil {
		return cached, nil
	}

	source, err := g.builder.BuildModule(resolved)
	if err != nil {
		return nil, err
	}

	m := newModule(g, resolved.Specifier, resolved.ResolvedPath)
	m.Body = source.Body
	m.RequestedModules = source.RequestedModules
	m.ImportEntries = source.ImportEntries
	m.LocalExportEntries = source.LocalExportEntries
	m.IndirectExportEntries = source.IndirectExportEntries
	m.StarExportEntries = source.StarExportEntries
	m.HasTLA = source.HasTLA
	m.VarNames = source.VarNames
	m.LexicalDecls = source.LexicalDecls
	m.FunctionDecls = source.FunctionDecls
	m.list = exec.Build(source.Body, g.config.Debug)

	g.reg.set(resolved.ResolvedPath, m)
	g.total++

	return m, nil
}

// resolveWithTimeout bounds one host resolver call by the configured
// ResolveTimeout. A resolver that overruns is abandoned, not interrupted;
// its late result is discarded.
func (g *Graph) resolveWithTimeout(referrerPath, specifier string) (*host.ResolvedSource, error) {
	if g.config.ResolveTimeout <= 0 {
		return g.resolver.Resolve(referrerPath, specifier)
	}

	type outcome struct {
		src *host.ResolvedSource
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		src, err := g.resolver.Resolve(referrerPath, specifier)
		ch <- outcome{src, err}
	}()

	timer := time.NewTimer(g.config.ResolveTimeout)
	defer timer.Stop()
	select {
	case out := <-ch:
		return out.src, out.err
	case <-timer.C:
		return nil, fmt.Errorf("resolver %s timed out after %s resolving %q",
			g.resolver.Name(), g.config.ResolveTimeout, specifier)
	}
}

// buildNamespace constructs m's namespace object on first access,
// delegating actual object construction to the host-supplied
// NamespaceFactory and wiring each exported name to a live-binding getter
// that re-resolves through ResolveExport on every read.
func (g *Graph) buildNamespace(m *Module) values.Value {
	names, err := m.GetExportedNames(make(map[*Module]bool))
	if err != nil {
		names = nil
	}

	get := func(name string) (values.Value, error) {
		binding, err := m.ResolveExport(name, make(map[resolveKey]bool))
		if err != nil {
			return nil, err
		}
		switch binding.Kind {
		case BindingResolved:
			if binding.BindingName == NamespaceBindingName {
				return binding.Module.Namespace(), nil
			}
			return binding.Module.Environment.Get(binding.BindingName)
		case BindingAmbiguous:
			return nil, fmt.Errorf("ambiguous export %q", name)
		default:
			return nil, fmt.Errorf("unresolved export %q", name)
		}
	}

	return g.namespace(m.Specifier, names, get)
}

// Stats reports loader/cache effectiveness as an observability side effect
// of ResolveImportedModule calls made so far; never consulted by Link or
// Evaluate themselves.
func (g *Graph) Stats() LoaderStats {
	reg := g.reg.statsSnapshot()
	return LoaderStats{
		TotalModules: g.total,
		CacheHits:    reg.CacheHits,
		CacheMisses:  reg.CacheMisses,
	}
}
