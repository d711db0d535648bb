// Package engine is the embedder-facing facade over the module graph:
// link, evaluate, registerPromise, and getModuleNamespace on a persistent
// session struct wrapping the lower-level packages, constructed once per
// embedding and reused across module graphs resolved through the same
// Graph.
package engine

import (
	"fmt"
	"os"

	"github.com/nooga/ecmacore/pkg/exec"
	"github.com/nooga/ecmacore/pkg/host"
	"github.com/nooga/ecmacore/pkg/modules"
	"github.com/nooga/ecmacore/pkg/promise"
	"github.com/nooga/ecmacore/pkg/runtime"
	"github.com/nooga/ecmacore/pkg/values"
)

const debugEngine = false

func debugf(format string, args ...interface{}) {
	if debugEngine {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

// Engine is a persistent embedding session: one module Graph, one
// continuation queue, and the host collaborators (resolver, builder,
// namespace factory, evaluator, realm) wired together at construction time.
type Engine struct {
	graph *modules.Graph
	queue runtime.ContinuationQueue
	realm host.Realm
}

// Config bundles the host collaborators an embedder supplies when creating
// an Engine.
type Config struct {
	Resolver  host.ModuleResolver
	Builder   modules.SourceBuilder
	Namespace modules.NamespaceFactory
	Evaluator exec.Evaluator
	Realm     host.Realm
	Queue     runtime.ContinuationQueue
	Linker    *modules.LinkerConfig
}

// New constructs an Engine. If cfg.Queue is nil, a fresh
// runtime.DefaultQueue is created; if cfg.Linker is nil,
// modules.DefaultLinkerConfig is used.
func New(cfg Config) *Engine {
	queue := cfg.Queue
	if queue == nil {
		queue = runtime.NewDefaultQueue()
	}

	graph := modules.NewGraph(cfg.Resolver, cfg.Builder, cfg.Namespace, cfg.Evaluator, cfg.Realm, queue, cfg.Linker)

	return &Engine{graph: graph, queue: queue, realm: cfg.Realm}
}

// EntryModule resolves specifier as the graph's entry point, building it
// (and, transitively, nothing else yet; only Link walks requestedModules)
// via the host's SourceBuilder.
func (e *Engine) EntryModule(specifier string) (*modules.Module, error) {
	return e.graph.EntryModule(specifier)
}

// Link links m's module graph. Idempotent for a module that is already
// Linked; a module that has begun evaluating (Evaluating, EvaluatingAsync
// or Evaluated) keeps its status and Link returns an InvariantError.
func (e *Engine) Link(m *modules.Module) error {
	debugf("engine: linking %s", m.Specifier)
	return m.Link()
}

// Evaluate evaluates m's module graph. Always returns a promise,
// synchronously fulfilled with undefined for a module graph with no
// top-level await.
func (e *Engine) Evaluate(m *modules.Module) (*promise.Promise, error) {
	debugf("engine: evaluating %s", m.Specifier)
	return m.Evaluate()
}

// RegisterPromise creates a host-side capability an embedder uses to bridge
// external async work (timers, I/O, network) into a JS-visible promise.
// BeginExternalOp/EndExternalOp bracket the pending operation so
// RunUntilIdle's caller can tell live work from quiescence.
func (e *Engine) RegisterPromise() (p *promise.Promise, resolve func(values.Value), reject func(values.Value)) {
	cap := promise.NewCapability(e.queue, e.realm)
	e.queue.BeginExternalOp()

	settled := false
	resolve = func(v values.Value) {
		if settled {
			return
		}
		settled = true
		cap.Resolve(v)
		e.queue.EndExternalOp()
	}
	reject = func(reason values.Value) {
		if settled {
			return
		}
		settled = true
		cap.Reject(reason)
		e.queue.EndExternalOp()
	}

	return cap.Promise, resolve, reject
}

// GetModuleNamespace returns m's canonical namespace object, built lazily on first
// access and cached on the module thereafter.
func (e *Engine) GetModuleNamespace(m *modules.Module) values.Value {
	return m.Namespace()
}

// RunUntilIdle drains the continuation queue once: every
// reaction whose promise was already settled when this call began runs;
// reactions scheduled during the drain run on the next call. Returns true
// if any continuation ran.
func (e *Engine) RunUntilIdle() bool {
	return e.queue.RunUntilIdle()
}

// Queue exposes the engine's continuation queue for callers that need to
// wait on external operations directly.
func (e *Engine) Queue() runtime.ContinuationQueue {
	return e.queue
}

// Stats reports module loader/cache effectiveness.
func (e *Engine) Stats() modules.LoaderStats {
	return e.graph.Stats()
}
