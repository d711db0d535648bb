// Command ecmacore-demo links and evaluates a JSON-described module graph
// through pkg/engine, logging the entry module's top-level promise
// settlement followed by loader and dependency stats; the settlement of
// the other modules is not reported. There is no real
// lexer/parser in this repository (one is supplied by the embedding
// host), so the demo's "source" is pkg/fixture's small JSON
// expression/statement language instead of JavaScript text.
//
// Usage:
//
//	ecmacore-demo -graph graph.json -entry ./main
//
// graph.json maps a module's resolved path to a fixture.ModuleDef. The demo
// registers one host function, "external", that returns a promise created
// via Engine.RegisterPromise and resolved after a configurable delay, a
// stand-in for real host-driven async work.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/nooga/ecmacore/pkg/await"
	"github.com/nooga/ecmacore/pkg/engine"
	"github.com/nooga/ecmacore/pkg/fixture"
	"github.com/nooga/ecmacore/pkg/modules"
	"github.com/nooga/ecmacore/pkg/promise"
	"github.com/nooga/ecmacore/pkg/runtime"
	"github.com/nooga/ecmacore/pkg/values"
)

type demoRealm struct{}

func (demoRealm) NewSyntaxError(msg string) values.Value { return "SyntaxError: " + msg }
func (demoRealm) NewTypeError(msg string) values.Value   { return "TypeError: " + msg }
func (demoRealm) NewRangeError(msg string) values.Value  { return "RangeError: " + msg }

func main() {
	graphPath := flag.String("graph", "", "path to a JSON module graph (specifier -> fixture.ModuleDef)")
	entry := flag.String("entry", "", "entry module specifier")
	debug := flag.Bool("debug", false, "disable FastResolve and log verbosely")
	settleAfter := flag.Duration("settle-after", 50*time.Millisecond, "delay before the external promise resolves")
	flag.Parse()

	logger := newLogger(*debug)
	defer logger.Sync()

	if *graphPath == "" || *entry == "" {
		fmt.Fprintln(os.Stderr, "usage: ecmacore-demo -graph graph.json -entry ./main")
		os.Exit(64)
	}

	if err := run(logger, *graphPath, *entry, *debug, *settleAfter); err != nil {
		logger.Error("run failed", zap.Error(err))
		os.Exit(70)
	}
}

func newLogger(debug bool) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	logger, err := cfg.Build()
	if err != nil {
		logger = zap.NewNop()
	}
	return logger
}

func run(logger *zap.Logger, graphPath, entry string, debug bool, settleAfter time.Duration) error {
	raw, err := os.ReadFile(graphPath)
	if err != nil {
		return fmt.Errorf("reading graph: %w", err)
	}

	var defs map[string]json.RawMessage
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("parsing graph: %w", err)
	}

	resolver := modules.NewMemoryResolver("demo")
	for path, src := range defs {
		resolver.AddModule(path, string(src))
	}

	queue := runtime.NewDefaultQueue()
	bridge := await.New(queue)
	builder := fixture.NewBuilder(bridge)
	evaluator := fixture.NewEvaluator()

	eng := engine.New(engine.Config{
		Resolver:  resolver,
		Builder:   builder,
		Namespace: namespaceFactory,
		Evaluator: evaluator,
		Realm:     demoRealm{},
		Queue:     queue,
		Linker:    &modules.LinkerConfig{Debug: debug, MaxModuleDepth: 512, ResolveTimeout: 5 * time.Second, Registry: modules.DefaultRegistryConfig()},
	})

	externalPromise, resolveExternal, rejectExternal := eng.RegisterPromise()
	evaluator.Register("external", func(args []values.Value) (values.Value, error) {
		return externalPromise, nil
	})

	logger.Info("resolving entry module", zap.String("entry", entry))
	m, err := eng.EntryModule(entry)
	if err != nil {
		return fmt.Errorf("resolving entry module: %w", err)
	}

	logger.Info("linking module graph", zap.String("entry", entry))
	if err := eng.Link(m); err != nil {
		return fmt.Errorf("link failed: %w", err)
	}

	logger.Info("evaluating module graph", zap.String("entry", entry))
	top, err := eng.Evaluate(m)
	if err != nil {
		return fmt.Errorf("evaluate failed: %w", err)
	}

	go func() {
		time.Sleep(settleAfter)
		logger.Debug("settling external promise")
		resolveExternal("external-result")
	}()
	_ = rejectExternal // available to the embedder; unused on the happy path

	for top.State() == promise.Pending {
		if eng.Queue().HasPendingExternalOps() {
			eng.Queue().WaitForExternalOp()
		} else {
			time.Sleep(time.Millisecond)
		}
		eng.RunUntilIdle()
	}

	logger.Info("top-level promise settled",
		zap.String("state", top.State().String()),
		zap.Any("value", top.Value()))

	stats := eng.Stats()
	logger.Info("loader stats",
		zap.Int("totalModules", stats.TotalModules),
		zap.Int("cacheHits", stats.CacheHits),
		zap.Int("cacheMisses", stats.CacheMisses))

	deps := modules.DependencyStatsFor(m)
	logger.Info("dependency stats",
		zap.Int("moduleCount", deps.ModuleCount),
		zap.Int("maxDepth", deps.MaxDepth),
		zap.Int("totalImports", deps.TotalImports))

	if top.State() == promise.Rejected {
		return fmt.Errorf("module graph rejected: %v", top.Value())
	}
	return nil
}

// namespaceFactory builds a plain map[string]values.Value snapshot as the
// namespace "object"; the demo has no real object model, so
// each exported name is simply resolved once at construction time.
func namespaceFactory(specifier string, names []string, get func(name string) (values.Value, error)) values.Value {
	ns := make(map[string]values.Value, len(names))
	for _, name := range names {
		v, err := get(name)
		if err != nil {
			v = nil
		}
		ns[name] = v
	}
	return ns
}
