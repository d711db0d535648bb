package modules

import (
	"testing"

	"github.com/nooga/ecmacore/pkg/await"
	"github.com/nooga/ecmacore/pkg/promise"
	"github.com/nooga/ecmacore/pkg/runtime"
	"github.com/nooga/ecmacore/pkg/values"
)

type fakeRealm struct{}

func (fakeRealm) NewSyntaxError(msg string) values.Value { return "SyntaxError: " + msg }
func (fakeRealm) NewTypeError(msg string) values.Value   { return "TypeError: " + msg }
func (fakeRealm) NewRangeError(msg string) values.Value  { return "RangeError: " + msg }

func identityNamespace(specifier string, names []string, get func(string) (values.Value, error)) values.Value {
	ns := make(map[string]values.Value, len(names))
	for _, n := range names {
		v, _ := get(n)
		ns[n] = v
	}
	return ns
}

func newTestGraph(t *testing.T, modulesJSON map[string]string, evaluator *fxEvaluator) (*Graph, *MemoryResolver) {
	t.Helper()
	resolver := NewMemoryResolver("test")
	for path, src := range modulesJSON {
		resolver.AddModule(path, src)
	}
	queue := runtime.NewDefaultQueue()
	bridge := await.New(queue)
	builder := newFxBuilder(bridge)
	if evaluator == nil {
		evaluator = newFxEvaluator()
	}
	g := NewGraph(resolver, builder, identityNamespace, evaluator, fakeRealm{}, queue, &LinkerConfig{
		Debug: true, MaxModuleDepth: 64, Registry: DefaultRegistryConfig(),
	})
	return g, resolver
}

func TestEvaluateSynchronousModuleFulfillsImmediately(t *testing.T) {
	g, _ := newTestGraph(t, map[string]string{
		"main": `{"body":[{"type":"expr","expr":{"kind":"lit","value":1}}]}`,
	}, nil)

	m, err := g.EntryModule("main")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := m.Link(); err != nil {
		t.Fatalf("link: %v", err)
	}
	p, err := m.Evaluate()
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if p.State() != promise.Fulfilled {
		t.Fatalf("got state %v, want Fulfilled synchronously for a module without top-level await", p.State())
	}
	if m.Status != Evaluated {
		t.Fatalf("got status %v, want Evaluated", m.Status)
	}
}

func TestDiamondImportEvaluatesWithoutCycles(t *testing.T) {
	g, _ := newTestGraph(t, map[string]string{
		"a": `{"requestedModules":["./b","./c"],"body":[{"type":"expr","expr":{"kind":"lit","value":"a"}}]}`,
		"b": `{"requestedModules":["./d"],"body":[{"type":"expr","expr":{"kind":"lit","value":"b"}}]}`,
		"c": `{"requestedModules":["./d"],"body":[{"type":"expr","expr":{"kind":"lit","value":"c"}}]}`,
		"d": `{"body":[{"type":"expr","expr":{"kind":"lit","value":"d"}}]}`,
	}, nil)

	m, err := g.EntryModule("a")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := m.Link(); err != nil {
		t.Fatalf("link: %v", err)
	}
	p, err := m.Evaluate()
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if p.State() != promise.Fulfilled {
		t.Fatalf("got state %v, want Fulfilled", p.State())
	}
	if m.Status != Evaluated {
		t.Fatalf("module a: got status %v, want Evaluated", m.Status)
	}
	for _, spec := range []string{"./b", "./c"} {
		target, err := m.resolveRequested(spec)
		if err != nil {
			t.Fatalf("resolving %s: %v", spec, err)
		}
		if target.Status != Evaluated {
			t.Fatalf("module %s: got status %v, want Evaluated", spec, target.Status)
		}
		for _, transitive := range []string{"./d"} {
			d, err := target.resolveRequested(transitive)
			if err != nil {
				t.Fatalf("resolving %s from %s: %v", transitive, spec, err)
			}
			if d.Status != Evaluated {
				t.Fatalf("module d (via %s): got status %v, want Evaluated", spec, d.Status)
			}
		}
	}
}

func TestTopLevelAwaitPropagatesFulfillment(t *testing.T) {
	evaluator := newFxEvaluator()
	pendingCap := make(chan *promise.Capability, 1)

	resolver := NewMemoryResolver("test")
	resolver.AddModule("main", `{"requestedModules":["./l"],"importEntries":[{"moduleRequest":"./l","importName":"v","localName":"lv"}],"varNames":["result"],"body":[{"type":"expr","expr":{"kind":"set","name":"result","arg":{"kind":"ref","name":"lv"}}}]}`)
	resolver.AddModule("l", `{"hasTLA":true,"varNames":["v"],"localExportEntries":[{"exportName":"v","localName":"v"}],"body":[{"type":"awaitset","name":"v","expr":{"kind":"call","fn":"external"}}]}`)

	queue := runtime.NewDefaultQueue()
	bridge := await.New(queue)
	builder := newFxBuilder(bridge)

	var externalPromise *promise.Promise
	evaluator.Register("external", func(args []values.Value) (values.Value, error) {
		cap := promise.NewCapability(queue, fakeRealm{})
		externalPromise = cap.Promise
		select {
		case pendingCap <- cap:
		default:
		}
		return cap.Promise, nil
	})

	g := NewGraph(resolver, builder, identityNamespace, evaluator, fakeRealm{}, queue, &LinkerConfig{
		Debug: true, Registry: DefaultRegistryConfig(),
	})

	m, err := g.EntryModule("main")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := m.Link(); err != nil {
		t.Fatalf("link: %v", err)
	}

	top, err := m.Evaluate()
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if top.State() != promise.Pending {
		t.Fatalf("got state %v, want Pending before the await settles", top.State())
	}
	_ = externalPromise

	cap := <-pendingCap
	cap.Resolve("hello")
	queue.RunUntilIdle()
	queue.RunUntilIdle()

	if top.State() != promise.Fulfilled {
		t.Fatalf("got state %v, want Fulfilled after the awaited promise settles", top.State())
	}

	lModule, err := m.resolveRequested("./l")
	if err != nil {
		t.Fatalf("resolving l: %v", err)
	}
	if lModule.Status != Evaluated {
		t.Fatalf("module l: got status %v, want Evaluated", lModule.Status)
	}
	if got, err := lModule.Environment.Get("v"); err != nil || got != "hello" {
		t.Fatalf("l.v = %v, %v; want \"hello\", nil", got, err)
	}
}

func TestEvaluateRejectionPropagatesToCycleRoot(t *testing.T) {
	evaluator := newFxEvaluator()
	resolver := NewMemoryResolver("test")
	resolver.AddModule("main", `{"requestedModules":["./l"],"body":[{"type":"expr","expr":{"kind":"lit","value":1}}]}`)
	resolver.AddModule("l", `{"hasTLA":true,"body":[{"type":"awaitset","name":"unused","expr":{"kind":"call","fn":"external"}}],"varNames":["unused"]}`)

	queue := runtime.NewDefaultQueue()
	bridge := await.New(queue)
	builder := newFxBuilder(bridge)

	var rejectFn func(values.Value)
	evaluator.Register("external", func(args []values.Value) (values.Value, error) {
		cap := promise.NewCapability(queue, fakeRealm{})
		rejectFn = cap.Reject
		return cap.Promise, nil
	})

	g := NewGraph(resolver, builder, identityNamespace, evaluator, fakeRealm{}, queue, &LinkerConfig{
		Debug: true, Registry: DefaultRegistryConfig(),
	})

	m, err := g.EntryModule("main")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := m.Link(); err != nil {
		t.Fatalf("link: %v", err)
	}

	top, err := m.Evaluate()
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	rejectFn("boom")
	queue.RunUntilIdle()
	queue.RunUntilIdle()

	if top.State() != promise.Rejected {
		t.Fatalf("got state %v, want Rejected", top.State())
	}
	if top.Value() != "boom" {
		t.Fatalf("got reason %v, want \"boom\"", top.Value())
	}

	lModule, err := m.resolveRequested("./l")
	if err != nil {
		t.Fatalf("resolving l: %v", err)
	}
	if lModule.Status != Evaluated || lModule.EvalError == nil {
		t.Fatalf("module l: status %v, evalError %v; want Evaluated with evalError set", lModule.Status, lModule.EvalError)
	}

	// Re-evaluating returns the same rejected promise via the cycle root's
	// memoized capability, never a fresh evaluation.
	again, err := m.Evaluate()
	if err != nil {
		t.Fatalf("re-evaluate: %v", err)
	}
	if again != top {
		t.Fatal("second Evaluate must return the same top-level promise")
	}
}

