package modules

import (
	"testing"
)

func TestLinkResolvesImportsAndHoistsDeclarations(t *testing.T) {
	g, _ := newTestGraph(t, map[string]string{
		"main": `{"requestedModules":["./lib"],"importEntries":[{"moduleRequest":"./lib","importName":"x","localName":"localX"}],"varNames":["result"],"body":[{"type":"expr","expr":{"kind":"set","name":"result","arg":{"kind":"ref","name":"localX"}}}]}`,
		"lib":  `{"localExportEntries":[{"exportName":"x","localName":"x"}],"varNames":["x"],"body":[{"type":"expr","expr":{"kind":"set","name":"x","arg":{"kind":"lit","value":42}}}]}`,
	}, nil)

	m, err := g.EntryModule("main")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := m.Link(); err != nil {
		t.Fatalf("link: %v", err)
	}
	if m.Status != Linked {
		t.Fatalf("got status %v, want Linked", m.Status)
	}

	lib, err := m.resolveRequested("./lib")
	if err != nil {
		t.Fatalf("resolving lib: %v", err)
	}
	if lib.Status != Linked {
		t.Fatalf("lib: got status %v, want Linked", lib.Status)
	}

	if _, err := m.Environment.Get("localX"); err != nil {
		t.Fatalf("localX binding not wired: %v", err)
	}
	if got, err := m.Environment.Get("result"); err != nil || got != nil {
		t.Fatalf("result = %v, %v; want nil (hoisted var, not yet executed)", got, err)
	}
}

func TestLinkFailsOnUnresolvedImport(t *testing.T) {
	g, _ := newTestGraph(t, map[string]string{
		"main": `{"requestedModules":["./lib"],"importEntries":[{"moduleRequest":"./lib","importName":"missing","localName":"x"}],"body":[]}`,
		"lib":  `{"localExportEntries":[{"exportName":"present","localName":"present"}],"varNames":["present"],"body":[]}`,
	}, nil)

	m, err := g.EntryModule("main")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := m.Link(); err == nil {
		t.Fatal("want link error for unresolved import, got nil")
	}

	if m.Status != Unlinked {
		t.Fatalf("got status %v, want Unlinked after rollback", m.Status)
	}
	if m.Environment != nil {
		t.Fatal("want Environment cleared after rollback")
	}

	// lib itself has no unresolved imports and finished linking (sealed into
	// its own SCC) before main's own InitializeEnvironment step failed, so
	// only main (still on the DFS stack at the point of failure) rolls
	// back; lib's successful link stands.
	lib, err := m.resolveRequested("./lib")
	if err != nil {
		t.Fatalf("resolving lib: %v", err)
	}
	if lib.Status != Linked {
		t.Fatalf("lib: got status %v, want Linked (unaffected by main's rollback)", lib.Status)
	}
}

func TestLinkFailsOnAmbiguousStarExport(t *testing.T) {
	g, _ := newTestGraph(t, map[string]string{
		"main": `{"requestedModules":["./a","./b"],"starExportEntries":[{"moduleRequest":"./a"},{"moduleRequest":"./b"}],"body":[]}`,
		"a":    `{"localExportEntries":[{"exportName":"shared","localName":"shared"}],"varNames":["shared"],"body":[]}`,
		"b":    `{"localExportEntries":[{"exportName":"shared","localName":"shared"}],"varNames":["shared"],"body":[]}`,
	}, nil)

	m, err := g.EntryModule("main")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	names, err := m.GetExportedNames(make(map[*Module]bool))
	if err != nil {
		t.Fatalf("GetExportedNames: %v", err)
	}
	for _, n := range names {
		if n == "shared" {
			t.Fatal("ambiguous star-exported name should not appear in GetExportedNames output")
		}
	}

	binding, err := m.ResolveExport("shared", make(map[resolveKey]bool))
	if err != nil {
		t.Fatalf("ResolveExport: %v", err)
	}
	if binding.Kind != BindingAmbiguous {
		t.Fatalf("got binding kind %v, want BindingAmbiguous", binding.Kind)
	}
}

func TestLinkSupportsNamespaceImport(t *testing.T) {
	g, _ := newTestGraph(t, map[string]string{
		"main": `{"requestedModules":["./lib"],"importEntries":[{"moduleRequest":"./lib","importName":"*","localName":"ns"}],"body":[]}`,
		"lib":  `{"localExportEntries":[{"exportName":"a","localName":"a"},{"exportName":"b","localName":"b"}],"varNames":["a","b"],"body":[]}`,
	}, nil)

	m, err := g.EntryModule("main")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := m.Link(); err != nil {
		t.Fatalf("link: %v", err)
	}

	ns, err := m.Environment.Get("ns")
	if err != nil {
		t.Fatalf("ns binding: %v", err)
	}
	snapshot, ok := ns.(map[string]interface{})
	if !ok {
		t.Fatalf("namespace value is %T, want map[string]interface{}", ns)
	}
	if _, ok := snapshot["a"]; !ok {
		t.Fatal("namespace snapshot missing export \"a\"")
	}
	if _, ok := snapshot["b"]; !ok {
		t.Fatal("namespace snapshot missing export \"b\"")
	}
}

func TestLinkIsIdempotentOnceLinked(t *testing.T) {
	g, _ := newTestGraph(t, map[string]string{
		"main": `{"body":[]}`,
	}, nil)

	m, err := g.EntryModule("main")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := m.Link(); err != nil {
		t.Fatalf("first link: %v", err)
	}
	if err := m.Link(); err != nil {
		t.Fatalf("second link: %v", err)
	}
	if m.Status != Linked {
		t.Fatalf("got status %v, want Linked", m.Status)
	}
}

func TestGetExportedNamesTerminatesOnStarExportCycle(t *testing.T) {
	g, _ := newTestGraph(t, map[string]string{
		"a": `{"requestedModules":["./b"],"localExportEntries":[{"exportName":"fromA","localName":"fromA"},{"exportName":"default","localName":"dflt"}],"starExportEntries":[{"moduleRequest":"./b"}],"varNames":["fromA","dflt"],"body":[]}`,
		"b": `{"requestedModules":["./a"],"localExportEntries":[{"exportName":"fromB","localName":"fromB"}],"starExportEntries":[{"moduleRequest":"./a"}],"varNames":["fromB"],"body":[]}`,
	}, nil)

	m, err := g.EntryModule("a")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	names, err := m.GetExportedNames(make(map[*Module]bool))
	if err != nil {
		t.Fatalf("GetExportedNames: %v", err)
	}

	got := make(map[string]int)
	for _, n := range names {
		got[n]++
	}
	for _, want := range []string{"fromA", "fromB"} {
		if got[want] != 1 {
			t.Fatalf("names = %v, want exactly one %q", names, want)
		}
	}
	// a's own default export is visible directly but must never leak
	// through b's `export * from "./a"` as a duplicate.
	if got["default"] != 1 {
		t.Fatalf("names = %v, want exactly one \"default\" (a's own)", names)
	}

	b, err := m.resolveRequested("./b")
	if err != nil {
		t.Fatalf("resolving b: %v", err)
	}
	bNames, err := b.GetExportedNames(make(map[*Module]bool))
	if err != nil {
		t.Fatalf("GetExportedNames(b): %v", err)
	}
	for _, n := range bNames {
		if n == "default" {
			t.Fatalf("b's names = %v; \"default\" must not be captured by export *", bNames)
		}
	}
}

func TestLinkHandlesCircularImports(t *testing.T) {
	g, _ := newTestGraph(t, map[string]string{
		"a": `{"requestedModules":["./b"],"body":[]}`,
		"b": `{"requestedModules":["./a"],"body":[]}`,
	}, nil)

	m, err := g.EntryModule("a")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := m.Link(); err != nil {
		t.Fatalf("link: %v", err)
	}
	if m.Status != Linked {
		t.Fatalf("module a: got status %v, want Linked", m.Status)
	}

	b, err := m.resolveRequested("./b")
	if err != nil {
		t.Fatalf("resolving b: %v", err)
	}
	if b.Status != Linked {
		t.Fatalf("module b: got status %v, want Linked", b.Status)
	}
}
