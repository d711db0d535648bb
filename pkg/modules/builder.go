package modules

import (
	"github.com/nooga/ecmacore/pkg/exec"
	"github.com/nooga/ecmacore/pkg/host"
	"github.com/nooga/ecmacore/pkg/values"
)

// ModuleSource is what a SourceBuilder produces from a host.ResolvedSource:
// the classified import/export entries, hoisting info, and compiled body
// the module graph consumes. Producing
// this from source text is the lexer/parser/checker's job, an external
// collaborator; this package only defines the shape it must hand back.
type ModuleSource struct {
	RequestedModules      []string
	ImportEntries         []ImportEntry
	LocalExportEntries    []ExportEntry
	IndirectExportEntries []ExportEntry
	StarExportEntries     []ExportEntry

	Body   []exec.Statement
	HasTLA bool

	VarNames      []string
	LexicalDecls  []LexicalDecl
	FunctionDecls []FunctionDecl
}

// SourceBuilder classifies a resolved module source into a ModuleSource.
// Concrete implementations (a real parser, or a fixture-driven builder for
// tests/demos) live outside this package; ecmacore's core never parses JS
// itself.
type SourceBuilder interface {
	BuildModule(resolved *host.ResolvedSource) (*ModuleSource, error)
}

// NamespaceFactory builds the namespace exotic object for a module given
// its exported names and a live-binding getter.
// Object construction belongs to the host's object
// model, an external collaborator; this package only decides
// when to build one and which names back it.
type NamespaceFactory func(specifier string, names []string, get func(name string) (values.Value, error)) values.Value
