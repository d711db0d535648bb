package modules

import "time"

// ModuleStatus is the CyclicModuleRecord lifecycle: ordered
// and monotonic except for the single Linking→Unlinked rollback on link
// failure.
type ModuleStatus int

const (
	Unlinked ModuleStatus = iota
	Linking
	Linked
	Evaluating
	EvaluatingAsync
	Evaluated
)

func (s ModuleStatus) String() string {
	switch s {
	case Unlinked:
		return "unlinked"
	case Linking:
		return "linking"
	case Linked:
		return "linked"
	case Evaluating:
		return "evaluating"
	case EvaluatingAsync:
		return "evaluating-async"
	case Evaluated:
		return "evaluated"
	default:
		return "invalid"
	}
}

// ImportType classifies an ImportEntry for host diagnostics beyond the
// importName=="*" discriminant the linker itself inspects.
type ImportType int

const (
	ImportNamed ImportType = iota
	ImportDefault
	ImportNamespace
	ImportSideEffect
)

func (t ImportType) String() string {
	switch t {
	case ImportDefault:
		return "default"
	case ImportNamespace:
		return "namespace"
	case ImportSideEffect:
		return "side-effect"
	default:
		return "named"
	}
}

// ImportEntry records one binding a module imports.
// ImportName may be "*" for a namespace import. Kind is a richer,
// redundant classification kept alongside importName for host diagnostics
// (see ImportType); the linker only ever inspects ImportName.
type ImportEntry struct {
	ModuleRequest string
	ImportName    string
	LocalName     string
	Kind          ImportType
}

// ExportEntry records one binding a module exports. Local
// exports carry LocalName only; indirect exports carry ModuleRequest and
// ImportName; star exports carry only ModuleRequest, with ExportName left
// empty (there is no export name to collide on).
type ExportEntry struct {
	ExportName    string
	ModuleRequest string
	ImportName    string
	LocalName     string
}

// NamespaceBindingName is the sentinel bindingName ResolveExport and
// InitializeEnvironment use to denote "bind the target module's namespace
// object" rather than a single forwarded binding.
const NamespaceBindingName = "*namespace*"

// ResolvedBindingKind tags the outcome of ResolveExport.
type ResolvedBindingKind int

const (
	BindingResolved ResolvedBindingKind = iota
	BindingAmbiguous
	BindingAbsent
)

// ResolvedBinding is the result of ResolveExport: a (module, bindingName)
// pair, the Ambiguous sentinel, or Absent.
type ResolvedBinding struct {
	Kind        ResolvedBindingKind
	Module      *Module
	BindingName string
}

var absentBinding = ResolvedBinding{Kind: BindingAbsent}
var ambiguousBinding = ResolvedBinding{Kind: BindingAmbiguous}

// RegistryConfig configures the module registry's caching behavior.
type RegistryConfig struct {
	// CacheSize bounds the number of resolved modules kept; 0 means
	// unlimited. Eviction is oldest-first by LoadTime.
	CacheSize int
	// CacheTTL expires a cached module after this long; 0 means no expiry.
	CacheTTL time.Duration
}

// DefaultRegistryConfig returns sensible defaults: unbounded, no expiry;
// module instances must stay alive for the lifetime of a single link graph
// since the linker relies on resolveImportedModule returning the same
// instance for the same (referrer, specifier) pair.
func DefaultRegistryConfig() *RegistryConfig {
	return &RegistryConfig{CacheSize: 0, CacheTTL: 0}
}

// RegistryStats reports cache effectiveness.
type RegistryStats struct {
	TotalModules int
	CacheHits    int
	CacheMisses  int
}

// LinkerConfig configures one Graph's linking/evaluation behavior: debug
// mode (propagated to exec.Build to disable FastResolve), a depth guard
// against pathological import chains, and the resolver timeout.
type LinkerConfig struct {
	// Debug disables FastResolve in every module's compiled statement list
	// so tracing/tests see every statement observably
	// executed.
	Debug bool
	// MaxModuleDepth bounds the DFS recursion depth Link/Evaluate will
	// follow before failing with an InvariantError, guarding against a
	// pathologically deep (non-cyclic) import chain.
	MaxModuleDepth int
	// ResolveTimeout bounds how long a single host resolver call may run.
	ResolveTimeout time.Duration
	// Registry configures the module cache's TTL/size eviction.
	Registry *RegistryConfig
}

// DefaultLinkerConfig returns sensible defaults: non-debug, a generous
// depth guard, a five-second resolve timeout, and an unbounded registry.
func DefaultLinkerConfig() *LinkerConfig {
	return &LinkerConfig{
		MaxModuleDepth: 512,
		ResolveTimeout: 5 * time.Second,
		Registry:       DefaultRegistryConfig(),
	}
}
