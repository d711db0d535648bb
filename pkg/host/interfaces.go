// Package host defines the narrow contract the module graph consumes from
// its embedder: a module resolver and access to the
// realm's error constructors. The continuation queue is defined separately
// in pkg/runtime since it is shared by the promise machinery too.
package host

import "github.com/nooga/ecmacore/pkg/values"

// ModuleResolver resolves module specifiers to concrete module sources.
// Resolve must return the same instance for the same (referrer, specifier)
// pair; failure must raise an error the engine can surface as a realm
// TypeError.
type ModuleResolver interface {
	// Name returns a human-readable name for this resolver, used in
	// diagnostics and by resolver chains to report which one matched.
	Name() string

	// Resolve attempts to resolve specifier, imported from referrer (the
	// resolved path/specifier of the importing module, "" for the entry
	// module), to a module source the loader can parse.
	Resolve(referrer, specifier string) (*ResolvedSource, error)
}

// ResolvedSource is the result of a successful resolution: enough for the
// loader to build a ModuleRecord.
type ResolvedSource struct {
	Specifier    string // Original import specifier
	ResolvedPath string // Canonical resolved path, used as the cache key
	Source       string // Module source text
}

// Realm is the subset of the host's object model the core needs to
// construct the three error kinds ECMAScript requires at well-defined
// points: SyntaxError for unresolved/ambiguous exports,
// TypeError/RangeError for expression-evaluation failures folded into Throw
// completions.
type Realm interface {
	NewSyntaxError(message string) values.Value
	NewTypeError(message string) values.Value
	NewRangeError(message string) values.Value
}
