package modules

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nooga/ecmacore/pkg/host"
)

// MemoryResolver resolves modules from an in-memory specifier→source map.
// Used by tests and the CLI demo's fixture-graph loader, where there is no
// real filesystem to resolve against.
type MemoryResolver struct {
	name string
	mu   sync.RWMutex
	src  map[string]string
}

// NewMemoryResolver creates a resolver with no modules loaded yet.
func NewMemoryResolver(name string) *MemoryResolver {
	if name == "" {
		name = "memory"
	}
	return &MemoryResolver{name: name, src: make(map[string]string)}
}

// Name implements host.ModuleResolver.
func (r *MemoryResolver) Name() string { return r.name }

// AddModule registers source under path, resolvable by that exact
// specifier or via relative import from another module at the same path
// prefix.
func (r *MemoryResolver) AddModule(path string, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.src[path] = source
}

// Resolve implements host.ModuleResolver.
func (r *MemoryResolver) Resolve(referrer, specifier string) (*host.ResolvedSource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resolved := specifier
	if strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") {
		if referrer == "" {
			resolved = strings.TrimPrefix(specifier, "./")
		} else {
			resolved = filepath.Clean(filepath.Join(filepath.Dir(referrer), specifier))
		}
	}

	if source, ok := r.src[resolved]; ok {
		return &host.ResolvedSource{Specifier: specifier, ResolvedPath: resolved, Source: source}, nil
	}
	for _, ext := range []string{".mjs", ".js"} {
		if source, ok := r.src[resolved+ext]; ok {
			return &host.ResolvedSource{Specifier: specifier, ResolvedPath: resolved + ext, Source: source}, nil
		}
	}
	return nil, fmt.Errorf("module not found: %s", resolved)
}
