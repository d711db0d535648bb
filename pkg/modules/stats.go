package modules

// LoaderStats reports module-loading/caching effectiveness, populated as a
// side effect of Graph.ResolveImportedModule calls. Purely observational;
// the linking/evaluation algorithms never read it.
type LoaderStats struct {
	TotalModules int
	CacheHits    int
	CacheMisses  int
}

// DependencyStats reports the shape of a resolved import graph: how many
// modules it reaches, how deep the longest import chain is, and the total
// number of import edges. Recomputed on demand purely for diagnostics.
type DependencyStats struct {
	ModuleCount  int
	MaxDepth     int
	TotalImports int
}

// DependencyStatsFor walks the dependency graph reachable from entry,
// reporting its shape. Each requested specifier goes through the Graph's
// resolution (a cached module is reused, an uncached one is built), so the
// walk also counts toward the registry's hit/miss stats. It never mutates
// module state and plays no part in Link or Evaluate.
func DependencyStatsFor(entry *Module) DependencyStats {
	var stats DependencyStats
	deepest := make(map[*Module]int)

	var walk func(m *Module, depth int)
	walk = func(m *Module, depth int) {
		prev, seen := deepest[m]
		if seen && prev >= depth {
			return
		}
		deepest[m] = depth
		if depth > stats.MaxDepth {
			stats.MaxDepth = depth
		}
		if !seen {
			stats.TotalImports += len(m.RequestedModules)
		}
		for _, spec := range m.RequestedModules {
			target, err := m.resolveRequested(spec)
			if err != nil {
				continue
			}
			walk(target, depth+1)
		}
	}

	walk(entry, 0)
	stats.ModuleCount = len(deepest)
	return stats
}
