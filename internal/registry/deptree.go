package registry

import "sort"

// dependencyOrder returns the names of entries in topological order,
// dependencies first. Dependencies outside the given set are ignored and
// cycles are broken at the first revisit. Ties are broken by name so the
// order is stable.
func dependencyOrder(entries []*entry) []string {
	byName := make(map[string]*entry, len(entries))
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		byName[e.name] = e
		names = append(names, e.name)
	}
	sort.Strings(names)

	seen := make(map[string]bool, len(entries))
	result := make([]string, 0, len(entries))
	for _, name := range names {
		flattenRecursive(name, byName, seen, &result)
	}
	return result
}

func flattenRecursive(name string, byName map[string]*entry, seen map[string]bool, result *[]string) {
	e, ok := byName[name]
	if !ok || seen[name] {
		return
	}
	seen[name] = true

	// Process dependencies first (dependencies before dependents).
	deps := append([]string(nil), e.dependencies()...)
	sort.Strings(deps)
	for _, dep := range deps {
		flattenRecursive(dep, byName, seen, result)
	}
	*result = append(*result, name)
}
