package config

import (
	"fmt"
	"sort"
)

// ModelAliases maps short names used in a policy to canonical model ids.
type ModelAliases map[string]string

// Resolve returns the canonical model name for an alias.
// If the input is not an alias, it returns the input unchanged.
func (a ModelAliases) Resolve(modelOrAlias string) string {
	if canonical, ok := a[modelOrAlias]; ok {
		return canonical
	}
	return modelOrAlias
}

// IsAlias returns true if the given string is a known alias.
func (a ModelAliases) IsAlias(name string) bool {
	_, ok := a[name]
	return ok
}

// Validate rejects empty targets and alias chains. Resolution is single
// level, so an alias pointing at another alias would silently stop short.
func (a ModelAliases) Validate() []error {
	var errs []error
	for _, name := range a.Names() {
		target := a[name]
		if target == "" {
			errs = append(errs, fmt.Errorf("alias %q has empty target", name))
			continue
		}
		if _, chained := a[target]; chained {
			errs = append(errs, fmt.Errorf("alias %q points at alias %q", name, target))
		}
	}
	return errs
}

// Names returns the alias names, sorted.
func (a ModelAliases) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
