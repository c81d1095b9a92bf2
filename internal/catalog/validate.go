package catalog

import (
	"fmt"
)

// validate checks the integrity of the loaded dependency graph: every
// declared dependency must resolve to a catalog entry and the relation must
// be acyclic.
func (c *Catalog) validate() error {
	for _, unit := range c.Units() {
		for _, dep := range unit.DependsOn {
			if dep == unit.Name {
				return fmt.Errorf("%w: %q", ErrSelfDependency, unit.Name)
			}
			if _, ok := c.units[dep]; !ok {
				return fmt.Errorf("%w: %q required by %q", ErrDanglingDependency, dep, unit.Name)
			}
		}
	}
	return c.detectCycles()
}

// detectCycles runs a depth-first search with three node colors:
// done (fully visited, known safe), inProgress (on the current recursion
// stack), and unvisited. Reaching an inProgress node again means the
// dependency relation loops back on itself.
func (c *Catalog) detectCycles() error {
	done := make(map[string]bool)
	inProgress := make(map[string]bool)

	var visit func(u *Unit) error
	visit = func(u *Unit) error {
		if done[u.Name] {
			return nil
		}
		if inProgress[u.Name] {
			return fmt.Errorf("%w involving %q", ErrDependencyCycle, u.Name)
		}

		inProgress[u.Name] = true
		for _, dep := range u.DependsOn {
			if err := visit(c.units[dep]); err != nil {
				return err
			}
		}
		delete(inProgress, u.Name)
		done[u.Name] = true

		return nil
	}

	for _, unit := range c.Units() {
		if !done[unit.Name] {
			if err := visit(unit); err != nil {
				return err
			}
		}
	}

	return nil
}
