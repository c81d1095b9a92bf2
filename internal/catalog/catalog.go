package catalog

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
)

// Sentinel errors for malformed catalogs. All of them abort the invocation
// before anything is submitted; a catalog that fails validation cannot be
// partially trusted.
var (
	ErrDuplicateService    = errors.New("duplicate service name")
	ErrDanglingDependency  = errors.New("dependency not present in catalog")
	ErrDependencyCycle     = errors.New("dependency cycle")
	ErrNoServices          = errors.New("no service definitions found")
	ErrSelfDependency      = errors.New("service depends on itself")
	ErrInvalidServiceBlock = errors.New("invalid service block")
)

// Unit is one buildable service in the catalog.
type Unit struct {
	// Name is the unique key of the service across the whole repository.
	Name string
	// Context is the build context directory, relative to the repository
	// root ("." for a service defined at the root).
	Context string
	// Dockerfile is the build file path relative to Context.
	Dockerfile string
	// DependsOn lists the names of services this unit builds on top of.
	DependsOn []string
	// Env carries extra environment variables declared in the service file,
	// passed through to the build task payload.
	Env map[string]string
	// Dirty marks the unit as requiring a rebuild in the current invocation.
	Dirty bool
}

// Catalog maps service names to units. It is owned by a single scheduling
// invocation and never shared across runs.
type Catalog struct {
	units map[string]*Unit
}

// Len returns the number of units in the catalog.
func (c *Catalog) Len() int {
	return len(c.units)
}

// Get returns the unit with the given name, or nil if absent.
func (c *Catalog) Get(name string) *Unit {
	return c.units[name]
}

// Units returns all units sorted by name. The deterministic order makes task
// creation reproducible across runs on the same commit.
func (c *Catalog) Units() []*Unit {
	names := make([]string, 0, len(c.units))
	for name := range c.units {
		names = append(names, name)
	}
	sort.Strings(names)

	units := make([]*Unit, len(names))
	for i, name := range names {
		units[i] = c.units[name]
	}
	return units
}

// OwnersOf returns the units whose build context contains the given
// repository-relative path, sorted by name. A path outside every context
// returns an empty slice; that is a no-op for dirtiness, not an error.
func (c *Catalog) OwnersOf(path string) []*Unit {
	var owners []*Unit
	for _, unit := range c.Units() {
		if unit.ownsPath(path) {
			owners = append(owners, unit)
		}
	}
	return owners
}

// ownsPath reports whether the repository-relative path lies under the
// unit's build context.
func (u *Unit) ownsPath(path string) bool {
	path = filepath.ToSlash(filepath.Clean(path))
	ctx := filepath.ToSlash(filepath.Clean(u.Context))
	if ctx == "." {
		return true
	}
	return path == ctx || strings.HasPrefix(path, ctx+"/")
}
