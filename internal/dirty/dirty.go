// Package dirty decides which catalog units need a rebuild for the current
// invocation, flipping the per-unit Dirty flags in place.
package dirty

import (
	"context"

	"github.com/vk/buildsched/internal/catalog"
	"github.com/vk/buildsched/internal/ctxlog"
)

// Mark flags every unit that must be rebuilt. With forceRebuild set, every
// unit is marked unconditionally and path analysis is skipped. Otherwise
// units owning a changed path are marked directly, and dirtiness then
// propagates to their transitive dependents: a unit that builds on top of a
// changed unit must rebuild too.
//
// Mark is idempotent; running it again over an already-marked catalog
// changes nothing.
func Mark(ctx context.Context, cat *catalog.Catalog, changedPaths []string, forceRebuild bool) {
	logger := ctxlog.FromContext(ctx)

	if forceRebuild {
		logger.Info("Force rebuild requested, marking all services dirty.", "services", cat.Len())
		for _, unit := range cat.Units() {
			unit.Dirty = true
		}
		return
	}

	markChanged(ctx, cat, changedPaths)
	propagate(ctx, cat)
}

// markChanged sets the Dirty flag on every unit whose build context owns a
// changed path. Paths outside every context affect nothing.
func markChanged(ctx context.Context, cat *catalog.Catalog, changedPaths []string) {
	logger := ctxlog.FromContext(ctx)
	for _, path := range changedPaths {
		owners := cat.OwnersOf(path)
		if len(owners) == 0 {
			logger.Debug("Changed path not owned by any service.", "path", path)
			continue
		}
		for _, unit := range owners {
			if !unit.Dirty {
				logger.Info("Service marked dirty by changed path.", "service", unit.Name, "path", path)
				unit.Dirty = true
			}
		}
	}
}

// propagate repeatedly scans the catalog, marking any clean dependent of a
// dirty unit, until a full pass changes nothing. The fixed-point loop is
// bounded by graph depth times unit count, which is cheap at catalog sizes
// of tens to low hundreds of units, and it never follows a dependency name
// that does not resolve.
func propagate(ctx context.Context, cat *catalog.Catalog) {
	logger := ctxlog.FromContext(ctx)
	for changed := true; changed; {
		changed = false
		for _, unit := range cat.Units() {
			if unit.Dirty {
				continue
			}
			for _, dep := range unit.DependsOn {
				if d := cat.Get(dep); d != nil && d.Dirty {
					logger.Info("Service marked dirty by dependency.", "service", unit.Name, "dependency", dep)
					unit.Dirty = true
					changed = true
					break
				}
			}
		}
	}
}
