package task

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sync/atomic"

	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/watch"
)

// Resolver reports whether a script reference can be turned into a body
type Resolver interface {
	Has(ref string) bool
}

type snapshot struct {
	defs       []Definition
	byID       map[string]int
	categories []string
}

// Registry answers queries over the loaded definitions. Reload swaps the
// whole table at once so queries never see a partial reload.
type Registry struct {
	source   Source
	resolver Resolver
	log      logger.LoggerInterface
	current  atomic.Pointer[snapshot]
}

// NewRegistry loads source once. A failed initial load is returned and
// leaves the registry empty but usable.
func NewRegistry(source Source, resolver Resolver, log logger.LoggerInterface) (*Registry, error) {
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	r := &Registry{source: source, resolver: resolver, log: log}
	r.current.Store(&snapshot{byID: map[string]int{}})

	if err := r.Reload(); err != nil {
		return r, err
	}

	return r, nil
}

// Reload reads the source again. On failure the previous table stays.
func (r *Registry) Reload() error {
	table, err := r.source.Load()
	if err != nil {
		r.log.Error("Failed to load task definitions", slog.Any("error", err))
		return err
	}

	for _, skipped := range table.Skipped {
		r.log.Warn("Skipping task definition", slog.Any("error", skipped))
	}

	snap := &snapshot{
		defs:       table.Definitions,
		byID:       make(map[string]int, len(table.Definitions)),
		categories: table.Categories,
	}
	for i, def := range table.Definitions {
		snap.byID[def.ID] = i
	}

	r.current.Store(snap)

	r.log.Info("Task definitions loaded",
		slog.Int("tasks", len(snap.defs)),
		slog.Int("skipped", len(table.Skipped)),
	)
	for _, def := range snap.defs {
		r.log.Debug("Loaded task",
			slog.String("id", def.ID),
			slog.String("category", def.Category),
			slog.Bool("enabled", def.Enabled),
		)
	}

	return nil
}

// List returns every definition in load order
func (r *Registry) List() []Definition {
	return slices.Clone(r.current.Load().defs)
}

// Get returns the definition for id
func (r *Registry) Get(id string) (Definition, bool) {
	snap := r.current.Load()

	i, ok := snap.byID[id]
	if !ok {
		return Definition{}, false
	}

	return snap.defs[i], true
}

// ListByCategory returns the definitions in category, in load order
func (r *Registry) ListByCategory(category string) []Definition {
	var out []Definition
	for _, def := range r.current.Load().defs {
		if def.Category == category {
			out = append(out, def)
		}
	}

	return out
}

// IsAvailable reports whether def is enabled and its body can be resolved
func (r *Registry) IsAvailable(def Definition) bool {
	return def.Enabled && r.resolver != nil && r.resolver.Has(def.ScriptReference)
}

// ListAvailable returns the definitions that can be started
func (r *Registry) ListAvailable() []Definition {
	var out []Definition
	for _, def := range r.current.Load().defs {
		if r.IsAvailable(def) {
			out = append(out, def)
		}
	}

	return out
}

// Categories returns the declared category order restricted to categories
// that have tasks, followed by undeclared ones in load order. Without a
// declared order the categories are sorted.
func (r *Registry) Categories() []string {
	snap := r.current.Load()

	present := make(map[string]bool)
	var inLoadOrder []string
	for _, def := range snap.defs {
		if !present[def.Category] {
			present[def.Category] = true
			inLoadOrder = append(inLoadOrder, def.Category)
		}
	}

	if len(snap.categories) == 0 {
		slices.Sort(inLoadOrder)
		return inLoadOrder
	}

	out := make([]string, 0, len(inLoadOrder))
	listed := make(map[string]bool)
	for _, c := range snap.categories {
		if present[c] && !listed[c] {
			listed[c] = true
			out = append(out, c)
		}
	}

	for _, c := range inLoadOrder {
		if !listed[c] {
			out = append(out, c)
		}
	}

	return out
}

// Watch reloads the registry whenever path changes until ctx is done
func (r *Registry) Watch(ctx context.Context, w *watch.Watcher, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	w.OnChange(func(changed string) {
		if changed != absPath || ctx.Err() != nil {
			return
		}

		r.log.Info("Task definitions changed, reloading", slog.String("path", changed))
		_ = r.Reload()
	})

	if err := w.Watch(ctx, path); err != nil {
		return fmt.Errorf("failed to watch task definitions: %w", err)
	}

	return nil
}
