package task

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/Norgate-AV/winpilot/internal/input"
	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/state"
)

// Body is a task's executable logic. Start blocks until the work is done or
// ctx is cancelled. Returning false without an error reports a failure the
// body already handled itself.
type Body interface {
	Start(ctx context.Context) (bool, error)
}

// Stopper is implemented by bodies that need a hook beyond ctx cancellation
// to return promptly
type Stopper interface {
	Stop() error
}

// Env is what a factory receives to build a body
type Env struct {
	TaskID   string
	Settings Settings
	Input    *input.Manager
	State    *state.Store
	Log      logger.LoggerInterface
}

// Factory builds a fresh body for one run
type Factory func(env Env) (Body, error)

// BodyFunc adapts a function to Body
type BodyFunc func(ctx context.Context) (bool, error)

func (f BodyFunc) Start(ctx context.Context) (bool, error) {
	return f(ctx)
}

// Catalog maps script references to factories
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register installs factory under ref. Registering a ref twice is an error.
func (c *Catalog) Register(ref string, factory Factory) error {
	if ref == "" || factory == nil {
		return fmt.Errorf("invalid catalog entry %q", ref)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.factories[ref]; ok {
		return fmt.Errorf("task body %q is already registered", ref)
	}

	c.factories[ref] = factory
	return nil
}

// MustRegister is Register for static tables
func (c *Catalog) MustRegister(ref string, factory Factory) {
	if err := c.Register(ref, factory); err != nil {
		panic(err)
	}
}

// Lookup returns the factory for ref
func (c *Catalog) Lookup(ref string) (Factory, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, ok := c.factories[ref]
	return f, ok
}

// Has reports whether ref resolves to a factory
func (c *Catalog) Has(ref string) bool {
	_, ok := c.Lookup(ref)
	return ok
}

// Names returns the registered references sorted
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}
