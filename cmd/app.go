package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Norgate-AV/winpilot/internal/bodies"
	"github.com/Norgate-AV/winpilot/internal/input"
	"github.com/Norgate-AV/winpilot/internal/interfaces"
	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/metrics"
	"github.com/Norgate-AV/winpilot/internal/settings"
	"github.com/Norgate-AV/winpilot/internal/state"
	"github.com/Norgate-AV/winpilot/internal/task"
	"github.com/Norgate-AV/winpilot/internal/timeouts"
	"github.com/Norgate-AV/winpilot/internal/watch"
)

// App is the wired object graph behind every command
type App struct {
	Config   *Config
	Log      logger.LoggerInterface
	State    *state.Store
	Settings *settings.Store
	Catalog  *task.Catalog
	Registry *task.Registry
	Input    *input.Manager
	Manager  *task.Manager
	Metrics  *metrics.Metrics
}

// newApp builds the object graph over transport. A task file that fails to
// load is logged and leaves the registry empty so the host still starts.
func newApp(cfg *Config, log logger.LoggerInterface, transport interfaces.Transport) (*App, error) {
	store := state.New(log)

	prefs := settings.New(cfg.SettingsPath, log)
	if err := prefs.Load(); err != nil {
		return nil, err
	}

	catalog := task.NewCatalog()
	if err := bodies.Register(catalog); err != nil {
		return nil, fmt.Errorf("failed to register task bodies: %w", err)
	}

	registry, err := task.NewRegistry(task.FileSource{Path: cfg.TasksPath}, catalog, log)
	if err != nil {
		log.Warn("Task definitions not loaded", slog.Any("error", err))
	}

	m := metrics.New()
	in := input.NewManager(store, input.NewDevices(transport, log), log, input.WithRecorder(m))

	manager := task.NewManager(registry, catalog, log,
		task.WithSettings(prefs),
		task.WithInput(in),
		task.WithState(store),
		task.WithTaskStopTimeout(timeouts.TaskStopTimeout),
	)
	manager.Subscribe(m.Observer())

	return &App{
		Config:   cfg,
		Log:      log,
		State:    store,
		Settings: prefs,
		Catalog:  catalog,
		Registry: registry,
		Input:    in,
		Manager:  manager,
		Metrics:  m,
	}, nil
}

// watch reloads task definitions and settings when their files change
func (a *App) watch(ctx context.Context) (func(), error) {
	w, err := watch.New(a.Log)
	if err != nil {
		return nil, err
	}

	if err := a.Registry.Watch(ctx, w, a.Config.TasksPath); err != nil {
		_ = w.Close()
		return nil, err
	}

	if err := a.Settings.Watch(ctx, w); err != nil {
		_ = w.Close()
		return nil, err
	}

	a.Log.Debug("Hot reload enabled",
		slog.String("tasks", a.Config.TasksPath),
		slog.String("settings", a.Config.SettingsPath),
	)

	return func() { _ = w.Close() }, nil
}

// Close releases the input facade subscription
func (a *App) Close() {
	a.Input.Close()
}
