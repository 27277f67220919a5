package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/target"
	"github.com/Norgate-AV/winpilot/internal/task"
	"github.com/Norgate-AV/winpilot/internal/timeouts"
	"github.com/Norgate-AV/winpilot/internal/windows"
)

var runCmd = &cobra.Command{
	Use:   "run <task-id>...",
	Short: "Run tasks against a target window until they finish or are interrupted",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTasks,
}

func init() {
	runCmd.Flags().StringP("window", "w", "", "title (or part of it) of the window to automate")
	runCmd.Flags().Duration("window-timeout", timeouts.WindowAppearTimeout, "how long to wait for the window to appear")
	runCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. 127.0.0.1:9464")
	runCmd.Flags().Bool("elevate", false, "relaunch as administrator when not elevated")
	runCmd.Flags().Bool("watch", true, "reload task definitions and settings when their files change")
}

// runSession is the state shared with the signal and console handlers
type runSession struct {
	app      *App
	log      logger.LoggerInterface
	cancel   context.CancelFunc
	finished chan struct{}
	exitFunc func(int) // Injectable for testing; defaults to os.Exit
}

func runTasks(cmd *cobra.Command, args []string) error {
	cfg := NewConfigFromFlags(cmd)

	log, err := initializeLogger(cfg)
	if err != nil {
		return err
	}

	defer log.Close()
	defer recoverPanic(log)

	log.Debug("Starting winpilot", slog.Any("tasks", args))
	log.Debug("Flags set",
		slog.Bool("verbose", cfg.Verbose),
		slog.String("tasks", cfg.TasksPath),
		slog.String("settings", cfg.SettingsPath),
		slog.String("window", cfg.Window),
	)

	api := windows.NewAPI(timeouts.MessageSendTimeout)

	if cfg.Elevate {
		if err := ensureElevated(log, api); err != nil {
			return err
		}
	}

	app, err := newApp(cfg, log, api)
	if err != nil {
		return err
	}

	defer app.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	session := &runSession{
		app:      app,
		log:      log,
		cancel:   cancel,
		finished: make(chan struct{}),
		exitFunc: os.Exit,
	}
	defer close(session.finished)

	setupConsoleHandler(session)

	if cfg.Window != "" {
		locator := target.NewLocator(api, log)

		w, err := locator.WaitFor(ctx, target.Query{Title: cfg.Window}, cfg.WindowTimeout)
		if err != nil {
			return fmt.Errorf("failed to find target window: %w", err)
		}

		target.Publish(app.State, w)
	} else {
		log.Warn("No --window given, input has no target until one is published")
	}

	if cfg.Watch {
		stopWatching, err := app.watch(ctx)
		if err != nil {
			log.Warn("Hot reload disabled", slog.Any("error", err))
		} else {
			defer stopWatching()
		}
	}

	if cfg.MetricsAddr != "" {
		go func() {
			if err := app.Metrics.Serve(ctx, cfg.MetricsAddr, log); err != nil {
				log.Error("Metrics server stopped", slog.Any("error", err))
			}
		}()
	}

	return session.run(ctx, args)
}

// run starts ids and blocks until all of them have ended or ctx is done,
// then stops whatever is still running
func (s *runSession) run(ctx context.Context, ids []string) error {
	manager := s.app.Manager

	ended := make(chan struct{}, 1)
	unsubscribe := manager.Subscribe(func(ev task.Event) {
		if ev.Type == task.EventStarted {
			return
		}

		select {
		case ended <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	var startErrs []error
	for _, id := range ids {
		if err := manager.StartTask(id); err != nil {
			s.log.Error("Failed to start task", slog.String("task", id), slog.Any("error", err))
			startErrs = append(startErrs, fmt.Errorf("%s: %w", id, err))
			continue
		}

		s.log.Info("Task started", slog.String("task", id))
	}

	for len(manager.Running()) > 0 {
		select {
		case <-ctx.Done():
			s.log.Info("Interrupt received, stopping tasks", slog.String("running", strings.Join(manager.Running(), ", ")))
			return errors.Join(append(startErrs, s.shutdown())...)
		case <-ended:
		}
	}

	return errors.Join(append(startErrs, s.failures(ids)...)...)
}

// failures reports tasks that ended in error
func (s *runSession) failures(ids []string) []error {
	var errs []error
	for _, id := range ids {
		if s.app.Manager.GetStatus(id) != task.DisplayError {
			continue
		}

		if r, ok := s.app.Manager.Runner(id); ok && r.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, r.Err()))
		} else {
			errs = append(errs, fmt.Errorf("%s: task failed", id))
		}
	}

	return errs
}

// shutdown stops every task within the stop-all bound
func (s *runSession) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.StopAllTimeout)
	defer cancel()

	start := time.Now()
	err := s.app.Manager.StopAll(ctx)
	s.log.Debug("Stopped all tasks", slog.Duration("took", time.Since(start)))

	return err
}

// setupConsoleHandler stops tasks when the console window is closed. The
// process is killed once the handler returns so it waits for the run to
// finish first.
func setupConsoleHandler(s *runSession) {
	_ = windows.SetConsoleCtrlHandler(func(ctrlType uint32) uintptr {
		s.log.Debug("Received console control event",
			slog.String("type", windows.GetCtrlTypeName(ctrlType)),
			slog.Uint64("code", uint64(ctrlType)),
		)

		if ctrlType == windows.CTRL_C_EVENT || ctrlType == windows.CTRL_BREAK_EVENT {
			s.cancel()
			return 1
		}

		s.log.Info("Cleaning up after console control event")
		s.cancel()

		select {
		case <-s.finished:
		case <-time.After(timeouts.StopAllTimeout):
		}

		s.log.Debug("Cleanup completed, exiting")
		s.exitFunc(130)
		return 1
	})
}
