package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/winpilot/internal/interfaces"
	"github.com/Norgate-AV/winpilot/internal/logger"
	"github.com/Norgate-AV/winpilot/internal/version"
)

// RootCmd is the root command for the winpilot CLI application.
var RootCmd = &cobra.Command{
	Use:          "winpilot",
	Short:        "winpilot - Automate background windows with scripted input tasks",
	Version:      version.GetVersion(),
	Args:         cobra.NoArgs,
	RunE:         Execute,
	SilenceUsage: true, // Don't show usage on runtime errors
}

func init() {
	// Set custom version template to show full version info
	RootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	// Add flags
	RootCmd.PersistentFlags().BoolP("verbose", "V", false, "enable verbose output")
	RootCmd.PersistentFlags().BoolP("logs", "l", false, "print the current log file to stdout and exit")
	RootCmd.PersistentFlags().String("tasks", defaultTasksPath, "task definition file (YAML or JSON)")
	RootCmd.PersistentFlags().String("settings", defaultSettingsPath, "settings file (YAML or JSON)")

	RootCmd.AddCommand(listCmd, runCmd, keysCmd)
}

// handleLogsFlag processes the --logs flag and exits if needed
func handleLogsFlag(cfg *Config, exitFunc func(int)) error {
	if !cfg.ShowLogs {
		return nil
	}

	if err := logger.PrintLogFile(nil, logger.LoggerOptions{}); err != nil {
		if os.IsNotExist(err) {
			logPath := logger.GetLogPath(logger.LoggerOptions{})
			fmt.Fprintf(os.Stderr, "Log file does not exist: %s\n", logPath)
			exitFunc(1)
		}

		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		exitFunc(1)
	}

	exitFunc(0)
	return nil // Won't actually reach here due to exitFunc
}

// initializeLogger creates a logger and logs startup information
func initializeLogger(cfg *Config) (logger.LoggerInterface, error) {
	log, err := logger.NewLogger(logger.LoggerOptions{
		Verbose:  cfg.Verbose,
		Rotation: logger.Rotation{Compress: true},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// ensureElevated checks for admin privileges and relaunches if needed
func ensureElevated(log logger.LoggerInterface, e interfaces.Elevator) error {
	return ensureElevatedWithDeps(log, e.IsElevated, e.RelaunchAsAdmin, os.Exit)
}

// ensureElevatedWithDeps is the testable version with injected dependencies
func ensureElevatedWithDeps(
	log logger.LoggerInterface,
	isElevated func() bool,
	relaunchAsAdmin func() error,
	exitFunc func(int),
) error {
	log.Debug("Checking elevation status")
	if !isElevated() {
		log.Info("Windows drops messages sent to an elevated process from a normal one")
		log.Info("Relaunching as administrator")

		if err := relaunchAsAdmin(); err != nil {
			log.Error("RelaunchAsAdmin failed", slog.Any("error", err))
			return fmt.Errorf("error relaunching as admin: %w", err)
		}

		// Exit this instance, the elevated one will continue
		log.Debug("Relaunched successfully, exiting non-elevated instance")
		log.Close()
		exitFunc(0)
	}

	log.Debug("Running with administrator privileges")
	return nil
}

// recoverPanic logs a panic with its stack instead of crashing silently
func recoverPanic(log logger.LoggerInterface) {
	if r := recover(); r != nil {
		log.Error("PANIC RECOVERED",
			slog.Any("panic", r),
			slog.String("stack", string(debug.Stack())),
		)

		fmt.Fprintf(os.Stderr, "\n*** PANIC: %v ***\n", r)
		fmt.Fprintf(os.Stderr, "Check log file for details\n")
	}
}

// Execute handles the root command: --logs, otherwise help.
func Execute(cmd *cobra.Command, _ []string) error {
	cfg := NewConfigFromFlags(cmd)

	if err := handleLogsFlag(cfg, os.Exit); err != nil {
		return err
	}

	return cmd.Help()
}
