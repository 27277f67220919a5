// Package cmd implements the command-line interface for winpilot.
package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/winpilot/internal/timeouts"
)

const (
	defaultTasksPath    = "config/tasks.yaml"
	defaultSettingsPath = "config/settings.yaml"
)

// Config holds all application configuration
type Config struct {
	Verbose       bool
	ShowLogs      bool
	TasksPath     string
	SettingsPath  string
	MetricsAddr   string
	Window        string
	WindowTimeout time.Duration
	Elevate       bool
	Watch         bool
}

// NewConfigFromFlags creates a Config from parsed command flags
func NewConfigFromFlags(cmd *cobra.Command) *Config {
	return &Config{
		Verbose:       getBoolFlag(cmd, "verbose"),
		ShowLogs:      getBoolFlag(cmd, "logs"),
		TasksPath:     getStringFlag(cmd, "tasks", defaultTasksPath),
		SettingsPath:  getStringFlag(cmd, "settings", defaultSettingsPath),
		MetricsAddr:   getStringFlag(cmd, "metrics-addr", ""),
		Window:        getStringFlag(cmd, "window", ""),
		WindowTimeout: getDurationFlag(cmd, "window-timeout", timeouts.WindowAppearTimeout),
		Elevate:       getBoolFlag(cmd, "elevate"),
		Watch:         getBoolFlag(cmd, "watch"),
	}
}

// getBoolFlag retrieves a boolean flag, checking both local and persistent flags
func getBoolFlag(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		// Try persistent flags if not found in local flags
		val, _ = cmd.PersistentFlags().GetBool(name)
	}

	return val
}

// getStringFlag retrieves a string flag, or fallback when the command has none
func getStringFlag(cmd *cobra.Command, name, fallback string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		if val, err = cmd.PersistentFlags().GetString(name); err != nil {
			return fallback
		}
	}

	return val
}

// getDurationFlag retrieves a duration flag, or fallback when the command has none
func getDurationFlag(cmd *cobra.Command, name string, fallback time.Duration) time.Duration {
	val, err := cmd.Flags().GetDuration(name)
	if err != nil {
		if val, err = cmd.PersistentFlags().GetDuration(name); err != nil {
			return fallback
		}
	}

	return val
}
