package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Norgate-AV/winpilot/internal/task"
	"github.com/Norgate-AV/winpilot/internal/timeouts"
	"github.com/Norgate-AV/winpilot/internal/windows"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List task definitions grouped by category",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg := NewConfigFromFlags(cmd)

	log, err := initializeLogger(cfg)
	if err != nil {
		return err
	}

	defer log.Close()
	defer recoverPanic(log)

	app, err := newApp(cfg, log, windows.NewAPI(timeouts.MessageSendTimeout))
	if err != nil {
		return err
	}

	defer app.Close()

	printTasks(cmd.OutOrStdout(), app.Manager)
	return nil
}

var (
	headerColor      = color.New(color.Bold, color.Underline)
	readyColor       = color.New(color.FgGreen)
	runningColor     = color.New(color.FgCyan)
	errorColor       = color.New(color.FgRed)
	disabledColor    = color.New(color.Faint)
	unavailableColor = color.New(color.FgYellow)
)

// statusLabel renders a task's display state. A task whose body is not in
// the catalog is shown as unavailable.
func statusLabel(m *task.Manager, def task.Definition) string {
	if def.Enabled && !m.Registry().IsAvailable(def) {
		return unavailableColor.Sprint("unavailable")
	}

	state := m.GetStatus(def.ID)
	switch state {
	case task.Ready:
		return readyColor.Sprint(state.String())
	case task.DisplayRunning:
		return runningColor.Sprint(state.String())
	case task.DisplayError:
		return errorColor.Sprint(state.String())
	default:
		return disabledColor.Sprint(state.String())
	}
}

// printTasks writes every category in display order with its tasks
func printTasks(w io.Writer, m *task.Manager) {
	categories := m.Categories()
	if len(categories) == 0 {
		fmt.Fprintln(w, "No tasks defined")
		return
	}

	for i, category := range categories {
		if i > 0 {
			fmt.Fprintln(w)
		}

		fmt.Fprintln(w, headerColor.Sprint(category))

		for _, def := range m.Registry().ListByCategory(category) {
			fmt.Fprintf(w, "  %s %-20s %-12s %s\n", def.Icon, def.ID, statusLabel(m, def), def.Name)
			if def.Description != "" {
				fmt.Fprintf(w, "     %s\n", disabledColor.Sprint(def.Description))
			}
		}
	}
}
