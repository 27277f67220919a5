package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Norgate-AV/winpilot/internal/winmsg"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Print the key names accepted by task settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		printKeys(cmd.OutOrStdout())
		return nil
	},
}

const keyColumns = 4

// printKeys writes the key table in columns, name then virtual-key code
func printKeys(w io.Writer) {
	table := winmsg.KeyMap()

	for i, name := range winmsg.KeyNames() {
		fmt.Fprintf(w, "%-14s %-6s", name, table[name])

		if (i+1)%keyColumns == 0 {
			fmt.Fprintln(w)
		} else {
			fmt.Fprint(w, "  ")
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, headerColor.Sprint("Mouse buttons"))
	fmt.Fprintf(w, "  %s, %s, %s\n", winmsg.ButtonLeft, winmsg.ButtonRight, winmsg.ButtonMiddle)
}
