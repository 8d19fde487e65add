package cli

import (
	"github.com/mirrordroid/mirrordroid/commands"
	"github.com/mirrordroid/mirrordroid/tui"
	"github.com/spf13/cobra"
)

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Open the interactive device screen",
	Long:  `Opens a terminal screen listing devices, with keys to mirror, connect, pair and disconnect them.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return tui.Run(cmd.Context(), commands.GetRuntime())
	},
}

func init() {
	rootCmd.AddCommand(uiCmd)
}
