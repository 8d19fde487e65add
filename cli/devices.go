package cli

import (
	"github.com/mirrordroid/mirrordroid/commands"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List connected devices",
	Long:  `List Android devices known to adb, with their model, connection type and mirroring state.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		response := commands.DevicesCommand(cmd.Context(), commands.DevicesRequest{All: showAllDevices})
		return printResponse(response)
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)

	// devices command flags
	devicesCmd.Flags().BoolVar(&showAllDevices, "all", false, "also show offline emulators and remembered devices that are not connected")
}
