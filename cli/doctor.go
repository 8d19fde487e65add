package cli

import (
	"github.com/mirrordroid/mirrordroid/commands"
	"github.com/mirrordroid/mirrordroid/config"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run system diagnostics",
	Long:  `Shows where adb and scrcpy were found, their versions and whether they can be executed.`,
	Args:  cobra.NoArgs,
	Annotations: map[string]string{
		annotationOptionalBinaries: "true",
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath()
		}
		response := commands.DoctorCommand(cmd.Context(), commands.DoctorRequest{
			Version:    version,
			AdbPath:    adbPath,
			ScrcpyPath: scrcpyPath,
			ConfigPath: path,
		})
		return printResponse(response)
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}
