package cli

import (
	"fmt"
	"strings"

	"github.com/mirrordroid/mirrordroid/commands"
	"github.com/spf13/cobra"
)

var (
	settingsApp    bool
	settingsCamera bool
	profilePath    string
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Settings commands",
	Long:  `Commands for reading and changing the default, per-device, camera and app settings.`,
	Annotations: map[string]string{
		annotationOptionalBinaries: "true",
	},
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show settings",
	Long:  `Shows the settings of a device, the defaults when no device is given, the camera settings with --camera or the app settings with --app.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case settingsApp:
			return printResponse(commands.AppSettingsGetCommand())
		case settingsCamera:
			return printResponse(commands.CameraSettingsGetCommand(commands.DeviceRequest{DeviceID: deviceId}))
		}
		return printResponse(commands.SettingsGetCommand(commands.SettingsRequest{DeviceID: deviceId}))
	},
}

var settingsSetCmd = &cobra.Command{
	Use:     "set <section.option=value>...",
	Short:   "Change device settings",
	Long:    `Sets options of a device, e.g. "video.max_size=1024 control.stay_awake=true". With --app the keys are app settings such as refresh_interval.`,
	Example: `  mirrordroid settings set --device R58M123ABC video.max_size=1024 display.fullscreen=true
  mirrordroid settings set --app auto_refresh=false`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseValues(args)
		if err != nil {
			return err
		}

		if settingsApp {
			var response *commands.CommandResponse
			for key, value := range values {
				response = commands.AppSettingsSetCommand(commands.AppSettingRequest{Key: key, Value: value})
				if response.Status == "error" {
					break
				}
			}
			return printResponse(response)
		}

		if deviceId == "" {
			return fmt.Errorf("--device is required, use set-defaults to change the defaults")
		}
		return printResponse(commands.SettingsSetCommand(commands.SettingsSetRequest{DeviceID: deviceId, Values: values}))
	},
}

var settingsSetDefaultsCmd = &cobra.Command{
	Use:   "set-defaults <section.option=value>...",
	Short: "Change the default settings",
	Long:  `Sets options of the defaults used by devices without their own settings.`,
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseValues(args)
		if err != nil {
			return err
		}
		return printResponse(commands.SettingsSetCommand(commands.SettingsSetRequest{Values: values}))
	},
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset settings",
	Long:  `Drops a device's own settings so it uses the defaults again, or resets the defaults when no device is given.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(commands.SettingsResetCommand(commands.DeviceRequest{DeviceID: deviceId}))
	},
}

var settingsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export settings to a JSON or YAML file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(commands.SettingsExportCommand(commands.ProfileRequest{DeviceID: deviceId, Path: profilePath}))
	},
}

var settingsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import settings from a JSON or YAML file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(commands.SettingsImportCommand(commands.ProfileRequest{DeviceID: deviceId, Path: profilePath}))
	},
}

var settingsLanguageCmd = &cobra.Command{
	Use:   "language [code]",
	Short: "Show or change the interface language",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := commands.LanguageRequest{}
		if len(args) == 1 {
			req.Language = args[0]
		}
		return printResponse(commands.LanguageCommand(req))
	},
}

// parseValues turns "key=value" arguments into a map.
func parseValues(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid setting %q, expected key=value", arg)
		}
		values[key] = value
	}
	return values, nil
}

func init() {
	rootCmd.AddCommand(settingsCmd)

	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsSetDefaultsCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	settingsCmd.AddCommand(settingsExportCmd)
	settingsCmd.AddCommand(settingsImportCmd)
	settingsCmd.AddCommand(settingsLanguageCmd)

	for _, c := range []*cobra.Command{settingsShowCmd, settingsSetCmd, settingsResetCmd, settingsExportCmd, settingsImportCmd} {
		c.Flags().StringVar(&deviceId, "device", "", "ID of the device (default: the default settings)")
	}
	settingsShowCmd.Flags().BoolVar(&settingsApp, "app", false, "show the app settings")
	settingsShowCmd.Flags().BoolVar(&settingsCamera, "camera", false, "show the device's camera settings")
	settingsSetCmd.Flags().BoolVar(&settingsApp, "app", false, "set app settings instead of device settings")

	settingsExportCmd.Flags().StringVarP(&profilePath, "file", "f", "", "file to write, .yaml/.yml for YAML, JSON otherwise")
	settingsImportCmd.Flags().StringVarP(&profilePath, "file", "f", "", "file to read, .yaml/.yml for YAML, JSON otherwise")
	_ = settingsExportCmd.MarkFlagRequired("file")
	_ = settingsImportCmd.MarkFlagRequired("file")
}
