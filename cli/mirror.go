package cli

import (
	"fmt"

	"github.com/mirrordroid/mirrordroid/commands"
	"github.com/spf13/cobra"
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Screen mirroring commands",
	Long:  `Commands for starting and stopping scrcpy screen mirroring.`,
}

var mirrorStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Mirror a device screen",
	Long:  `Starts scrcpy with the device's settings and waits until the window is closed. Without --device the only connected device is used.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := commands.GetRuntime()
		session, err := rt.StartMirror(cmd.Context(), deviceId)
		if err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}
		printJson(commands.NewSuccessResponse(session))
		return waitSession(cmd, rt, session.Session.DeviceID)
	},
}

// waitSession blocks until the device's scrcpy exits.
func waitSession(cmd *cobra.Command, rt *commands.Runtime, deviceID string) error {
	code, err := rt.Scrcpy.Wait(cmd.Context(), deviceID)
	if err != nil {
		rt.Scrcpy.Stop(deviceID)
		return err
	}
	if code != 0 {
		return fmt.Errorf("scrcpy exited with code %d", code)
	}
	return nil
}

var mirrorStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop mirroring a device",
	Long:  `Asks the running server to stop the device's scrcpy session.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return callServer("mirror_stop", commands.DeviceRequest{DeviceID: deviceId})
	},
}

var mirrorStopAllCmd = &cobra.Command{
	Use:   "stop-all",
	Short: "Stop all scrcpy sessions",
	Long:  `Asks the running server to stop every scrcpy session.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return callServer("mirror_stop_all", nil)
	},
}

var mirrorStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show scrcpy sessions",
	Long:  `Lists the scrcpy sessions of the running server, or the session of one device.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return callServer("mirror_status", commands.DeviceRequest{DeviceID: deviceId})
	},
}

func init() {
	rootCmd.AddCommand(mirrorCmd)

	mirrorCmd.AddCommand(mirrorStartCmd)
	mirrorCmd.AddCommand(mirrorStopCmd)
	mirrorCmd.AddCommand(mirrorStopAllCmd)
	mirrorCmd.AddCommand(mirrorStatusCmd)

	mirrorStartCmd.Flags().StringVar(&deviceId, "device", "", "ID of the device to mirror")
	mirrorStopCmd.Flags().StringVar(&deviceId, "device", "", "ID of the device to stop")
	mirrorStatusCmd.Flags().StringVar(&deviceId, "device", "", "ID of the device (default: all sessions)")
	_ = mirrorStopCmd.MarkFlagRequired("device")

	addServerFlags(mirrorStopCmd)
	addServerFlags(mirrorStopAllCmd)
	addServerFlags(mirrorStatusCmd)
}

