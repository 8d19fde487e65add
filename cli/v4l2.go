package cli

import (
	"github.com/mirrordroid/mirrordroid/commands"
	"github.com/spf13/cobra"
)

var cameraV4L2Cmd = &cobra.Command{
	Use:   "v4l2",
	Short: "Virtual webcam (v4l2loopback) commands",
	Long:  `Commands for checking, loading and testing the v4l2loopback device that camera sessions can stream into. Linux only.`,
	Annotations: map[string]string{
		annotationOptionalBinaries: "true",
	},
}

var cameraV4L2CheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the v4l2loopback module and tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(commands.V4L2CheckCommand(cmd.Context()))
	},
}

var cameraV4L2SetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Load the v4l2loopback module",
	Long:  `Loads v4l2loopback with exclusive_caps=1 through sudo. sudo must not ask for a password.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printResponse(commands.V4L2SetupCommand(cmd.Context()))
	},
}

var cameraV4L2TestCmd = &cobra.Command{
	Use:   "test [video-device]",
	Short: "List the formats of a loopback device",
	Long:  `Tests a loopback device with v4l2-ctl. Without an argument the device from the camera settings of --device is used, or /dev/video0.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := commands.V4L2TestRequest{DeviceID: deviceId}
		if len(args) == 1 {
			req.Device = args[0]
		}
		return printResponse(commands.V4L2TestCommand(cmd.Context(), req))
	},
}

func init() {
	cameraCmd.AddCommand(cameraV4L2Cmd)
	cameraV4L2Cmd.AddCommand(cameraV4L2CheckCmd)
	cameraV4L2Cmd.AddCommand(cameraV4L2SetupCmd)
	cameraV4L2Cmd.AddCommand(cameraV4L2TestCmd)

	cameraV4L2TestCmd.Flags().StringVar(&deviceId, "device", "", "ID of the device whose camera settings name the loopback device")
}
