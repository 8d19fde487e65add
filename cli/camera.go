package cli

import (
	"github.com/mirrordroid/mirrordroid/commands"
	"github.com/mirrordroid/mirrordroid/config"
	"github.com/spf13/cobra"
)

var (
	cameraID        string
	cameraSize      string
	cameraFPS       int
	cameraFacing    string
	cameraAR        string
	cameraHighSpeed bool
	cameraNoAudio   bool
	cameraSave      bool
)

var cameraCmd = &cobra.Command{
	Use:   "camera",
	Short: "Device camera commands",
	Long:  `Commands for listing device cameras and using a camera as the scrcpy video source.`,
}

var cameraListCmd = &cobra.Command{
	Use:   "list",
	Short: "List device cameras",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		response := commands.CameraListCommand(cmd.Context(), commands.DeviceRequest{DeviceID: deviceId})
		return printResponse(response)
	},
}

var cameraSizesCmd = &cobra.Command{
	Use:   "sizes",
	Short: "List the output sizes of a camera",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		response := commands.CameraSizesCommand(cmd.Context(), commands.CameraQueryRequest{DeviceID: deviceId, CameraID: cameraID})
		return printResponse(response)
	},
}

var cameraFPSCmd = &cobra.Command{
	Use:   "fps",
	Short: "List the frame rates of a camera",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		response := commands.CameraFPSCommand(cmd.Context(), commands.CameraQueryRequest{DeviceID: deviceId, CameraID: cameraID})
		return printResponse(response)
	},
}

var cameraStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Show a device camera",
	Long:  `Starts scrcpy with the device camera as video source and waits until the window is closed. Flags override the stored camera settings for this run, or permanently with --save.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := commands.GetRuntime()
		device, err := commands.FindDeviceOrAutoSelect(cmd.Context(), deviceId)
		if err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}

		req := commands.CameraStartRequest{DeviceID: device.ID, Save: cameraSave}
		if profile, changed := cameraProfileFromFlags(cmd, rt.Store.CameraSettings(device.ID)); changed {
			req.Profile = &profile
		}

		session, err := rt.StartCamera(cmd.Context(), req)
		if err != nil {
			return printResponse(commands.NewErrorResponse(err))
		}
		printJson(commands.NewSuccessResponse(session))
		return waitSession(cmd, rt, device.ID)
	},
}

// cameraProfileFromFlags applies the camera flags that were set on top of profile.
func cameraProfileFromFlags(cmd *cobra.Command, profile config.CameraProfile) (config.CameraProfile, bool) {
	flags := cmd.Flags()
	changed := false
	if flags.Changed("camera-id") {
		profile.Camera.CameraID = cameraID
		changed = true
	}
	if flags.Changed("size") {
		profile.Camera.CameraSize = cameraSize
		changed = true
	}
	if flags.Changed("fps") {
		profile.Camera.CameraFPS = cameraFPS
		changed = true
	}
	if flags.Changed("facing") {
		profile.Camera.CameraFacing = cameraFacing
		changed = true
	}
	if flags.Changed("ar") {
		profile.Camera.CameraAR = cameraAR
		changed = true
	}
	if flags.Changed("high-speed") {
		profile.Camera.CameraHighSpeed = cameraHighSpeed
		changed = true
	}
	if flags.Changed("no-audio") {
		profile.Camera.CameraNoAudio = cameraNoAudio
		changed = true
	}
	return profile, changed
}

func init() {
	rootCmd.AddCommand(cameraCmd)

	cameraCmd.AddCommand(cameraListCmd)
	cameraCmd.AddCommand(cameraSizesCmd)
	cameraCmd.AddCommand(cameraFPSCmd)
	cameraCmd.AddCommand(cameraStartCmd)

	for _, c := range []*cobra.Command{cameraListCmd, cameraSizesCmd, cameraFPSCmd, cameraStartCmd} {
		c.Flags().StringVar(&deviceId, "device", "", "ID of the device")
	}
	for _, c := range []*cobra.Command{cameraSizesCmd, cameraFPSCmd} {
		c.Flags().StringVar(&cameraID, "camera-id", "", "ID of the camera, as shown by camera list")
		_ = c.MarkFlagRequired("camera-id")
	}

	cameraStartCmd.Flags().StringVar(&cameraID, "camera-id", "", "ID of the camera to use")
	cameraStartCmd.Flags().StringVar(&cameraSize, "size", "", "camera output size, e.g. 1920x1080")
	cameraStartCmd.Flags().IntVar(&cameraFPS, "fps", 30, "camera frame rate")
	cameraStartCmd.Flags().StringVar(&cameraFacing, "facing", "back", "camera facing when no camera ID is set (front, back or external)")
	cameraStartCmd.Flags().StringVar(&cameraAR, "ar", "", "camera aspect ratio, e.g. 16:9 or sensor")
	cameraStartCmd.Flags().BoolVar(&cameraHighSpeed, "high-speed", false, "enable high-speed capture (needs at least 120 fps)")
	cameraStartCmd.Flags().BoolVar(&cameraNoAudio, "no-audio", false, "do not forward audio")
	cameraStartCmd.Flags().BoolVar(&cameraSave, "save", false, "store the flags as the device's camera settings")
}
