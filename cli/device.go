package cli

import (
	"github.com/mirrordroid/mirrordroid/commands"
	"github.com/spf13/cobra"
)

var deviceCmd = &cobra.Command{
	Use:   "device",
	Short: "Device management commands",
	Long:  `Commands for managing individual devices: info, wireless connect, disconnect and forget.`,
}

var deviceInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Get device info",
	Long:  `Get information about a connected device, its mirroring session and whether it has custom settings.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		response := commands.DeviceInfoCommand(cmd.Context(), commands.DeviceRequest{DeviceID: deviceId})
		return printResponse(response)
	},
}

var deviceConnectCmd = &cobra.Command{
	Use:   "connect <ip[:port]>",
	Short: "Connect to a device over Wi-Fi",
	Long:  `Runs adb connect for the address (port 5555 when omitted) and remembers the device.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		response := commands.ConnectCommand(cmd.Context(), commands.ConnectRequest{Address: args[0]})
		return printResponse(response)
	},
}

var deviceDisconnectCmd = &cobra.Command{
	Use:   "disconnect",
	Short: "Disconnect a wireless device",
	Long:  `Stops the device's scrcpy session, if any, and runs adb disconnect.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		response := commands.DisconnectCommand(cmd.Context(), commands.DeviceRequest{DeviceID: deviceId})
		return printResponse(response)
	},
}

var deviceForgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Forget a remembered device",
	Long:  `Removes the device and its settings from the settings file.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		response := commands.ForgetCommand(cmd.Context(), commands.DeviceRequest{DeviceID: deviceId})
		return printResponse(response)
	},
}

func init() {
	rootCmd.AddCommand(deviceCmd)

	// add device subcommands
	deviceCmd.AddCommand(deviceInfoCmd)
	deviceCmd.AddCommand(deviceConnectCmd)
	deviceCmd.AddCommand(deviceDisconnectCmd)
	deviceCmd.AddCommand(deviceForgetCmd)

	// device command flags
	deviceInfoCmd.Flags().StringVar(&deviceId, "device", "", "ID of the device to get info from")
	deviceDisconnectCmd.Flags().StringVar(&deviceId, "device", "", "ID of the device to disconnect")
	deviceForgetCmd.Flags().StringVar(&deviceId, "device", "", "ID of the device to forget")
	_ = deviceForgetCmd.MarkFlagRequired("device")
	_ = deviceDisconnectCmd.MarkFlagRequired("device")
}
