package cli

import (
	"fmt"

	"github.com/mirrordroid/mirrordroid/commands"
	"github.com/mirrordroid/mirrordroid/pairing"
	"github.com/spf13/cobra"
)

var (
	pairConnect     string
	pairPNGPath     string
	discoverService string
	discoverTimeout int
)

const qrPNGSize = 256

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Wireless debugging pairing commands",
	Long:  `Commands for pairing Android 11+ devices over Wi-Fi, by pairing code or QR code.`,
}

var pairCodeCmd = &cobra.Command{
	Use:   "code <ip:port> <code>",
	Short: "Pair with a six-digit pairing code",
	Long:  `Pairs with the address and code shown in "Pair device with pairing code", then connects. Without --connect the device's connect port is looked up over mDNS.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		response := commands.PairCodeCommand(cmd.Context(), commands.PairCodeRequest{
			Address: args[0],
			Code:    args[1],
			Connect: pairConnect,
		})
		return printResponse(response)
	},
}

var pairQRCmd = &cobra.Command{
	Use:   "qr",
	Short: "Pair by scanning a QR code",
	Long:  `Prints a QR code to scan with "Pair device with QR code" and waits until the device is paired and connected.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt := commands.GetRuntime()

		session, err := pairing.NewQRSession()
		if err != nil {
			return fmt.Errorf("failed to start QR pairing: %w", err)
		}

		text, err := session.Terminal()
		if err != nil {
			return err
		}
		fmt.Println(text)
		fmt.Println(rt.Tr("pairing.scan"))

		if pairPNGPath != "" {
			if err := session.WritePNG(pairPNGPath, qrPNGSize); err != nil {
				return err
			}
			fmt.Printf("QR code written to %s\n", pairPNGPath)
		}

		return rt.Pairer().RunQR(cmd.Context(), session, func(s pairing.Status) {
			fmt.Println(rt.StatusMessage(s))
		})
	},
}

var pairDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List wireless debugging services on the network",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		response := commands.PairDiscoverCommand(cmd.Context(), commands.PairDiscoverRequest{
			Service: discoverService,
			Timeout: discoverTimeout,
		})
		return printResponse(response)
	},
}

func init() {
	rootCmd.AddCommand(pairCmd)

	pairCmd.AddCommand(pairCodeCmd)
	pairCmd.AddCommand(pairQRCmd)
	pairCmd.AddCommand(pairDiscoverCmd)

	pairCodeCmd.Flags().StringVar(&pairConnect, "connect", "", "ip:port to connect to after pairing")
	pairQRCmd.Flags().StringVar(&pairPNGPath, "png", "", "also write the QR code to a PNG file")
	pairDiscoverCmd.Flags().StringVar(&discoverService, "service", "pairing", "service to browse: pairing or connect")
	pairDiscoverCmd.Flags().IntVar(&discoverTimeout, "timeout", 0, "seconds to browse (default: scan_timeout from the app settings)")
}
