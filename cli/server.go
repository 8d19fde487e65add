package cli

import (
	"fmt"
	"net"
	"strconv"

	"github.com/mirrordroid/mirrordroid/daemon"
	"github.com/mirrordroid/mirrordroid/server"
	"github.com/mirrordroid/mirrordroid/utils"
	"github.com/spf13/cobra"
)

var (
	tokenReset  bool
	tokenDelete bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Server management commands",
	Long:  `Commands for managing the MirrorDroid control server.`,
}

var serverStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the MirrorDroid server",
	Long:  `Starts the JSON-RPC server on /rpc and /ws that GUIs use to drive MirrorDroid.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr := cmd.Flag("listen").Value.String()
		if listenAddr == "" {
			listenAddr = server.DefaultAddress
		}

		// GetBool/GetString cannot fail for defined flags
		enableCORS, _ := cmd.Flags().GetBool("cors")
		isDaemon, _ := cmd.Flags().GetBool("daemon")
		enableAuth, _ := cmd.Flags().GetBool("auth")

		var token string
		if enableAuth {
			var err error
			token, err = server.EnsureToken()
			if err != nil {
				return err
			}
		}

		if isDaemon && !daemon.IsChild() {
			if err := checkListenAddr(listenAddr); err != nil {
				return err
			}

			_, err := daemon.Daemonize()
			if err != nil {
				return fmt.Errorf("failed to start daemon: %w", err)
			}

			fmt.Printf("Server daemon spawned, attempting to listen on %s\n", listenAddr)
			if token != "" {
				fmt.Println("Authentication enabled, see `mirrordroid server token`")
			}
			return nil
		}

		return server.StartServer(cmd.Context(), server.Options{
			Addr:       listenAddr,
			EnableCORS: enableCORS,
			Token:      token,
		})
	},
}

// checkListenAddr fails when addr is malformed or already bound.
func checkListenAddr(addr string) error {
	normalized, err := utils.NormalizeListenAddr(addr)
	if err != nil {
		return err
	}
	host, portStr, _ := net.SplitHostPort(normalized)
	port, _ := strconv.Atoi(portStr)
	if host == "" || host == "localhost" {
		host = "127.0.0.1"
	}
	if !utils.IsPortAvailable(host, port) {
		return fmt.Errorf("address %s is already in use", normalized)
	}
	return nil
}

var serverKillCmd = &cobra.Command{
	Use:   "kill",
	Short: "Stop the daemonized MirrorDroid server",
	Long:  `Connects to the server and sends a shutdown command via JSON-RPC.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		err := daemon.KillServer(serverAddr, remoteToken())
		if err != nil {
			return err
		}

		fmt.Printf("Server shutdown command sent successfully\n")
		return nil
	},
}

var serverTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Show the server token",
	Long:  `Shows the token that clients send when the server runs with --auth. The token is kept in the OS keyring.`,
	Args:  cobra.NoArgs,
	Annotations: map[string]string{
		annotationNoRuntime: "true",
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenDelete {
			if err := server.DeleteToken(); err != nil {
				return err
			}
			fmt.Println("Server token deleted")
			return nil
		}

		var (
			token string
			err   error
		)
		if tokenReset {
			token, err = server.ResetToken()
		} else {
			token, err = server.EnsureToken()
		}
		if err != nil {
			return err
		}

		fmt.Println(token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// add server subcommands
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverKillCmd)
	serverCmd.AddCommand(serverTokenCmd)

	// server start flags
	serverStartCmd.Flags().String("listen", "", fmt.Sprintf("Address to listen on (default: %s)", server.DefaultAddress))
	serverStartCmd.Flags().Bool("cors", false, "Enable CORS support")
	serverStartCmd.Flags().BoolP("daemon", "d", false, "Run server in daemon mode (background)")
	serverStartCmd.Flags().Bool("auth", false, "Require the token from `server token` on every request")

	// server kill flags
	addServerFlags(serverKillCmd)

	serverTokenCmd.Flags().BoolVar(&tokenReset, "reset", false, "generate a new token")
	serverTokenCmd.Flags().BoolVar(&tokenDelete, "delete", false, "delete the stored token")
	serverTokenCmd.MarkFlagsMutuallyExclusive("reset", "delete")
}
