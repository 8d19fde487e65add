package cli

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/mirrordroid/mirrordroid/commands"
	"github.com/mirrordroid/mirrordroid/config"
	"github.com/mirrordroid/mirrordroid/server"
	"github.com/mirrordroid/mirrordroid/utils"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X .../cli.version=..."
var version = "dev"

const (
	// annotationNoRuntime marks commands that only talk to a running server
	annotationNoRuntime = "mirrordroid/no-runtime"
	// annotationOptionalBinaries marks commands that work without adb or scrcpy
	annotationOptionalBinaries = "mirrordroid/optional-binaries"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mirrordroid",
	Short: "Mirror and control Android devices with scrcpy",
	Long:  `MirrorDroid lists Android devices through adb, starts scrcpy mirroring and camera sessions, pairs devices over Wi-Fi and keeps per-device settings.`,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupRuntime,
}

var shutdown *utils.ShutdownHook

// SetShutdownHook sets the hook that cleanup functions are registered with
// once the runtime exists.
func SetShutdownHook(hook *utils.ShutdownHook) {
	shutdown = hook
}

func initConfig() {
	utils.SetVerbose(verbose)
	utils.SetDebug(debug)
}

// setupRuntime resolves adb and scrcpy, loads the settings file and makes
// the runtime available to the commands package.
func setupRuntime(cmd *cobra.Command, args []string) error {
	server.Version = version

	if hasAnnotation(cmd, annotationNoRuntime) {
		return nil
	}

	path := configPath
	if path == "" {
		path = config.DefaultPath()
	}
	store := config.NewStore(path)

	adb, adbErr := utils.ResolveBinary(commands.AdbLookup(adbPath))
	scrcpy, scrcpyErr := utils.ResolveBinary(commands.ScrcpyLookup(scrcpyPath))
	if !hasAnnotation(cmd, annotationOptionalBinaries) {
		if adbErr != nil {
			return adbErr
		}
		if scrcpyErr != nil && needsScrcpy(cmd) {
			return scrcpyErr
		}
	}
	if adb == "" {
		adb = utils.ExecutableName("adb")
	}
	if scrcpy == "" {
		scrcpy = utils.ExecutableName("scrcpy")
	}
	utils.Verbose("Using adb at %s, scrcpy at %s, settings at %s", adb, scrcpy, path)

	rt := commands.NewRuntime(adb, scrcpy, store)
	rt.Version = version
	rt.Debug = debug
	commands.SetRuntime(rt)

	if shutdown != nil {
		shutdown.Register("scrcpy sessions", func() error {
			rt.Scrcpy.StopAll()
			return nil
		})
		shutdown.Register("qr pairing", func() error {
			rt.QR.CancelAll()
			return nil
		})
		shutdown.Register("settings", rt.Store.Save)
	}
	return nil
}

// hasAnnotation reports whether cmd or one of its parents sets key.
func hasAnnotation(cmd *cobra.Command, key string) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[key] == "true" {
			return true
		}
	}
	return false
}

// needsScrcpy reports whether cmd or one of its parents is a scrcpy command.
func needsScrcpy(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "mirror", "camera", "ui", "server":
			return true
		}
	}
	return false
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug output and pass -V debug to scrcpy")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "settings file (default: config.json next to the executable, or $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&adbPath, "adb", "", "path to the adb executable")
	rootCmd.PersistentFlags().StringVar(&scrcpyPath, "scrcpy", "", "path to the scrcpy executable")
}

// Execute runs the root command
func Execute() error {
	// enable microseconds in logs
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	return rootCmd.Execute()
}

// printJson is a helper function to print JSON responses
func printJson(data interface{}) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(jsonData))
}

// printResponse prints a command response and turns an error response into an error.
func printResponse(response *commands.CommandResponse) error {
	printJson(response)
	if response.Status == "error" {
		return fmt.Errorf("%s", response.Error)
	}
	return nil
}
