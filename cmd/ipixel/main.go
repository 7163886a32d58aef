package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

var (
	serverMode    bool
	listenPort    int
	commandName   string
	deviceAddress string
)

// rootCmd represents the bridge invocation. Exactly one of --server or
// --command is active per run.
var rootCmd = &cobra.Command{
	Use:   "ipixel [params...]",
	Short: "WebSocket to BLE bridge for pixel-matrix displays",
	Long: `Bridges a JSON control protocol to a BLE pixel-matrix display.

Server mode accepts WebSocket clients and translates their commands into
device writes:

  ipixel --server -p 4444 -a AA:BB:CC:DD:EE:FF

One-shot mode executes a single command and exits:

  ipixel -a AA:BB:CC:DD:EE:FF -c set_brightness 80
  ipixel -a AA:BB:CC:DD:EE:FF -c set_pixel x=3 y=7 color=FF0000

Parameters containing '=' are keyword arguments (split at the first '=');
all others are positional.`,
	Args:    cobra.ArbitraryArgs,
	Version: formatVersion(version),
	RunE:    runRoot,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.Flags().BoolVarP(&serverMode, "server", "s", false, "Run as WebSocket server")
	rootCmd.Flags().IntVarP(&listenPort, "port", "p", 4444, "WebSocket listen port")
	rootCmd.Flags().StringVarP(&commandName, "command", "c", "", "Execute a single command; positional args are its parameters")
	rootCmd.Flags().StringVarP(&deviceAddress, "address", "a", "", "Bluetooth device address (required)")
	_ = rootCmd.MarkFlagRequired("address")

	rootCmd.Flags().String("log-level", "", "Log level (debug, info, warn, error)")
}

func runRoot(cmd *cobra.Command, args []string) error {
	if serverMode && commandName != "" {
		return fmt.Errorf("--server and --command are mutually exclusive")
	}
	if !serverMode && commandName == "" {
		return fmt.Errorf("no mode specified: use --server or --command (with --address)")
	}

	if serverMode {
		return runServer(cmd)
	}
	return runCommand(cmd, commandName, args)
}
