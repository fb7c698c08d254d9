package main

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/telepath-dev/telepath"
	"github.com/telepath-dev/telepath/internal/errors"
)

// Version information set at build time.
var (
	version = telepath.Version
	commit  = "none"
	date    = "unknown"
)

// errReported is returned by commands that already printed their
// diagnostics; main only sets the exit status.
var errReported = stderrors.New("errors reported")

// Global flags.
var (
	configFile string
	verbose    bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		if !stderrors.Is(err, errReported) {
			errors.Print(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "telepath",
		Short: "Deep-link route registration and validation for Go",
		Long: `Telepath turns //telepath: directives on handler functions into a
validated, conflict-free route table.

  • Conflicting or overlapping routes are rejected at generation time
  • Every accepted route resolves to itself, exactly one handler per path
  • Generated code calls handlers directly with controller, path and event`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: telepath.json or telepath.yaml at the project root)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(
		genCmd(),
		checkCmd(),
		manifestCmd(),
		resolveCmd(),
		serveCmd(),
		versionCmd(),
	)
	return cmd
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
