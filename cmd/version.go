package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	appVersion = "dev"
	appBuilt   = "unknown"
)

// SetVersion records build metadata for the version command
func SetVersion(version, buildTime string) {
	appVersion = version
	appBuilt = buildTime
	rootCmd.Version = version
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Skip config loading
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "marquee %s (built %s, %s)\n", appVersion, appBuilt, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
