// Command mapcachectl is the administrative CLI: configuration
// validation and lock maintenance, following cmd/arx's command-per-file
// layout (SPEC_FULL.md §2.1).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "mapcachectl",
	Short: "Administrative CLI for a mapcache deployment",
	Long: `mapcachectl validates mapcache XML configuration files and performs
maintenance operations (clearing stale locks) against a running
deployment's configuration.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "mapcache.xml", "path to the mapcache XML configuration")
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(clearLocksCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
