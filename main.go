// Command tally runs the time-tracking server and its terminal client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sadopc/tally/internal/config"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "tally",
	Short:         "Track time against projects and tasks",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default ~/.config/tally/config.toml)")
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tally version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tally %s\n", version)
	},
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
