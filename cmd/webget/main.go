// Command webget keeps screenshots in sync with their declarative
// descriptors. `webget update` walks a directory for <name>.<ext>.json
// files, renders each one through a local server (started on demand),
// and reports created / updated / matched / error per asset. `webget
// server` runs the render server in the foreground.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/usewebget/webget/config"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "webget",
	Short: "Declarative website screenshots",
	Long: `webget renders websites to screenshots from JSON descriptors and
keeps them up to date. A descriptor lives next to its image
(home.png.json next to home.png) and declares the URL, viewport,
actions and composition; webget re-renders it and replaces the image
only when the page actually changed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "webget.yaml", "Path to the configuration file")
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
