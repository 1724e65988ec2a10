// galleryctl builds, inspects, and validates face embedding gallery files
// consumed by the attendance server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is the tool version.
const Version = "0.1.0"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:     "galleryctl",
	Short:   "Face embedding gallery management for the attendance server",
	Version: Version,
}

func main() {
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "Path to server config file")
}
