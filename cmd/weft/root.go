package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Weft is an actor-based dataflow graph runtime",
	Long:  `Weft runs dataflow graphs: component instances wired through typed ports, with tokens flowing over ordered, backpressured connections.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("log-level", "info", "Log verbosity (debug, info, warn, error)")
}
