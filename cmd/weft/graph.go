package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/presentation/graph"
	"github.com/aretw0/weft/internal/presentation/tui"
)

var graphCmd = &cobra.Command{
	Use:   "graph <graph file>",
	Short: "Render the flattened graph as Mermaid flowchart syntax",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		sys := weft.New()
		app, err := loadApp(sys, args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, tui.Errorf("load failed: %v", err))
			return err
		}
		g, err := sys.Deploy(app)
		if err != nil {
			fmt.Fprintln(os.Stderr, tui.Errorf("deploy failed: %v", err))
			return err
		}
		fmt.Print(graph.Mermaid(g.Resolved(), nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
