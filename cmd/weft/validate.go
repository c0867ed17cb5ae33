package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/presentation/tui"
)

var validateCmd = &cobra.Command{
	Use:   "validate <graph file>",
	Short: "Resolve a graph description and report structural problems",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		sys := weft.New()
		app, err := loadApp(sys, args[0])
		if err != nil {
			fmt.Fprintln(os.Stderr, tui.Errorf("load failed: %v", err))
			return err
		}
		warnings, err := sys.Validate(app)
		if err != nil {
			fmt.Fprintln(os.Stderr, tui.Errorf("invalid graph: %v", err))
			return err
		}
		for _, w := range warnings {
			fmt.Fprintln(os.Stderr, tui.Warnf("%s: %s", w.Kind, w.Detail))
		}
		fmt.Println(tui.Successf("%s is valid", args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
