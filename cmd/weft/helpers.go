package main

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/weft"
	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/component"
)

func loggerFromFlags(cmd *cobra.Command) (*slog.Logger, error) {
	levelFlag, _ := cmd.Flags().GetString("log-level")
	level, err := logging.ParseLevel(levelFlag)
	if err != nil {
		return nil, err
	}
	return logging.New(level), nil
}

// loadApp reads a graph description, choosing the front end by extension:
// .yaml/.yml manifests, anything else the script syntax.
func loadApp(sys *weft.System, path string) (*component.App, error) {
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return sys.LoadManifestFile(path)
	}
	return sys.LoadScriptFile(path)
}
