package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/aretw0/weft"
	weftHTTP "github.com/aretw0/weft/internal/adapters/http"
	"github.com/aretw0/weft/internal/presentation/tui"
	"github.com/aretw0/weft/internal/sched"
	"github.com/aretw0/weft/pkg/observability"
)

var runCmd = &cobra.Command{
	Use:   "run <graph file>",
	Short: "Run a dataflow graph until interrupted",
	Long: `Run resolves the graph description (script syntax, or a YAML manifest for
.yaml/.yml files) and executes it until SIGINT/SIGTERM, or until the graph
halts itself under the halt fault policy.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := loggerFromFlags(cmd)
		if err != nil {
			return err
		}
		policyFlag, _ := cmd.Flags().GetString("fault-policy")
		policy, err := sched.ParseFaultPolicy(policyFlag)
		if err != nil {
			return err
		}
		workers, _ := cmd.Flags().GetInt64("workers")
		httpAddr, _ := cmd.Flags().GetString("http")
		watch, _ := cmd.Flags().GetBool("watch")

		cmd.SilenceUsage = true
		tui.PrintBanner(weft.Version)

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		opts := runOptions{
			path:     args[0],
			policy:   policy,
			workers:  workers,
			httpAddr: httpAddr,
		}
		if !watch {
			return runOnce(ctx, logger, opts)
		}
		return runWatch(ctx, logger, opts)
	},
}

type runOptions struct {
	path     string
	policy   sched.FaultPolicy
	workers  int64
	httpAddr string
}

// runOnce builds a fresh system, deploys the graph and blocks until the
// context is cancelled or the graph stops itself. A fresh system per run
// keeps --watch reloads from tripping over duplicate component names.
func runOnce(ctx context.Context, logger *slog.Logger, opts runOptions) error {
	promReg := prometheus.NewRegistry()
	sys := weft.New(
		weft.WithLogger(logger),
		weft.WithFaultPolicy(opts.policy),
		weft.WithWorkers(opts.workers),
		weft.WithMetrics(observability.New(promReg)),
	)

	app, err := loadApp(sys, opts.path)
	if err != nil {
		fmt.Fprintln(os.Stderr, tui.Errorf("load failed: %v", err))
		return err
	}

	g, err := sys.Deploy(app)
	if err != nil {
		fmt.Fprintln(os.Stderr, tui.Errorf("deploy failed: %v", err))
		return err
	}
	for _, w := range g.Warnings() {
		fmt.Fprintln(os.Stderr, tui.Warnf("%s: %s", w.Kind, w.Detail))
	}

	if opts.httpAddr != "" {
		srv := &http.Server{
			Addr:    opts.httpAddr,
			Handler: weftHTTP.NewHandler(g, g.Resolved(), promReg),
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("control server failed", "err", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("control server listening", "addr", opts.httpAddr)
	}

	logger.Info("graph running", "graph", app.Name, "source", opts.path)
	if err := sys.RunGraph(ctx, g); err != nil {
		fmt.Fprintln(os.Stderr, tui.Errorf("graph halted: %v", err))
		return err
	}
	fmt.Fprintln(os.Stderr, tui.Successf("graph stopped"))
	return nil
}

// runWatch reruns the graph whenever its source file changes.
func runWatch(ctx context.Context, logger *slog.Logger, opts runOptions) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors often replace the file instead of
	// writing it in place, which would drop a watch on the file itself.
	dir := filepath.Dir(opts.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	target, err := filepath.Abs(opts.path)
	if err != nil {
		return err
	}

	for {
		iterCtx, iterCancel := context.WithCancel(ctx)
		changed := make(chan struct{}, 1)
		go func() {
			for {
				select {
				case <-iterCtx.Done():
					return
				case ev, ok := <-watcher.Events:
					if !ok {
						return
					}
					abs, _ := filepath.Abs(ev.Name)
					if abs != target || !ev.Op.Has(fsnotify.Write|fsnotify.Create) {
						continue
					}
					logger.Info("change detected, reloading", "file", ev.Name)
					// Give the editor a moment to finish writing.
					time.Sleep(100 * time.Millisecond)
					select {
					case changed <- struct{}{}:
					default:
					}
					iterCancel()
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					logger.Warn("watch error", "err", err)
				}
			}
		}()

		runErr := runOnce(iterCtx, logger, opts)
		iterCancel()

		select {
		case <-ctx.Done():
			return nil
		case <-changed:
			continue
		default:
		}
		if runErr != nil {
			// Broken graph: wait for the next change instead of exiting.
			logger.Info("waiting for changes")
			select {
			case <-ctx.Done():
				return nil
			case <-changed:
				continue
			}
		}
		return nil
	}
}

func init() {
	runCmd.Flags().Bool("watch", false, "Reload and rerun when the graph file changes")
	runCmd.Flags().String("http", "", "Serve the control API on this address (e.g. :8487)")
	runCmd.Flags().String("fault-policy", "isolate", "Fault policy: isolate, restart or halt")
	runCmd.Flags().Int64("workers", 0, "Bound concurrent firings (0 = unbounded)")
	rootCmd.AddCommand(runCmd)
}
