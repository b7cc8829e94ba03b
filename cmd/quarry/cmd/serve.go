package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/codequarry/quarry/internal/index"
	"github.com/codequarry/quarry/internal/logging"
	"github.com/codequarry/quarry/internal/mcp"
	"github.com/codequarry/quarry/internal/watcher"
)

// serveOptions holds the flags for the serve command and the root
// command's bare invocation.
type serveOptions struct {
	path      string
	transport string
	noWatch   bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol server for a project.

The index is built in memory after the server starts accepting
requests, so the MCP handshake is never delayed by a large tree.
Agents can call the index_status tool to see when the initial build
completes. A file watcher keeps the index aligned with the working
tree until the server exits.

Serve speaks MCP over stdio and is meant to be launched by an MCP
client. stdout carries JSON-RPC frames exclusively; diagnostics go to
the log file (see 'quarry logs').`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.path = "."
			if len(args) > 0 {
				opts.path = args[0]
			}
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", "stdio", "MCP transport (stdio)")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Disable file watching; the index stays as built at startup")

	return cmd
}

func runServe(ctx context.Context, opts serveOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, cfg, err := resolveProject(opts.path)
	if err != nil {
		return err
	}

	// stdout belongs to the JSON-RPC stream from here on. Logs go to the
	// rotating file; when the file cannot be opened, logs are discarded
	// rather than written where a client would read them as frames. Under
	// --debug the root hook already installed a file-only logger.
	if !debugMode {
		cleanup, err := logging.SetupMCPMode(logging.Config{
			Level:     cfg.Logging.Level,
			FilePath:  logging.LogPathIn(cfg.Logging.Dir),
			MaxSizeMB: cfg.Logging.MaxSizeMB,
			MaxFiles:  cfg.Logging.MaxFiles,
		})
		if err != nil {
			slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		} else {
			defer cleanup()
		}
	}

	if opts.transport == "stdio" {
		if err := verifyStdinForMCP(); err != nil {
			return err
		}
	}

	session, err := newSession(root, cfg)
	if err != nil {
		return err
	}
	defer session.Close()

	coord, err := index.NewCoordinator(index.CoordinatorConfig{
		Indexer:     session.Indexer,
		Scanner:     session.Scanner,
		MaxFileSize: cfg.Index.MaxFileSize,
		Workers:     cfg.Index.Workers,
	})
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}

	srv, err := mcp.NewServer(session.Engine, session.Indexer, session.Embedder, cfg, root)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	srv.SetCoordinator(coord)

	watching := !cfg.Watch.Disabled && !opts.noWatch
	var hw *watcher.HybridWatcher
	if watching {
		hw, err = watcher.NewHybridWatcher(watcher.Options{
			DebounceWindow:  cfg.Watch.DebounceWindow(),
			PollInterval:    cfg.Watch.PollingInterval(),
			EventBufferSize: cfg.Watch.EventBuffer,
			Ignore:          session.Scanner.ShouldIgnore,
		})
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		srv.SetWatcher(hw)
	}

	slog.Info("starting mcp server",
		slog.String("root", root),
		slog.String("transport", opts.transport),
		slog.Bool("watching", watching))

	// Background work runs on its own context so Serve returning (stdin
	// closed) tears it down even when the signal context is still live.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	var bg sync.WaitGroup

	bg.Add(1)
	go func() {
		defer bg.Done()
		if err := coord.Reconcile(bgCtx); err != nil {
			if bgCtx.Err() == nil {
				slog.Error("initial index build failed", slog.String("error", err.Error()))
			}
			return
		}
		resources := srv.RegisterResources()
		slog.Info("initial index ready", slog.Int("resources", resources))
	}()

	if watching {
		bg.Add(1)
		go func() {
			defer bg.Done()
			if err := hw.Start(bgCtx, root); err != nil && bgCtx.Err() == nil {
				slog.Error("watcher stopped", slog.String("error", err.Error()))
			}
		}()

		bg.Add(1)
		go func() {
			defer bg.Done()
			err := coord.Run(bgCtx, hw.Events(), cfg.Watch.ReconcileEvery())
			if err != nil && bgCtx.Err() == nil {
				slog.Error("coordinator stopped", slog.String("error", err.Error()))
			}
		}()
	}

	err = srv.Serve(ctx, opts.transport)

	bgCancel()
	if hw != nil {
		hw.Stop()
	}
	bg.Wait()

	slog.Info("mcp server stopped")
	return err
}

// verifyStdinForMCP rejects interactive invocations early. The stdio
// transport reads JSON-RPC from stdin, so a terminal there means no MCP
// client is attached and the server would sit silent until EOF.
func verifyStdinForMCP() error {
	fd := os.Stdin.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return fmt.Errorf("stdin is a terminal, not a pipe: serve expects to be launched by an MCP client (use 'quarry search' for interactive queries)")
	}
	return nil
}
