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
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/promptlab/internal/api"
	"github.com/kalambet/promptlab/internal/config"
	"github.com/kalambet/promptlab/internal/engine"
	"github.com/kalambet/promptlab/internal/input"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, optionally, the MCP server on stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		noHTTP, _ := cmd.Flags().GetBool("no-http")
		port, _ := cmd.Flags().GetInt("port")
		if noHTTP && !withMCP {
			return fmt.Errorf("--no-http requires --mcp")
		}
		return runServer(serveOptions{http: !noHTTP, mcp: withMCP, port: port})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running promptlab server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show promptlab status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pull, _ := cmd.Flags().GetBool("pull")
		return showStatus(cmd.Context(), pull)
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", false, "also serve MCP over stdin/stdout")
	serveCmd.Flags().Bool("no-http", false, "do not start the HTTP API (requires --mcp)")
	serveCmd.Flags().Int("port", 0, "HTTP port (default: server.port from config)")
	statusCmd.Flags().Bool("pull", false, "prepare the engine: pull and warm up a local model if needed")
}

type serveOptions struct {
	http bool
	mcp  bool
	port int
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "promptlab.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServer(opts serveOptions) error {
	fmt.Fprintln(os.Stderr, versionString())

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	if opts.port > 0 {
		cfg.Server.Port = opts.port
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.engineErr != nil {
		printWarning("generation unavailable: %v", a.engineErr)
	} else if !a.generator.Configured() {
		printWarning("no API key configured; generation requests will fail until one is set")
	} else if eng, err := newEngine(cfg); err == nil {
		if err := engine.EnsureReady(ctx, eng, os.Stderr); err != nil {
			printWarning("%v", err)
		}
	}

	var httpSrv *http.Server
	if opts.http {
		apiToken, err := config.ServerToken(cfg)
		if err != nil {
			return fmt.Errorf("getting server token: %w", err)
		}
		slog.Info("API bearer token available")

		client, err := newAPIClient(cfg)
		if err == nil && client.healthy(ctx) {
			pidPath := pidFilePath(cfg.Storage.DataDir)
			if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
				return fmt.Errorf("server already running (PID %d)", pid)
			}
			return fmt.Errorf("server already running on port %d", cfg.Server.Port)
		}

		pidPath := pidFilePath(cfg.Storage.DataDir)
		if err := writePIDFile(pidPath); err != nil {
			return fmt.Errorf("writing PID file: %w", err)
		}
		defer removePIDFile(pidPath)

		httpSrv = &http.Server{
			Addr: fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port),
			Handler: api.NewHandler(api.Deps{
				Store:     a.store,
				Generator: a.generator,
				Resolver:  input.NewResolver(&http.Client{Timeout: 15 * time.Second}),
				Token:     apiToken,
				Logger:    slog.Default(),
			}),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	// An MCP-only server ends when its client closes stdin.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if httpSrv != nil {
		g.Go(func() error {
			fmt.Fprintf(os.Stderr, "promptlab listening on %s\n", httpSrv.Addr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			fmt.Fprintln(os.Stderr, "shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		})
	}

	if opts.mcp {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Store:     a.store,
			Generator: a.generator,
			Version:   version,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout)
			if httpSrv == nil {
				cancel()
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		})
	}

	return g.Wait()
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("promptlab is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop promptlab (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to promptlab (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context, pull bool) error {
	a, err := openApp()
	if err != nil {
		// Still show partial status even if storage fails.
		printError("%v", err)
		return nil
	}
	defer a.Close()
	cfg := a.cfg

	if client, err := newAPIClient(cfg); err == nil && client.healthy(ctx) {
		printStatus("Server", "running on port %d", cfg.Server.Port)
		if latest, err := client.recent(ctx, 1); err != nil {
			printWarning("server history unavailable: %v", err)
		} else if len(latest) > 0 {
			printStatus("Last prompt", "%s  %s", formatTimestamp(latest[0].Timestamp), truncate(latest[0].OriginalInput, 50))
		}
	} else {
		printStatus("Server", "stopped")
	}

	provider := cfg.Generation.Provider
	if provider == "" {
		provider = config.ProviderOpenRouter
	}
	printStatus("Provider", "%s", provider)
	printStatus("Model", "%s", engine.Model(cfg))

	switch {
	case a.engineErr != nil:
		printStatus("Engine", "unavailable (%v)", a.engineErr)
	case !a.generator.Configured():
		printStatus("Engine", "no API key (run: promptlab config set-key <key>)")
	default:
		eng, _ := newEngine(cfg)
		if pull {
			if err := engine.EnsureReady(ctx, eng, os.Stderr); err != nil {
				printStatus("Engine", "error (%v)", err)
			} else {
				printStatus("Engine", "ready")
			}
		} else if c, ok := eng.(engine.Checker); ok {
			checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			n, err := c.Check(checkCtx)
			cancel()
			if err != nil {
				printStatus("Engine", "not reachable (%v)", err)
			} else {
				printStatus("Engine", "reachable, %d models", n)
			}
		}
	}

	printStatus("Prompts", "%d of %d", a.store.Len(), a.store.Cap())
	printStatus("Favorites", "%d", len(a.store.Favorites()))
	printStatus("Storage", "%s", cfg.Storage.Backend)
	if r, ok := a.slot.(interface{ Revision() (int, error) }); ok {
		if rev, err := r.Revision(); err == nil {
			printStatus("Revision", "%d", rev)
		}
	}
	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
