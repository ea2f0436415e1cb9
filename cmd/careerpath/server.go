package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/careerpath/internal/api"
	"github.com/kalambet/careerpath/internal/coach"
	"github.com/kalambet/careerpath/internal/config"
	"github.com/kalambet/careerpath/internal/ingest"
	"github.com/kalambet/careerpath/internal/profile"
	"github.com/kalambet/careerpath/internal/progress"
	"github.com/kalambet/careerpath/internal/storage"
	"github.com/kalambet/careerpath/internal/summary"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the MCP server and the gap-scan worker (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		withMCP, _ := cmd.Flags().GetBool("mcp")
		return runServer(withMCP)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether the careerpath server is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		var health map[string]string
		if err := client.getJSON(cmd.Context(), "/health", &health); err != nil {
			printWarning("server stopped")
			return err
		}
		printSuccess("server %s at %s", health["status"], client.baseURL)
		return nil
	},
}

func init() {
	serveCmd.Flags().Bool("mcp", true, "serve MCP tools over stdio")
}

// app is the wired set of components behind the server.
type app struct {
	store   *storage.Store
	service *coach.Service
	profile *profile.Manager
	closers []io.Closer
}

// openApp opens storage for the configured backend and wires the roadmap
// service to the profile through the summary publisher. Profile data and
// the job queue always live in SQLite; storage.backend selects where
// completion maps go.
func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	dataDir := cfg.Storage.DataDir
	if cfg.Storage.Backend == config.BackendMemory {
		dataDir = ":memory:"
	}
	store, err := storage.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	a := &app{store: store, closers: []io.Closer{store}}

	var repo progress.CompletionRepository
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		rs, err := storage.NewRedisStore(ctx, storage.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   "careerpath",
			Timeout:  cfg.Redis.TimeoutDuration(),
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.closers = append(a.closers, rs)
		repo = progress.NewBlobRepository(rs)
	case config.BackendMemory:
		repo = progress.NewMemoryRepository()
	default:
		repo = progress.NewBlobRepository(store)
	}

	a.profile = profile.NewManager(store).WithLimits(cfg.Profile.MaxWeakSkills, cfg.Profile.MaxActivity)
	a.service = coach.NewService(progress.NewStore(repo), cfg.Storage.KeyPrefix, summary.NewPublisher(a.profile))
	slog.Info("storage ready", "backend", cfg.Storage.Backend, "data_dir", dataDir)
	return a, nil
}

func (a *app) handler(token string) http.Handler {
	return api.NewAppHandler(api.AppDeps{
		Service: a.service,
		Profile: a.profile,
		Store:   a.store,
		Token:   token,
	})
}

// Close releases storage in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func runServer(withMCP bool) error {
	fmt.Fprintf(os.Stderr, "careerpath version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Server.APIToken == "" {
		slog.Warn("CAREERPATH_API_TOKEN is not set; the HTTP API accepts unauthenticated requests")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: a.handler(cfg.Server.APIToken),
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	worker := ingest.NewWorker(a.store, a.service, cfg.Worker.PollDuration())
	go worker.Run(ctx)

	if withMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Service: a.service,
			Profile: a.profile,
		})
		stdioSrv := server.NewStdioServer(mcpSrv)
		go func() {
			if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("MCP stdio server error", "error", err)
			}
		}()
		slog.Info("MCP server started (stdio transport)")
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "careerpath listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
