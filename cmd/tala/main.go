// Command tala is the main entry point for the SinagTala core service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/sinagtala/tala/internal/analytics"
	"github.com/sinagtala/tala/internal/chat"
	"github.com/sinagtala/tala/internal/config"
	"github.com/sinagtala/tala/internal/health"
	"github.com/sinagtala/tala/internal/httpapi"
	"github.com/sinagtala/tala/internal/observe"
	"github.com/sinagtala/tala/internal/summary"
	"github.com/sinagtala/tala/pkg/provider/llm"
	"github.com/sinagtala/tala/pkg/provider/llm/anyllm"
	oaiprovider "github.com/sinagtala/tala/pkg/provider/llm/openai"
	"github.com/sinagtala/tala/pkg/store/postgres"
	"github.com/sinagtala/tala/pkg/wellness"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "tala: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "tala: %v\n", err)
		}
		return 1
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.SlogLevel(),
	}))
	slog.SetDefault(logger)

	slog.Info("tala starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry first so everything below records into it.
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	st, err := postgres.NewStore(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		slog.Error("failed to connect to storage", "err", err)
		return 1
	}
	defer st.Close()
	slog.Info("storage ready")

	provider, err := buildProvider(cfg.Provider)
	if err != nil {
		slog.Error("failed to build generation provider", "err", err)
		return 1
	}
	slog.Info("provider created", "name", cfg.Provider.Name, "model", cfg.Provider.Model)

	clock := wellness.SystemClock

	var coordOpts []chat.CoordinatorOption
	if cfg.Chat.Persona != "" {
		coordOpts = append(coordOpts, chat.WithPersona(cfg.Chat.Persona))
	}
	if cfg.Provider.Temperature != 0 {
		coordOpts = append(coordOpts, chat.WithTemperature(cfg.Provider.Temperature))
	}
	if cfg.Provider.MaxTokens != 0 {
		coordOpts = append(coordOpts, chat.WithMaxTokens(cfg.Provider.MaxTokens))
	}
	coordinator := chat.NewCoordinator(st, provider, clock, coordOpts...)
	engine := analytics.NewEngine(st)
	maintainer := summary.NewMaintainer(st, provider, clock)

	mux := http.NewServeMux()
	httpapi.New(st, coordinator, engine, maintainer, clock).Register(mux)
	health.New(
		health.StorageChecker(st),
		health.GenerationChecker(provider),
	).Register(mux)

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = ":8080"
	}
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler, err := startScheduler(ctx, cfg.Summary.RefreshSchedule, st, maintainer)
	if err != nil {
		slog.Error("failed to start summary scheduler", "err", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", listenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if scheduler != nil {
			<-scheduler.Stop().Done()
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildProvider constructs the generation backend named in cfg. "openai" uses
// the direct client; everything else goes through the multi-provider client,
// with ollama as the default for local-first setups.
func buildProvider(cfg config.ProviderConfig) (llm.Provider, error) {
	name := cfg.Name
	if name == "" {
		name = "ollama"
	}

	if name == "openai" {
		var opts []oaiprovider.Option
		if cfg.BaseURL != "" {
			opts = append(opts, oaiprovider.WithBaseURL(cfg.BaseURL))
		}
		return oaiprovider.New(cfg.APIKey, cfg.Model, opts...)
	}

	var opts []anyllmlib.Option
	if cfg.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(cfg.BaseURL))
	}
	return anyllm.New(name, cfg.Model, opts...)
}

// startScheduler runs the periodic user-summary refresh for every user with
// recent activity. Returns nil when no schedule is configured.
func startScheduler(ctx context.Context, schedule string, st *postgres.Store, maintainer *summary.Maintainer) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
		defer cancel()

		users, err := st.ActiveUsers(runCtx, wellness.DefaultLookback)
		if err != nil {
			slog.Error("summary refresh: listing users failed", "err", err)
			return
		}
		for _, userID := range users {
			if _, err := maintainer.RefreshUserSummary(runCtx, userID); err != nil {
				slog.Warn("summary refresh failed", "user_id", userID, "err", err)
			}
		}
		slog.Info("summary refresh completed", "users", len(users))
	})
	if err != nil {
		return nil, fmt.Errorf("scheduler: %w", err)
	}
	c.Start()
	slog.Info("summary scheduler started", "schedule", schedule)
	return c, nil
}
