// Command trustd runs the campaign trust analysis service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/trustlens/trustlens/internal/analyzer"
	"github.com/trustlens/trustlens/internal/api"
	"github.com/trustlens/trustlens/internal/cache"
	"github.com/trustlens/trustlens/internal/config"
	"github.com/trustlens/trustlens/internal/corpus"
	"github.com/trustlens/trustlens/internal/dupqueue"
	"github.com/trustlens/trustlens/internal/models"
	"github.com/trustlens/trustlens/internal/provider"
	"github.com/trustlens/trustlens/internal/store"
	"github.com/trustlens/trustlens/internal/throttle"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	generateConfig := flag.Bool("generate-config", false, "write a sample configuration file and exit")
	flag.Parse()

	if *generateConfig {
		if err := config.GenerateSample(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sample configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	setupLogging(cfg.Logging)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("Service failed")
	}
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "text" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func run(cfg *config.Config) error {
	st, err := store.New(&cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	prov, err := provider.New(&cfg.Provider)
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}
	log.Info().Str("provider", prov.Name()).Msg("Analysis provider ready")

	throttler := throttle.New(&cfg.Throttle)
	defer throttler.Close()

	tiered := cache.New(st, cfg.Cache.FastLayerSize)
	corp := corpus.NewMemory()

	engine := analyzer.NewEngine(cfg, prov, throttler, tiered, corp, st)

	queue := dupqueue.New(engine.DuplicateCheck, &cfg.Queue)
	defer queue.Close()
	queue.Subscribe(func(n models.Notification) {
		log.Info().
			Str("subject", n.SubjectID).
			Str("type", string(n.Type)).
			Str("severity", string(n.Severity)).
			Msg(n.Message)
	})

	sweepStop := startSweeper(tiered, cfg.Cache.SweepInterval)
	defer close(sweepStop)

	handler := api.NewHandler(engine, queue, throttler, tiered, corp)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(cfg, handler),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// startSweeper runs periodic durable-layer expiry sweeps until the returned
// channel is closed.
func startSweeper(tiered *cache.TieredCache, interval time.Duration) chan struct{} {
	if interval <= 0 {
		interval = time.Hour
	}
	stop := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				removed := tiered.Sweep(ctx)
				cancel()
				if removed > 0 {
					log.Info().Int("removed", removed).Msg("Expired cache entries swept")
				}
			case <-stop:
				return
			}
		}
	}()

	return stop
}
