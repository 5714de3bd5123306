package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alertd/internal/api"
	"alertd/internal/auth"
	"alertd/internal/config"
	"alertd/internal/export"
	"alertd/internal/hub"
	"alertd/internal/logger"
	"alertd/internal/pipeline"
	"alertd/internal/sampler"
	"alertd/internal/store"
)

func main() {
	configPath := flag.String("config", os.Getenv("ALERTD_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Init("info")
		logger.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.LogLevel)
	log := logger.WithComponent("main")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.New(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	if err := st.Init(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize store")
	}
	defer st.Close()
	log.Info().Str("driver", cfg.Storage.Driver).Msg("store ready")

	broadcast := hub.New(cfg.Hub.SendBuffer)

	var exporter pipeline.Exporter
	var sink *export.KafkaSink
	if cfg.Export.Enabled {
		sink = export.NewKafka(cfg.Export)
		sink.Start(ctx)
		exporter = sink
		log.Info().Strs("brokers", cfg.Export.Brokers).Str("topic", cfg.Export.Topic).Msg("export sink started")
	}

	alerts := pipeline.NewAlerts(st, broadcast, exporter)
	configs := pipeline.NewConfigs(st)

	samplerDone := make(chan struct{})
	if cfg.Sampler.Enabled {
		smp := sampler.New(alerts, configs,
			sampler.WithInterval(cfg.Sampler.MinInterval, cfg.Sampler.MaxInterval))
		go func() {
			defer close(samplerDone)
			smp.Run(ctx)
		}()
	} else {
		close(samplerDone)
	}

	tokens := auth.New(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	server := api.New(alerts, configs, broadcast, tokens, cfg.Auth)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("http server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// Wait for termination signals
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigs:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-ctx.Done():
	}
	cancel()

	// Graceful shutdown: drain HTTP, let the in-flight sampler cycle finish,
	// then flush the export sink.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown error")
	}

	select {
	case <-samplerDone:
	case <-time.After(10 * time.Second):
		log.Warn().Msg("sampler shutdown timeout")
	}

	if sink != nil {
		if err := sink.Close(); err != nil {
			log.Error().Err(err).Msg("export sink close error")
		}
	}

	log.Info().Msg("exited")
}
