package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"vessel-svr/internal/broker"
	"vessel-svr/internal/codec"
	"vessel-svr/internal/config"
	"vessel-svr/internal/dispatcher"
	"vessel-svr/internal/grpcclient"
	"vessel-svr/internal/link"
	"vessel-svr/internal/moves"
	"vessel-svr/internal/observability"
	"vessel-svr/internal/server"
	"vessel-svr/internal/snapshot"
	"vessel-svr/internal/store"
	"vessel-svr/internal/tracker"
)

func main() {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFile)
	slog.SetDefault(logger)
	logger.Info("Starting vessel-svr...", "http_port", cfg.HTTPPort, "stream", cfg.StreamURL)

	if err := run(cfg, logger); err != nil {
		logger.Error("vessel-svr stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("vessel-svr stopped")
}

func run(cfg config.Config, logger *slog.Logger) error {
	presets, err := loadPresets(cfg)
	if err != nil {
		return err
	}
	if cfg.APIKey == "" {
		// sólo el tracking en vivo depende de la clave
		logger.Warn("AISSTREAM_API_KEY not set: /api/vessels will answer 503")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vessels := tracker.New()

	// Inicializar sinks antes del link
	sinks, persisted, closers := buildSinks(ctx, cfg, logger)
	defer func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}()

	rawDir := ""
	if cfg.RawFrameLog {
		rawDir = "logs"
	}
	disp := dispatcher.New(codec.NewDecoder(), vessels, dispatcher.Options{
		Sinks:     sinks,
		RawLogDir: rawDir,
		Logger:    logger,
	})

	health := observability.NewHealth()
	mgr := link.New(link.Options{
		URL:         cfg.StreamURL,
		APIKey:      cfg.APIKey,
		Kinds:       codec.SubscribedKinds,
		DialTimeout: cfg.DialTimeout,
		Logger:      logger,
		OnFrame:     disp.HandleFrame,
		OnReset:     vessels.Reset,
		OnState: func(s link.State) {
			observability.SetStreamServing(health, s == link.StateOpen)
		},
	})
	defer mgr.Close()

	loc, err := time.LoadLocation(cfg.MovesTZ)
	if err != nil {
		logger.Warn("invalid MOVES_TZ, using UTC", "tz", cfg.MovesTZ, "error", err)
		loc = time.UTC
	}

	deps := server.Deps{
		Builder: snapshot.NewBuilder(presets, mgr, vessels, cfg.SnapshotLimit, logger),
		Store:   vessels,
		Link:    mgr,
		Presets: presets,
		Moves:   moves.NewClient(cfg.MovesURL, loc, 15*time.Second),
		Logger:  logger,
	}
	if persisted != nil {
		deps.Persisted = persisted
	}
	api := server.New(deps)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(gctx, ":"+cfg.HTTPPort, api.Handler(), logger) })
	g.Go(func() error { return observability.StartMetricsServer(gctx, cfg.MetricsPort) })
	g.Go(func() error { return observability.ServeHealth(gctx, cfg.GRPCHealthPort, health) })
	g.Go(func() error { return disp.Run(gctx) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func loadPresets(cfg config.Config) (*config.Presets, error) {
	if cfg.PresetsFile != "" {
		return config.LoadPresets(cfg.PresetsFile, cfg.DefaultPreset)
	}
	return config.NewPresets(config.BuiltinPresets, cfg.DefaultPreset)
}

// buildSinks habilita los sinks configurados. Un sink que no arranca se omite:
// el tracking en vivo no depende de ninguno.
func buildSinks(ctx context.Context, cfg config.Config, logger *slog.Logger) ([]dispatcher.Sink, *store.Redis, []io.Closer) {
	var (
		sinks   []dispatcher.Sink
		closers []io.Closer
		rdb     *store.Redis
	)

	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		r, err := store.NewRedis(pingCtx, cfg.RedisAddr, 0, cfg.RedisTTL)
		cancel()
		if err != nil {
			logger.Error("Redis init failed, persistence disabled", "error", err)
		} else {
			logger.Info("Redis connected", "addr", cfg.RedisAddr)
			rdb = r
			sinks = append(sinks, r)
			closers = append(closers, r)
		}
	}

	if cfg.KafkaBroker != "" {
		k := broker.NewKafka(cfg.KafkaBroker, cfg.KafkaTopic)
		logger.Info("Kafka publisher enabled", "broker", cfg.KafkaBroker, "topic", cfg.KafkaTopic)
		sinks = append(sinks, k)
		closers = append(closers, k)
	}

	if cfg.GRPCServer != "" {
		f, err := grpcclient.NewForwarder(cfg.GRPCServer)
		if err != nil {
			logger.Error("gRPC forwarder init failed", "error", err)
		} else {
			logger.Info("gRPC forwarder enabled", "addr", cfg.GRPCServer)
			sinks = append(sinks, f)
			closers = append(closers, f)
		}
	}
	return sinks, rdb, closers
}
