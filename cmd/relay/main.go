package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/satriahrh/tractrelay/adapters/archive"
	"github.com/satriahrh/tractrelay/adapters/mongo"
	"github.com/satriahrh/tractrelay/adapters/synth"
	"github.com/satriahrh/tractrelay/domain/repositories"
	"github.com/satriahrh/tractrelay/internal/api"
	"github.com/satriahrh/tractrelay/internal/auth"
	"github.com/satriahrh/tractrelay/internal/capture"
	"github.com/satriahrh/tractrelay/internal/codec"
	"github.com/satriahrh/tractrelay/internal/config"
	"github.com/satriahrh/tractrelay/internal/metrics"
	"github.com/satriahrh/tractrelay/internal/websocket"
	"github.com/satriahrh/tractrelay/usecase"
)

// engine is a synthesizer together with its analyser tap.
type engine interface {
	repositories.Synthesizer
	repositories.AudioSource
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Relay stopped with error", zap.Error(err))
	}
	logger.Info("Relay exited")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zc.Level = lvl
	return zc.Build()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	collector := metrics.NewCollector(cfg.MetricsNamespace, logger)

	eng, err := newEngine(cfg, logger)
	if err != nil {
		return err
	}

	store, closeStore, err := newArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	token, err := peerToken(cfg)
	if err != nil {
		return err
	}
	peer := websocket.NewPeer(websocket.PeerConfig{
		URL:            cfg.PeerURL,
		Header:         auth.BearerHeader(token),
		ReconnectDelay: cfg.ReconnectDelay,
	}, logger)

	relay := usecase.NewRelayService(usecase.RelayContext{
		Synthesizer:  eng,
		Transport:    peer,
		Sink:         capture.NewSink(eng, cfg.SampleFormat, logger),
		Encoder:      codec.NewEncoder(cfg.Framing),
		Archive:      store,
		Metrics:      collector,
		Interval:     cfg.CaptureInterval,
		SynthTimeout: cfg.SynthTimeout,
	}, logger)

	var hub *websocket.Hub
	if cfg.HubEnabled {
		hub = websocket.NewHub(collector, logger)
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, api.Dependencies{
		Relay:        relay,
		Hub:          hub,
		Peer:         peer,
		Archive:      store,
		Metrics:      collector,
		HubPath:      cfg.HubPath,
		JWTSecret:    []byte(cfg.HubJWTSecret),
		StaticDir:    cfg.StaticDir,
		SampleFormat: string(cfg.SampleFormat),
		Framing:      string(cfg.Framing),
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	if hub != nil {
		g.Go(func() error {
			hub.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("HTTP server starting",
			zap.String("addr", cfg.Addr()),
			zap.Bool("hub", cfg.HubEnabled))
		if err := e.Start(cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return peer.Run(gctx, relay)
	})

	if cfg.ManualTrigger {
		trigger := usecase.NewManualTrigger(relay, nil, logger)
		g.Go(func() error {
			return trigger.Run(gctx, os.Stdin)
		})
	}

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Relay is shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		relay.Wait()
		eng.Silence()
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newEngine(cfg *config.Config, logger *zap.Logger) (engine, error) {
	switch cfg.SynthMode {
	case config.SynthExec:
		return synth.NewExecEngine(cfg.SynthCommand, cfg.FFTSize/2, logger)
	default:
		return synth.NewToneEngine(synth.ToneConfig{
			SampleRate: cfg.SynthSampleRate,
			FFTSize:    cfg.FFTSize,
		}, logger), nil
	}
}

func newArchive(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repositories.CaptureArchive, func(), error) {
	noop := func() {}

	switch cfg.ArchiveMode {
	case config.ArchiveMemory:
		return archive.NewMemoryArchive(archive.DefaultMemoryCapacity), noop, nil

	case config.ArchiveFile:
		store, err := archive.NewFileArchive(cfg.ArchiveDir, cfg.WAVSampleRate, logger)
		if err != nil {
			return nil, noop, err
		}
		return store, noop, nil

	case config.ArchiveMongo:
		client, err := mongo.NewClient(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
		if err != nil {
			return nil, noop, err
		}
		closeClient := func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			client.Close(ctx)
		}
		store, err := mongo.NewCaptureRepository(ctx, client.Database, logger)
		if err != nil {
			closeClient()
			return nil, noop, err
		}
		return store, closeClient, nil

	default:
		return nil, noop, nil
	}
}

// peerToken returns the configured token, or mints a relay token when the
// hub requires one.
func peerToken(cfg *config.Config) (string, error) {
	if cfg.PeerToken != "" || cfg.HubJWTSecret == "" {
		return cfg.PeerToken, nil
	}
	return auth.GeneratePeerToken([]byte(cfg.HubJWTSecret), "relay", auth.RoleRelay, 365*24*time.Hour)
}
