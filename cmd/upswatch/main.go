package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/tbarrett/upswatch/internal/config"
	"github.com/tbarrett/upswatch/internal/event"
	"github.com/tbarrett/upswatch/internal/favorites"
	"github.com/tbarrett/upswatch/internal/history"
	"github.com/tbarrett/upswatch/internal/metrics"
	"github.com/tbarrett/upswatch/internal/nut"
	"github.com/tbarrett/upswatch/internal/server"
	"github.com/tbarrett/upswatch/internal/session"
	"github.com/tbarrett/upswatch/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	favoriteName := flag.String("favorite", "", "connect to this favorite at startup")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("upswatch starting", zap.String("version", version.Short()))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	bus := event.NewBus(logger)

	favs := favorites.NewStore(cfg.GetString("favorites.path"), logger)
	if err := favs.Load(); err != nil {
		logger.Fatal("failed to load favorites", zap.Error(err))
	}

	hist, err := history.Open(cfg.GetString("history.path"))
	if err != nil {
		logger.Fatal("failed to open history store", zap.Error(err))
	}
	defer hist.Close()

	recorder := history.NewRecorder(hist, logger)
	recorder.Bind(bus)
	defer recorder.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry, logger)
	collector.Bind(bus)
	defer collector.Close()

	sess := session.New(nut.Dial, bus, cfg.GetDuration("poll.interval"), logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go pruneLoop(ctx, hist, cfg.GetDuration("history.retention"), logger)

	if err := autoconnect(ctx, sess, favs, cfg, *favoriteName, logger); err != nil {
		// The daemon stays useful without a device; the API can connect later.
		logger.Warn("startup connect failed", zap.Error(err))
	}

	addr := cfg.GetString("server.addr")
	srv := server.New(addr, sess, favs, hist, bus, registry, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	logger.Info("upswatch ready", zap.String("addr", addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := sess.Disconnect(shutdownCtx); err != nil {
		logger.Error("session disconnect error", zap.Error(err))
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}

	logger.Info("upswatch stopped")
}

// autoconnect attaches the session at startup: an explicit favorite when one
// is named, otherwise the configured default host if it exposes exactly one
// device.
func autoconnect(ctx context.Context, sess *session.Session, favs *favorites.Store, cfg *config.Config, favoriteName string, logger *zap.Logger) error {
	if favoriteName != "" {
		profile, ok := favs.Get(favoriteName)
		if !ok {
			return fmt.Errorf("favorite %q not found", favoriteName)
		}
		logger.Info("connecting to favorite", zap.String("favorite", favoriteName))
		return sess.Connect(ctx, profile)
	}

	if !cfg.GetBool("autoconnect.enabled") {
		return nil
	}

	host := cfg.GetString("autoconnect.host")
	port := uint16(cfg.GetInt("autoconnect.port"))

	devices, err := sess.ListDevices(ctx, host, port, "", "")
	if err != nil {
		return fmt.Errorf("probe %s: %w", host, err)
	}
	if len(devices) != 1 {
		logger.Info("skipping autoconnect",
			zap.String("host", host),
			zap.Int("devices", len(devices)))
		return nil
	}

	logger.Info("autoconnecting",
		zap.String("host", host),
		zap.String("device", devices[0].ID))
	return sess.Connect(ctx, favorites.Profile{
		Host:    host,
		Port:    port,
		UPSName: devices[0].ID,
	})
}

// pruneLoop deletes history rows past the retention window once an hour.
// A retention of zero disables pruning.
func pruneLoop(ctx context.Context, hist *history.Store, retention time.Duration, logger *zap.Logger) {
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := hist.Prune(ctx, time.Now().Add(-retention))
			if err != nil {
				logger.Error("history prune failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("pruned history", zap.Int64("rows", n))
			}
		}
	}
}
