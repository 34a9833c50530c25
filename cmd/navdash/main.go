package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/navdash/navdash/internal/location"
	"github.com/navdash/navdash/internal/motion"
	"github.com/navdash/navdash/internal/server"
	"github.com/navdash/navdash/web"
)

func main() {
	configPath := flag.String("config", "/etc/navdash/config.yaml", "Path to config file")
	demo := flag.Bool("demo", false, "Run with simulated location and motion data")
	listenAddr := flag.String("listen", "", "Override listen address (e.g. :8080)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg := server.LoadConfig(*configPath)
	if *demo {
		cfg.Location.Type = "demo"
		cfg.Motion.Type = "demo"
	}
	if *listenAddr != "" {
		cfg.Server.ListenAddr = *listenAddr
	}

	logCfg := zap.NewProductionConfig()
	if *debug || cfg.Server.LogLevel == "debug" {
		logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	log, err := logCfg.Build()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("navdash starting",
		zap.String("location", cfg.Location.Type),
		zap.String("motion", cfg.Motion.Type))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	// No connect retry anywhere: an unavailable sensor leaves its reading
	// frozen at defaults until the next run, surfaced only through the
	// permission and active status fields.
	loc := location.NewSource(locationBackend(cfg, log), log)
	ori := motion.NewSource(motionBackend(cfg, log), log)

	srv := server.New(cfg, loc, ori, web.FS, log)
	if err := srv.Run(ctx); err != nil {
		log.Error("server exited", zap.Error(err))
	}
}

func locationBackend(cfg *server.Config, log *zap.Logger) location.Backend {
	switch cfg.Location.Type {
	case "nmea":
		return location.NewNMEABackend(cfg.Location.NMEA, log)
	case "gpsd":
		return location.NewGPSDBackend(cfg.Location.GPSD, log)
	default:
		return location.NewDemoBackend()
	}
}

func motionBackend(cfg *server.Config, log *zap.Logger) motion.Backend {
	switch cfg.Motion.Type {
	case "mpu9250":
		return motion.NewMPU9250Backend(cfg.Motion.MPU9250, log)
	default:
		return motion.NewDemoBackend()
	}
}
