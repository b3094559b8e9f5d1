package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"serp-go/internal/app"
	"serp-go/internal/config"
	"serp-go/internal/handler"
	"serp-go/pkg/logger"
)

type Application struct {
	configPath string
	debug      bool
}

func main() {
	application := &Application{}

	flag.StringVar(&application.configPath, "config", "", "Configuration file path (env SERP_* overrides)")
	flag.BoolVar(&application.debug, "debug", false, "Enable debug mode")
	flag.Parse()

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

func (a *Application) Run() error {
	cfg, err := config.NewManager().Load(a.configPath)
	if err != nil {
		return err
	}

	log := app.NewLogger(cfg.Logger, a.debug)

	components, err := app.Build(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := components.Close(); err != nil {
			log.WithError(err).Warn("Failed to close storage cleanly")
		}
	}()

	ctrl := handler.NewController(components.Tracker, components.History, handler.DefaultControllerConfig())
	server := handler.NewApp(ctrl, components.Metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listenErr := make(chan error, 1)
	go func() {
		log.WithFields(map[string]interface{}{
			"address":  cfg.Server.Address(),
			"tracking": components.Tracker.CanFetch(),
			"storage":  cfg.Storage.Driver,
		}).Info("Starting serp-go server")
		listenErr <- server.Listen(cfg.Server.Address())
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutdown signal received, shutting down gracefully")
	if err := server.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	if components.Client != nil {
		total, failed := components.Client.Stats()
		log.WithFields(map[string]interface{}{
			"api_requests": total,
			"api_failures": failed,
		}).Info("Server stopped")
	} else {
		logger.Info("Server stopped")
	}
	return nil
}
