package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"recipeassistant"
	"recipeassistant/app"
	"recipeassistant/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("SETUP: Failed to load config", "error", err)
		os.Exit(1)
	}
	var serverConfig recipeassistant.ServerConfig
	if err := recipeassistant.LoadEnv(&serverConfig); err != nil {
		slog.Error("SETUP: Failed to load server config", "error", err)
		os.Exit(1)
	}
	gin.SetMode(serverConfig.GinMode)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	_, otelShutdown, err := recipeassistant.InitPrometheus(reg)
	if err != nil {
		slog.Error("SETUP: Failed to initialize metrics", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := otelShutdown(context.Background()); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	a, err := app.New(ctx, cfg, app.Options{})
	if err != nil {
		slog.Error("SETUP: Failed to build assistant", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("SETUP: Failed to close store", "error", err)
		}
	}()

	srv := server.New(a.Assistant, a.Store, a.Tools, server.Options{
		Gatherer:  reg,
		Excluded:  a.Providers.Excluded,
		ChunkSize: cfg.Assistant.ChunkSize,
		CORS:      true,
	})
	if err := srv.Run(ctx, serverConfig); err != nil {
		slog.Error("SERVER: Exited with error", "error", err)
	}
}
