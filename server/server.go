// Package server exposes the assistant over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"recipeassistant"
	"recipeassistant/assistant"
	"recipeassistant/stream"
	"recipeassistant/store"
	"recipeassistant/tools"
)

const shutdownTimeout = 5 * time.Second

type Options struct {
	// Gatherer backs /metrics. Defaults to the Prometheus default gatherer.
	Gatherer prometheus.Gatherer
	// Excluded lists providers left out at startup and why.
	Excluded  map[string]string
	ChunkSize int
	CORS      bool
}

type Server struct {
	svc    *assistant.Service
	store  store.Store
	tools  *tools.Registry
	opts   Options
	router *gin.Engine
}

func New(svc *assistant.Service, st store.Store, tl *tools.Registry, opts Options) *Server {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = stream.DefaultChunkSize
	}
	s := &Server{svc: svc, store: st, tools: tl, opts: opts}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())
	if s.opts.CORS {
		router.Use(CORSMiddleware())
	}

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.POST("/sessions", s.createSession)
	api.GET("/chat/history", s.history)
	api.POST("/chat", s.chat)
	api.GET("/chat/stream", s.chatStream)
	api.POST("/chat/stream", s.chatStream)

	api.GET("/profile", s.getProfile)
	api.POST("/profile", s.saveProfile)

	api.GET("/recipes/search", s.searchRecipes)
	api.POST("/recipes/analyze", s.analyzeRecipe)
	api.POST("/nutrition", s.nutrition)

	api.GET("/tools", s.listTools)
	api.POST("/tools/:name", s.runTool)

	api.GET("/providers/status", s.providerStatus)
	api.POST("/providers/:capability/:name/reset", s.resetProvider)

	return router
}

// Run serves on cfg.Addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, cfg recipeassistant.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("SERVER: Starting HTTP server", "address", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("SERVER: Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	slog.Info("SERVER: Shutdown completed")
	return nil
}
