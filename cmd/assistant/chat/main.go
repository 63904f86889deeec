package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"recipeassistant"
	"recipeassistant/app"
	"recipeassistant/assistant"
	"recipeassistant/store"
)

func main() {
	ctx := context.Background()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Error("SETUP: Failed to load config", "error", err)
		return
	}

	logger, cleanup, err := newTurnLogger(cfg.Assistant.LLMBackend, cfg.Assistant.TurnLogPath)
	if err != nil {
		slog.Error("SETUP: Failed to create turn logger", "error", err)
		return
	}
	defer func() {
		if err := cleanup(); err != nil {
			slog.Error("SETUP: Failed to flush turn log", "error", err)
		}
	}()

	tracerProvider, _, otelShutdown, err := recipeassistant.InitOtel(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
		return
	}
	defer func() {
		if err := otelShutdown(ctx); err != nil {
			slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
		}
	}()

	a, err := app.New(ctx, cfg, app.Options{Store: store.NewMemory(), TurnLogger: logger})
	if err != nil {
		slog.Error("SETUP: Failed to build assistant", "error", err)
		return
	}
	defer a.Close()

	message := argOr(1, "What are the latest high-protein chicken recipes?")
	diet := argOr(2, "")

	tracer := tracerProvider.Tracer(recipeassistant.TracerNameAssistant)
	ctx, span := tracer.Start(ctx, "chat-cli", trace.WithAttributes(
		attribute.String("llm.backend", cfg.Assistant.LLMBackend),
		attribute.String("model.id", cfg.Model.ModelID),
	))
	defer span.End()

	sid, err := a.Store.CreateSession(ctx)
	if err != nil {
		slog.Error("SETUP: Failed to create session", "error", err)
		return
	}

	resp, err := a.Assistant.Chat(ctx, assistant.ChatRequest{
		SessionID: sid,
		Message:   message,
		UseGraph:  true,
		Context:   recipeassistant.UserContext{Diet: diet},
	})
	if err != nil {
		slog.Error("FAILURE: Error handling message", "error", err)
		return
	}

	if os.Getenv("DUMP_STATE") != "" {
		recipeassistant.DumpState(os.Stderr, "chat response", resp)
	}
	fmt.Println(resp.Reply)
}

func argOr(i int, def string) string {
	if len(os.Args) > i {
		return os.Args[i]
	}
	return def
}

// newTurnLogger writes stage logs to path, or to a timestamped file under
// ./logs when path is empty.
func newTurnLogger(backend, path string) (recipeassistant.TurnLogger, func() error, error) {
	if path == "" {
		path = recipeassistant.NewTurnLogFilePath(backend)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to create log dir: %w", err)
	}
	logFile, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, func() error { return err }, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := recipeassistant.NewFileTurnLogger(logFile)
	cleanup := func() error {
		return errors.Join(logger.Flush(), logFile.Close())
	}
	return logger, cleanup, nil
}
