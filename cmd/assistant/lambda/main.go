package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambda"

	"recipeassistant"
	"recipeassistant/app"
	"recipeassistant/assistant"
)

type Params struct {
	SessionID string                      `json:"session_id"`
	Message   string                      `json:"message"`
	UseGraph  *bool                       `json:"use_graph"`
	Context   recipeassistant.UserContext `json:"context"`
}

type Results struct {
	SessionID string                 `json:"session_id"`
	Response  assistant.ChatResponse `json:"response"`
}

func main() {
	fn := func(ctx context.Context, params Params) (Results, error) {
		cfg, err := app.LoadConfig()
		if err != nil {
			return Results{}, fmt.Errorf("failed to load config: %w", err)
		}

		_, _, otelShutdown, err := recipeassistant.InitOtel(ctx)
		if err != nil {
			slog.Error("SETUP: Failed to initialize OpenTelemetry", "error", err)
			return Results{}, err
		}
		defer func() {
			if err := otelShutdown(ctx); err != nil {
				slog.Error("SETUP: Failed to shutdown OpenTelemetry", "error", err)
			}
		}()

		a, err := app.New(ctx, cfg, app.Options{TurnLogger: recipeassistant.NewStdoutTurnLogger()})
		if err != nil {
			slog.Error("SETUP: Failed to build assistant", "error", err)
			return Results{}, err
		}
		defer a.Close()

		sid := params.SessionID
		if sid == "" {
			if sid, err = a.Store.CreateSession(ctx); err != nil {
				return Results{}, err
			}
		}

		useGraph := true
		if params.UseGraph != nil {
			useGraph = *params.UseGraph
		}
		resp, err := a.Assistant.Chat(ctx, assistant.ChatRequest{
			SessionID: sid,
			Message:   params.Message,
			UseGraph:  useGraph,
			Context:   params.Context,
		})
		if err != nil {
			slog.Error("RESULT: Error handling message", "error", err)
			return Results{}, err
		}

		return Results{SessionID: sid, Response: resp}, nil
	}

	lambda.Start(fn)
}
