// Package assistant is the caller of the pipeline: it loads history, runs the
// turn, retries on the direct path when generation fails, and persists the
// exchange. It also exposes recipe search, nutrition lookup and analysis.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"recipeassistant"
	"recipeassistant/health"
	"recipeassistant/orchestrator"
	"recipeassistant/pipeline"
)

var ErrEmptyMessage = errors.New("message is required")

// ProfileSource supplies the saved health profile when a request carries none.
type ProfileSource interface {
	GetProfile(ctx context.Context) (recipeassistant.Profile, error)
}

type Options struct {
	Profiles ProfileSource
	Tracer   trace.Tracer
}

type Service struct {
	history  recipeassistant.HistoryStore
	pipeline *pipeline.Pipeline
	orch     *orchestrator.Orchestrator
	profiles ProfileSource
	tracer   trace.Tracer
}

func New(history recipeassistant.HistoryStore, p *pipeline.Pipeline, orch *orchestrator.Orchestrator, opts Options) *Service {
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(recipeassistant.TracerNameAssistant)
	}
	return &Service{
		history:  history,
		pipeline: p,
		orch:     orch,
		profiles: opts.Profiles,
		tracer:   opts.Tracer,
	}
}

type ChatRequest struct {
	SessionID string                      `json:"session_id"`
	Message   string                      `json:"message"`
	UseGraph  bool                        `json:"use_graph"`
	Context   recipeassistant.UserContext `json:"context"`
}

type ChatResponse struct {
	Reply       string                      `json:"reply"`
	TurnID      string                      `json:"turn_id"`
	Route       string                      `json:"route"`
	NeedsSearch bool                        `json:"needs_search"`
	Trimmed     bool                        `json:"trimmed"`
	DirectRetry bool                        `json:"direct_retry"`
	Provenance  *recipeassistant.Provenance `json:"provenance,omitempty"`
}

// Chat runs one turn. Nothing is persisted unless an answer is produced.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	ctx, span := s.tracer.Start(ctx, "Assistant.Chat")
	defer span.End()

	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return ChatResponse{}, ErrEmptyMessage
	}

	history, err := s.history.LoadHistory(ctx, req.SessionID)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("load history: %w", err)
	}

	uc := s.withProfile(ctx, req.Context)
	state := pipeline.NewTurnState(msg, history, uc)

	direct := !req.UseGraph
	out, err := s.pipeline.Run(ctx, state, direct)
	retried := false
	if err != nil && !direct && errors.Is(err, recipeassistant.ErrGenerationFailed) {
		slog.Warn("ASSISTANT: Pipeline failed, falling back to direct generation", "session_id", req.SessionID, "error", err)
		span.AddEvent("direct retry")
		retried = true
		out, err = s.pipeline.Run(ctx, state, true)
	}
	if err != nil {
		span.SetStatus(codes.Error, "turn failed")
		span.RecordError(err)
		return ChatResponse{}, err
	}

	if err := s.history.AppendExchange(ctx, req.SessionID, msg, out.Answer); err != nil {
		return ChatResponse{}, fmt.Errorf("persist exchange: %w", err)
	}

	span.SetAttributes(
		attribute.String("route", out.Route),
		attribute.Bool("direct_retry", retried),
		attribute.Int("answer_chars", len(out.Answer)),
	)
	return ChatResponse{
		Reply:       out.Answer,
		TurnID:      out.TurnID,
		Route:       out.Route,
		NeedsSearch: out.NeedsSearch,
		Trimmed:     out.Trimmed,
		DirectRetry: retried,
		Provenance:  out.SearchProvenance,
	}, nil
}

// withProfile fills in the saved profile when the request has none. A profile
// lookup failure only drops personalization.
func (s *Service) withProfile(ctx context.Context, uc recipeassistant.UserContext) recipeassistant.UserContext {
	if uc.HasProfile() || s.profiles == nil {
		return uc
	}
	p, err := s.profiles.GetProfile(ctx)
	if err != nil {
		slog.Warn("ASSISTANT: Could not load saved profile", "error", err)
		return uc
	}
	uc.Diet, uc.Allergens, uc.Goals = p.Diet, p.Allergens, p.Goals
	return uc
}

// Search runs a provider-backed recipe search.
func (s *Service) Search(ctx context.Context, query string, maxResults int) (recipeassistant.SearchResult, error) {
	return s.orch.SearchRecipes(ctx, query, maxResults)
}

// Nutrition looks up nutrition for an ingredient list. With consensus every
// available provider is asked and the readings merged.
func (s *Service) Nutrition(ctx context.Context, ingredients []string, consensus bool) (recipeassistant.NutritionResult, error) {
	if consensus {
		return s.orch.NutritionConsensus(ctx, ingredients)
	}
	return s.orch.Nutrition(ctx, ingredients)
}

func (s *Service) Status() []health.Status {
	return s.orch.Status()
}

func (s *Service) Reset(capability, name string) error {
	return s.orch.Reset(capability, name)
}
