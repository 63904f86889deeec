// Package pipeline runs one chat turn as Route, an optional Search, then
// Generate.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"recipeassistant"
)

const (
	DefaultMaxChars           = 2500
	DefaultHistoryLimit       = 10
	DefaultDirectHistoryLimit = 12
	DefaultPromptResults      = 5
	DefaultSearchMaxResults   = 8
)

// Searcher is the recipe search capability. *orchestrator.Orchestrator
// satisfies it.
type Searcher interface {
	SearchRecipes(ctx context.Context, query string, maxResults int) (recipeassistant.SearchResult, error)
}

type Options struct {
	MaxChars           int
	HistoryLimit       int
	DirectHistoryLimit int
	// PromptResults caps how many search hits reach the prompt.
	PromptResults    int
	SearchMaxResults int
	Logger           recipeassistant.TurnLogger
	Tracer           trace.Tracer
	Meter            metric.Meter
}

type Pipeline struct {
	searcher Searcher
	llm      recipeassistant.Completer
	opts     Options
	tracer   trace.Tracer

	turns      metric.Int64Counter
	llmLatency metric.Float64Histogram
	trimmed    metric.Int64Counter
}

func New(searcher Searcher, llm recipeassistant.Completer, opts Options) *Pipeline {
	if opts.MaxChars == 0 {
		opts.MaxChars = DefaultMaxChars
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.DirectHistoryLimit <= 0 {
		opts.DirectHistoryLimit = DefaultDirectHistoryLimit
	}
	if opts.PromptResults <= 0 {
		opts.PromptResults = DefaultPromptResults
	}
	if opts.SearchMaxResults <= 0 {
		opts.SearchMaxResults = DefaultSearchMaxResults
	}
	if opts.Logger == nil {
		opts.Logger = recipeassistant.NewNoOpTurnLogger()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(recipeassistant.TracerNamePipeline)
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter(recipeassistant.MeterNamePipeline)
	}

	turns, _ := opts.Meter.Int64Counter("pipeline_turns_total",
		metric.WithDescription("Chat turns by route and outcome"))
	llmLatency, _ := opts.Meter.Float64Histogram("llm_response_time_seconds",
		metric.WithDescription("Time taken to receive a completion from the LLM in seconds"),
		metric.WithUnit("s"))
	trimmed, _ := opts.Meter.Int64Counter("pipeline_answers_trimmed_total",
		metric.WithDescription("Answers cut by the output length guard"))

	return &Pipeline{
		searcher:   searcher,
		llm:        llm,
		opts:       opts,
		tracer:     opts.Tracer,
		turns:      turns,
		llmLatency: llmLatency,
		trimmed:    trimmed,
	}
}

// Run executes the turn. With skipSearch the Search stage is bypassed and the
// direct instructions and history cap are used.
func (p *Pipeline) Run(ctx context.Context, state TurnState, skipSearch bool) (TurnState, error) {
	ctx, span := p.tracer.Start(ctx, "Pipeline.Run")
	defer span.End()

	if state.TurnID == "" {
		state.TurnID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("turn_id", state.TurnID), attribute.Bool("skip_search", skipSearch))
	slog.Info("PIPELINE: Starting turn", "turn_id", state.TurnID, "skip_search", skipSearch, "history_len", len(state.History))

	if skipSearch {
		state.NeedsSearch = false
		state.Route = RouteGenerate
	} else {
		state = p.route(ctx, state)
	}

	if state.Route == RouteSearch {
		var err error
		state, err = p.search(ctx, state)
		if err != nil {
			p.finish(ctx, span, state, "cancelled", err)
			return state, err
		}
	}

	state, err := p.generate(ctx, state, skipSearch)
	if err != nil {
		p.finish(ctx, span, state, "failed", err)
		return state, err
	}

	p.finish(ctx, span, state, "success", nil)
	return state, nil
}

func (p *Pipeline) route(ctx context.Context, s TurnState) TurnState {
	start := time.Now()
	s = Route(s)

	slog.Info("PIPELINE: Route decision", "turn_id", s.TurnID, "route", s.Route, "needs_search", s.NeedsSearch)
	trace.SpanFromContext(ctx).AddEvent("route", trace.WithAttributes(attribute.String("route", s.Route)))
	p.logStage(recipeassistant.StageLog{
		TurnID:      s.TurnID,
		Stage:       "route",
		Timestamp:   start,
		Duration:    time.Since(start),
		NeedsSearch: s.NeedsSearch,
	})
	return s
}

// search never fails the turn on provider trouble; only cancellation of ctx
// is returned.
func (p *Pipeline) search(ctx context.Context, s TurnState) (TurnState, error) {
	ctx, span := p.tracer.Start(ctx, "Pipeline.Search")
	defer span.End()
	start := time.Now()

	if p.searcher == nil {
		slog.Warn("PIPELINE: No search capability configured, continuing without results", "turn_id", s.TurnID)
		return s, nil
	}

	query := strings.TrimSpace(s.Query)
	if dc := s.UserContext.DietaryContext(); dc != "" {
		query += " " + dc
	}

	res, err := p.searcher.SearchRecipes(ctx, query, p.opts.SearchMaxResults)
	stage := recipeassistant.StageLog{TurnID: s.TurnID, Stage: "search", Timestamp: start}
	if err != nil {
		stage.Duration = time.Since(start)
		stage.Error = err.Error()
		p.logStage(stage)
		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, "search cancelled")
			return s, ctxErr
		}
		slog.Warn("PIPELINE: Search failed, continuing without results", "turn_id", s.TurnID, "error", err)
		return s, nil
	}

	results := res.Recipes
	if len(results) > p.opts.PromptResults {
		results = results[:p.opts.PromptResults]
	}
	s.SearchResults = results
	prov := res.Provenance
	s.SearchProvenance = &prov

	stage.Duration = time.Since(start)
	stage.SearchResults = len(results)
	stage.Provenance = &prov
	p.logStage(stage)

	span.SetAttributes(
		attribute.Int("results", len(results)),
		attribute.StringSlice("sources_tried", prov.SourcesTried),
		attribute.Bool("fallback_used", prov.FallbackUsed),
	)
	slog.Info("PIPELINE: Search complete", "turn_id", s.TurnID, "results", len(results), "sources_tried", prov.SourcesTried)
	return s, nil
}

func (p *Pipeline) generate(ctx context.Context, s TurnState, direct bool) (TurnState, error) {
	ctx, span := p.tracer.Start(ctx, "Pipeline.Generate")
	defer span.End()
	start := time.Now()

	limit := p.opts.HistoryLimit
	if direct {
		limit = p.opts.DirectHistoryLimit
	}
	req := Compose(s, direct, limit, p.opts.PromptResults)

	span.AddEvent("Sending prompt to LLM", trace.WithAttributes(
		attribute.Int("history_len", len(req.History)),
		attribute.Int("context_chars", len(req.ExtraContext)),
	))

	llmStart := time.Now()
	answer, err := p.llm.Complete(ctx, req)
	p.llmLatency.Record(ctx, time.Since(llmStart).Seconds())

	stage := recipeassistant.StageLog{TurnID: s.TurnID, Stage: "generate", Timestamp: start}
	if err == nil && strings.TrimSpace(answer) == "" {
		err = fmt.Errorf("%w: empty answer", recipeassistant.ErrGenerationFailed)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		} else if !errors.Is(err, recipeassistant.ErrGenerationFailed) {
			err = fmt.Errorf("%w: %w", recipeassistant.ErrGenerationFailed, err)
		}
		stage.Duration = time.Since(start)
		stage.Error = err.Error()
		p.logStage(stage)
		span.SetStatus(codes.Error, "LLM invoke failed")
		span.RecordError(err)
		return s, err
	}

	s.Answer, s.Trimmed = Trim(strings.TrimSpace(answer), p.opts.MaxChars)
	if s.Trimmed {
		p.trimmed.Add(ctx, 1)
		slog.Info("PIPELINE: Answer trimmed", "turn_id", s.TurnID, "max_chars", p.opts.MaxChars)
	}

	stage.Duration = time.Since(start)
	stage.AnswerChars = len([]rune(s.Answer))
	stage.Trimmed = s.Trimmed
	p.logStage(stage)

	slog.Info("PIPELINE: Generate done", "turn_id", s.TurnID, "answer_chars", stage.AnswerChars, "elapsed_ms", stage.Duration.Milliseconds())
	return s, nil
}

func (p *Pipeline) finish(ctx context.Context, span trace.Span, s TurnState, outcome string, err error) {
	p.turns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", s.Route),
		attribute.String("outcome", outcome),
	))
	if err != nil {
		span.SetStatus(codes.Error, outcome)
		slog.Warn("PIPELINE: Turn ended without answer", "turn_id", s.TurnID, "outcome", outcome, "error", err)
	}
}

func (p *Pipeline) logStage(stage recipeassistant.StageLog) {
	if err := p.opts.Logger.LogStage(stage); err != nil {
		slog.Error("PIPELINE: Failed to log stage", "error", err, "stage", stage.Stage)
	}
}
