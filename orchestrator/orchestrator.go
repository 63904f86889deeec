// Package orchestrator drives the ordered provider lists for recipe search
// and nutrition lookup. Known-bad providers are skipped, each call runs under
// a timeout, and when every provider fails a deterministic fallback is
// returned instead of an error.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/slok/goresilience"
	gerrors "github.com/slok/goresilience/errors"
	"github.com/slok/goresilience/timeout"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"recipeassistant"
	"recipeassistant/catalog"
	"recipeassistant/health"
	"recipeassistant/nutrition"
	"recipeassistant/provider"
)

const (
	CapabilityRecipeSearch = "recipe_search"
	CapabilityNutrition    = "nutrition"

	DefaultTimeout    = 10 * time.Second
	DefaultMaxResults = 5

	SourceFallback  = "fallback"
	SourceEstimated = "estimated"
)

var ErrUnknownCapability = errors.New("unknown capability")

// SearchCache stores successful provider search results.
type SearchCache interface {
	Get(ctx context.Context, key string) (recipeassistant.SearchResult, bool)
	Set(ctx context.Context, key string, res recipeassistant.SearchResult)
}

type Options struct {
	// Timeout bounds every individual provider call.
	Timeout time.Duration
	// Catalog replaces the built-in fallback recipe table.
	Catalog *catalog.Catalog
	Cache   SearchCache
	Tracer  trace.Tracer
	Metrics *Metrics
}

type Orchestrator struct {
	searchers       []provider.RecipeSearcher
	sources         []provider.NutritionSource
	searchHealth    *health.Tracker
	nutritionHealth *health.Tracker
	catalog         *catalog.Catalog
	cache           SearchCache
	runner          goresilience.Runner
	tracer          trace.Tracer
	metrics         *Metrics
}

func New(
	searchers []provider.RecipeSearcher,
	sources []provider.NutritionSource,
	searchHealth, nutritionHealth *health.Tracker,
	opts Options,
) *Orchestrator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer(recipeassistant.TracerNameOrchestrator)
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(otel.Meter(recipeassistant.MeterNameOrchestrator))
	}
	if searchHealth == nil {
		searchHealth = health.NewTracker(CapabilityRecipeSearch, health.Options{})
	}
	if nutritionHealth == nil {
		nutritionHealth = health.NewTracker(CapabilityNutrition, health.Options{})
	}

	for _, p := range searchers {
		searchHealth.Track(p.Name())
	}
	for _, p := range sources {
		nutritionHealth.Track(p.Name())
	}

	return &Orchestrator{
		searchers:       searchers,
		sources:         sources,
		searchHealth:    searchHealth,
		nutritionHealth: nutritionHealth,
		catalog:         opts.Catalog,
		cache:           opts.Cache,
		runner:          goresilience.RunnerChain(timeout.NewMiddleware(timeout.Config{Timeout: opts.Timeout})),
		tracer:          opts.Tracer,
		metrics:         opts.Metrics,
	}
}

// SearchRecipes asks each search provider in priority order and keeps the
// first non-empty answer. If none answers, matching recipes from the fallback
// catalog are returned. The only error is cancellation of ctx.
func (o *Orchestrator) SearchRecipes(ctx context.Context, query string, maxResults int) (recipeassistant.SearchResult, error) {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.SearchRecipes")
	defer span.End()

	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	key := cacheKey(query, maxResults)
	if o.cache != nil {
		if res, ok := o.cache.Get(ctx, key); ok {
			slog.Info("ORCHESTRATOR: Search cache hit", "query", query)
			span.AddEvent("cache hit")
			return res, nil
		}
	}

	var (
		tried   []string
		recipes []recipeassistant.RecipeRecord
	)

	for _, p := range o.searchers {
		name := p.Name()
		if !o.searchHealth.IsAvailable(name) {
			tried = append(tried, name+"(unavailable)")
			o.metrics.attempt(ctx, CapabilityRecipeSearch, name, outcomeUnavailable, 0)
			continue
		}

		start := time.Now()
		got, err := call(ctx, o.runner, func(ctx context.Context) ([]recipeassistant.RecipeRecord, error) {
			return p.Search(ctx, query, maxResults)
		})
		elapsed := time.Since(start)
		if ctx.Err() != nil {
			return recipeassistant.SearchResult{}, ctx.Err()
		}

		switch {
		case err != nil:
			o.searchHealth.RecordFailure(name)
			tried = append(tried, name+"(failed)")
			o.metrics.attempt(ctx, CapabilityRecipeSearch, name, failureOutcome(err), elapsed)
			slog.Warn("ORCHESTRATOR: Search provider failed", "provider", name, "error", err, "elapsed_ms", elapsed.Milliseconds())
			span.AddEvent("provider failed", trace.WithAttributes(attribute.String("provider", name)))
		case len(got) == 0:
			tried = append(tried, name+"(empty)")
			o.metrics.attempt(ctx, CapabilityRecipeSearch, name, outcomeEmpty, elapsed)
			slog.Info("ORCHESTRATOR: Search provider returned nothing", "provider", name)
		default:
			o.searchHealth.RecordSuccess(name)
			tried = append(tried, name)
			o.metrics.attempt(ctx, CapabilityRecipeSearch, name, outcomeSuccess, elapsed)
			recipes = got
		}
		if recipes != nil {
			break
		}
	}

	fromProvider := len(recipes) > 0
	if !fromProvider {
		recipes = o.catalog.Match(query, maxResults)
		tried = append(tried, SourceFallback)
		o.metrics.fallback(ctx, CapabilityRecipeSearch)
		slog.Warn("ORCHESTRATOR: All search providers exhausted, using fallback recipes", "query", query, "sources_tried", tried)
	}

	if len(recipes) > maxResults {
		recipes = recipes[:maxResults]
	}

	prov := provenance(tried, !fromProvider)
	res := recipeassistant.SearchResult{Recipes: tag(recipes, prov), Provenance: prov}

	span.SetAttributes(
		attribute.StringSlice("sources_tried", tried),
		attribute.Bool("fallback_used", prov.FallbackUsed),
		attribute.Int("results", len(res.Recipes)),
	)

	if fromProvider && o.cache != nil {
		o.cache.Set(ctx, key, res)
	}
	return res, nil
}

// Nutrition stops at the first provider reporting any nutrient. If none does,
// the keyword estimator fills in.
func (o *Orchestrator) Nutrition(ctx context.Context, ingredients []string) (recipeassistant.NutritionResult, error) {
	return o.nutrition(ctx, ingredients, true)
}

// NutritionConsensus asks every available provider and merges what they report.
func (o *Orchestrator) NutritionConsensus(ctx context.Context, ingredients []string) (recipeassistant.NutritionResult, error) {
	return o.nutrition(ctx, ingredients, false)
}

func (o *Orchestrator) nutrition(ctx context.Context, ingredients []string, firstWins bool) (recipeassistant.NutritionResult, error) {
	ctx, span := o.tracer.Start(ctx, "Orchestrator.Nutrition")
	defer span.End()

	var tried []string
	readings := map[string]recipeassistant.NutritionRecord{}

	if len(ingredients) > 0 {
		for _, p := range o.sources {
			name := p.Name()
			if !o.nutritionHealth.IsAvailable(name) {
				tried = append(tried, name+"(unavailable)")
				o.metrics.attempt(ctx, CapabilityNutrition, name, outcomeUnavailable, 0)
				continue
			}

			start := time.Now()
			rec, err := call(ctx, o.runner, func(ctx context.Context) (recipeassistant.NutritionRecord, error) {
				return p.Nutrition(ctx, ingredients)
			})
			elapsed := time.Since(start)
			if ctx.Err() != nil {
				return recipeassistant.NutritionResult{}, ctx.Err()
			}

			switch {
			case err != nil:
				o.nutritionHealth.RecordFailure(name)
				tried = append(tried, name+"(failed)")
				o.metrics.attempt(ctx, CapabilityNutrition, name, failureOutcome(err), elapsed)
				slog.Warn("ORCHESTRATOR: Nutrition provider failed", "provider", name, "error", err)
			case rec.IsZero():
				tried = append(tried, name+"(empty)")
				o.metrics.attempt(ctx, CapabilityNutrition, name, outcomeEmpty, elapsed)
			default:
				o.nutritionHealth.RecordSuccess(name)
				tried = append(tried, name)
				o.metrics.attempt(ctx, CapabilityNutrition, name, outcomeSuccess, elapsed)
				readings[name] = rec
			}
			if firstWins && len(readings) > 0 {
				break
			}
		}
	}

	res := recipeassistant.NutritionResult{Nutrition: nutrition.Merge(readings)}
	if res.Nutrition.IsZero() {
		res.Nutrition = nutrition.Estimate(ingredients)
		res.Estimated = true
		tried = append(tried, SourceEstimated)
		o.metrics.fallback(ctx, CapabilityNutrition)
		slog.Info("ORCHESTRATOR: Nutrition estimated from ingredients", "ingredients", len(ingredients), "sources_tried", tried)
	}
	res.Provenance = provenance(tried, res.Estimated)

	span.SetAttributes(
		attribute.StringSlice("sources_tried", tried),
		attribute.Bool("estimated", res.Estimated),
	)
	return res, nil
}

// Status lists every tracked provider for both capabilities.
func (o *Orchestrator) Status() []health.Status {
	return append(o.searchHealth.Snapshot(), o.nutritionHealth.Snapshot()...)
}

// Reset returns a tripped provider to rotation.
func (o *Orchestrator) Reset(capability, name string) error {
	switch capability {
	case CapabilityRecipeSearch:
		return o.searchHealth.Reset(name)
	case CapabilityNutrition:
		return o.nutritionHealth.Reset(name)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCapability, capability)
	}
}

// call runs fn once under the runner's timeout. A timeout surfaces as an error
// like any other provider failure.
func call[T any](ctx context.Context, runner goresilience.Runner, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := runner.Run(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// provenance marks a result as fallback when more than one source was tried,
// or when it came from the static table or the estimator.
func provenance(tried []string, staticFallback bool) recipeassistant.Provenance {
	return recipeassistant.Provenance{
		SourcesTried: tried,
		FallbackUsed: len(tried) > 1 || staticFallback,
	}
}

func tag(recipes []recipeassistant.RecipeRecord, prov recipeassistant.Provenance) []recipeassistant.RecipeRecord {
	out := make([]recipeassistant.RecipeRecord, len(recipes))
	for i, r := range recipes {
		r.Provenance = recipeassistant.Provenance{
			SourcesTried: slices.Clone(prov.SourcesTried),
			FallbackUsed: prov.FallbackUsed,
		}
		out[i] = r
	}
	return out
}

func cacheKey(query string, maxResults int) string {
	return fmt.Sprintf("%s|%d", strings.ToLower(strings.TrimSpace(query)), maxResults)
}

// IsTimeout reports whether err came from the per-call timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, gerrors.ErrTimeout)
}
