package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipeassistant"
	"recipeassistant/health"
	"recipeassistant/nutrition"
	"recipeassistant/provider"
)

type fakeSearcher struct {
	name    string
	recipes []recipeassistant.RecipeRecord
	err     error
	delay   time.Duration
	calls   atomic.Int32
}

func (f *fakeSearcher) Name() string { return f.name }

func (f *fakeSearcher) Search(ctx context.Context, query string, maxResults int) ([]recipeassistant.RecipeRecord, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.recipes, f.err
}

type fakeSource struct {
	name  string
	rec   recipeassistant.NutritionRecord
	err   error
	calls atomic.Int32
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Nutrition(ctx context.Context, ingredients []string) (recipeassistant.NutritionRecord, error) {
	f.calls.Add(1)
	return f.rec, f.err
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]recipeassistant.SearchResult
}

func (c *mapCache) Get(_ context.Context, key string) (recipeassistant.SearchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.data[key]
	return r, ok
}

func (c *mapCache) Set(_ context.Context, key string, res recipeassistant.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = res
}

var errDown = errors.New("connection refused")

func recipes(titles ...string) []recipeassistant.RecipeRecord {
	out := make([]recipeassistant.RecipeRecord, 0, len(titles))
	for _, t := range titles {
		out = append(out, recipeassistant.RecipeRecord{Title: t})
	}
	return out
}

func searchers(ss ...*fakeSearcher) []provider.RecipeSearcher {
	out := make([]provider.RecipeSearcher, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}

func sources(ss ...*fakeSource) []provider.NutritionSource {
	out := make([]provider.NutritionSource, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}

func TestSearchRecipes(t *testing.T) {
	tests := []struct {
		name         string
		providers    []*fakeSearcher
		wantTitles   []string
		wantTried    []string
		wantFallback bool
		wantCalls    []int32
	}{
		{
			name: "first success wins",
			providers: []*fakeSearcher{
				{name: "themealdb", recipes: recipes("Chicken Curry")},
				{name: "spoonacular", recipes: recipes("Other")},
			},
			wantTitles:   []string{"Chicken Curry"},
			wantTried:    []string{"themealdb"},
			wantFallback: false,
			wantCalls:    []int32{1, 0},
		},
		{
			name: "failure moves to next provider",
			providers: []*fakeSearcher{
				{name: "themealdb", err: errDown},
				{name: "spoonacular", recipes: recipes("Spoon Chicken")},
			},
			wantTitles:   []string{"Spoon Chicken"},
			wantTried:    []string{"themealdb(failed)", "spoonacular"},
			wantFallback: true,
			wantCalls:    []int32{1, 1},
		},
		{
			name: "empty result moves to next provider",
			providers: []*fakeSearcher{
				{name: "themealdb", recipes: []recipeassistant.RecipeRecord{}},
				{name: "spoonacular", recipes: recipes("Spoon Chicken")},
			},
			wantTitles:   []string{"Spoon Chicken"},
			wantTried:    []string{"themealdb(empty)", "spoonacular"},
			wantFallback: true,
			wantCalls:    []int32{1, 1},
		},
		{
			name: "all fail uses static table",
			providers: []*fakeSearcher{
				{name: "tavily", err: errDown},
				{name: "themealdb", err: errDown},
			},
			wantTitles:   []string{"Simple Grilled Chicken"},
			wantTried:    []string{"tavily(failed)", "themealdb(failed)", "fallback"},
			wantFallback: true,
			wantCalls:    []int32{1, 1},
		},
		{
			name:         "no providers uses static table",
			providers:    nil,
			wantTitles:   []string{"Simple Grilled Chicken"},
			wantTried:    []string{"fallback"},
			wantFallback: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(searchers(tt.providers...), nil, nil, nil, Options{})

			res, err := o.SearchRecipes(context.Background(), "grilled chicken", 5)
			require.NoError(t, err)

			var titles []string
			for _, r := range res.Recipes {
				titles = append(titles, r.Title)
				assert.Equal(t, tt.wantTried, r.Provenance.SourcesTried)
				assert.Equal(t, tt.wantFallback, r.Provenance.FallbackUsed)
			}
			assert.Equal(t, tt.wantTitles, titles)
			assert.Equal(t, tt.wantTried, res.Provenance.SourcesTried)
			assert.Equal(t, tt.wantFallback, res.Provenance.FallbackUsed)
			for i, p := range tt.providers {
				assert.Equal(t, tt.wantCalls[i], p.calls.Load(), p.name)
			}
		})
	}
}

func TestSearchRecipes_TrippedProviderIsSkipped(t *testing.T) {
	bad := &fakeSearcher{name: "themealdb", err: errDown}
	good := &fakeSearcher{name: "spoonacular", recipes: recipes("Spoon Chicken")}
	tracker := health.NewTracker(CapabilityRecipeSearch, health.Options{})
	o := New(searchers(bad, good), nil, tracker, nil, Options{})

	for range 3 {
		_, err := o.SearchRecipes(context.Background(), "chicken", 5)
		require.NoError(t, err)
	}
	require.False(t, tracker.IsAvailable("themealdb"))

	res, err := o.SearchRecipes(context.Background(), "chicken", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"themealdb(unavailable)", "spoonacular"}, res.Provenance.SourcesTried)
	assert.True(t, res.Provenance.FallbackUsed)
	assert.Equal(t, int32(3), bad.calls.Load())
}

func TestSearchRecipes_EmptyResultDoesNotCountAsFailure(t *testing.T) {
	empty := &fakeSearcher{name: "themealdb"}
	tracker := health.NewTracker(CapabilityRecipeSearch, health.Options{})
	o := New(searchers(empty), nil, tracker, nil, Options{})

	for range 5 {
		_, err := o.SearchRecipes(context.Background(), "chicken", 5)
		require.NoError(t, err)
	}
	assert.True(t, tracker.IsAvailable("themealdb"))
	assert.Equal(t, 0, tracker.Status("themealdb").ConsecutiveFailures)
}

func TestSearchRecipes_TimeoutCountsAsFailure(t *testing.T) {
	slow := &fakeSearcher{name: "tavily", recipes: recipes("Too Late"), delay: time.Second}
	tracker := health.NewTracker(CapabilityRecipeSearch, health.Options{})
	o := New(searchers(slow), nil, tracker, nil, Options{Timeout: 20 * time.Millisecond})

	start := time.Now()
	res, err := o.SearchRecipes(context.Background(), "salad", 5)
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, []string{"tavily(failed)", "fallback"}, res.Provenance.SourcesTried)
	assert.Equal(t, "Fresh Garden Salad", res.Recipes[0].Title)
	assert.Equal(t, 1, tracker.Status("tavily").ConsecutiveFailures)
}

func TestSearchRecipes_Cancelled(t *testing.T) {
	slow := &fakeSearcher{name: "tavily", delay: time.Second}
	tracker := health.NewTracker(CapabilityRecipeSearch, health.Options{})
	o := New(searchers(slow), nil, tracker, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := o.SearchRecipes(ctx, "chicken", 5)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, tracker.Status("tavily").ConsecutiveFailures)
}

func TestSearchRecipes_CapsResults(t *testing.T) {
	p := &fakeSearcher{name: "themealdb", recipes: recipes("a", "b", "c", "d")}
	o := New(searchers(p), nil, nil, nil, Options{})

	res, err := o.SearchRecipes(context.Background(), "anything", 2)
	require.NoError(t, err)
	assert.Len(t, res.Recipes, 2)

	res, err = o.SearchRecipes(context.Background(), "chicken soup", 1)
	require.NoError(t, err)
	assert.Len(t, res.Recipes, 1)
}

func TestSearchRecipes_Cache(t *testing.T) {
	p := &fakeSearcher{name: "themealdb", recipes: recipes("Cached Chicken")}
	cache := &mapCache{data: map[string]recipeassistant.SearchResult{}}
	o := New(searchers(p), nil, nil, nil, Options{Cache: cache})

	first, err := o.SearchRecipes(context.Background(), "Chicken", 5)
	require.NoError(t, err)
	second, err := o.SearchRecipes(context.Background(), "  chicken ", 5)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), p.calls.Load())

	down := &fakeSearcher{name: "themealdb", err: errDown}
	cache = &mapCache{data: map[string]recipeassistant.SearchResult{}}
	o = New(searchers(down), nil, nil, nil, Options{Cache: cache})
	_, err = o.SearchRecipes(context.Background(), "chicken", 5)
	require.NoError(t, err)
	assert.Empty(t, cache.data, "fallback answers are not cached")
}

func TestNutrition(t *testing.T) {
	ingredients := []string{"chicken breast", "rice", "olive oil"}
	usdaReading := recipeassistant.NutritionRecord{Calories: 520, Protein: 40, Carbs: 45, Fat: 16}
	fsReading := recipeassistant.NutritionRecord{Calories: 480, Protein: 44, Carbs: 40, Fat: 18, Fiber: 2}

	tests := []struct {
		name          string
		providers     []*fakeSource
		consensus     bool
		wantNutrition recipeassistant.NutritionRecord
		wantTried     []string
		wantEstimated bool
		wantFallback  bool
	}{
		{
			name:          "first provider wins",
			providers:     []*fakeSource{{name: "usda", rec: usdaReading}, {name: "fatsecret", rec: fsReading}},
			wantNutrition: usdaReading,
			wantTried:     []string{"usda"},
		},
		{
			name:          "zero reading moves on",
			providers:     []*fakeSource{{name: "usda"}, {name: "fatsecret", rec: fsReading}},
			wantNutrition: fsReading,
			wantTried:     []string{"usda(empty)", "fatsecret"},
			wantFallback:  true,
		},
		{
			name:          "all fail estimates",
			providers:     []*fakeSource{{name: "usda", err: errDown}, {name: "fatsecret", err: errDown}},
			wantNutrition: nutrition.Estimate(ingredients),
			wantTried:     []string{"usda(failed)", "fatsecret(failed)", "estimated"},
			wantEstimated: true,
			wantFallback:  true,
		},
		{
			name:          "consensus merges every provider",
			providers:     []*fakeSource{{name: "usda", rec: usdaReading}, {name: "fatsecret", rec: fsReading}},
			consensus:     true,
			wantNutrition: recipeassistant.NutritionRecord{Calories: 520, Protein: 44, Carbs: 45, Fat: 18, Fiber: 2},
			wantTried:     []string{"usda", "fatsecret"},
			wantFallback:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := New(nil, sources(tt.providers...), nil, nil, Options{})

			var (
				res recipeassistant.NutritionResult
				err error
			)
			if tt.consensus {
				res, err = o.NutritionConsensus(context.Background(), ingredients)
			} else {
				res, err = o.Nutrition(context.Background(), ingredients)
			}
			require.NoError(t, err)

			assert.Equal(t, tt.wantNutrition, res.Nutrition)
			assert.Equal(t, tt.wantTried, res.Provenance.SourcesTried)
			assert.Equal(t, tt.wantEstimated, res.Estimated)
			assert.Equal(t, tt.wantFallback, res.Provenance.FallbackUsed)
		})
	}
}

func TestNutrition_NoIngredients(t *testing.T) {
	src := &fakeSource{name: "usda", rec: recipeassistant.NutritionRecord{Calories: 1}}
	o := New(nil, sources(src), nil, nil, Options{})

	res, err := o.Nutrition(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.Estimated)
	assert.True(t, res.Nutrition.IsZero())
	assert.Equal(t, int32(0), src.calls.Load())
}

func TestStatusAndReset(t *testing.T) {
	bad := &fakeSearcher{name: "themealdb", err: errDown}
	usda := &fakeSource{name: "usda", rec: recipeassistant.NutritionRecord{Calories: 10}}
	o := New(searchers(bad), sources(usda), nil, nil, Options{})

	for range 3 {
		_, err := o.SearchRecipes(context.Background(), "x", 1)
		require.NoError(t, err)
	}

	status := o.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "themealdb", status[0].Provider)
	assert.False(t, status[0].Available)
	assert.Equal(t, "usda", status[1].Provider)
	assert.True(t, status[1].Available)

	require.NoError(t, o.Reset(CapabilityRecipeSearch, "themealdb"))
	assert.True(t, o.Status()[0].Available)
	assert.ErrorIs(t, o.Reset("weather", "themealdb"), ErrUnknownCapability)

	assert.ErrorIs(t, o.Reset(CapabilityRecipeSearch, "bogus"), health.ErrUnknownProvider)
	assert.ErrorIs(t, o.Reset(CapabilityNutrition, "themealdb"), health.ErrUnknownProvider)
	assert.Len(t, o.Status(), 2)
}
