package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipeassistant"
	"recipeassistant/assistant"
	"recipeassistant/health"
	"recipeassistant/llm/mock"
	"recipeassistant/orchestrator"
	"recipeassistant/pipeline"
	"recipeassistant/provider"
	"recipeassistant/store"
	"recipeassistant/tools"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubSearcher struct{}

func (stubSearcher) Name() string { return provider.TheMealDBName }
func (stubSearcher) Search(context.Context, string, int) ([]recipeassistant.RecipeRecord, error) {
	return []recipeassistant.RecipeRecord{{Title: "Chicken Tikka", URL: "https://example.com/tikka", Servings: 4}}, nil
}

type failingSource struct{}

func (failingSource) Name() string { return provider.USDAName }
func (failingSource) Nutrition(context.Context, []string) (recipeassistant.NutritionRecord, error) {
	return recipeassistant.NutritionRecord{}, errors.New("usda down")
}

type fixture struct {
	srv   *Server
	store *store.Memory
	llm   *mock.LLMClient
	reg   *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	llm := mock.NewLLMClient()
	orch := orchestrator.New(
		[]provider.RecipeSearcher{stubSearcher{}},
		[]provider.NutritionSource{failingSource{}},
		nil,
		health.NewTracker(orchestrator.CapabilityNutrition, health.Options{FailureThreshold: 1}),
		orchestrator.Options{},
	)
	p := pipeline.New(orch, llm, pipeline.Options{})
	svc := assistant.New(st, p, orch, assistant.Options{Profiles: st})

	reg := prometheus.NewRegistry()
	srv := New(svc, st, tools.NewRegistry(svc), Options{
		Gatherer:  reg,
		Excluded:  map[string]string{provider.TavilyName: "missing API key"},
		ChunkSize: 100,
	})
	return &fixture{srv: srv, store: st, llm: llm, reg: reg}
}

func (f *fixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *fixture) session(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decode[map[string]string](t, rec)["session_id"]
	require.NotEmpty(t, id)
	return id
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestChat(t *testing.T) {
	f := newFixture(t)
	sid := f.session(t)

	rec := f.do(t, http.MethodPost, "/api/chat", map[string]any{
		"session_id": sid,
		"message":    "latest high-protein chicken recipes",
		"context":    map[string]any{"diet": "low-carb"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode[assistant.ChatResponse](t, rec)
	assert.Equal(t, pipeline.RouteSearch, resp.Route, "use_graph defaults to true")
	assert.True(t, resp.NeedsSearch)
	assert.Contains(t, resp.Reply, "Tailored for a low-carb diet.")
	assert.Contains(t, resp.Reply, "Drawing on recent findings.")
	assert.LessOrEqual(t, len([]rune(resp.Reply)), pipeline.DefaultMaxChars+len([]rune(pipeline.TrimSuffix)))

	rec = f.do(t, http.MethodGet, "/api/chat/history?session_id="+sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]recipeassistant.Message](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, recipeassistant.RoleUser, history[0].Role)
	assert.Equal(t, resp.Reply, history[1].Content)
}

func TestChat_Errors(t *testing.T) {
	f := newFixture(t)
	sid := f.session(t)

	tests := []struct {
		name string
		body any
		want int
	}{
		{name: "missing session", body: map[string]any{"message": "hi"}, want: http.StatusBadRequest},
		{name: "blank message", body: map[string]any{"session_id": sid, "message": "  "}, want: http.StatusBadRequest},
		{name: "unknown session", body: map[string]any{"session_id": "nope", "message": "hi"}, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/chat", tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	t.Run("generation failure", func(t *testing.T) {
		f.llm.Err = errors.New("model offline")
		defer func() { f.llm.Err = nil }()

		rec := f.do(t, http.MethodPost, "/api/chat", map[string]any{"session_id": sid, "message": "hi", "use_graph": false})
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		history, err := f.store.LoadHistory(context.Background(), sid)
		require.NoError(t, err)
		assert.Empty(t, history)
	})
}

type sseEvent struct {
	name string
	data string
}

func parseSSE(body string) []sseEvent {
	var events []sseEvent
	for _, block := range strings.Split(body, "\n\n") {
		if block == "" {
			continue
		}
		var ev sseEvent
		var data []string
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event:"):
				ev.name = strings.TrimPrefix(line, "event:")
			case strings.HasPrefix(line, "data:"):
				data = append(data, strings.TrimPrefix(line, "data:"))
			}
		}
		ev.data = strings.Join(data, "\n")
		events = append(events, ev)
	}
	return events
}

func TestChatStream(t *testing.T) {
	f := newFixture(t)
	sid := f.session(t)

	q := url.Values{
		"session_id": {sid},
		"message":    {"a quick salad"},
		"use_graph":  {"false"},
		"context":    {`{"diet":"vegan"}`},
	}
	rec := f.do(t, http.MethodGet, "/api/chat/stream?"+q.Encode(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/event-stream")

	events := parseSSE(rec.Body.String())
	require.GreaterOrEqual(t, len(events), 2)

	last := events[len(events)-1]
	assert.Equal(t, sseEvent{name: "end", data: "done"}, last)

	var reply strings.Builder
	for _, ev := range events[:len(events)-1] {
		assert.Equal(t, "message", ev.name)
		assert.LessOrEqual(t, len([]rune(ev.data)), 100)
		reply.WriteString(ev.data)
	}

	history, err := f.store.LoadHistory(context.Background(), sid)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, history[1].Content, reply.String())
	assert.Contains(t, reply.String(), "Tailored for a vegan diet.")
}

func TestChatStream_MissingParams(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/chat/stream?message=hi", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Missing session_id or message")
}

func TestProfile(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"diet":"","allergens":"","goals":""}`, rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/profile", recipeassistant.Profile{Diet: "keto", Goals: "lose weight"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/profile", nil)
	assert.Equal(t, recipeassistant.Profile{Diet: "keto", Goals: "lose weight"}, decode[recipeassistant.Profile](t, rec))
}

func TestSearchRecipes(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/recipes/search", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/recipes/search?q=chicken&diet=keto&max=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[recipeassistant.SearchResult](t, rec)
	require.Len(t, res.Recipes, 1)
	assert.Equal(t, "Chicken Tikka", res.Recipes[0].Title)
	assert.Equal(t, []string{provider.TheMealDBName}, res.Provenance.SourcesTried)
	assert.False(t, res.Provenance.FallbackUsed)
}

func TestNutritionAndAnalyze(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/nutrition", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/nutrition", map[string]any{"ingredients": []string{"200g chicken breast"}})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[recipeassistant.NutritionResult](t, rec)
	assert.True(t, res.Estimated)
	assert.True(t, res.Provenance.FallbackUsed)

	rec = f.do(t, http.MethodPost, "/api/recipes/analyze", map[string]any{
		"recipe": recipeassistant.RecipeRecord{
			Title:     "Chicken Rice",
			Servings:  2,
			Nutrition: &recipeassistant.NutritionRecord{Calories: 900, Protein: 60, Carbs: 90, Fat: 25},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	a := decode[assistant.Analysis](t, rec)
	assert.Equal(t, 450.0, a.Health.CaloriesPerServing)
	assert.Equal(t, 100, a.Health.HealthScore)

	rec = f.do(t, http.MethodPost, "/api/recipes/analyze", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTools(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/tools", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}](t, rec)
	require.Len(t, list.Tools, 4)
	assert.Equal(t, "nutrition_get", list.Tools[0].Name)

	rec = f.do(t, http.MethodPost, "/api/tools/recipe_search", map[string]any{"query": "tikka"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "Chicken Tikka")

	rec = f.do(t, http.MethodPost, "/api/tools/recipe_search", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/tools/meal_plan", map[string]any{})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProviders(t *testing.T) {
	f := newFixture(t)

	// One failure trips usda with a threshold of 1.
	rec := f.do(t, http.MethodPost, "/api/nutrition", map[string]any{"ingredients": []string{"rice"}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/providers/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[struct {
		Providers []health.Status   `json:"providers"`
		Excluded  map[string]string `json:"excluded"`
	}](t, rec)
	assert.Equal(t, "missing API key", status.Excluded[provider.TavilyName])

	var usda *health.Status
	for i := range status.Providers {
		if status.Providers[i].Provider == provider.USDAName {
			usda = &status.Providers[i]
		}
	}
	require.NotNil(t, usda)
	assert.False(t, usda.Available)

	rec = f.do(t, http.MethodPost, "/api/providers/nutrition/usda/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/providers/bogus/usda/reset", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/providers/recipe_search/phantom/reset", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/providers/status", nil)
	assert.NotContains(t, rec.Body.String(), "phantom")
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "recipe_assistant_test_total", Help: "test counter"})
	f.reg.MustRegister(c)
	c.Inc()

	rec := f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "recipe_assistant_test_total 1")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{assistant.ErrEmptyMessage, http.StatusBadRequest},
		{store.ErrSessionNotFound, http.StatusNotFound},
		{fmt.Errorf("reset: %w", health.ErrUnknownProvider), http.StatusNotFound},
		{recipeassistant.ErrGenerationFailed, http.StatusBadGateway},
		{recipeassistant.ErrStorageUnavailable, http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
