package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recipeassistant"
	"recipeassistant/assistant"
	"recipeassistant/llm/mock"
	"recipeassistant/provider"
)

func testConfig() Config {
	return Config{
		Assistant: recipeassistant.AssistantConfig{
			LLMBackend:       BackendMock,
			StorePath:        MemoryStorePath,
			ProviderTimeout:  time.Second,
			FailureThreshold: 1,
			SlackChannel:     "#alerts",
		},
		Cache: recipeassistant.CacheConfig{Backend: "none"},
	}
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
	posted   chan struct{}
}

func (r *recordingNotifier) PostMessage(_ context.Context, _ string, message string) error {
	r.mu.Lock()
	r.messages = append(r.messages, message)
	r.mu.Unlock()
	r.posted <- struct{}{}
	return nil
}

func TestNew_FallbackChat(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(), Options{})
	require.NoError(t, err)
	defer a.Close()

	assert.Empty(t, a.Providers.Search)
	assert.Len(t, a.Tools.GetTools(), 4)

	sid, err := a.Store.CreateSession(ctx)
	require.NoError(t, err)

	resp, err := a.Assistant.Chat(ctx, assistant.ChatRequest{SessionID: sid, Message: "latest pasta ideas", UseGraph: true})
	require.NoError(t, err)
	require.NotNil(t, resp.Provenance)
	assert.True(t, resp.Provenance.FallbackUsed)
	assert.Contains(t, resp.Reply, "Drawing on recent findings.")
}

func TestNew_CatalogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"keyword": "tofu", "recipe": {"title": "Crispy Tofu", "ingredients": ["tofu", "soy sauce"], "servings": 2}}
	]`), 0o644))

	cfg := testConfig()
	cfg.Catalog.Path = path
	a, err := New(context.Background(), cfg, Options{})
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Assistant.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	require.Len(t, res.Recipes, 1)
	assert.Equal(t, "Crispy Tofu", res.Recipes[0].Title)
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown llm backend", mutate: func(c *Config) { c.Assistant.LLMBackend = "gpt-banana" }},
		{name: "ollama without model", mutate: func(c *Config) { c.Assistant.LLMBackend = BackendOllama }},
		{name: "missing catalog file", mutate: func(c *Config) { c.Catalog.Path = filepath.Join(t.TempDir(), "nope.json") }},
		{name: "unknown cache backend", mutate: func(c *Config) { c.Cache.Backend = "memcached" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			_, err := New(context.Background(), cfg, Options{})
			assert.Error(t, err)
		})
	}
}

func TestNew_TripAlert(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Providers = recipeassistant.ProviderConfig{
		TheMealDBBaseURL: srv.URL,
		SearchPriority:   provider.TheMealDBName,
	}
	n := &recordingNotifier{posted: make(chan struct{}, 1)}
	a, err := New(context.Background(), cfg, Options{LLM: mock.NewLLMClient(), Notifier: n})
	require.NoError(t, err)
	defer a.Close()

	res, err := a.Assistant.Search(context.Background(), "chicken", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{provider.TheMealDBName + "(failed)", "fallback"}, res.Provenance.SourcesTried)

	select {
	case <-n.posted:
	case <-time.After(2 * time.Second):
		t.Fatal("no trip alert posted")
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	assert.Contains(t, n.messages[0], "*themealdb* marked unavailable")
}

func TestLoadConfig_Mock(t *testing.T) {
	t.Setenv("LLM_BACKEND", BackendMock)
	t.Setenv("STORE_PATH", MemoryStorePath)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendMock, cfg.Assistant.LLMBackend)
	assert.Equal(t, 2500, cfg.Assistant.MaxResponseChars)
	assert.Equal(t, 10*time.Second, cfg.Assistant.ProviderTimeout)
	assert.Equal(t, "tavily,themealdb,spoonacular", cfg.Providers.SearchPriority)
	assert.Equal(t, "usda,fatsecret", cfg.Providers.NutritionPriority)
	assert.Empty(t, cfg.Model.ModelID)
}
