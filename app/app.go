// Package app assembles the assistant from configuration. The HTTP server,
// chat CLI and Lambda entrypoints all start here.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"

	"recipeassistant"
	"recipeassistant/assistant"
	"recipeassistant/cache"
	"recipeassistant/catalog"
	"recipeassistant/health"
	"recipeassistant/llm/bedrock"
	"recipeassistant/llm/mock"
	"recipeassistant/llm/ollama"
	"recipeassistant/orchestrator"
	"recipeassistant/pipeline"
	"recipeassistant/provider"
	"recipeassistant/slack"
	"recipeassistant/store"
	"recipeassistant/tools"
)

const (
	BackendOllama  = "ollama"
	BackendBedrock = "bedrock"
	BackendMock    = "mock"

	// MemoryStorePath keeps sessions in process instead of SQLite.
	MemoryStorePath = ":memory:"

	slackTimeout = 5 * time.Second
)

type Config struct {
	Model     recipeassistant.ModelConfig
	Assistant recipeassistant.AssistantConfig
	Providers recipeassistant.ProviderConfig
	Cache     recipeassistant.CacheConfig
	Catalog   recipeassistant.CatalogConfig
}

// LoadConfig decodes every config section from the environment. The model
// section is only required when a real LLM backend is selected.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := recipeassistant.LoadEnv(&cfg.Assistant, &cfg.Providers, &cfg.Cache, &cfg.Catalog); err != nil {
		return Config{}, err
	}
	if cfg.Assistant.LLMBackend != BackendMock {
		if err := recipeassistant.LoadEnv(&cfg.Model); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// Options override collaborators that would otherwise be built from Config.
type Options struct {
	LLM        recipeassistant.Completer
	Store      store.Store
	TurnLogger recipeassistant.TurnLogger
	Notifier   recipeassistant.Notifier
	HTTPClient *http.Client
}

type App struct {
	Config       Config
	Store        store.Store
	Providers    *provider.Registry
	Orchestrator *orchestrator.Orchestrator
	Pipeline     *pipeline.Pipeline
	Assistant    *assistant.Service
	Tools        *tools.Registry
}

func New(ctx context.Context, cfg Config, opts Options) (*App, error) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: cfg.Assistant.ProviderTimeout}
	}

	llm := opts.LLM
	if llm == nil {
		var err error
		// Generation can outlast the provider timeout, so the LLM gets its own client.
		if llm, err = NewLLM(ctx, cfg, http.DefaultClient); err != nil {
			return nil, err
		}
	}

	st := opts.Store
	if st == nil {
		var err error
		if st, err = openStore(ctx, cfg.Assistant.StorePath); err != nil {
			return nil, err
		}
	}

	cat, err := loadCatalog(ctx, cfg.Catalog)
	if err != nil {
		return nil, errors.Join(err, st.Close())
	}

	searchCache, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return nil, errors.Join(err, st.Close())
	}

	notifier := opts.Notifier
	if notifier == nil && cfg.Assistant.SlackWebhookURL != "" {
		notifier = slack.NewClient(cfg.Assistant.SlackWebhookURL, opts.HTTPClient)
	}
	healthOpts := health.Options{
		FailureThreshold: cfg.Assistant.FailureThreshold,
		Cooldown:         cfg.Assistant.RecoveryCooldown,
	}
	if notifier != nil {
		healthOpts.OnTrip = slack.TripAlerts(notifier, cfg.Assistant.SlackChannel, slackTimeout)
	}

	reg := provider.NewRegistry(cfg.Providers, opts.HTTPClient)
	orch := orchestrator.New(
		reg.Search,
		reg.Nutrition,
		health.NewTracker(orchestrator.CapabilityRecipeSearch, healthOpts),
		health.NewTracker(orchestrator.CapabilityNutrition, healthOpts),
		orchestrator.Options{
			Timeout: cfg.Assistant.ProviderTimeout,
			Catalog: cat,
			Cache:   searchCache,
			Metrics: orchestrator.NewMetrics(otel.Meter(recipeassistant.MeterNameOrchestrator)),
		},
	)

	p := pipeline.New(orch, llm, pipeline.Options{
		MaxChars:           cfg.Assistant.MaxResponseChars,
		HistoryLimit:       cfg.Assistant.HistoryLimit,
		DirectHistoryLimit: cfg.Assistant.DirectHistoryLimit,
		PromptResults:      cfg.Assistant.SearchPromptResults,
		SearchMaxResults:   cfg.Assistant.SearchMaxResults,
		Logger:             opts.TurnLogger,
		Meter:              otel.Meter(recipeassistant.MeterNamePipeline),
	})

	svc := assistant.New(st, p, orch, assistant.Options{Profiles: st})

	slog.Info("SETUP: Assistant ready",
		"llm_backend", cfg.Assistant.LLMBackend,
		"search_providers", len(reg.Search),
		"nutrition_providers", len(reg.Nutrition),
		"cache", cfg.Cache.Backend,
	)

	return &App{
		Config:       cfg,
		Store:        st,
		Providers:    reg,
		Orchestrator: orch,
		Pipeline:     p,
		Assistant:    svc,
		Tools:        tools.NewRegistry(svc),
	}, nil
}

func (a *App) Close() error {
	return a.Store.Close()
}

// NewLLM builds the completer selected by cfg.Assistant.LLMBackend.
func NewLLM(ctx context.Context, cfg Config, hc recipeassistant.HTTPClient) (recipeassistant.Completer, error) {
	switch cfg.Assistant.LLMBackend {
	case BackendOllama, "":
		c, err := ollama.NewClient(ollama.ClientOpts{
			BaseEndpoint: cfg.Assistant.BaseOllamaEndpoint,
			ModelID:      cfg.Model.ModelID,
			Temperature:  float64(cfg.Model.Temperature),
			TopP:         float64(cfg.Model.TopP),
			MaxTokens:    int(cfg.Model.MaxTokens),
			HTTPClient:   hc,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case BackendBedrock:
		awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRetryMaxAttempts(5))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		return bedrock.NewLLMClient(bedrockruntime.NewFromConfig(awsCfg), bedrock.LLMOptions{
			ModelID:     cfg.Model.ModelID,
			MaxTokens:   cfg.Model.MaxTokens,
			Temperature: cfg.Model.Temperature,
			TopP:        cfg.Model.TopP,
		}), nil
	case BackendMock:
		return mock.NewLLMClient(), nil
	default:
		return nil, fmt.Errorf("unknown LLM backend %q", cfg.Assistant.LLMBackend)
	}
}

func openStore(ctx context.Context, path string) (store.Store, error) {
	if path == MemoryStorePath {
		slog.Info("SETUP: Using in-memory session store")
		return store.NewMemory(), nil
	}
	st, err := store.NewSQLite(ctx, path)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// loadCatalog returns nil when no catalog is configured, which selects the
// built-in table. S3 wins over a local file when both are set.
func loadCatalog(ctx context.Context, cfg recipeassistant.CatalogConfig) (*catalog.Catalog, error) {
	var src catalog.Source
	switch {
	case cfg.S3Bucket != "" && cfg.S3Key != "":
		awsCfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		src = catalog.NewS3Source(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Key)
	case cfg.Path != "":
		src = catalog.NewFileSource(cfg.Path)
	default:
		return nil, nil
	}

	cat, err := catalog.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	slog.Info("SETUP: Fallback catalog loaded", "entries", cat.Len())
	return cat, nil
}
