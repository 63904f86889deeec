package recipeassistant

import (
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

type ModelConfig struct {
	ModelID     string  `env:"MODEL_ID,required"`
	MaxTokens   int32   `env:"MAX_TOKENS,default=1024"`
	Temperature float32 `env:"TEMPERATURE,default=0.2"`
	TopP        float32 `env:"TOP_P,default=0.9"`
}

type AssistantConfig struct {
	LLMBackend          string        `env:"LLM_BACKEND,default=ollama"`
	BaseOllamaEndpoint  string        `env:"BASE_OLLAMA_ENDPOINT,default=http://localhost:11434"`
	MaxResponseChars    int           `env:"LLM_MAX_CHARS,default=2500"`
	ChunkSize           int           `env:"STREAM_CHUNK_SIZE,default=200"`
	HistoryLimit        int           `env:"HISTORY_LIMIT,default=10"`
	DirectHistoryLimit  int           `env:"DIRECT_HISTORY_LIMIT,default=12"`
	SearchPromptResults int           `env:"SEARCH_PROMPT_RESULTS,default=5"`
	SearchMaxResults    int           `env:"SEARCH_MAX_RESULTS,default=8"`
	ProviderTimeout     time.Duration `env:"PROVIDER_TIMEOUT,default=10s"`
	FailureThreshold    int           `env:"PROVIDER_FAILURE_THRESHOLD,default=3"`
	RecoveryCooldown    time.Duration `env:"PROVIDER_RECOVERY_COOLDOWN,default=0s"`
	StorePath           string        `env:"STORE_PATH,default=assistant.db"`
	TurnLogPath         string        `env:"TURN_LOG_PATH"`
	SlackWebhookURL     string        `env:"SLACK_WEBHOOK_URL"`
	SlackChannel        string        `env:"SLACK_CHANNEL,default=#recipe-assistant"`
}

// envdecode splits tags on commas, so list defaults live here instead.
const (
	DefaultSearchPriority    = "tavily,themealdb,spoonacular"
	DefaultNutritionPriority = "usda,fatsecret"
)

// ProviderConfig holds provider credentials. A provider whose credentials are
// missing is left out of the priority list.
type ProviderConfig struct {
	TavilyAPIKey          string `env:"TAVILY_API_KEY"`
	SpoonacularAPIKey     string `env:"SPOONACULAR_API_KEY"`
	USDAAPIKey            string `env:"USDA_API_KEY,default=DEMO_KEY"`
	FatSecretClientID     string `env:"FATSECRET_CLIENT_ID"`
	FatSecretClientSecret string `env:"FATSECRET_CLIENT_SECRET"`
	TheMealDBBaseURL      string `env:"THEMEALDB_BASE_URL,default=https://www.themealdb.com/api/json/v1/1"`
	SearchPriority        string `env:"SEARCH_PROVIDERS"`
	NutritionPriority     string `env:"NUTRITION_PROVIDERS"`
}

// applyDefaults fills the priority lists left blank in the environment.
func (c *ProviderConfig) applyDefaults() {
	if strings.TrimSpace(c.SearchPriority) == "" {
		c.SearchPriority = DefaultSearchPriority
	}
	if strings.TrimSpace(c.NutritionPriority) == "" {
		c.NutritionPriority = DefaultNutritionPriority
	}
}

type CacheConfig struct {
	Backend  string        `env:"SEARCH_CACHE,default=memory"`
	Size     int           `env:"SEARCH_CACHE_SIZE,default=256"`
	TTL      time.Duration `env:"SEARCH_CACHE_TTL,default=1h"`
	RedisURL string        `env:"REDIS_URL,default=redis://localhost:6379/0"`
}

type CatalogConfig struct {
	Path     string `env:"FALLBACK_CATALOG_PATH"`
	S3Bucket string `env:"FALLBACK_CATALOG_S3_BUCKET"`
	S3Key    string `env:"FALLBACK_CATALOG_S3_KEY"`
}

type ServerConfig struct {
	Addr         string        `env:"SERVER_ADDR,default=:8080"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT,default=15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT,default=120s"`
	GinMode      string        `env:"GIN_MODE,default=release"`
}

// LoadEnv reads an optional .env file, then decodes each target from the environment.
func LoadEnv(targets ...any) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("SETUP: Failed to read .env", "error", err)
	}
	for _, t := range targets {
		// Optional-only structs such as CatalogConfig decode to nothing when unset.
		if err := envdecode.Decode(t); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
			return err
		}
		if d, ok := t.(interface{ applyDefaults() }); ok {
			d.applyDefaults()
		}
	}
	return nil
}
