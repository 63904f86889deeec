package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"recipeassistant"
	"recipeassistant/assistant"
	"recipeassistant/health"
)

type Tool interface {
	Name() string
	Title() string
	Description() string
	InputSchema() *jsonschema.Schema
	OutputSchema() *jsonschema.Schema
	Run(ctx context.Context, input map[string]any) (output map[string]any, err error)
}

type Call struct {
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// Backend is the capability set the tools expose. *assistant.Service
// implements it.
type Backend interface {
	Search(ctx context.Context, query string, maxResults int) (recipeassistant.SearchResult, error)
	Nutrition(ctx context.Context, ingredients []string, consensus bool) (recipeassistant.NutritionResult, error)
	AnalyzeRecipe(ctx context.Context, r recipeassistant.RecipeRecord, consensus bool) (assistant.Analysis, error)
	Status() []health.Status
}

// toMap converts a result struct to the generic tool output shape.
func toMap(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool output: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("decode tool output: %w", err)
	}
	return out, nil
}

func stringArg(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}

func intArg(input map[string]any, key string, def int) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func boolArg(input map[string]any, key string) bool {
	b, _ := input[key].(bool)
	return b
}

func stringsArg(input map[string]any, key string) []string {
	switch v := input[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, _ := x.(string); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
