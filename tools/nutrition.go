package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
)

type NutritionGet struct{ backend Backend }

func NewNutritionGet(b Backend) *NutritionGet { return &NutritionGet{backend: b} }

func (t *NutritionGet) Name() string  { return "nutrition_get" }
func (t *NutritionGet) Title() string { return "Get Nutrition" }
func (t *NutritionGet) Description() string {
	return "Gets total nutrition for an ingredient list. Set consensus to merge every provider's reading."
}

func (t *NutritionGet) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"ingredients": {
				Type:  "array",
				Items: &jsonschema.Schema{Type: "string"},
			},
			"consensus": {Type: "boolean"},
		},
		Required: []string{"ingredients"},
	}
}

func (t *NutritionGet) OutputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"nutrition":  {Type: "object"},
			"provenance": {Type: "object"},
			"estimated":  {Type: "boolean"},
		},
		Required: []string{"nutrition", "provenance", "estimated"},
	}
}

func (t *NutritionGet) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	ingredients := stringsArg(input, "ingredients")
	if len(ingredients) == 0 {
		return nil, fmt.Errorf("%w: ingredients are required", ErrInvalidInput)
	}
	res, err := t.backend.Nutrition(ctx, ingredients, boolArg(input, "consensus"))
	if err != nil {
		return nil, err
	}
	return toMap(res)
}

type ProviderStatus struct{ backend Backend }

func NewProviderStatus(b Backend) *ProviderStatus { return &ProviderStatus{backend: b} }

func (t *ProviderStatus) Name() string  { return "provider_status" }
func (t *ProviderStatus) Title() string { return "Provider Status" }
func (t *ProviderStatus) Description() string {
	return "Lists every data provider with its availability and consecutive failure count."
}

func (t *ProviderStatus) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object"}
}

func (t *ProviderStatus) OutputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"providers": {Type: "array", Items: &jsonschema.Schema{Type: "object"}},
		},
		Required: []string{"providers"},
	}
}

func (t *ProviderStatus) Run(ctx context.Context, _ map[string]any) (map[string]any, error) {
	return toMap(map[string]any{"providers": t.backend.Status()})
}
