package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"

	"recipeassistant"
)

type RecipeSearch struct{ backend Backend }

func NewRecipeSearch(b Backend) *RecipeSearch { return &RecipeSearch{backend: b} }

func (t *RecipeSearch) Name() string  { return "recipe_search" }
func (t *RecipeSearch) Title() string { return "Search Recipes" }
func (t *RecipeSearch) Description() string {
	return "Searches recipe providers in priority order and falls back to a built-in table. Results carry provenance."
}

func (t *RecipeSearch) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"query":       {Type: "string"},
			"max_results": {Type: "integer"},
		},
		Required: []string{"query"},
	}
}

func (t *RecipeSearch) OutputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"recipes":    {Type: "array", Items: &jsonschema.Schema{Type: "object"}},
			"provenance": {Type: "object"},
		},
		Required: []string{"recipes", "provenance"},
	}
}

func (t *RecipeSearch) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	query := strings.TrimSpace(stringArg(input, "query"))
	if query == "" {
		return nil, fmt.Errorf("%w: query is required", ErrInvalidInput)
	}
	res, err := t.backend.Search(ctx, query, intArg(input, "max_results", 5))
	if err != nil {
		return nil, err
	}
	return toMap(res)
}

type RecipeAnalyze struct{ backend Backend }

func NewRecipeAnalyze(b Backend) *RecipeAnalyze { return &RecipeAnalyze{backend: b} }

func (t *RecipeAnalyze) Name() string  { return "recipe_analyze" }
func (t *RecipeAnalyze) Title() string { return "Analyze Recipe Health" }
func (t *RecipeAnalyze) Description() string {
	return "Scores a recipe from 0 to 100 and returns recommendations. Missing nutrition is looked up from its ingredients."
}

func (t *RecipeAnalyze) InputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"recipe": {
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"title":       {Type: "string"},
					"ingredients": {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
					"servings":    {Type: "integer"},
					"category":    {Type: "string"},
					"nutrition":   {Type: "object"},
				},
			},
			"consensus": {Type: "boolean"},
		},
		Required: []string{"recipe"},
	}
}

func (t *RecipeAnalyze) OutputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"health_analysis": {Type: "object"},
			"nutrition":       {Type: "object"},
			"enhancements":    {Type: "array", Items: &jsonschema.Schema{Type: "string"}},
		},
		Required: []string{"health_analysis", "nutrition"},
	}
}

func (t *RecipeAnalyze) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	raw, ok := input["recipe"]
	if !ok {
		return nil, fmt.Errorf("%w: recipe is required", ErrInvalidInput)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: read recipe: %v", ErrInvalidInput, err)
	}
	var r recipeassistant.RecipeRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("%w: parse recipe: %v", ErrInvalidInput, err)
	}

	a, err := t.backend.AnalyzeRecipe(ctx, r, boolArg(input, "consensus"))
	if err != nil {
		return nil, err
	}
	return toMap(a)
}
