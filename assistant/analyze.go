package assistant

import (
	"context"
	"log/slog"

	"recipeassistant"
	"recipeassistant/scoring"
)

type Analysis struct {
	Title               string                          `json:"title"`
	Servings            int                             `json:"servings"`
	Nutrition           recipeassistant.NutritionRecord `json:"nutrition"`
	NutritionProvenance *recipeassistant.Provenance     `json:"nutrition_provenance,omitempty"`
	Estimated           bool                            `json:"estimated"`
	Health              recipeassistant.HealthAnalysis  `json:"health_analysis"`
	Enhancements        []string                        `json:"enhancements,omitempty"`
}

// AnalyzeRecipe scores a recipe. Recipes without calorie data get a nutrition
// lookup over their ingredients first.
func (s *Service) AnalyzeRecipe(ctx context.Context, r recipeassistant.RecipeRecord, consensus bool) (Analysis, error) {
	ctx, span := s.tracer.Start(ctx, "Assistant.AnalyzeRecipe")
	defer span.End()

	out := Analysis{Title: r.Title, Servings: max(r.Servings, 1)}
	if r.Nutrition != nil {
		out.Nutrition = *r.Nutrition
	}

	if out.Nutrition.Calories <= 0 && len(r.Ingredients) > 0 {
		res, err := s.Nutrition(ctx, r.Ingredients, consensus)
		if err != nil {
			return Analysis{}, err
		}
		out.Nutrition = res.Nutrition
		out.Estimated = res.Estimated
		prov := res.Provenance
		out.NutritionProvenance = &prov
		slog.Info("ASSISTANT: Nutrition looked up for analysis", "title", r.Title, "sources_tried", prov.SourcesTried)
	}

	out.Health = scoring.Score(out.Nutrition, r.Servings, r.Category)
	out.Health.Insights = scoring.Insights(out.Health)
	out.Enhancements = scoring.Enhance(out.Health)
	return out, nil
}
