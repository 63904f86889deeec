package scoring

import "recipeassistant"

const (
	InsightLowCalorie  = "Low-calorie option"
	InsightHighCalorie = "High-calorie meal"
	InsightLowProtein  = "Low in protein"
	InsightHighProtein = "High in protein"
	InsightBalanced    = "Balanced macronutrient ratio"
)

// Insights lists short observations about a scored recipe.
func Insights(a recipeassistant.HealthAnalysis) []string {
	var out []string

	switch {
	case a.CaloriesPerServing < 300:
		out = append(out, InsightLowCalorie)
	case a.CaloriesPerServing > 800:
		out = append(out, InsightHighCalorie)
	}

	switch {
	case a.ProteinPerServing < 15:
		out = append(out, InsightLowProtein)
	case a.ProteinPerServing > 30:
		out = append(out, InsightHighProtein)
	}

	protein, carbs, fat := MacroPercentages(a)
	if protein >= 15 && protein <= 25 && carbs <= 50 && fat <= 30 {
		out = append(out, InsightBalanced)
	}
	return out
}
