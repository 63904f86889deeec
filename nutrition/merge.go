// Package nutrition combines and estimates nutrient readings.
package nutrition

import "recipeassistant"

// Merge takes, per nutrient, the largest positive value reported by any
// provider. Nutrients nobody reported stay zero.
func Merge(readings map[string]recipeassistant.NutritionRecord) recipeassistant.NutritionRecord {
	var out recipeassistant.NutritionRecord
	for _, r := range readings {
		out.Calories = maxPositive(out.Calories, r.Calories)
		out.Protein = maxPositive(out.Protein, r.Protein)
		out.Carbs = maxPositive(out.Carbs, r.Carbs)
		out.Fat = maxPositive(out.Fat, r.Fat)
		out.Fiber = maxPositive(out.Fiber, r.Fiber)
	}
	return out
}

func maxPositive(cur, v float64) float64 {
	if v > 0 && v > cur {
		return v
	}
	return cur
}
