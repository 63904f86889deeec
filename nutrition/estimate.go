package nutrition

import (
	"strings"

	"recipeassistant"
)

// bucket is a keyword set with the fixed contribution of one matching ingredient.
type bucket struct {
	name     string
	keywords []string
	add      recipeassistant.NutritionRecord
}

// Buckets are tried in order; the first match claims the ingredient.
var buckets = []bucket{
	{
		name:     "protein",
		keywords: []string{"chicken", "beef", "fish", "egg", "tofu", "beans", "protein", "turkey", "pork"},
		add:      recipeassistant.NutritionRecord{Calories: 100, Protein: 15},
	},
	{
		name:     "high_carb",
		keywords: []string{"rice", "pasta", "bread", "potato", "flour", "sugar", "noodles", "quinoa"},
		add:      recipeassistant.NutritionRecord{Calories: 150, Carbs: 30},
	},
	{
		name:     "high_fat",
		keywords: []string{"oil", "butter", "cheese", "avocado", "nuts", "mayonnaise", "cream"},
		add:      recipeassistant.NutritionRecord{Calories: 120, Fat: 12},
	},
	{
		name:     "high_fiber",
		keywords: []string{"vegetables", "fruits", "whole grain", "beans", "broccoli", "spinach", "kale"},
		add:      recipeassistant.NutritionRecord{Calories: 50, Fiber: 8},
	},
	{
		name:     "low_cal",
		keywords: []string{"lettuce", "cucumber", "tomato", "celery", "broth", "water", "tea"},
		add:      recipeassistant.NutritionRecord{Calories: 25, Fiber: 3},
	},
}

var other = recipeassistant.NutritionRecord{Calories: 75, Carbs: 15}

// Estimate gives an order-of-magnitude nutrition guess from ingredient names
// alone. It is only meant for when every nutrition provider came back empty.
func Estimate(ingredients []string) recipeassistant.NutritionRecord {
	var out recipeassistant.NutritionRecord
	for _, ing := range ingredients {
		add := classify(strings.ToLower(ing))
		out.Calories += add.Calories
		out.Protein += add.Protein
		out.Carbs += add.Carbs
		out.Fat += add.Fat
		out.Fiber += add.Fiber
	}
	return out
}

// Bucket names the keyword bucket an ingredient falls into, or "other".
func Bucket(ingredient string) string {
	lower := strings.ToLower(ingredient)
	for _, b := range buckets {
		if matches(lower, b.keywords) {
			return b.name
		}
	}
	return "other"
}

func classify(lower string) recipeassistant.NutritionRecord {
	for _, b := range buckets {
		if matches(lower, b.keywords) {
			return b.add
		}
	}
	return other
}

func matches(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
