package catalog

import "recipeassistant"

const fallbackSource = "Fallback Recipe"

func nutrition(cal, protein, carbs, fat float64) *recipeassistant.NutritionRecord {
	return &recipeassistant.NutritionRecord{Calories: cal, Protein: protein, Carbs: carbs, Fat: fat}
}

var builtin = []Entry{
	{
		Keyword: "chicken",
		Recipe: recipeassistant.RecipeRecord{
			Title:          "Simple Grilled Chicken",
			Ingredients:    []string{"chicken breast", "olive oil", "salt", "pepper", "garlic powder"},
			Instructions:   "1. Season chicken with salt, pepper, and garlic powder.\n2. Brush with olive oil.\n3. Grill 6-7 minutes per side until cooked through.",
			Category:       "Main Course",
			Image:          "https://via.placeholder.com/300x200?text=Grilled+Chicken",
			Source:         fallbackSource,
			Servings:       2,
			ReadyInMinutes: 20,
			Nutrition:      nutrition(350, 30, 2, 15),
		},
	},
	{
		Keyword: "salad",
		Recipe: recipeassistant.RecipeRecord{
			Title:          "Fresh Garden Salad",
			Ingredients:    []string{"mixed greens", "cherry tomatoes", "cucumber", "red onion", "olive oil", "balsamic vinegar", "feta cheese"},
			Instructions:   "1. Wash and dry the greens.\n2. Slice tomatoes, cucumber, and onion.\n3. Toss with olive oil and balsamic vinegar, then top with feta.",
			Category:       "Salad",
			Image:          "https://via.placeholder.com/300x200?text=Garden+Salad",
			Source:         fallbackSource,
			Servings:       2,
			ReadyInMinutes: 10,
			Nutrition:      nutrition(180, 6, 12, 12),
		},
	},
	{
		Keyword: "pasta",
		Recipe: recipeassistant.RecipeRecord{
			Title:          "Simple Pasta Aglio e Olio",
			Ingredients:    []string{"spaghetti", "garlic", "olive oil", "red pepper flakes", "parsley", "parmesan cheese"},
			Instructions:   "1. Cook spaghetti until al dente.\n2. Gently fry sliced garlic and pepper flakes in olive oil.\n3. Toss pasta with the oil, parsley, and parmesan.",
			Category:       "Main Course",
			Image:          "https://via.placeholder.com/300x200?text=Pasta+Aglio+e+Olio",
			Source:         fallbackSource,
			Servings:       2,
			ReadyInMinutes: 15,
			Nutrition:      nutrition(450, 15, 65, 18),
		},
	},
	{
		Keyword: "quinoa",
		Recipe: recipeassistant.RecipeRecord{
			Title:          "Mediterranean Quinoa Bowl",
			Ingredients:    []string{"quinoa", "chickpeas", "feta cheese", "cherry tomatoes", "cucumber", "red onion", "olive oil", "lemon juice"},
			Instructions:   "1. Cook quinoa and let it cool slightly.\n2. Chop the vegetables.\n3. Combine with chickpeas and feta, dress with olive oil and lemon juice.",
			Category:       "Main Course",
			Image:          "https://via.placeholder.com/300x200?text=Quinoa+Bowl",
			Source:         fallbackSource,
			Servings:       2,
			ReadyInMinutes: 25,
			Nutrition:      nutrition(420, 18, 55, 16),
		},
	},
	{
		Keyword: "soup",
		Recipe: recipeassistant.RecipeRecord{
			Title:          "Chicken Vegetable Soup",
			Ingredients:    []string{"chicken breast", "carrots", "celery", "onion", "chicken broth", "garlic", "thyme", "bay leaf"},
			Instructions:   "1. Saute onion, carrots, celery, and garlic.\n2. Add broth, chicken, thyme, and bay leaf.\n3. Simmer 20 minutes, then shred the chicken.",
			Category:       "Soup",
			Image:          "https://via.placeholder.com/300x200?text=Chicken+Soup",
			Source:         fallbackSource,
			Servings:       4,
			ReadyInMinutes: 30,
			Nutrition:      nutrition(180, 22, 12, 4),
		},
	},
}

// Default returns the built-in fallback table.
func Default() *Catalog {
	c, _ := New(builtin)
	return c
}
