// Package scoring turns a nutrition record into a 0-100 health score with
// recommendations. Everything here is pure and deterministic.
package scoring

import (
	"strings"

	"recipeassistant"
)

const (
	RecBalanced       = "Well-balanced macronutrients!"
	RecUnbalanced     = "Consider balancing protein, carbs, and fat"
	RecCaloriesOK     = "Appropriate calorie content"
	RecCaloriesLow    = "May need more calories for satiety"
	RecCaloriesHigh   = "High calorie meal - watch portions"
	RecAddVegetables  = "Consider balancing this meal with additional vegetables"
	RecAddProtein     = "Add protein-rich ingredients for better satiety"
	enhanceScoreBelow = 70
	enhanceProteinMin = 15
)

type categoryDefault struct {
	keywords []string
	calories float64
	carbs    float64
	fat      float64
}

var (
	categoryDefaults = []categoryDefault{
		{keywords: []string{"dessert", "cake", "cookie"}, calories: 400, carbs: 60, fat: 20},
		{keywords: []string{"salad", "soup"}, calories: 250, carbs: 20, fat: 10},
	}
	otherDefault = categoryDefault{calories: 350, carbs: 30, fat: 15}
)

// Score computes the per-serving health analysis of a whole-recipe nutrition
// record. When the record has no calories the category default is used.
//
// The balance score tops out at 75 and the calorie score at 25.
func Score(n recipeassistant.NutritionRecord, servings int, category string) recipeassistant.HealthAnalysis {
	div := float64(max(servings, 1))
	a := recipeassistant.HealthAnalysis{
		CaloriesPerServing: n.Calories / div,
		ProteinPerServing:  n.Protein / div,
		CarbsPerServing:    n.Carbs / div,
		FatPerServing:      n.Fat / div,
	}

	if a.CaloriesPerServing <= 0 {
		d := defaultFor(category)
		a.CaloriesPerServing = d.calories
		a.CarbsPerServing = d.carbs
		a.FatPerServing = d.fat
	}

	a.BalanceScore = balanceScore(a)
	a.CalorieScore = calorieScore(a.CaloriesPerServing)
	a.HealthScore = a.BalanceScore + a.CalorieScore
	a.Recommendations = recommendations(a)
	return a
}

func defaultFor(category string) categoryDefault {
	c := strings.ToLower(category)
	for _, d := range categoryDefaults {
		for _, k := range d.keywords {
			if strings.Contains(c, k) {
				return d
			}
		}
	}
	return otherDefault
}

// MacroPercentages returns the share of calories from protein, carbs and fat, in percent.
func MacroPercentages(a recipeassistant.HealthAnalysis) (protein, carbs, fat float64) {
	cal := a.CaloriesPerServing
	if cal <= 0 {
		return 0, 0, 0
	}
	return a.ProteinPerServing * 4 / cal * 100,
		a.CarbsPerServing * 4 / cal * 100,
		a.FatPerServing * 9 / cal * 100
}

func balanceScore(a recipeassistant.HealthAnalysis) int {
	protein, carbs, fat := MacroPercentages(a)
	score := 0
	if protein >= 10 && protein <= 30 {
		score += 25
	}
	if carbs <= 65 {
		score += 25
	}
	if fat <= 35 {
		score += 25
	}
	return score
}

func calorieScore(cal float64) int {
	switch {
	case cal >= 200 && cal <= 600:
		return 25
	case cal < 200:
		return 15
	case cal > 800:
		return 10
	default:
		return 20
	}
}

func recommendations(a recipeassistant.HealthAnalysis) []string {
	recs := make([]string, 0, 2)
	if a.BalanceScore >= 50 {
		recs = append(recs, RecBalanced)
	} else {
		recs = append(recs, RecUnbalanced)
	}

	switch {
	case a.CalorieScore >= 20:
		recs = append(recs, RecCaloriesOK)
	case a.CaloriesPerServing < 200:
		recs = append(recs, RecCaloriesLow)
	default:
		recs = append(recs, RecCaloriesHigh)
	}
	return recs
}

// Enhance returns the follow-up suggestions shown alongside an analysis.
func Enhance(a recipeassistant.HealthAnalysis) []string {
	var out []string
	if a.HealthScore < enhanceScoreBelow {
		out = append(out, RecAddVegetables)
	}
	if a.ProteinPerServing < enhanceProteinMin {
		out = append(out, RecAddProtein)
	}
	return out
}
