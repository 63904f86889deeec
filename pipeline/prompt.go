package pipeline

import (
	"fmt"
	"strings"

	"recipeassistant"
)

const (
	searchInstructions = "You are a helpful health-focused cooking assistant. Personalize suggestions for wellness, " +
		"clear nutrition, and practical, quick steps. When relevant, provide ingredient substitutions, " +
		"prep tips, and portion guidance. Keep sodium and added sugars in check if the user indicates.\n\n" +
		"Provide a concise, actionable response with step-by-step guidance when appropriate. Cite links if used."

	directInstructions = "You are a helpful nutrition-aware cooking assistant. Prefer healthier substitutions, " +
		"and structure recipes as ingredients then numbered steps. If a user health profile or selected " +
		"recipe context is provided, use it."
)

// Compose builds the LLM request for a turn. The full path always carries the
// profile block; the direct path only when a profile is set.
func Compose(s TurnState, direct bool, historyLimit, promptResults int) recipeassistant.CompletionRequest {
	instructions := searchInstructions
	var blocks []string

	if direct {
		instructions = directInstructions
		if s.UserContext.HasProfile() {
			blocks = append(blocks, profileSnippet(s.UserContext))
		}
	} else {
		blocks = append(blocks, profileSnippet(s.UserContext))
	}

	if sr := s.UserContext.SelectedRecipe; sr != nil {
		blocks = append(blocks, selectedRecipeSnippet(*sr))
	}
	if snip := searchSnippet(s.SearchResults, promptResults); snip != "" {
		blocks = append(blocks, snip)
	}

	return recipeassistant.CompletionRequest{
		SystemInstructions: instructions,
		History:            lastN(s.History, historyLimit),
		UserMessage:        s.Query,
		ExtraContext:       strings.Join(blocks, "\n\n"),
	}
}

func profileSnippet(uc recipeassistant.UserContext) string {
	return fmt.Sprintf("User health profile:\nDiet: %s\nAllergens: %s\nGoals: %s",
		uc.Diet, uc.Allergens, uc.Goals)
}

func selectedRecipeSnippet(sr recipeassistant.SelectedRecipe) string {
	return fmt.Sprintf("Selected recipe context (from UI):\nTitle: %s\nIngredients: %s\nSummary: %s",
		sr.Title, strings.Join(sr.Ingredients, ", "), sr.Summary)
}

func searchSnippet(results []recipeassistant.RecipeRecord, limit int) string {
	if len(results) == 0 {
		return ""
	}
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	var b strings.Builder
	b.WriteString("Recent findings (web):")
	for _, r := range results {
		title := r.Title
		if title == "" {
			title = "Result"
		}
		snippet := r.Summary
		if snippet == "" {
			snippet = strings.Join(r.Ingredients, ", ")
		}
		fmt.Fprintf(&b, "\n- %s: %s\n  %s", title, snippet, r.URL)
	}
	return b.String()
}
