package provider

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"recipeassistant"
)

const (
	SpoonacularName    = "spoonacular"
	SpoonacularBaseURL = "https://api.spoonacular.com"

	// The free tier is quota-bound per result, so never ask for more than three.
	spoonacularMaxNumber = 3
)

var htmlTag = regexp.MustCompile(`<[^>]*>`)

type Spoonacular struct {
	client *resty.Client
	apiKey string
}

func NewSpoonacular(opts Opts) (*Spoonacular, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", SpoonacularName, ErrNotConfigured)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = SpoonacularBaseURL
	}
	return &Spoonacular{
		client: newRestClient(opts.HTTPClient, opts.BaseURL),
		apiKey: opts.APIKey,
	}, nil
}

func (p *Spoonacular) Name() string { return SpoonacularName }

func (p *Spoonacular) Search(ctx context.Context, query string, maxResults int) ([]recipeassistant.RecipeRecord, error) {
	number := min(maxResults, spoonacularMaxNumber)
	if number <= 0 {
		number = spoonacularMaxNumber
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":                query,
			"number":               strconv.Itoa(number),
			"addRecipeInformation": "true",
			"addRecipeNutrition":   "true",
			"fillIngredients":      "true",
			"apiKey":               p.apiKey,
		}).
		Get("/recipes/complexSearch")
	if err != nil {
		return nil, fmt.Errorf("spoonacular search: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(p.Name(), resp)
	}

	results := gjson.GetBytes(resp.Body(), "results")
	out := make([]recipeassistant.RecipeRecord, 0, number)
	results.ForEach(func(_, r gjson.Result) bool {
		out = append(out, spoonacularRecord(r))
		return len(out) < number
	})
	return out, nil
}

func spoonacularRecord(r gjson.Result) recipeassistant.RecipeRecord {
	var ingredients []string
	for _, ing := range r.Get("extendedIngredients.#.original").Array() {
		if s := strings.TrimSpace(ing.String()); s != "" {
			ingredients = append(ingredients, s)
		}
	}

	var steps []string
	for _, s := range r.Get("analyzedInstructions.0.steps.#.step").Array() {
		steps = append(steps, s.String())
	}

	category := ""
	if types := r.Get("dishTypes").Array(); len(types) > 0 {
		category = types[0].String()
	}

	rec := recipeassistant.RecipeRecord{
		ID:             r.Get("id").String(),
		Title:          r.Get("title").String(),
		Ingredients:    ingredients,
		Instructions:   numbered(steps),
		Category:       category,
		Image:          r.Get("image").String(),
		Source:         "Spoonacular",
		URL:            r.Get("sourceUrl").String(),
		Summary:        truncate(htmlTag.ReplaceAllString(r.Get("summary").String(), ""), 300),
		Servings:       int(r.Get("servings").Int()),
		ReadyInMinutes: int(r.Get("readyInMinutes").Int()),
	}

	if nutrients := r.Get("nutrition.nutrients"); nutrients.Exists() {
		n := recipeassistant.NutritionRecord{}
		nutrients.ForEach(func(_, v gjson.Result) bool {
			amount := v.Get("amount").Float()
			switch v.Get("name").String() {
			case "Calories":
				n.Calories = amount
			case "Protein":
				n.Protein = amount
			case "Carbohydrates":
				n.Carbs = amount
			case "Fat":
				n.Fat = amount
			case "Fiber":
				n.Fiber = amount
			}
			return true
		})
		// Spoonacular reports per serving; records carry whole-recipe totals.
		servings := float64(max(rec.Servings, 1))
		n.Calories *= servings
		n.Protein *= servings
		n.Carbs *= servings
		n.Fat *= servings
		n.Fiber *= servings
		rec.Nutrition = &n
	}
	return rec
}

func numbered(steps []string) string {
	var b strings.Builder
	for i, s := range steps {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d. %s", i+1, strings.TrimSpace(s))
	}
	return b.String()
}
