package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"recipeassistant"
)

const (
	USDAName    = "usda"
	USDABaseURL = "https://api.nal.usda.gov/fdc/v1"

	// Only the leading ingredients are looked up to stay inside the DEMO_KEY rate limit.
	lookupIngredientLimit = 3
)

// USDA sums FoodData Central readings for the first few ingredients.
type USDA struct {
	client *resty.Client
	apiKey string
}

func NewUSDA(opts Opts) (*USDA, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", USDAName, ErrNotConfigured)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = USDABaseURL
	}
	return &USDA{
		client: newRestClient(opts.HTTPClient, opts.BaseURL),
		apiKey: opts.APIKey,
	}, nil
}

func (p *USDA) Name() string { return USDAName }

func (p *USDA) Nutrition(ctx context.Context, ingredients []string) (recipeassistant.NutritionRecord, error) {
	var total recipeassistant.NutritionRecord
	for _, ing := range leading(ingredients) {
		resp, err := p.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"query":    ing,
				"pageSize": "1",
				"api_key":  p.apiKey,
			}).
			Get("/foods/search")
		if err != nil {
			return recipeassistant.NutritionRecord{}, fmt.Errorf("usda search %q: %w", ing, err)
		}
		if resp.IsError() {
			return recipeassistant.NutritionRecord{}, statusError(p.Name(), resp)
		}

		gjson.GetBytes(resp.Body(), "foods.0.foodNutrients").ForEach(func(_, n gjson.Result) bool {
			name := n.Get("nutrientName").String()
			value := n.Get("value").Float()
			switch {
			case strings.HasPrefix(name, "Energy"):
				if strings.EqualFold(n.Get("unitName").String(), "KCAL") {
					total.Calories += value
				}
			case name == "Protein":
				total.Protein += value
			case strings.HasPrefix(name, "Carbohydrate"):
				total.Carbs += value
			case strings.HasPrefix(name, "Total lipid"), name == "Fat":
				total.Fat += value
			case strings.HasPrefix(name, "Fiber"):
				total.Fiber += value
			}
			return true
		})
	}
	return total, nil
}

func leading(ingredients []string) []string {
	out := make([]string, 0, lookupIngredientLimit)
	for _, ing := range ingredients {
		if ing = strings.TrimSpace(ing); ing == "" {
			continue
		}
		out = append(out, ing)
		if len(out) == lookupIngredientLimit {
			break
		}
	}
	return out
}
