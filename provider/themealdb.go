package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"recipeassistant"
)

const (
	TheMealDBName    = "themealdb"
	TheMealDBBaseURL = "https://www.themealdb.com/api/json/v1/1"

	mealDBIngredientSlots = 20
	mealDBServings        = 4
	mealDBReadyInMinutes  = 30
	mealDBSummaryChars    = 300
)

// TheMealDB searches meals by name. It needs no key.
type TheMealDB struct {
	client *resty.Client
}

func NewTheMealDB(opts Opts) *TheMealDB {
	if opts.BaseURL == "" {
		opts.BaseURL = TheMealDBBaseURL
	}
	return &TheMealDB{client: newRestClient(opts.HTTPClient, opts.BaseURL)}
}

func (p *TheMealDB) Name() string { return TheMealDBName }

func (p *TheMealDB) Search(ctx context.Context, query string, maxResults int) ([]recipeassistant.RecipeRecord, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("s", query).
		Get("/search.php")
	if err != nil {
		return nil, fmt.Errorf("themealdb search: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(p.Name(), resp)
	}
	return parseMeals(resp.Body(), maxResults), nil
}

// Lookup fetches a single meal by id; it returns nil when the id is unknown.
func (p *TheMealDB) Lookup(ctx context.Context, id string) (*recipeassistant.RecipeRecord, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParam("i", id).
		Get("/lookup.php")
	if err != nil {
		return nil, fmt.Errorf("themealdb lookup: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(p.Name(), resp)
	}
	meals := parseMeals(resp.Body(), 1)
	if len(meals) == 0 {
		return nil, nil
	}
	return &meals[0], nil
}

// parseMeals maps the "meals" array; TheMealDB returns null instead of [] when nothing matched.
func parseMeals(body []byte, limit int) []recipeassistant.RecipeRecord {
	meals := gjson.GetBytes(body, "meals")
	if !meals.IsArray() {
		return nil
	}

	out := make([]recipeassistant.RecipeRecord, 0, limit)
	meals.ForEach(func(_, m gjson.Result) bool {
		if limit > 0 && len(out) >= limit {
			return false
		}
		out = append(out, mealRecord(m))
		return true
	})
	return out
}

func mealRecord(m gjson.Result) recipeassistant.RecipeRecord {
	ingredients := make([]string, 0, mealDBIngredientSlots)
	for i := 1; i <= mealDBIngredientSlots; i++ {
		name := strings.TrimSpace(m.Get("strIngredient" + strconv.Itoa(i)).String())
		if name == "" {
			continue
		}
		if measure := strings.TrimSpace(m.Get("strMeasure" + strconv.Itoa(i)).String()); measure != "" {
			name = measure + " " + name
		}
		ingredients = append(ingredients, name)
	}

	var tags []string
	for _, t := range strings.Split(m.Get("strTags").String(), ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}

	url := m.Get("strSource").String()
	if url == "" {
		url = m.Get("strYoutube").String()
	}

	instructions := strings.TrimSpace(m.Get("strInstructions").String())
	return recipeassistant.RecipeRecord{
		ID:             m.Get("idMeal").String(),
		Title:          m.Get("strMeal").String(),
		Ingredients:    ingredients,
		Instructions:   instructions,
		Category:       m.Get("strCategory").String(),
		Area:           m.Get("strArea").String(),
		Image:          m.Get("strMealThumb").String(),
		Source:         "TheMealDB",
		URL:            url,
		Summary:        truncate(instructions, mealDBSummaryChars),
		Tags:           tags,
		Servings:       mealDBServings,
		ReadyInMinutes: mealDBReadyInMinutes,
	}
}
