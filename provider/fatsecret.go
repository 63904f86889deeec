package provider

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"recipeassistant"
)

const (
	FatSecretName     = "fatsecret"
	FatSecretBaseURL  = "https://platform.fatsecret.com"
	FatSecretTokenURL = "https://oauth.fatsecret.com/connect/token"
)

var (
	fsCalories = regexp.MustCompile(`Calories:\s*([\d.]+)\s*kcal`)
	fsFat      = regexp.MustCompile(`Fat:\s*([\d.]+)\s*g`)
	fsCarbs    = regexp.MustCompile(`Carbs:\s*([\d.]+)\s*g`)
	fsProtein  = regexp.MustCompile(`Protein:\s*([\d.]+)\s*g`)
)

type FatSecretOpts struct {
	Opts
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// FatSecret authenticates with OAuth2 client credentials and reads the
// per-serving summary line of the best food match for each ingredient.
type FatSecret struct {
	client *resty.Client
}

func NewFatSecret(opts FatSecretOpts) (*FatSecret, error) {
	if opts.ClientID == "" || opts.ClientSecret == "" {
		return nil, fmt.Errorf("%s: %w", FatSecretName, ErrNotConfigured)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = FatSecretBaseURL
	}
	if opts.TokenURL == "" {
		opts.TokenURL = FatSecretTokenURL
	}

	cc := clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     opts.TokenURL,
		Scopes:       []string{"basic"},
	}

	// The token source lives as long as the provider, so it gets a background context.
	tokenCtx := context.Background()
	if opts.HTTPClient != nil {
		tokenCtx = context.WithValue(tokenCtx, oauth2.HTTPClient, opts.HTTPClient)
	}
	authed := cc.Client(tokenCtx)
	if opts.HTTPClient != nil && opts.HTTPClient.Timeout > 0 {
		authed.Timeout = opts.HTTPClient.Timeout
	}

	return &FatSecret{client: newRestClient(authed, opts.BaseURL)}, nil
}

func (p *FatSecret) Name() string { return FatSecretName }

func (p *FatSecret) Nutrition(ctx context.Context, ingredients []string) (recipeassistant.NutritionRecord, error) {
	var total recipeassistant.NutritionRecord
	for _, ing := range leading(ingredients) {
		resp, err := p.client.R().
			SetContext(ctx).
			SetQueryParams(map[string]string{
				"method":            "foods.search",
				"search_expression": ing,
				"max_results":       "1",
				"format":            "json",
			}).
			Get("/rest/server.api")
		if err != nil {
			return recipeassistant.NutritionRecord{}, fmt.Errorf("fatsecret search %q: %w", ing, err)
		}
		if resp.IsError() {
			return recipeassistant.NutritionRecord{}, statusError(p.Name(), resp)
		}
		if msg := gjson.GetBytes(resp.Body(), "error.message"); msg.Exists() {
			return recipeassistant.NutritionRecord{}, fmt.Errorf("%w: %s: %s", ErrStatus, p.Name(), msg.String())
		}

		// A single match comes back as an object rather than a one-element array.
		food := gjson.GetBytes(resp.Body(), "foods.food")
		if food.IsArray() {
			food = food.Get("0")
		}
		desc := food.Get("food_description").String()
		total.Calories += firstFloat(fsCalories, desc)
		total.Fat += firstFloat(fsFat, desc)
		total.Carbs += firstFloat(fsCarbs, desc)
		total.Protein += firstFloat(fsProtein, desc)
	}
	return total, nil
}

func firstFloat(re *regexp.Regexp, s string) float64 {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	return v
}
