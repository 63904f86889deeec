package provider

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"recipeassistant"
)

// Registry holds the providers for each capability in priority order.
// Providers without credentials never make it into the lists.
type Registry struct {
	Search    []RecipeSearcher
	Nutrition []NutritionSource
	// Excluded maps provider name to the reason it was left out.
	Excluded map[string]string
}

// NewRegistry builds the provider lists named by the priority settings in cfg.
func NewRegistry(cfg recipeassistant.ProviderConfig, hc *http.Client) *Registry {
	r := &Registry{Excluded: map[string]string{}}

	for _, name := range priority(cfg.SearchPriority) {
		var (
			p   RecipeSearcher
			err error
		)
		switch name {
		case TavilyName:
			p, err = NewTavily(Opts{APIKey: cfg.TavilyAPIKey, HTTPClient: hc})
		case TheMealDBName:
			p = NewTheMealDB(Opts{BaseURL: cfg.TheMealDBBaseURL, HTTPClient: hc})
		case SpoonacularName:
			p, err = NewSpoonacular(Opts{APIKey: cfg.SpoonacularAPIKey, HTTPClient: hc})
		default:
			err = errors.New("unknown search provider")
		}
		if r.exclude(name, err) {
			continue
		}
		r.Search = append(r.Search, p)
	}

	for _, name := range priority(cfg.NutritionPriority) {
		var (
			p   NutritionSource
			err error
		)
		switch name {
		case USDAName:
			p, err = NewUSDA(Opts{APIKey: cfg.USDAAPIKey, HTTPClient: hc})
		case FatSecretName:
			p, err = NewFatSecret(FatSecretOpts{
				Opts:         Opts{HTTPClient: hc},
				ClientID:     cfg.FatSecretClientID,
				ClientSecret: cfg.FatSecretClientSecret,
			})
		default:
			err = errors.New("unknown nutrition provider")
		}
		if r.exclude(name, err) {
			continue
		}
		r.Nutrition = append(r.Nutrition, p)
	}

	slog.Info("SETUP: Providers registered",
		"search", names(r.Search),
		"nutrition", names(r.Nutrition),
		"excluded", len(r.Excluded),
	)
	return r
}

func (r *Registry) exclude(name string, err error) bool {
	if err == nil {
		return false
	}
	r.Excluded[name] = err.Error()
	slog.Warn("SETUP: Provider excluded", "provider", name, "reason", err)
	return true
}

func priority(list string) []string {
	var out []string
	seen := map[string]bool{}
	for _, n := range strings.Split(list, ",") {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func names[P interface{ Name() string }](ps []P) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Name())
	}
	return out
}
