// Package provider holds the external recipe-search and nutrition sources.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"recipeassistant"
)

var (
	// ErrNotConfigured means the provider lacks credentials and must not be registered.
	ErrNotConfigured = errors.New("provider not configured")
	// ErrStatus is a non-success HTTP status from a provider.
	ErrStatus = errors.New("unexpected provider status")
)

const userAgent = "recipe-assistant/0.1"

type RecipeSearcher interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]recipeassistant.RecipeRecord, error)
}

type NutritionSource interface {
	Name() string
	Nutrition(ctx context.Context, ingredients []string) (recipeassistant.NutritionRecord, error)
}

// Opts is shared by every provider constructor.
type Opts struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func newRestClient(hc *http.Client, baseURL string) *resty.Client {
	var c *resty.Client
	if hc != nil {
		c = resty.NewWithClient(hc)
	} else {
		c = resty.New()
	}
	return c.SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")
}

func statusError(provider string, resp *resty.Response) error {
	body := string(resp.Body())
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Errorf("%w: %s: %s: %s", ErrStatus, provider, resp.Status(), body)
}

// truncate shortens s to n runes and marks the cut with "...".
func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n]) + "..."
}
