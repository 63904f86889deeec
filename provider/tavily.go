package provider

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"recipeassistant"
)

const (
	TavilyName    = "tavily"
	TavilyBaseURL = "https://api.tavily.com"

	tavilySnippetChars = 300
)

// Tavily is a general web search used for "latest"/"research" style questions.
type Tavily struct {
	client *resty.Client
}

func NewTavily(opts Opts) (*Tavily, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%s: %w", TavilyName, ErrNotConfigured)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = TavilyBaseURL
	}
	client := newRestClient(opts.HTTPClient, opts.BaseURL).SetAuthToken(opts.APIKey)
	return &Tavily{client: client}, nil
}

func (p *Tavily) Name() string { return TavilyName }

type tavilyRequest struct {
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
}

func (p *Tavily) Search(ctx context.Context, query string, maxResults int) ([]recipeassistant.RecipeRecord, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(tavilyRequest{
			Query:       query,
			MaxResults:  maxResults,
			SearchDepth: "basic",
		}).
		Post("/search")
	if err != nil {
		return nil, fmt.Errorf("tavily search: %w", err)
	}
	if resp.IsError() {
		return nil, statusError(p.Name(), resp)
	}

	var out []recipeassistant.RecipeRecord
	gjson.GetBytes(resp.Body(), "results").ForEach(func(_, r gjson.Result) bool {
		if maxResults > 0 && len(out) >= maxResults {
			return false
		}
		out = append(out, recipeassistant.RecipeRecord{
			Title:   r.Get("title").String(),
			URL:     r.Get("url").String(),
			Summary: truncate(r.Get("content").String(), tavilySnippetChars),
			Source:  "Tavily",
		})
		return true
	})
	return out, nil
}
