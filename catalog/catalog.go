package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"recipeassistant"
)

// Entry pairs a match keyword with the recipe served for it.
type Entry struct {
	Keyword string                       `json:"keyword"`
	Recipe  recipeassistant.RecipeRecord `json:"recipe"`
}

// Catalog is an ordered fallback table. The first entry is the default.
type Catalog struct {
	entries []Entry
}

func New(entries []Entry) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, errors.New("catalog has no entries")
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Keyword) == "" || e.Recipe.Title == "" {
			return nil, fmt.Errorf("catalog entry %d: keyword and recipe title are required", i)
		}
	}
	return &Catalog{entries: slices.Clone(entries)}, nil
}

// Load reads and validates a catalog from src.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	b, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var entries []Entry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(entries)
}

// Match returns up to limit recipes whose keyword, or any of whose
// ingredients, appears in the query (case-insensitive). When nothing
// matches, the default recipe is returned alone.
func (c *Catalog) Match(query string, limit int) []recipeassistant.RecipeRecord {
	q := strings.ToLower(query)
	var out []recipeassistant.RecipeRecord
	for _, e := range c.entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		if matches(q, e) {
			out = append(out, clone(e.Recipe))
		}
	}
	if len(out) == 0 {
		out = append(out, clone(c.entries[0].Recipe))
	}
	return out
}

func (c *Catalog) Len() int { return len(c.entries) }

func matches(q string, e Entry) bool {
	if strings.Contains(q, strings.ToLower(e.Keyword)) {
		return true
	}
	for _, ing := range e.Recipe.Ingredients {
		if ing != "" && strings.Contains(q, strings.ToLower(ing)) {
			return true
		}
	}
	return false
}

func clone(r recipeassistant.RecipeRecord) recipeassistant.RecipeRecord {
	r.Ingredients = slices.Clone(r.Ingredients)
	r.Tags = slices.Clone(r.Tags)
	r.Provenance.SourcesTried = slices.Clone(r.Provenance.SourcesTried)
	if r.Nutrition != nil {
		n := *r.Nutrition
		r.Nutrition = &n
	}
	return r
}
