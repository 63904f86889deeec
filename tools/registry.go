package tools

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrToolNotFound = errors.New("tool not found")
	// ErrInvalidInput marks a tool call whose arguments are missing or malformed.
	ErrInvalidInput = errors.New("invalid tool input")
)

// Registry maps tool names to implementations
type Registry map[string]Tool

// NewRegistry registers every tool against the given backend.
func NewRegistry(b Backend) *Registry {
	tools := map[string]Tool{}
	for _, t := range []Tool{
		NewRecipeSearch(b),
		NewNutritionGet(b),
		NewRecipeAnalyze(b),
		NewProviderStatus(b),
	} {
		tools[t.Name()] = t
	}

	registry := Registry(tools)
	return &registry
}

// GetTools returns all tools sorted by name
func (r *Registry) GetTools() []Tool {
	tools := make([]Tool, 0, len(*r))
	for _, tool := range *r {
		tools = append(tools, tool)
	}
	slices.SortFunc(tools, func(a, b Tool) int { return strings.Compare(a.Name(), b.Name()) })
	return tools
}

// GetTool retrieves a tool by name from the registry
func (r Registry) GetTool(name string) (Tool, error) {
	tool, exists := r[name]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrToolNotFound, name)
	}
	return tool, nil
}
