package mock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"recipeassistant"
)

// LLMClient is a deterministic stand-in for a real model. It builds its reply
// from whatever context the request carries so a run without any backend still
// shows how search results and the health profile reach the prompt.
type LLMClient struct {
	// Err, when set, is returned by every call.
	Err error

	mu       sync.Mutex
	requests []recipeassistant.CompletionRequest
}

func NewLLMClient() *LLMClient {
	return &LLMClient{}
}

func (m *LLMClient) Complete(ctx context.Context, req recipeassistant.CompletionRequest) (string, error) {
	slog.Info("LLM_CLIENT: Invoked", "backend", "mock", "messages_len", len(req.History)+1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", fmt.Errorf("%w: %w", recipeassistant.ErrGenerationFailed, m.Err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Here is a healthy idea for %q.\n\n", strings.TrimSpace(req.UserMessage))

	system := req.System()
	if diet := lineValue(system, "Diet:"); diet != "" {
		fmt.Fprintf(&b, "Tailored for a %s diet.\n", diet)
	}
	if title := lineValue(system, "Title:"); title != "" {
		fmt.Fprintf(&b, "Building on %s.\n", title)
	}
	if strings.Contains(system, "Recent findings (web):") {
		b.WriteString("Drawing on recent findings.\n")
	}

	b.WriteString("\nIngredients:\n- 1 cup cooked quinoa\n- 2 cups mixed vegetables\n- 1 tbsp olive oil\n")
	b.WriteString("\nSteps:\n1. Warm the oil in a pan.\n2. Saute the vegetables for 5 minutes.\n3. Fold in the quinoa and season to taste.")

	slog.Info("LLM_CLIENT: Returning mock reply", "history_len", len(req.History))
	return b.String(), nil
}

// Requests returns a copy of every request seen so far.
func (m *LLMClient) Requests() []recipeassistant.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]recipeassistant.CompletionRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

func lineValue(text, prefix string) string {
	for line := range strings.SplitSeq(text, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), prefix); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
