package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"recipeassistant"
)

type options struct {
	Temperature   float64 `json:"temperature,omitempty"`
	TopP          float64 `json:"top_p,omitempty"`
	RepeatPenalty float64 `json:"repeat_penalty,omitempty"`
	NumCtx        int     `json:"num_ctx,omitempty"`
	NumPredict    int     `json:"num_predict,omitempty"`
}

type Client struct {
	endpoint   string
	model      string
	httpClient recipeassistant.HTTPClient
	options    options
}

type ClientOpts struct {
	BaseEndpoint string
	ModelID      string
	Temperature  float64
	TopP         float64
	MaxTokens    int
	HTTPClient   recipeassistant.HTTPClient
}

func NewClient(opts ClientOpts) (*Client, error) {
	if strings.TrimSpace(opts.ModelID) == "" {
		return nil, fmt.Errorf("model id is required")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.2
	}
	if opts.TopP == 0 {
		opts.TopP = 0.9
	}

	return &Client{
		model:      opts.ModelID,
		httpClient: opts.HTTPClient,
		endpoint:   strings.TrimRight(opts.BaseEndpoint, "/") + "/api/chat",
		options: options{
			Temperature:   opts.Temperature,
			TopP:          opts.TopP,
			RepeatPenalty: 1.05,
			NumCtx:        8192,
			NumPredict:    opts.MaxTokens,
		},
	}, nil
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

type wireRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  options   `json:"options,omitempty"`
}

// Complete sends one non-streaming chat request and returns the assistant text.
func (c *Client) Complete(ctx context.Context, creq recipeassistant.CompletionRequest) (string, error) {
	msgs := buildMessages(creq)
	slog.Info("LLM_CLIENT: Invoked", "backend", "ollama", "messages_len", len(msgs))

	reqBytes, err := json.Marshal(wireRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   false,
		Options:  c.options,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(reqBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", recipeassistant.ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: LLM_CLIENT: %s: %s", recipeassistant.ErrGenerationFailed, resp.Status, string(body))
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		slog.Warn("LLM_CLIENT: decode failed, returning raw", "err", err, "body", string(body))
		return string(body), nil
	}

	out := strings.TrimSpace(wr.Message.Content)
	if out == "" {
		return "", fmt.Errorf("%w: empty response from model", recipeassistant.ErrGenerationFailed)
	}
	return out, nil
}

// buildMessages lays the request out as Ollama chat messages:
// - one system message holding instructions plus extra context
// - prior user / assistant turns in order
// - the current user message last
func buildMessages(creq recipeassistant.CompletionRequest) []Message {
	messages := make([]Message, 0, len(creq.History)+2)

	if sys := creq.System(); sys != "" {
		messages = append(messages, Message{Role: "system", Content: sys})
	}

	for _, m := range creq.History {
		switch m.Role {
		case recipeassistant.RoleUser, recipeassistant.RoleAssistant:
			messages = append(messages, Message{Role: m.Role, Content: m.Content})
		default:
			slog.Warn("ollama: unknown role, coercing to user", "role", m.Role)
			messages = append(messages, Message{Role: recipeassistant.RoleUser, Content: m.Content})
		}
	}

	messages = append(messages, Message{Role: recipeassistant.RoleUser, Content: creq.UserMessage})
	return messages
}
