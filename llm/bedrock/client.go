package bedrock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"recipeassistant"
)

const (
	// defaultModelID is an inference profile ID, not the foundation model's ID.
	// See https://docs.aws.amazon.com/bedrock/latest/userguide/inference-profiles.html.
	defaultModelID = "us.anthropic.claude-3-7-sonnet-20250219-v1:0"

	// Recipes with ingredient lists and numbered steps fit comfortably in 1k tokens;
	// the output guard trims anything longer anyway.
	defaultMaxTokens = 1024

	defaultTemperature = 0.2
	defaultTopP        = 0.9
)

type bedrockRuntimeClient interface {
	Converse(context.Context, *bedrockruntime.ConverseInput, ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

type LLMOptions struct {
	ModelID     string
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

type LLMClient struct {
	brc  bedrockRuntimeClient
	opts LLMOptions
}

func NewLLMClient(brc bedrockRuntimeClient, opts LLMOptions) *LLMClient {
	if opts.ModelID == "" {
		opts.ModelID = defaultModelID
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	if opts.Temperature == 0 {
		opts.Temperature = defaultTemperature
	}
	if opts.TopP == 0 {
		opts.TopP = defaultTopP
	}
	return &LLMClient{
		brc:  brc,
		opts: opts,
	}
}

// Complete runs one Converse call and returns the assistant text.
func (c *LLMClient) Complete(ctx context.Context, req recipeassistant.CompletionRequest) (string, error) {
	in := c.buildInput(req)
	slog.Info("LLM_CLIENT: Invoked", "backend", "bedrock", "messages_len", len(in.Messages))

	out, err := c.brc.Converse(ctx, in)
	if err != nil {
		slog.Error("LLM_CLIENT: Bedrock invoke failed", "error", err, "model", c.opts.ModelID)
		return "", fmt.Errorf("%w: %w", recipeassistant.ErrGenerationFailed, err)
	}

	attrs := []any{"stop_reason", out.StopReason}
	if out.Metrics != nil {
		attrs = append(attrs, "latency_ms", aws.ToInt64(out.Metrics.LatencyMs))
	}
	if out.Usage != nil {
		attrs = append(attrs,
			"input_tokens", aws.ToInt32(out.Usage.InputTokens),
			"output_tokens", aws.ToInt32(out.Usage.OutputTokens))
	}
	slog.Info("LLM_CLIENT: Bedrock invoke succeeded", attrs...)

	text := textFromOutput(out)

	switch out.StopReason {
	case types.StopReasonGuardrailIntervened, types.StopReasonContentFiltered:
		slog.Warn("LLM_CLIENT: Model response blocked by Bedrock safety filters")
		return "", fmt.Errorf("%w: response blocked by safety filters", recipeassistant.ErrGenerationFailed)
	case types.StopReasonMaxTokens:
		// A truncated recipe is still useful; the output guard marks long answers.
		slog.Warn("LLM_CLIENT: Model hit MaxTokens limit", "max_tokens", c.opts.MaxTokens)
	}

	if text == "" {
		return "", fmt.Errorf("%w: empty response from model", recipeassistant.ErrGenerationFailed)
	}
	return text, nil
}

func (c *LLMClient) buildInput(req recipeassistant.CompletionRequest) *bedrockruntime.ConverseInput {
	var sys []types.SystemContentBlock
	if s := req.System(); s != "" {
		sys = append(sys, &types.SystemContentBlockMemberText{Value: s})
	}

	msgs := make([]types.Message, 0, len(req.History)+1)
	for _, m := range req.History {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		role := types.ConversationRoleUser
		if m.Role == recipeassistant.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		msgs = appendText(msgs, role, m.Content)
	}
	msgs = appendText(msgs, types.ConversationRoleUser, req.UserMessage)

	return &bedrockruntime.ConverseInput{
		ModelId:  aws.String(c.opts.ModelID),
		System:   sys,
		Messages: msgs,
		InferenceConfig: &types.InferenceConfiguration{
			MaxTokens:   aws.Int32(c.opts.MaxTokens),
			Temperature: aws.Float32(c.opts.Temperature),
			TopP:        aws.Float32(c.opts.TopP),
		},
	}
}

// appendText adds a text turn. Converse rejects two consecutive turns with the
// same role, so such turns are merged.
func appendText(msgs []types.Message, role types.ConversationRole, text string) []types.Message {
	block := &types.ContentBlockMemberText{Value: text}
	if n := len(msgs); n > 0 && msgs[n-1].Role == role {
		msgs[n-1].Content = append(msgs[n-1].Content, block)
		return msgs
	}
	return append(msgs, types.Message{Role: role, Content: []types.ContentBlock{block}})
}

// textFromOutput joins every text block of the assistant message with '\n'.
func textFromOutput(out *bedrockruntime.ConverseOutput) string {
	if out == nil || out.Output == nil {
		return ""
	}

	msg, ok := out.Output.(*types.ConverseOutputMemberMessage)
	if !ok || msg == nil {
		return ""
	}

	texts := make([]string, 0, len(msg.Value.Content))
	for _, cb := range msg.Value.Content {
		if t, ok := cb.(*types.ContentBlockMemberText); ok && t != nil && strings.TrimSpace(t.Value) != "" {
			texts = append(texts, t.Value)
		}
	}
	return strings.TrimSpace(strings.Join(texts, "\n"))
}
