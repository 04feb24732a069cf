package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openaiBackend struct {
	client openai.Client
	cfg    Config
}

// newOpenAIBackend creates a Backend for any OpenAI-compatible chat endpoint.
func newOpenAIBackend(cfg Config) *openaiBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	return &openaiBackend{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}
}

func (b *openaiBackend) ID() string {
	return b.cfg.ID
}

func (b *openaiBackend) Invoke(ctx context.Context, inv Invocation) Outcome {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:    b.cfg.Model,
		Messages: b.convertMessages(inv.Messages),
	}
	if maxTokens := pickMaxTokens(inv.MaxTokens, b.cfg.MaxTokens); maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}
	if t := pickTemperature(inv.Temperature, b.cfg.Temperature); t != nil {
		params.Temperature = openai.Float(*t)
	}

	start := time.Now()
	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		outcome := classify(err, openaiStatus)
		slog.WarnContext(ctx, "backend call failed",
			"backend", b.cfg.ID,
			"failure", outcome.Failure,
			"reason", outcome.Reason,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return outcome
	}

	slog.DebugContext(ctx, "backend call completed",
		"backend", b.cfg.ID,
		"duration_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return Success("")
	}
	return Success(resp.Choices[0].Message.Content)
}

func (b *openaiBackend) convertMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))

	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))
		case RoleAssistant:
			result = append(result, openai.AssistantMessage(msg.Content))
		default:
			result = append(result, openai.UserMessage(msg.Content))
		}
	}

	return result
}

func openaiStatus(err error) (int, bool) {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}

func pickMaxTokens(requested, fallback int) int {
	if requested > 0 {
		return requested
	}
	return fallback
}

func pickTemperature(requested, fallback *float64) *float64 {
	if requested != nil {
		return requested
	}
	return fallback
}
