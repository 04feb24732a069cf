package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type anthropicBackend struct {
	client anthropic.Client
	cfg    Config
}

func newAnthropicBackend(cfg Config) *anthropicBackend {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}

	return &anthropicBackend{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
	}
}

func (b *anthropicBackend) ID() string {
	return b.cfg.ID
}

func (b *anthropicBackend) Invoke(ctx context.Context, inv Invocation) Outcome {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	// Anthropic requires a max_tokens value on every request.
	maxTokens := pickMaxTokens(inv.MaxTokens, b.cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	system, messages := b.convertMessages(inv.Messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(b.cfg.Model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	if t := pickTemperature(inv.Temperature, b.cfg.Temperature); t != nil {
		params.Temperature = anthropic.Float(*t)
	}

	start := time.Now()
	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		outcome := classify(err, anthropicStatus)
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
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"stop_reason", resp.StopReason)

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return Success(text.String())
}

// convertMessages lifts system turns into the separate System field;
// Anthropic rejects them inside the messages array.
func (b *anthropicBackend) convertMessages(msgs []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	messages := make([]anthropic.MessageParam, 0, len(msgs))

	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: msg.Content})
		case RoleAssistant:
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
			})
		default:
			messages = append(messages, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleUser,
				Content: []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)},
			})
		}
	}

	return system, messages
}

func anthropicStatus(err error) (int, bool) {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}
