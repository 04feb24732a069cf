package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// ImageGenerator turns a text prompt into a hosted image URL.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt, size, quality string) (string, error)
}

type ImageConfig struct {
	APIKey  string
	BaseURL string
	Model   string // e.g. "dall-e-3"
}

type imageGenerator struct {
	client openai.Client
	model  string
}

func NewImageGenerator(cfg ImageConfig) (ImageGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "dall-e-3"
	}

	return &imageGenerator{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (g *imageGenerator) Generate(ctx context.Context, prompt, size, quality string) (string, error) {
	params := openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(g.model),
		N:      openai.Int(1),
	}
	if size != "" {
		params.Size = openai.ImageGenerateParamsSize(size)
	}
	if quality != "" {
		params.Quality = openai.ImageGenerateParamsQuality(quality)
	}

	start := time.Now()
	resp, err := g.client.Images.Generate(ctx, params)
	if err != nil {
		return "", fmt.Errorf("generating image: %w", err)
	}

	slog.DebugContext(ctx, "image generated",
		"model", g.model,
		"size", size,
		"duration_ms", time.Since(start).Milliseconds())

	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("image response has no url")
	}
	return resp.Data[0].URL, nil
}
