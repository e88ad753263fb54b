package llm

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/genai"
)

// GeminiCompleter 基于官方 genai 客户端的补全实现
type GeminiCompleter struct {
	cli         *genai.Client
	model       string
	temperature float32
}

// NewGeminiCompleter 创建 Gemini 客户端
func NewGeminiCompleter(ctx context.Context, apiKey, model string, temperature float32) (*GeminiCompleter, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiCompleter{cli: cli, model: model, temperature: temperature}, nil
}

// Ensure GeminiCompleter implements Completer
var _ Completer = (*GeminiCompleter)(nil)

// Complete implements Completer
func (g *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	temperature := g.temperature
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: systemPrompt + "\n\n" + prompt}}}},
		&genai.GenerateContentConfig{Temperature: &temperature},
	)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini: empty response")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
