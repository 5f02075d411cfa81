package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// buildClaudeMessage converts the request into a single user message:
// the prompt text followed by a label and image block per image
func buildClaudeMessage(request *ContentRequest) (anthropic.MessageParam, error) {
	if strings.TrimSpace(request.Text) == "" {
		return anthropic.MessageParam{}, fmt.Errorf("request text cannot be empty")
	}

	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(request.Text)}
	for _, img := range request.Images {
		if len(img.Data) == 0 {
			continue
		}
		if img.Label != "" {
			blocks = append(blocks, anthropic.NewTextBlock(img.Label))
		}
		blocks = append(blocks, anthropic.NewImageBlockBase64(img.MIMEType, base64.StdEncoding.EncodeToString(img.Data)))
	}
	if request.JSONOutput {
		blocks = append(blocks, anthropic.NewTextBlock("Responde únicamente con el objeto JSON."))
	}

	return anthropic.NewUserMessage(blocks...), nil
}

// generateWithClaude generates content using Claude API
func (f *ProviderFactory) generateWithClaude(ctx context.Context, request *ContentRequest, model string) (*ContentResponse, error) {
	client, err := f.getClaudeClient()
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = f.claudeConfig.Model
	}

	message, err := buildClaudeMessage(request)
	if err != nil {
		return nil, fmt.Errorf("failed to build message: %w", err)
	}

	maxTokens := request.MaxTokens
	if maxTokens <= 0 {
		maxTokens = f.claudeConfig.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  []anthropic.MessageParam{message},
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = f.claudeConfig.Temperature
	}
	if temp > 0 {
		params.Temperature = anthropic.Float(float64(temp))
	}

	if request.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: request.SystemInstruction},
		}
	}

	if timeout, err := time.ParseDuration(f.claudeConfig.Timeout); err == nil && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	var resp *anthropic.Message
	err = NewRetryConfig(f.maxRetries()).do(ctx, f.logger, ProviderClaude, func() error {
		var callErr error
		resp, callErr = client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response from Claude API")
	}

	f.logger.Info().
		Str("model", model).
		Dur("duration", time.Since(start)).
		Int("response_length", text.Len()).
		Msg("Claude completion received")

	return &ContentResponse{
		Text:     text.String(),
		Provider: ProviderClaude,
		Model:    model,
	}, nil
}
