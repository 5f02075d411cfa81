package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// buildGeminiContents converts the request into one user content holding the
// prompt text followed by a label and inline image part per image
func buildGeminiContents(request *ContentRequest) ([]*genai.Content, error) {
	if strings.TrimSpace(request.Text) == "" {
		return nil, fmt.Errorf("request text cannot be empty")
	}

	parts := []*genai.Part{genai.NewPartFromText(request.Text)}
	for _, img := range request.Images {
		if len(img.Data) == 0 {
			continue
		}
		if img.Label != "" {
			parts = append(parts, genai.NewPartFromText(img.Label))
		}
		parts = append(parts, genai.NewPartFromBytes(img.Data, img.MIMEType))
	}

	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, nil
}

// generateWithGemini generates content using Gemini API
func (f *ProviderFactory) generateWithGemini(ctx context.Context, request *ContentRequest, model string) (*ContentResponse, error) {
	client, err := f.getGeminiClient(ctx)
	if err != nil {
		return nil, err
	}

	if model == "" {
		model = f.geminiConfig.Model
	}

	contents, err := buildGeminiContents(request)
	if err != nil {
		return nil, fmt.Errorf("failed to build contents: %w", err)
	}

	temp := request.Temperature
	if temp <= 0 {
		temp = f.geminiConfig.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temp),
	}

	if request.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(request.SystemInstruction, genai.RoleUser)
	}

	// thinking levels are only accepted by gemini-3 models
	thinking := request.ThinkingLevel
	if thinking == "" {
		thinking = f.geminiConfig.Thinking
	}
	if level := parseGeminiThinkingLevel(thinking); level != "" && strings.HasPrefix(model, "gemini-3") {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingLevel: level,
		}
	}

	if request.JSONOutput {
		config.ResponseMIMEType = "application/json"
	}

	if timeout, err := time.ParseDuration(f.geminiConfig.Timeout); err == nil && timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	var resp *genai.GenerateContentResponse
	err = NewRetryConfig(f.maxRetries()).do(ctx, f.logger, ProviderGemini, func() error {
		var callErr error
		resp, callErr = client.Models.GenerateContent(ctx, model, contents, config)
		return callErr
	})
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response from Gemini API")
	}

	responseText := resp.Text()
	if responseText == "" {
		return nil, fmt.Errorf("empty text in Gemini response")
	}

	f.logger.Info().
		Str("model", model).
		Dur("duration", time.Since(start)).
		Int("response_length", len(responseText)).
		Msg("Gemini completion received")

	return &ContentResponse{
		Text:     responseText,
		Provider: ProviderGemini,
		Model:    model,
	}, nil
}

// parseGeminiThinkingLevel converts a reasoning effort to genai.ThinkingLevel
func parseGeminiThinkingLevel(level string) genai.ThinkingLevel {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "MINIMAL":
		return genai.ThinkingLevelMinimal
	case "LOW":
		return genai.ThinkingLevelLow
	case "MEDIUM":
		return genai.ThinkingLevelMedium
	case "HIGH":
		return genai.ThinkingLevelHigh
	default:
		return ""
	}
}
