package llm

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/figmaqa/internal/models"
)

const rawPreviewLength = 300

// Generator implements interfaces.CaseGenerator. Each call runs an ordered
// list of model strategies: the requested model, then the configured
// fallbacks. A strategy that errors or yields no cases hands over to the next.
type Generator struct {
	content        ContentGenerator
	images         ImageLoader
	defaultModel   string
	fallbackModels []string
	logger         arbor.ILogger
}

// NewGenerator creates a Generator. images may be nil to send prompts without images.
func NewGenerator(content ContentGenerator, images ImageLoader, defaultModel string, fallbackModels []string, logger arbor.ILogger) *Generator {
	return &Generator{
		content:        content,
		images:         images,
		defaultModel:   defaultModel,
		fallbackModels: fallbackModels,
		logger:         logger,
	}
}

// Strategies returns the models tried for a request, in order, without duplicates
func (g *Generator) Strategies(requested string) []string {
	candidates := append([]string{requested, g.defaultModel}, g.fallbackModels...)
	seen := make(map[string]struct{}, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, m := range candidates {
		m = strings.TrimSpace(m)
		if m == "" {
			continue
		}
		key := strings.ToLower(NormalizeModel(m))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}

// GenerateCases returns the cases of the first strategy that produced any.
// An empty result with a nil error means every strategy was exhausted; the
// only error returned is context cancellation.
func (g *Generator) GenerateCases(ctx context.Context, summary *models.UnitSummary, opts models.GenerationOptions) ([]models.TestCase, error) {
	prompt := BuildPrompt(summary, opts.ImagesPerUnit)
	images := g.loadImages(ctx, prompt.Images)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unit := summary.UnitLabel
	if unit == "" && len(summary.Frames) > 0 {
		unit = summary.Frames[0].FrameName
	}

	for _, model := range g.Strategies(opts.Model) {
		request := &ContentRequest{
			Model:             model,
			SystemInstruction: SystemPrompt,
			Text:              prompt.Text,
			Images:            images,
			Temperature:       0.2,
			ThinkingLevel:     opts.ReasoningEffort,
			JSONOutput:        true,
		}

		start := time.Now()
		resp, err := g.content.GenerateContent(ctx, request)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			g.logger.Error().
				Err(err).
				Str("model", model).
				Str("page", summary.PageName).
				Str("unit", unit).
				Msg("Generation call failed")
			continue
		}

		cases, err := ParseCases(resp.Text)
		if err != nil {
			g.logger.Warn().
				Err(err).
				Str("model", model).
				Str("unit", unit).
				Str("raw", preview(resp.Text)).
				Msg("Model response could not be parsed")
			continue
		}
		if len(cases) == 0 {
			g.logger.Warn().
				Str("model", model).
				Str("page", summary.PageName).
				Str("unit", unit).
				Str("raw", preview(resp.Text)).
				Msg("Model returned 0 cases")
			continue
		}

		primary := summary.PrimaryImage()
		for i := range cases {
			if cases[i].ImageURL == "" {
				cases[i].ImageURL = primary
			}
		}

		g.logger.Info().
			Str("model", model).
			Str("page", summary.PageName).
			Str("unit", unit).
			Int("cases", len(cases)).
			Dur("duration", time.Since(start)).
			Msg("Cases generated")
		return cases, nil
	}

	g.logger.Warn().
		Str("page", summary.PageName).
		Str("unit", unit).
		Msg("All generation strategies exhausted without cases")
	return nil, nil
}

// loadImages downloads every referenced image; failures are logged and skipped
func (g *Generator) loadImages(ctx context.Context, refs []ImageRef) []ImagePart {
	if g.images == nil || len(refs) == 0 {
		return nil
	}
	parts := make([]ImagePart, 0, len(refs))
	for _, ref := range refs {
		if ctx.Err() != nil {
			return parts
		}
		data, mimeType, err := g.images.Load(ctx, ref.URL)
		if err != nil {
			g.logger.Warn().Err(err).Str("label", ref.Label).Msg("Image could not be loaded, continuing without it")
			continue
		}
		parts = append(parts, ImagePart{Label: ref.Label, URL: ref.URL, Data: data, MIMEType: mimeType})
	}
	return parts
}

func preview(s string) string {
	if len(s) > rawPreviewLength {
		cut := rawPreviewLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut]
	}
	return s
}
