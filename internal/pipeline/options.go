package pipeline

import (
	"github.com/ternarybob/figmaqa/internal/common"
	"github.com/ternarybob/figmaqa/internal/models"
	"github.com/ternarybob/figmaqa/internal/planner"
)

// Image scale bounds accepted by the render endpoint
const (
	MinImageScale = 0.01
	MaxImageScale = 4.0
)

// Config is what the driver needs from the application config
type Config struct {
	Limits    planner.Limits
	Defaults  models.AnalyzeOptions
	OutputDir string
}

// ConfigFromApp derives the driver config from [analysis] and [export]
func ConfigFromApp(cfg *common.Config) Config {
	a := cfg.Analysis
	return Config{
		Limits: planner.Limits{
			MinGroupSize:       a.MinGroupSize,
			MaxGroupsPerPage:   a.MaxGroupsPerPage,
			MaxSectionsPerPage: a.MaxSectionsPerPage,
			MaxGroupsGlobal:    a.MaxGroupsGlobal,
			MaxSectionsGlobal:  a.MaxSectionsGlobal,
		},
		Defaults: models.AnalyzeOptions{
			AnalysisLevel:   models.AnalysisLevel(a.DefaultLevel),
			ImagesPerUnit:   a.ImagesPerUnit,
			Model:           a.Model,
			ImageScale:      a.ImageScale,
			ReasoningEffort: a.ReasoningEffort,
		},
		OutputDir: cfg.Export.OutputDir,
	}
}

// Normalize fills zero values from defaults and clamps the numeric knobs
func (c Config) Normalize(opts models.AnalyzeOptions) models.AnalyzeOptions {
	if opts.AnalysisLevel == "" {
		opts.AnalysisLevel = c.Defaults.AnalysisLevel
	}
	if opts.AnalysisLevel == "" {
		opts.AnalysisLevel = models.LevelGroup
	}
	if opts.ImagesPerUnit <= 0 {
		opts.ImagesPerUnit = c.Defaults.ImagesPerUnit
	}
	opts.ImagesPerUnit = planner.ClampImagesPerUnit(opts.ImagesPerUnit)

	if opts.ImageScale <= 0 {
		opts.ImageScale = c.Defaults.ImageScale
	}
	if opts.ImageScale <= 0 {
		opts.ImageScale = 2
	}
	if opts.ImageScale < MinImageScale {
		opts.ImageScale = MinImageScale
	}
	if opts.ImageScale > MaxImageScale {
		opts.ImageScale = MaxImageScale
	}

	if opts.Model == "" {
		opts.Model = c.Defaults.Model
	}
	if opts.ReasoningEffort == "" {
		opts.ReasoningEffort = c.Defaults.ReasoningEffort
	}
	if opts.MaxFrames < 0 {
		opts.MaxFrames = 0
	}
	return opts
}
