// Package pipeline runs one analysis end to end: frame discovery, unit
// planning, node and image fetches, case generation, persistence and export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/figmaqa/internal/common"
	"github.com/ternarybob/figmaqa/internal/interfaces"
	"github.com/ternarybob/figmaqa/internal/jobs"
	"github.com/ternarybob/figmaqa/internal/models"
	"github.com/ternarybob/figmaqa/internal/planner"
)

// ErrNoCases means every unit finished without a single generated case
var ErrNoCases = errors.New("no test cases were generated")

// Request is one analysis to run
type Request struct {
	JobID    string
	FileKey  string
	FigmaURL string
	Token    string
	Options  models.AnalyzeOptions
}

// Driver executes analysis runs and reports progress to the job store.
// Runs share nothing but the store.
type Driver struct {
	design    interfaces.DesignClient
	generator interfaces.CaseGenerator
	storage   interfaces.AnalysisStorage
	exporter  interfaces.Exporter
	jobs      *jobs.Store
	config    Config
	logger    arbor.ILogger
}

// NewDriver creates a pipeline driver
func NewDriver(
	design interfaces.DesignClient,
	generator interfaces.CaseGenerator,
	storage interfaces.AnalysisStorage,
	exporter interfaces.Exporter,
	store *jobs.Store,
	config Config,
	logger arbor.ILogger,
) *Driver {
	return &Driver{
		design:    design,
		generator: generator,
		storage:   storage,
		exporter:  exporter,
		jobs:      store,
		config:    config,
		logger:    logger,
	}
}

// Normalize applies the configured defaults to run options
func (d *Driver) Normalize(opts models.AnalyzeOptions) models.AnalyzeOptions {
	return d.config.Normalize(opts)
}

// Start registers the job and runs it in the background. It returns immediately
// with the job id; the run outlives ctx's cancellation.
func (d *Driver) Start(ctx context.Context, req Request) string {
	if req.JobID == "" {
		req.JobID = common.NewJobID()
	}
	req.Options = d.config.Normalize(req.Options)

	d.jobs.Create(req.JobID, req.FileKey)
	d.jobs.Update(req.JobID, jobs.Patch{
		Status:  ptr(models.JobInProgress),
		Message: ptr("Iniciando análisis…"),
	})

	runCtx := context.WithoutCancel(ctx)
	common.SafeGoWithRecover(d.logger, "analysis-"+req.JobID, func() {
		_ = d.Run(runCtx, req)
	}, func(recovered any) {
		d.jobs.Fail(req.JobID, fmt.Sprintf("panic: %v", recovered))
	})

	d.logger.Info().
		Str("job_id", req.JobID).
		Str("file_key", req.FileKey).
		Str("level", string(req.Options.AnalysisLevel)).
		Msg("Analysis run started in background goroutine")
	return req.JobID
}

// Run executes the whole pipeline synchronously. Any returned error has
// already been recorded as the job's failure.
func (d *Driver) Run(ctx context.Context, req Request) error {
	logger := d.logger.WithCorrelationId(req.JobID)
	started := time.Now()

	// Jobs created through Start are already in progress; this covers direct callers
	if _, ok := d.jobs.Get(req.JobID); !ok {
		d.jobs.Create(req.JobID, req.FileKey)
	}
	d.jobs.Update(req.JobID, jobs.Patch{Status: ptr(models.JobInProgress)})

	bundles, analysisID, outputPath, err := d.execute(ctx, req, logger)
	if err != nil {
		logger.Error().Err(err).Str("file_key", req.FileKey).Msg("Analysis run failed")
		d.jobs.Fail(req.JobID, failureText(err))
		return err
	}

	d.jobs.Complete(req.JobID, outputPath, bundles, analysisID)

	logger.Info().
		Str("file_key", req.FileKey).
		Int("bundles", len(bundles)).
		Int("cases", countCases(bundles)).
		Int("units_without_cases", emptyBundles(bundles)).
		Str("output", outputPath).
		Dur("elapsed", time.Since(started)).
		Msg("Analysis run completed")
	return nil
}

func (d *Driver) execute(ctx context.Context, req Request, logger arbor.ILogger) ([]models.CasesBundle, uint64, string, error) {
	opts := req.Options
	level := opts.AnalysisLevel

	d.stage(req.JobID, models.StageListFrames, "Listando frames…")
	frames, document, err := d.design.ListFrames(ctx, req.Token, req.FileKey)
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to list frames: %w", err)
	}
	if len(frames) == 0 {
		return nil, 0, "", planner.ErrNoFrames
	}

	in := planner.Input{Level: level, Frames: frames, PageTrees: pageTrees(document)}
	limits := d.config.Limits
	limits.MaxFrames = opts.MaxFrames

	// Group planning reads detected elements, so it waits for the node fetch
	var units []models.Unit
	if level != models.LevelGroup {
		if units, err = d.plan(req, in, limits, len(frames)); err != nil {
			return nil, 0, "", err
		}
	}

	logger.Info().
		Str("file_key", req.FileKey).
		Int("frames_total", len(frames)).
		Int("units", len(units)).
		Str("level", string(level)).
		Str("model", opts.Model).
		Msg("Analysis started")

	d.stage(req.JobID, models.StageFetchNodes, "Obteniendo detalles de nodos…")
	fetchStart := time.Now()
	nodes, err := d.design.GetNodes(ctx, req.Token, req.FileKey, planner.FrameNodeIDs(frames))
	if err = tolerate(err, logger, "node details"); err != nil {
		return nil, 0, "", fmt.Errorf("failed to fetch node details: %w", err)
	}
	logger.Info().Int("nodes", len(nodes)).Dur("elapsed", time.Since(fetchStart)).Msg("Node details fetched")
	d.stage(req.JobID, models.StageFetchNodesDone, fmt.Sprintf("Detalles de %d nodos listos…", len(nodes)))

	if level == models.LevelGroup {
		in.Elements = elementsByFrame(nodes)
		if units, err = d.plan(req, in, limits, len(frames)); err != nil {
			return nil, 0, "", err
		}
	}

	imageIDs := planner.ImageNodeIDs(units, opts.ImagesPerUnit)
	d.stage(req.JobID, models.StageRenderImages, fmt.Sprintf("Renderizando imágenes (%d nodos)…", len(imageIDs)))
	fetchStart = time.Now()
	images, err := d.design.GetImages(ctx, req.Token, req.FileKey, imageIDs, opts.ImageScale)
	if err = tolerate(err, logger, "images"); err != nil {
		return nil, 0, "", fmt.Errorf("failed to render images: %w", err)
	}
	logger.Info().
		Int("resolved", len(images)).
		Int("requested", len(imageIDs)).
		Dur("elapsed", time.Since(fetchStart)).
		Msg("Images resolved")
	d.stage(req.JobID, models.StageRenderImagesDone, fmt.Sprintf("Imágenes listas (%d)…", len(images)))

	data := &runData{fileKey: req.FileKey, nodes: nodes, images: images}
	bundles, err := d.generateAll(ctx, req, units, data, logger)
	if err != nil {
		return nil, 0, "", err
	}
	if countCases(bundles) == 0 {
		return nil, 0, "", ErrNoCases
	}

	d.stage(req.JobID, models.StagePersist, "Guardando análisis…")
	run := &models.AnalysisRun{
		JobID:           req.JobID,
		FileKey:         req.FileKey,
		FigmaURL:        req.FigmaURL,
		AnalysisLevel:   level,
		Model:           opts.Model,
		ImagesPerUnit:   opts.ImagesPerUnit,
		ImageScale:      opts.ImageScale,
		ReasoningEffort: opts.ReasoningEffort,
		MaxFrames:       opts.MaxFrames,
	}
	analysisID, err := d.storage.SaveAnalysis(ctx, run, bundles)
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to persist analysis: %w", err)
	}

	d.stage(req.JobID, models.StageBuildExcel, "Construyendo Excel…")
	outputPath := filepath.Join(d.config.OutputDir, req.JobID+".xlsx")
	if err := d.exporter.WriteWorkbook(bundles, outputPath); err != nil {
		return nil, 0, "", fmt.Errorf("failed to build workbook: %w", err)
	}

	return bundles, analysisID, outputPath, nil
}

func (d *Driver) plan(req Request, in planner.Input, limits planner.Limits, framesTotal int) ([]models.Unit, error) {
	units, err := planner.Plan(in, limits)
	if err != nil {
		return nil, err
	}
	d.jobs.Update(req.JobID, jobs.Patch{
		Stage:            ptr(models.StagePrepare),
		FramesTotal:      ptr(framesTotal),
		FramesProcessing: ptr(len(units)),
		UnitsTotal:       ptr(len(units)),
		Message:          ptr(fmt.Sprintf("Unidades a procesar: %d (nivel: %s)", len(units), in.Level)),
	})
	return units, nil
}

// generateAll processes units sequentially in planner order
func (d *Driver) generateAll(ctx context.Context, req Request, units []models.Unit, data *runData, logger arbor.ILogger) ([]models.CasesBundle, error) {
	opts := req.Options
	genOpts := models.GenerationOptions{
		Model:           opts.Model,
		ReasoningEffort: opts.ReasoningEffort,
		ImagesPerUnit:   opts.ImagesPerUnit,
	}
	noun := unitNoun(opts.AnalysisLevel)

	d.jobs.Update(req.JobID, jobs.Patch{Stage: ptr(models.StageGenerate)})

	bundles := make([]models.CasesBundle, 0, len(units))
	for i, unit := range units {
		idx := i + 1
		d.jobs.SetProgress(req.JobID, i, fmt.Sprintf("Procesando %s %d/%d…", noun, idx, len(units)), 0)

		unitStart := time.Now()
		summary := data.unitSummary(unit, opts.ImagesPerUnit, logger)
		if len(summary.Frames) == 0 {
			logger.Warn().
				Str("page", unit.PageName).
				Str("label", unit.Label).
				Msg("Skipping unit without any rendered image")
			d.jobs.SetProgress(req.JobID, idx, "", 0)
			continue
		}

		logger.Info().
			Int("unit", idx).
			Int("units", len(units)).
			Str("page", unit.PageName).
			Str("label", unit.Label).
			Int("frames", len(summary.Frames)).
			Msg("Generating cases")

		cases, err := d.generate(ctx, summary, genOpts, logger)
		if err != nil {
			return nil, err
		}

		if len(cases) == 0 && unit.Level == models.LevelPage {
			cases, err = d.fallbackPerFrame(ctx, summary, genOpts, logger)
			if err != nil {
				return nil, err
			}
			if len(cases) == 0 {
				d.jobs.SetProgress(req.JobID, i,
					fmt.Sprintf("Sin casos en página '%s'. Prueba subir images_per_unit o cambiar modelo.", unit.PageName), 0)
			}
		}

		logger.Info().
			Str("label", unit.BundleLabel()).
			Int("cases", len(cases)).
			Dur("elapsed", time.Since(unitStart)).
			Msg("Unit processed")

		bundles = append(bundles, models.CasesBundle{
			PageName:  unit.PageName,
			FrameName: unit.BundleLabel(),
			NodeID:    unit.BundleNodeID(),
			Cases:     cases,
		})
		d.jobs.SetProgress(req.JobID, idx, "", len(cases))
	}
	return bundles, nil
}

// generate isolates one generation call: only cancellation escapes, any other
// failure is logged and treated as zero cases.
func (d *Driver) generate(ctx context.Context, summary *models.UnitSummary, opts models.GenerationOptions, logger arbor.ILogger) ([]models.TestCase, error) {
	cases, err := d.generator.GenerateCases(ctx, summary, opts)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Error().Err(err).Str("page", summary.PageName).Str("label", summary.UnitLabel).Msg("Case generation failed")
		return nil, nil
	}
	return cases, nil
}

// fallbackPerFrame retries a page that produced nothing, one frame at a time
func (d *Driver) fallbackPerFrame(ctx context.Context, page *models.UnitSummary, opts models.GenerationOptions, logger arbor.ILogger) ([]models.TestCase, error) {
	var all []models.TestCase
	for _, f := range page.Frames {
		cases, err := d.generate(ctx, page.ForFrame(f), opts, logger)
		if err != nil {
			return nil, err
		}
		all = append(all, cases...)
	}
	if len(all) > 0 {
		logger.Info().Str("page", page.PageName).Int("cases", len(all)).Msg("Per-frame fallback produced cases")
	}
	return all, nil
}

func (d *Driver) stage(jobID, stage, message string) {
	d.jobs.Update(jobID, jobs.Patch{Stage: ptr(stage), Message: ptr(message)})
}

// tolerate downgrades a partial fetch failure to a warning
func tolerate(err error, logger arbor.ILogger, what string) error {
	var partial *models.PartialFetchError
	if errors.As(err, &partial) {
		logger.Warn().Strs("errors", partial.Errors).Msgf("Partial %s fetch, continuing with resolved entries", what)
		return nil
	}
	return err
}

// failureText is the job error shown to users
func failureText(err error) string {
	switch {
	case errors.Is(err, planner.ErrNoFrames):
		return "No se encontraron frames en el archivo"
	case errors.Is(err, planner.ErrNoUnits):
		return "No se pudieron armar unidades de análisis con los frames del archivo"
	case errors.Is(err, ErrNoCases):
		return "No se pudieron generar casos (sin imágenes o sin frames)"
	}
	return err.Error()
}

func unitNoun(level models.AnalysisLevel) string {
	switch level {
	case models.LevelPage:
		return "página"
	case models.LevelGroup:
		return "grupo"
	case models.LevelSection:
		return "sección"
	}
	return "frame"
}

func emptyBundles(bundles []models.CasesBundle) int {
	n := 0
	for _, b := range bundles {
		if len(b.Cases) == 0 {
			n++
		}
	}
	return n
}

func countCases(bundles []models.CasesBundle) int {
	n := 0
	for _, b := range bundles {
		n += len(b.Cases)
	}
	return n
}

func ptr[T any](v T) *T {
	return &v
}
