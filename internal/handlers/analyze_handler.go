package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/figmaqa/internal/interfaces"
	"github.com/ternarybob/figmaqa/internal/models"
	"github.com/ternarybob/figmaqa/internal/pipeline"
	"github.com/ternarybob/figmaqa/internal/services/figma"
	badgerstore "github.com/ternarybob/figmaqa/internal/storage/badger"
)

// AnalyzeRequest is the body of POST /analyze
type AnalyzeRequest struct {
	FigmaURL        string  `json:"figma_url"`
	FileKey         string  `json:"file_key"`
	FigmaToken      string  `json:"figma_token"`
	AnalysisLevel   string  `json:"analysis_level" validate:"omitempty,oneof=frame page group section"`
	ImagesPerUnit   int     `json:"images_per_unit" validate:"omitempty,min=1,max=12"`
	MaxFrames       int     `json:"max_frames" validate:"omitempty,min=1"`
	Model           string  `json:"model"`
	ImageScale      float64 `json:"image_scale" validate:"omitempty,gt=0,lte=4"`
	ReasoningEffort string  `json:"reasoning_effort" validate:"omitempty,oneof=low medium high"`
}

func (a AnalyzeRequest) options() models.AnalyzeOptions {
	return models.AnalyzeOptions{
		AnalysisLevel:   models.AnalysisLevel(a.AnalysisLevel),
		ImagesPerUnit:   a.ImagesPerUnit,
		MaxFrames:       a.MaxFrames,
		Model:           strings.TrimSpace(a.Model),
		ImageScale:      a.ImageScale,
		ReasoningEffort: a.ReasoningEffort,
	}
}

// RerunRequest overrides the stored options of an analysis. Zero values keep the stored value.
type RerunRequest struct {
	FigmaToken      string  `json:"figma_token"`
	AnalysisLevel   string  `json:"analysis_level" validate:"omitempty,oneof=frame page group section"`
	ImagesPerUnit   int     `json:"images_per_unit" validate:"omitempty,min=1,max=12"`
	MaxFrames       *int    `json:"max_frames" validate:"omitempty,min=0"`
	Model           string  `json:"model"`
	ImageScale      float64 `json:"image_scale" validate:"omitempty,gt=0,lte=4"`
	ReasoningEffort string  `json:"reasoning_effort" validate:"omitempty,oneof=low medium high"`
}

// AnalyzeResponse is returned when a run was accepted
type AnalyzeResponse struct {
	JobID       string  `json:"job_id"`
	StatusURL   string  `json:"status_url"`
	DownloadURL *string `json:"download_url"`
}

// AnalyzeHandler accepts analysis runs
type AnalyzeHandler struct {
	runner       RunStarter
	storage      interfaces.AnalysisStorage
	defaultToken string
	logger       arbor.ILogger
}

// NewAnalyzeHandler creates the handler. defaultToken is used when a request carries none.
func NewAnalyzeHandler(runner RunStarter, storage interfaces.AnalysisStorage, defaultToken string, logger arbor.ILogger) *AnalyzeHandler {
	return &AnalyzeHandler{
		runner:       runner,
		storage:      storage,
		defaultToken: defaultToken,
		logger:       logger,
	}
}

// AnalyzeHandler handles POST /analyze
func (h *AnalyzeHandler) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req AnalyzeRequest
	if err := DecodeJSON(r, &req, false); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref := req.FileKey
	if ref == "" {
		ref = req.FigmaURL
	}
	h.start(w, r, ref, req.FigmaURL, req.FigmaToken, req.options())
}

// RerunHandler handles POST /analyses/{id}/rerun
func (h *AnalyzeHandler) RerunHandler(w http.ResponseWriter, r *http.Request, analysisID uint64) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req RerunRequest
	if err := DecodeJSON(r, &req, true); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	stored, err := h.storage.GetAnalysis(r.Context(), analysisID, false)
	if err != nil {
		if errors.Is(err, badgerstore.ErrAnalysisNotFound) {
			WriteError(w, http.StatusNotFound, "Análisis no encontrado")
			return
		}
		h.logger.Error().Err(err).Int64("analysis_id", int64(analysisID)).Msg("Failed to load analysis for rerun")
		WriteError(w, http.StatusInternalServerError, "No se pudo leer el análisis")
		return
	}

	opts := mergeOptions(stored.Options(), req)
	h.start(w, r, stored.FileKey, stored.FigmaURL, req.FigmaToken, opts)
}

func mergeOptions(base models.AnalyzeOptions, o RerunRequest) models.AnalyzeOptions {
	if o.AnalysisLevel != "" {
		base.AnalysisLevel = models.AnalysisLevel(o.AnalysisLevel)
	}
	if o.ImagesPerUnit > 0 {
		base.ImagesPerUnit = o.ImagesPerUnit
	}
	if o.MaxFrames != nil {
		base.MaxFrames = *o.MaxFrames
	}
	if m := strings.TrimSpace(o.Model); m != "" {
		base.Model = m
	}
	if o.ImageScale > 0 {
		base.ImageScale = o.ImageScale
	}
	if o.ReasoningEffort != "" {
		base.ReasoningEffort = o.ReasoningEffort
	}
	return base
}

// start validates the source and credentials, then hands the run to the pipeline.
// Nothing is created when validation fails.
func (h *AnalyzeHandler) start(w http.ResponseWriter, r *http.Request, ref, figmaURL, bodyToken string, opts models.AnalyzeOptions) {
	fileKey, err := figma.ExtractFileKey(ref)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	token := h.resolveToken(r, bodyToken)
	if token == "" {
		WriteError(w, http.StatusBadRequest, "Falta figma_token o cabecera Authorization: Bearer")
		return
	}

	if _, err := models.ParseAnalysisLevel(string(opts.AnalysisLevel)); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID := h.runner.Start(context.WithoutCancel(r.Context()), pipeline.Request{
		FileKey:  fileKey,
		FigmaURL: figmaURL,
		Token:    token,
		Options:  h.runner.Normalize(opts),
	})

	h.logger.Info().
		Str("job_id", jobID).
		Str("file_key", fileKey).
		Str("level", string(opts.AnalysisLevel)).
		Str("model", opts.Model).
		Msg("Analyze request accepted")

	WriteJSON(w, http.StatusOK, AnalyzeResponse{
		JobID:     jobID,
		StatusURL: "/jobs/" + jobID,
	})
}

func (h *AnalyzeHandler) resolveToken(r *http.Request, bodyToken string) string {
	if t := strings.TrimSpace(bodyToken); t != "" {
		return t
	}
	if t := BearerToken(r); t != "" {
		return t
	}
	return h.defaultToken
}
