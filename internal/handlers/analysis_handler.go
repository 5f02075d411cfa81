package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/figmaqa/internal/interfaces"
	"github.com/ternarybob/figmaqa/internal/models"
	"github.com/ternarybob/figmaqa/internal/services/export"
	badgerstore "github.com/ternarybob/figmaqa/internal/storage/badger"
)

var exportContentTypes = map[string]string{
	export.FormatXLSX: xlsxContentType,
	export.FormatPDF:  "application/pdf",
	export.FormatHTML: "text/html; charset=utf-8",
}

// AnalysisHandler serves stored analyses, their cases and exports
type AnalysisHandler struct {
	storage  interfaces.AnalysisStorage
	exporter interfaces.Exporter
	logger   arbor.ILogger
}

func NewAnalysisHandler(storage interfaces.AnalysisStorage, exporter interfaces.Exporter, logger arbor.ILogger) *AnalysisHandler {
	return &AnalysisHandler{storage: storage, exporter: exporter, logger: logger}
}

// ListHandler handles GET /analyses?limit=&file_key=
func (h *AnalysisHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	limit := QueryInt(r, "limit", 50, 1, 500)
	items, err := h.storage.ListAnalyses(r.Context(), limit, r.URL.Query().Get("file_key"))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list analyses")
		WriteError(w, http.StatusInternalServerError, "No se pudieron listar los análisis")
		return
	}
	if items == nil {
		items = []models.AnalysisRun{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// GetHandler handles GET /analyses/{id}?include_cases=
func (h *AnalysisHandler) GetHandler(w http.ResponseWriter, r *http.Request, id uint64) {
	detail, err := h.storage.GetAnalysis(r.Context(), id, QueryBool(r, "include_cases", true))
	if err != nil {
		h.storageError(w, err, "get analysis")
		return
	}
	WriteJSON(w, http.StatusOK, detail)
}

// DeleteHandler handles DELETE /analyses/{id}
func (h *AnalysisHandler) DeleteHandler(w http.ResponseWriter, r *http.Request, id uint64) {
	if err := h.storage.DeleteAnalysis(r.Context(), id); err != nil {
		h.storageError(w, err, "delete analysis")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ExportHandler handles GET /analyses/{id}/export?format=xlsx|pdf|html
func (h *AnalysisHandler) ExportHandler(w http.ResponseWriter, r *http.Request, id uint64) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatXLSX
	}
	contentType, ok := exportContentTypes[format]
	if !ok {
		WriteError(w, http.StatusBadRequest, "Formato no soportado (xlsx, pdf o html)")
		return
	}

	run, err := h.storage.GetAnalysis(r.Context(), id, false)
	if err != nil {
		h.storageError(w, err, "get analysis")
		return
	}
	bundles, err := h.storage.GetBundles(r.Context(), id)
	if err != nil {
		h.storageError(w, err, "get bundles")
		return
	}

	path, err := h.exporter.Export(bundles, format, fmt.Sprintf("Análisis %d %s", id, run.FileKey))
	if err != nil {
		h.logger.Error().Err(err).Int64("analysis_id", int64(id)).Str("format", format).Msg("Export failed")
		WriteError(w, http.StatusInternalServerError, "No se pudo generar la exportación")
		return
	}

	serveAttachment(w, r, path, fmt.Sprintf("analysis_%d%s", id, filepath.Ext(path)), contentType)
}

// UpdateCaseHandler handles PATCH /analyses/{id}/cases/{caseId}
func (h *AnalysisHandler) UpdateCaseHandler(w http.ResponseWriter, r *http.Request, id, caseID uint64) {
	var patch models.CaseEvaluationPatch
	if err := DecodeJSON(r, &patch, true); err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if isEmptyPatch(patch) {
		WriteError(w, http.StatusBadRequest, "No se enviaron campos a actualizar")
		return
	}

	if !h.caseBelongs(w, r, id, caseID) {
		return
	}

	updated, err := h.storage.UpdateCaseEvaluation(r.Context(), caseID, patch)
	if err != nil {
		h.storageError(w, err, "update case")
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// DeleteCaseHandler handles DELETE /analyses/{id}/cases/{caseId}
func (h *AnalysisHandler) DeleteCaseHandler(w http.ResponseWriter, r *http.Request, id, caseID uint64) {
	if !h.caseBelongs(w, r, id, caseID) {
		return
	}
	if err := h.storage.DeleteCase(r.Context(), caseID); err != nil {
		h.storageError(w, err, "delete case")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HistoryHandler handles GET /history/files?limit=
func (h *AnalysisHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	files, err := h.storage.ListRecentFiles(r.Context(), QueryInt(r, "limit", 100, 1, 500))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list file history")
		WriteError(w, http.StatusInternalServerError, "No se pudo leer el historial")
		return
	}
	if files == nil {
		files = []models.FileHistory{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"files": files,
		"count": len(files),
	})
}

func (h *AnalysisHandler) caseBelongs(w http.ResponseWriter, r *http.Request, id, caseID uint64) bool {
	stored, err := h.storage.GetCase(r.Context(), caseID)
	if err != nil {
		h.storageError(w, err, "get case")
		return false
	}
	if stored.RunID != id {
		WriteError(w, http.StatusNotFound, "Caso no encontrado para este análisis")
		return false
	}
	return true
}

func (h *AnalysisHandler) storageError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, badgerstore.ErrAnalysisNotFound):
		WriteError(w, http.StatusNotFound, "Análisis no encontrado")
	case errors.Is(err, badgerstore.ErrCaseNotFound):
		WriteError(w, http.StatusNotFound, "Caso no encontrado para este análisis")
	default:
		h.logger.Error().Err(err).Str("op", op).Msg("Analysis storage error")
		WriteError(w, http.StatusInternalServerError, "Error de almacenamiento")
	}
}

func isEmptyPatch(p models.CaseEvaluationPatch) bool {
	return p.Evaluated == nil && p.Status == nil && p.Score == nil && !p.ClearScore && p.Notes == nil && p.Checked == nil
}
