package handlers

import (
	"net/http"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/figmaqa/internal/interfaces"
	"github.com/ternarybob/figmaqa/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// JobStatusResponse is a job snapshot plus links to its outputs once completed
type JobStatusResponse struct {
	models.JobStatus
	DownloadURL string                 `json:"download_url,omitempty"`
	Analysis    *models.AnalysisDetail `json:"analysis,omitempty"`
}

// JobHandler serves job status and the workbook of finished runs
type JobHandler struct {
	jobs    JobReader
	storage interfaces.AnalysisStorage
	logger  arbor.ILogger
}

func NewJobHandler(jobs JobReader, storage interfaces.AnalysisStorage, logger arbor.ILogger) *JobHandler {
	return &JobHandler{jobs: jobs, storage: storage, logger: logger}
}

// ListJobsHandler handles GET /jobs
func (h *JobHandler) ListJobsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	list := h.jobs.List()
	for i := range list {
		list[i].Results = nil
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  list,
		"count": len(list),
	})
}

// GetJobHandler handles GET /jobs/{id}
func (h *JobHandler) GetJobHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	job, ok := h.jobs.Get(jobID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Job no encontrado")
		return
	}

	WriteJSON(w, http.StatusOK, h.describe(r, job))
}

func (h *JobHandler) describe(r *http.Request, job models.JobStatus) JobStatusResponse {
	resp := JobStatusResponse{JobStatus: job}
	if job.Status != models.JobCompleted {
		return resp
	}
	resp.DownloadURL = "/jobs/" + job.JobID + "/download"
	if job.AnalysisID > 0 && h.storage != nil {
		analysis, err := h.storage.GetAnalysis(r.Context(), job.AnalysisID, true)
		if err != nil {
			h.logger.Warn().Err(err).Str("job_id", job.JobID).Msg("Stored analysis unavailable for completed job")
		} else {
			resp.Analysis = analysis
		}
	}
	return resp
}

// DownloadHandler handles GET /jobs/{id}/download
func (h *JobHandler) DownloadHandler(w http.ResponseWriter, r *http.Request, jobID string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	job, ok := h.jobs.Get(jobID)
	if !ok {
		WriteError(w, http.StatusNotFound, "Job no encontrado")
		return
	}
	if job.Status != models.JobCompleted || job.OutputPath == "" {
		WriteError(w, http.StatusConflict, "Job no listo para descargar")
		return
	}
	if _, err := os.Stat(job.OutputPath); err != nil {
		h.logger.Warn().Err(err).Str("job_id", jobID).Str("path", job.OutputPath).Msg("Workbook missing on disk")
		WriteError(w, http.StatusGone, "El archivo ya no está disponible")
		return
	}

	serveAttachment(w, r, job.OutputPath, "casos_prueba.xlsx", xlsxContentType)
}

func serveAttachment(w http.ResponseWriter, r *http.Request, path, filename, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	http.ServeFile(w, r, path)
}
