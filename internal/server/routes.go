package server

import (
	"net/http"

	"github.com/ternarybob/figmaqa/internal/handlers"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Service
	mux.HandleFunc("/", s.app.APIHandler.RootHandler)
	mux.HandleFunc("/health", s.app.APIHandler.HealthHandler)
	mux.HandleFunc("/favicon.ico", s.app.APIHandler.FaviconHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/config", s.app.ConfigHandler.GetConfig)

	// Runs
	mux.HandleFunc("/analyze", s.app.AnalyzeHandler.AnalyzeHandler) // POST
	mux.HandleFunc("/jobs", s.app.JobHandler.ListJobsHandler)
	mux.HandleFunc("/jobs/", s.handleJobRoutes)         // GET /{id}, GET /{id}/download
	mux.HandleFunc(streamPrefix, s.handleJobStreamRoute) // websocket /ws/jobs/{id}

	// Stored analyses
	mux.HandleFunc("/analyses", s.app.AnalysisHandler.ListHandler)
	mux.HandleFunc("/analyses/", s.handleAnalysisRoutes)
	mux.HandleFunc("/history/files", s.app.AnalysisHandler.HistoryHandler)

	// Design API diagnostics and OAuth
	mux.HandleFunc("/figma/pages", s.app.FigmaHandler.PagesHandler)
	mux.HandleFunc("/figma/files", s.app.FigmaHandler.FilesHandler)
	mux.HandleFunc("/oauth/figma/start", s.app.OAuthHandler.StartHandler)
	mux.HandleFunc("/oauth/figma/callback", s.app.OAuthHandler.CallbackHandler)
	mux.HandleFunc("/oauth/figma/refresh", s.app.OAuthHandler.RefreshHandler)

	return mux
}

// handleJobRoutes routes /jobs/{id} and /jobs/{id}/download
func (s *Server) handleJobRoutes(w http.ResponseWriter, r *http.Request) {
	parts := handlers.PathSegments(r, "/jobs/")

	switch {
	case len(parts) == 1:
		s.app.JobHandler.GetJobHandler(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "download":
		s.app.JobHandler.DownloadHandler(w, r, parts[0])
	default:
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}

// handleJobStreamRoute routes /ws/jobs/{id}
func (s *Server) handleJobStreamRoute(w http.ResponseWriter, r *http.Request) {
	parts := handlers.PathSegments(r, streamPrefix)
	if len(parts) != 1 {
		s.app.APIHandler.NotFoundHandler(w, r)
		return
	}
	s.app.JobStreamHandler.StreamHandler(w, r, parts[0])
}

// handleAnalysisRoutes routes everything below /analyses/
func (s *Server) handleAnalysisRoutes(w http.ResponseWriter, r *http.Request) {
	parts := handlers.PathSegments(r, "/analyses/")
	if len(parts) == 0 {
		s.app.AnalysisHandler.ListHandler(w, r)
		return
	}

	id, ok := handlers.ParseID(parts[0])
	if !ok {
		handlers.WriteError(w, http.StatusBadRequest, "Id de análisis inválido")
		return
	}

	switch {
	// /analyses/{id}
	case len(parts) == 1:
		RouteResourceItem(w, r,
			func(w http.ResponseWriter, r *http.Request) { s.app.AnalysisHandler.GetHandler(w, r, id) },
			nil,
			func(w http.ResponseWriter, r *http.Request) { s.app.AnalysisHandler.DeleteHandler(w, r, id) },
		)

	// /analyses/{id}/export
	case len(parts) == 2 && parts[1] == "export":
		s.app.AnalysisHandler.ExportHandler(w, r, id)

	// /analyses/{id}/rerun
	case len(parts) == 2 && parts[1] == "rerun":
		s.app.AnalyzeHandler.RerunHandler(w, r, id)

	// /analyses/{id}/cases/{caseId}
	case len(parts) == 3 && parts[1] == "cases":
		caseID, ok := handlers.ParseID(parts[2])
		if !ok {
			handlers.WriteError(w, http.StatusBadRequest, "Id de caso inválido")
			return
		}
		RouteResourceItem(w, r,
			nil,
			func(w http.ResponseWriter, r *http.Request) { s.app.AnalysisHandler.UpdateCaseHandler(w, r, id, caseID) },
			func(w http.ResponseWriter, r *http.Request) { s.app.AnalysisHandler.DeleteCaseHandler(w, r, id, caseID) },
		)

	default:
		s.app.APIHandler.NotFoundHandler(w, r)
	}
}
