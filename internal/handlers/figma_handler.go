package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/figmaqa/internal/planner"
	"github.com/ternarybob/figmaqa/internal/services/figma"
)

const pageSampleSize = 6

// PageSample is one frame shown in a page listing
type PageSample struct {
	Frame  string `json:"frame"`
	NodeID string `json:"node_id"`
}

// PageInfo is a page with its frame count and the first few frames
type PageInfo struct {
	PageID     string       `json:"page_id"`
	PageName   string       `json:"page_name"`
	FrameCount int          `json:"frame_count"`
	Samples    []PageSample `json:"samples"`
}

// PagesResponse is the body of GET /figma/pages
type PagesResponse struct {
	FileKey     string     `json:"file_key"`
	PagesTotal  int        `json:"pages_total"`
	FramesTotal int        `json:"frames_total"`
	Pages       []PageInfo `json:"pages"`
}

// FigmaHandler serves the diagnostic design-file listings
type FigmaHandler struct {
	design       DesignBrowser
	defaultToken string
	logger       arbor.ILogger
}

func NewFigmaHandler(design DesignBrowser, defaultToken string, logger arbor.ILogger) *FigmaHandler {
	return &FigmaHandler{design: design, defaultToken: defaultToken, logger: logger}
}

// PagesHandler handles GET /figma/pages?figma_url=|file_key=[&figma_token=]
func (h *FigmaHandler) PagesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	q := r.URL.Query()
	ref := q.Get("file_key")
	if ref == "" {
		ref = q.Get("figma_url")
	}
	fileKey, err := figma.ExtractFileKey(ref)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	token := h.token(r)
	if token == "" {
		WriteError(w, http.StatusBadRequest, "Falta figma_token o Authorization: Bearer")
		return
	}

	pages, err := h.design.ListPages(r.Context(), token, fileKey)
	if err != nil {
		h.logger.Warn().Err(err).Str("file_key", fileKey).Msg("Failed to list pages")
		WriteError(w, http.StatusBadGateway, "Error listando páginas: "+err.Error())
		return
	}
	frames, _, err := h.design.ListFrames(r.Context(), token, fileKey)
	if err != nil {
		h.logger.Warn().Err(err).Str("file_key", fileKey).Msg("Failed to list frames")
		WriteError(w, http.StatusBadGateway, "Error listando frames: "+err.Error())
		return
	}

	byPage := map[string]planner.Page{}
	for _, p := range planner.GroupByPage(frames) {
		byPage[p.ID] = p
	}

	resp := PagesResponse{
		FileKey:     fileKey,
		PagesTotal:  len(pages),
		FramesTotal: len(frames),
		Pages:       make([]PageInfo, 0, len(pages)),
	}
	for _, p := range pages {
		info := PageInfo{PageID: p.ID, PageName: p.Name, Samples: []PageSample{}}
		if grouped, ok := byPage[p.ID]; ok {
			info.FrameCount = len(grouped.Frames)
			for _, f := range grouped.Frames {
				if len(info.Samples) == pageSampleSize {
					break
				}
				info.Samples = append(info.Samples, PageSample{Frame: f.Name, NodeID: f.NodeID})
			}
		}
		resp.Pages = append(resp.Pages, info)
	}

	WriteJSON(w, http.StatusOK, resp)
}

// FilesHandler handles GET /figma/files
func (h *FigmaHandler) FilesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	token := h.token(r)
	if token == "" {
		WriteError(w, http.StatusBadRequest, "Falta figma_token o Authorization: Bearer")
		return
	}

	files, err := h.design.ListAccessibleFiles(r.Context(), token)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to list accessible files")
		WriteError(w, http.StatusBadGateway, "Error listando archivos: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, files)
}

func (h *FigmaHandler) token(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("figma_token")); t != "" {
		return t
	}
	if t := BearerToken(r); t != "" {
		return t
	}
	return h.defaultToken
}
