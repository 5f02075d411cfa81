package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/figmaqa/internal/common"
	"github.com/ternarybob/figmaqa/internal/interfaces"
	"github.com/ternarybob/figmaqa/internal/jobs"
	"github.com/ternarybob/figmaqa/internal/models"
	"github.com/ternarybob/figmaqa/internal/pipeline"
	"github.com/ternarybob/figmaqa/internal/services/export"
	badgerstore "github.com/ternarybob/figmaqa/internal/storage/badger"
)

const testFileKey = "AbCdEfGhIjKlMn"

type fakeRunner struct {
	mu       sync.Mutex
	requests []pipeline.Request
}

func (f *fakeRunner) Start(_ context.Context, req pipeline.Request) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return "job-fake"
}

func (f *fakeRunner) Normalize(opts models.AnalyzeOptions) models.AnalyzeOptions {
	if opts.AnalysisLevel == "" {
		opts.AnalysisLevel = models.LevelGroup
	}
	return opts
}

func newTestStorage(t *testing.T) interfaces.AnalysisStorage {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := badgerstore.NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return badgerstore.NewAnalysisStorage(db, logger)
}

func saveSampleAnalysis(t *testing.T, storage interfaces.AnalysisStorage) uint64 {
	t.Helper()
	id, err := storage.SaveAnalysis(context.Background(), &models.AnalysisRun{
		JobID:         "job-1",
		FileKey:       testFileKey,
		FigmaURL:      "https://www.figma.com/design/" + testFileKey + "/App",
		AnalysisLevel: models.LevelPage,
		Model:         "gemini-test",
		ImagesPerUnit: 4,
		ImageScale:    2,
		MaxFrames:     7,
	}, []models.CasesBundle{{
		PageName:  "Home",
		FrameName: "[PAGE] Home",
		NodeID:    "1:1",
		Cases: []models.TestCase{
			{ID: "TC-1", Objetivo: "Entrar"},
			{ID: "TC-2", Objetivo: "Salir"},
		},
	}})
	require.NoError(t, err)
	return id
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func TestHealthHandler_ReportsBackgroundTasks(t *testing.T) {
	h := NewAPIHandler(arbor.NewLogger())
	before := common.GetGoroutineCount()
	done := make(chan struct{})
	common.SafeGo(arbor.NewLogger(), "health-test", func() { close(done) })
	<-done

	rec := httptest.NewRecorder()
	h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status          string `json:"status"`
		BackgroundTasks int64  `json:"background_tasks"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body.Status)
	assert.GreaterOrEqual(t, body.BackgroundTasks, before+1)
}

func TestAnalyzeHandler(t *testing.T) {
	logger := arbor.NewLogger()

	tests := []struct {
		name         string
		body         string
		bearer       string
		defaultToken string
		wantStatus   int
		wantToken    string
	}{
		{name: "token in body", body: `{"figma_url":"https://www.figma.com/file/` + testFileKey + `/App","figma_token":"body-tok"}`, wantStatus: http.StatusOK, wantToken: "body-tok"},
		{name: "bearer token", body: `{"file_key":"` + testFileKey + `"}`, bearer: "hdr-tok", wantStatus: http.StatusOK, wantToken: "hdr-tok"},
		{name: "configured token", body: `{"file_key":"` + testFileKey + `"}`, defaultToken: "cfg-tok", wantStatus: http.StatusOK, wantToken: "cfg-tok"},
		{name: "missing token", body: `{"file_key":"` + testFileKey + `"}`, wantStatus: http.StatusBadRequest},
		{name: "bad reference", body: `{"figma_url":"https://example.com/nothing","figma_token":"t"}`, wantStatus: http.StatusBadRequest},
		{name: "bad level", body: `{"file_key":"` + testFileKey + `","figma_token":"t","analysis_level":"screen"}`, wantStatus: http.StatusBadRequest},
		{name: "too many images", body: `{"file_key":"` + testFileKey + `","figma_token":"t","images_per_unit":13}`, wantStatus: http.StatusBadRequest},
		{name: "malformed json", body: `{`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &fakeRunner{}
			h := NewAnalyzeHandler(runner, nil, tt.defaultToken, logger)

			req := httptest.NewRequest(http.MethodPost, "/analyze", strings.NewReader(tt.body))
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			rec := httptest.NewRecorder()
			h.AnalyzeHandler(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				assert.Empty(t, runner.requests)
				return
			}

			var resp AnalyzeResponse
			decodeBody(t, rec, &resp)
			assert.Equal(t, "job-fake", resp.JobID)
			assert.Equal(t, "/jobs/job-fake", resp.StatusURL)
			assert.Nil(t, resp.DownloadURL)

			require.Len(t, runner.requests, 1)
			assert.Equal(t, testFileKey, runner.requests[0].FileKey)
			assert.Equal(t, tt.wantToken, runner.requests[0].Token)
			assert.Equal(t, models.LevelGroup, runner.requests[0].Options.AnalysisLevel)
		})
	}
}

func TestAnalyzeHandler_MethodNotAllowed(t *testing.T) {
	h := NewAnalyzeHandler(&fakeRunner{}, nil, "", arbor.NewLogger())
	rec := httptest.NewRecorder()
	h.AnalyzeHandler(rec, httptest.NewRequest(http.MethodGet, "/analyze", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRerunHandler_MergesStoredOptions(t *testing.T) {
	storage := newTestStorage(t)
	id := saveSampleAnalysis(t, storage)
	runner := &fakeRunner{}
	h := NewAnalyzeHandler(runner, storage, "", arbor.NewLogger())

	body := `{"figma_token":"tok","model":"claude-sonnet-4-5","images_per_unit":8}`
	rec := httptest.NewRecorder()
	h.RerunHandler(rec, httptest.NewRequest(http.MethodPost, "/analyses/1/rerun", strings.NewReader(body)), id)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, runner.requests, 1)
	got := runner.requests[0]
	assert.Equal(t, testFileKey, got.FileKey)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, models.LevelPage, got.Options.AnalysisLevel)
	assert.Equal(t, "claude-sonnet-4-5", got.Options.Model)
	assert.Equal(t, 8, got.Options.ImagesPerUnit)
	assert.Equal(t, 7, got.Options.MaxFrames)
	assert.Equal(t, 2.0, got.Options.ImageScale)
}

func TestRerunHandler_NotFound(t *testing.T) {
	h := NewAnalyzeHandler(&fakeRunner{}, newTestStorage(t), "", arbor.NewLogger())
	rec := httptest.NewRecorder()
	h.RerunHandler(rec, httptest.NewRequest(http.MethodPost, "/analyses/99/rerun", strings.NewReader(`{"figma_token":"t"}`)), 99)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestJobHandler(t *testing.T) {
	storage := newTestStorage(t)
	analysisID := saveSampleAnalysis(t, storage)
	store := jobs.NewStore()
	h := NewJobHandler(store, storage, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.GetJobHandler(rec, httptest.NewRequest(http.MethodGet, "/jobs/nope", nil), "nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	store.Create("job-1", testFileKey)
	store.Update("job-1", jobs.Patch{Status: ptrTo(models.JobInProgress)})

	rec = httptest.NewRecorder()
	h.DownloadHandler(rec, httptest.NewRequest(http.MethodGet, "/jobs/job-1/download", nil), "job-1")
	assert.Equal(t, http.StatusConflict, rec.Code)

	output := filepath.Join(t.TempDir(), "job-1.xlsx")
	require.NoError(t, export.WriteWorkbook(nil, output))
	store.Complete("job-1", output, []models.CasesBundle{{PageName: "Home"}}, analysisID)

	rec = httptest.NewRecorder()
	h.GetJobHandler(rec, httptest.NewRequest(http.MethodGet, "/jobs/job-1", nil), "job-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp JobStatusResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, models.JobCompleted, resp.Status)
	assert.Equal(t, "/jobs/job-1/download", resp.DownloadURL)
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, analysisID, resp.Analysis.ID)
	assert.Len(t, resp.Analysis.Cases, 2)

	rec = httptest.NewRecorder()
	h.DownloadHandler(rec, httptest.NewRequest(http.MethodGet, "/jobs/job-1/download", nil), "job-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "casos_prueba.xlsx")
	assert.NotZero(t, rec.Body.Len())
}

func TestAnalysisHandler(t *testing.T) {
	storage := newTestStorage(t)
	id := saveSampleAnalysis(t, storage)
	logger := arbor.NewLogger()
	h := NewAnalysisHandler(storage, export.NewService(t.TempDir(), logger), logger)

	t.Run("list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ListHandler(rec, httptest.NewRequest(http.MethodGet, "/analyses?file_key="+testFileKey, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Items []models.AnalysisRun `json:"items"`
			Count int                  `json:"count"`
		}
		decodeBody(t, rec, &resp)
		assert.Equal(t, 1, resp.Count)
		assert.Equal(t, 2, resp.Items[0].TotalCases)
	})

	t.Run("get without cases", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.GetHandler(rec, httptest.NewRequest(http.MethodGet, "/analyses/1?include_cases=false", nil), id)
		require.Equal(t, http.StatusOK, rec.Code)
		var detail models.AnalysisDetail
		decodeBody(t, rec, &detail)
		assert.Empty(t, detail.Cases)
	})

	t.Run("get missing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.GetHandler(rec, httptest.NewRequest(http.MethodGet, "/analyses/999", nil), 999)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	detail, err := storage.GetAnalysis(context.Background(), id, true)
	require.NoError(t, err)
	caseID := detail.Cases[0].ID

	t.Run("patch case", func(t *testing.T) {
		rec := httptest.NewRecorder()
		body := `{"status":"approved","score":8.5,"checked":true}`
		h.UpdateCaseHandler(rec, httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(body)), id, caseID)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var stored models.StoredCase
		decodeBody(t, rec, &stored)
		assert.Equal(t, models.EvaluationApproved, stored.Evaluation.Status)
		require.NotNil(t, stored.Evaluation.Score)
		assert.Equal(t, 8.5, *stored.Evaluation.Score)
		assert.True(t, stored.Evaluation.Checked)
	})

	t.Run("patch rejects empty and invalid bodies", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.UpdateCaseHandler(rec, httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{}`)), id, caseID)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = httptest.NewRecorder()
		h.UpdateCaseHandler(rec, httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"status":"maybe"}`)), id, caseID)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("case of another analysis", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.UpdateCaseHandler(rec, httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"checked":true}`)), id+100, caseID)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("export html", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ExportHandler(rec, httptest.NewRequest(http.MethodGet, "/analyses/1/export?format=html", nil), id)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rec.Body.String(), "Entrar")
	})

	t.Run("export unknown format", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ExportHandler(rec, httptest.NewRequest(http.MethodGet, "/analyses/1/export?format=docx", nil), id)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("history", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.HistoryHandler(rec, httptest.NewRequest(http.MethodGet, "/history/files", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Files []models.FileHistory `json:"files"`
		}
		decodeBody(t, rec, &resp)
		require.Len(t, resp.Files, 1)
		assert.Equal(t, testFileKey, resp.Files[0].FileKey)
	})

	t.Run("delete case then analysis", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.DeleteCaseHandler(rec, httptest.NewRequest(http.MethodDelete, "/", nil), id, caseID)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = httptest.NewRecorder()
		h.DeleteHandler(rec, httptest.NewRequest(http.MethodDelete, "/", nil), id)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = httptest.NewRecorder()
		h.DeleteHandler(rec, httptest.NewRequest(http.MethodDelete, "/", nil), id)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestPathHelpers(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/analyses/3/cases/9/", nil)
	assert.Equal(t, []string{"3", "cases", "9"}, PathSegments(req, "/analyses/"))

	id, ok := ParseID("42")
	assert.True(t, ok)
	assert.Equal(t, uint64(42), id)
	_, ok = ParseID("0")
	assert.False(t, ok)
	_, ok = ParseID("x")
	assert.False(t, ok)

	req = httptest.NewRequest(http.MethodGet, "/?limit=900&flag=false", nil)
	assert.Equal(t, 500, QueryInt(req, "limit", 50, 1, 500))
	assert.Equal(t, 7, QueryInt(req, "missing", 7, 1, 500))
	assert.False(t, QueryBool(req, "flag", true))

	req.Header.Set("Authorization", "bearer abc ")
	assert.Equal(t, "abc", BearerToken(req))
}

func TestDownloadHandler_MissingFile(t *testing.T) {
	store := jobs.NewStore()
	h := NewJobHandler(store, nil, arbor.NewLogger())
	store.Create("job-2", testFileKey)
	store.Update("job-2", jobs.Patch{Status: ptrTo(models.JobInProgress)})
	missing := filepath.Join(t.TempDir(), "gone.xlsx")
	store.Complete("job-2", missing, nil, 0)

	rec := httptest.NewRecorder()
	h.DownloadHandler(rec, httptest.NewRequest(http.MethodGet, "/jobs/job-2/download", nil), "job-2")
	assert.Equal(t, http.StatusGone, rec.Code)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 10*time.Millisecond)
}

func ptrTo[T any](v T) *T {
	return &v
}

func TestConfigHandler_RedactsSecrets(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Figma.Token = "figd_secret"
	cfg.Gemini.APIKey = "gem-key"
	cfg.Figma.OAuth.ClientID = "client"

	rec := httptest.NewRecorder()
	NewConfigHandler(arbor.NewLogger(), cfg).GetConfig(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.NotContains(t, body, "figd_secret")
	assert.NotContains(t, body, "gem-key")
	assert.Contains(t, body, "client")
	assert.Equal(t, "figd_secret", cfg.Figma.Token, "source config is untouched")
}

func TestListJobsHandler(t *testing.T) {
	store := jobs.NewStore()
	store.Create("job-a", testFileKey)
	store.Create("job-b", testFileKey)
	h := NewJobHandler(store, nil, arbor.NewLogger())

	rec := httptest.NewRecorder()
	h.ListJobsHandler(rec, httptest.NewRequest(http.MethodGet, "/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Jobs  []models.JobStatus `json:"jobs"`
		Count int                `json:"count"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 2, resp.Count)
}
