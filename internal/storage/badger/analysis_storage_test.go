package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/figmaqa/internal/common"
	"github.com/ternarybob/figmaqa/internal/models"
)

func newTestStorage(t *testing.T) *AnalysisStorage {
	t.Helper()
	logger := arbor.NewLogger()
	db, err := NewBadgerDB(logger, &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewAnalysisStorage(db, logger).(*AnalysisStorage)
}

func sampleBundles() []models.CasesBundle {
	return []models.CasesBundle{
		{
			PageName:  "Checkout",
			FrameName: "[GROUP] pago",
			NodeID:    "1:1",
			Cases: []models.TestCase{
				{ID: "TC-1", Objetivo: "Pagar", DatosPrueba: map[string]any{"tarjeta": "4111"}},
				{ID: "TC-2", Pasos: []string{"a", "b"}},
			},
		},
		{
			PageName:  "Checkout",
			FrameName: "[GROUP] envio",
			NodeID:    "2:1",
			Cases:     []models.TestCase{{ID: "TC-3"}},
		},
	}
}

func saveRun(t *testing.T, s *AnalysisStorage, fileKey string) uint64 {
	t.Helper()
	id, err := s.SaveAnalysis(context.Background(), &models.AnalysisRun{
		JobID:         "job-" + fileKey,
		FileKey:       fileKey,
		AnalysisLevel: models.LevelGroup,
		Model:         "gemini-3-flash-preview",
		ImagesPerUnit: 12,
		ImageScale:    2,
	}, sampleBundles())
	require.NoError(t, err)
	return id
}

func TestSaveAndGetAnalysis(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	id := saveRun(t, s, "FILEKEY123")
	assert.NotZero(t, id)

	detail, err := s.GetAnalysis(ctx, id, true)
	require.NoError(t, err)
	assert.Equal(t, id, detail.ID)
	assert.Equal(t, 3, detail.TotalCases)
	assert.Equal(t, "completed", detail.Status)
	require.Len(t, detail.Cases, 3)

	// ordered by bundle label, then case index
	assert.Equal(t, "[GROUP] envio", detail.Cases[0].BundleLabel)
	assert.Equal(t, "TC-1", detail.Cases[1].Case.ID)
	assert.Equal(t, "TC-2", detail.Cases[2].Case.ID)
	assert.Equal(t, map[string]any{"tarjeta": "4111"}, detail.Cases[1].Case.DatosPrueba)
	assert.Equal(t, models.EvaluationPending, detail.Cases[0].Evaluation.Status)
	assert.Equal(t, id, detail.Cases[0].RunID)

	withoutCases, err := s.GetAnalysis(ctx, id, false)
	require.NoError(t, err)
	assert.Empty(t, withoutCases.Cases)
}

func TestGetBundlesPreservesOrder(t *testing.T) {
	s := newTestStorage(t)
	id := saveRun(t, s, "FILEKEY123")

	bundles, err := s.GetBundles(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, bundles, 2)
	assert.Equal(t, "[GROUP] pago", bundles[0].FrameName)
	require.Len(t, bundles[0].Cases, 2)
	assert.Equal(t, "TC-2", bundles[0].Cases[1].ID)
	assert.Equal(t, "[GROUP] envio", bundles[1].FrameName)
}

func TestGetAnalysisNotFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.GetAnalysis(context.Background(), 999, true)
	assert.ErrorIs(t, err, ErrAnalysisNotFound)
	_, err = s.GetBundles(context.Background(), 999)
	assert.ErrorIs(t, err, ErrAnalysisNotFound)
	assert.ErrorIs(t, s.DeleteAnalysis(context.Background(), 999), ErrAnalysisNotFound)
}

func TestListAnalysesNewestFirstAndFiltered(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	first := saveRun(t, s, "AAAAAAAAAA")
	second := saveRun(t, s, "BBBBBBBBBB")
	third := saveRun(t, s, "AAAAAAAAAA")

	all, err := s.ListAnalyses(ctx, 0, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uint64{third, second, first}, []uint64{all[0].ID, all[1].ID, all[2].ID})

	filtered, err := s.ListAnalyses(ctx, 10, "AAAAAAAAAA")
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, third, filtered[0].ID)

	limited, err := s.ListAnalyses(ctx, 1, "")
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	history, err := s.ListRecentFiles(ctx, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "AAAAAAAAAA", history[0].FileKey)
	assert.Equal(t, 2, history[0].Runs)
	assert.Equal(t, third, history[0].LastAnalysisID)
	assert.Equal(t, "BBBBBBBBBB", history[1].FileKey)
}

func TestDeleteAnalysisCascades(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	keep := saveRun(t, s, "AAAAAAAAAA")
	drop := saveRun(t, s, "BBBBBBBBBB")

	dropped, err := s.GetAnalysis(ctx, drop, true)
	require.NoError(t, err)
	caseID := dropped.Cases[0].ID

	require.NoError(t, s.DeleteAnalysis(ctx, drop))

	_, err = s.GetAnalysis(ctx, drop, false)
	assert.ErrorIs(t, err, ErrAnalysisNotFound)
	_, err = s.GetCase(ctx, caseID)
	assert.ErrorIs(t, err, ErrCaseNotFound)

	kept, err := s.GetAnalysis(ctx, keep, true)
	require.NoError(t, err)
	assert.Len(t, kept.Cases, 3)
}

func TestUpdateCaseEvaluation(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	}

	id := saveRun(t, s, "FILEKEY123")
	detail, err := s.GetAnalysis(ctx, id, true)
	require.NoError(t, err)
	caseID := detail.Cases[0].ID

	yes := true
	approved := models.EvaluationApproved
	score := 8.5
	notes := "ok"
	updated, err := s.UpdateCaseEvaluation(ctx, caseID, models.CaseEvaluationPatch{
		Evaluated: &yes,
		Status:    &approved,
		Score:     &score,
		Notes:     &notes,
	})
	require.NoError(t, err)
	assert.True(t, updated.Evaluation.Evaluated)
	assert.Equal(t, models.EvaluationApproved, updated.Evaluation.Status)
	require.NotNil(t, updated.Evaluation.Score)
	assert.Equal(t, 8.5, *updated.Evaluation.Score)
	assert.False(t, updated.Evaluation.Checked)

	reloaded, err := s.GetCase(ctx, caseID)
	require.NoError(t, err)
	assert.Equal(t, "ok", reloaded.Evaluation.Notes)

	run, err := s.GetAnalysis(ctx, id, false)
	require.NoError(t, err)
	assert.True(t, run.UpdatedAt.After(run.CreatedAt))

	cleared, err := s.UpdateCaseEvaluation(ctx, caseID, models.CaseEvaluationPatch{ClearScore: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.Evaluation.Score)
	assert.Equal(t, models.EvaluationApproved, cleared.Evaluation.Status)

	_, err = s.UpdateCaseEvaluation(ctx, 424242, models.CaseEvaluationPatch{})
	assert.ErrorIs(t, err, ErrCaseNotFound)
}

func TestDeleteCase(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	id := saveRun(t, s, "FILEKEY123")
	detail, err := s.GetAnalysis(ctx, id, true)
	require.NoError(t, err)

	require.NoError(t, s.DeleteCase(ctx, detail.Cases[0].ID))

	after, err := s.GetAnalysis(ctx, id, true)
	require.NoError(t, err)
	assert.Len(t, after.Cases, 2)
	assert.Equal(t, 2, after.TotalCases)

	assert.ErrorIs(t, s.DeleteCase(ctx, detail.Cases[0].ID), ErrCaseNotFound)
}
