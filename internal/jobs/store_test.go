package jobs

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/figmaqa/internal/models"
)

func state(s models.JobState) *models.JobState { return &s }
func str(s string) *string                      { return &s }
func num(n int) *int                            { return &n }

func TestStore_CreateAndGet(t *testing.T) {
	store := NewStore()

	created := store.Create("job-1", "FILEKEY1234")
	assert.Equal(t, models.JobQueued, created.Status)
	assert.Equal(t, "FILEKEY1234", created.FileKey)

	got, ok := store.Get("job-1")
	require.True(t, ok)
	assert.Equal(t, created.JobID, got.JobID)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestStore_UnknownJobIsNoop(t *testing.T) {
	store := NewStore()

	_, ok := store.Update("nope", Patch{Message: str("x")})
	assert.False(t, ok)
	_, ok = store.SetProgress("nope", 1, "x", 1)
	assert.False(t, ok)
	_, ok = store.Fail("nope", "boom")
	assert.False(t, ok)
	_, ok = store.Complete("nope", "out.xlsx", nil, 1)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestStore_Transitions(t *testing.T) {
	tests := []struct {
		name     string
		steps    []models.JobState
		expected models.JobState
	}{
		{"queued to in_progress", []models.JobState{models.JobInProgress}, models.JobInProgress},
		{"skip to completed ignored", []models.JobState{models.JobCompleted}, models.JobQueued},
		{"in_progress to completed", []models.JobState{models.JobInProgress, models.JobCompleted}, models.JobCompleted},
		{"in_progress to failed", []models.JobState{models.JobInProgress, models.JobFailed}, models.JobFailed},
		{"completed is sticky", []models.JobState{models.JobInProgress, models.JobCompleted, models.JobInProgress}, models.JobCompleted},
		{"failed is sticky", []models.JobState{models.JobInProgress, models.JobFailed, models.JobCompleted}, models.JobFailed},
		{"back to queued ignored", []models.JobState{models.JobInProgress, models.JobQueued}, models.JobInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore()
			store.Create("j", "")
			for _, st := range tt.steps {
				store.Update("j", Patch{Status: state(st)})
			}
			got, _ := store.Get("j")
			assert.Equal(t, tt.expected, got.Status)
		})
	}

	t.Run("fail on queued job ignored", func(t *testing.T) {
		store := NewStore()
		store.Create("j", "")
		got, ok := store.Fail("j", "boom")
		require.True(t, ok)
		assert.Equal(t, models.JobQueued, got.Status)
		assert.Empty(t, got.Error)
	})

	t.Run("create on existing job keeps record", func(t *testing.T) {
		store := NewStore()
		store.Create("j", "first")
		store.Update("j", Patch{Status: state(models.JobInProgress)})
		store.Complete("j", "out.xlsx", nil, 1)

		again := store.Create("j", "second")
		assert.Equal(t, models.JobCompleted, again.Status)
		assert.Equal(t, "first", again.FileKey)
		assert.Equal(t, "out.xlsx", again.OutputPath)
		assert.Equal(t, 1, store.Len())
	})
}

func TestStore_ProgressIsMonotonic(t *testing.T) {
	store := NewStore()
	store.Create("j", "")
	store.Update("j", Patch{Status: state(models.JobInProgress)})

	store.SetProgress("j", 3, "Procesando 3", 5)
	store.SetProgress("j", 2, "", 2)
	store.SetProgress("j", 0, "", -4)

	got, _ := store.Get("j")
	assert.Equal(t, 3, got.Processed)
	assert.Equal(t, 7, got.CasesTotal)
	assert.Equal(t, "Procesando 3", got.Message)
}

func TestStore_FrameTotalsSetOnce(t *testing.T) {
	store := NewStore()
	store.Create("j", "")
	store.Update("j", Patch{Status: state(models.JobInProgress), FramesTotal: num(10), FramesProcessing: num(4)})
	store.Update("j", Patch{FramesTotal: num(99), FramesProcessing: num(99), Stage: str(models.StageGenerate)})

	got, _ := store.Get("j")
	assert.Equal(t, 10, got.FramesTotal)
	assert.Equal(t, 4, got.FramesProcessing)
	assert.Equal(t, models.StageGenerate, got.Stage)
}

func TestStore_FailAndComplete(t *testing.T) {
	store := NewStore()
	store.Create("a", "")
	store.Update("a", Patch{Status: state(models.JobInProgress)})

	failed, ok := store.Fail("a", "no frames")
	require.True(t, ok)
	assert.Equal(t, models.JobFailed, failed.Status)
	assert.Equal(t, "no frames", failed.Error)
	assert.Equal(t, models.StageFailed, failed.Stage)

	// terminal: completing afterwards does nothing
	after, _ := store.Complete("a", "x.xlsx", nil, 7)
	assert.Equal(t, models.JobFailed, after.Status)
	assert.Empty(t, after.OutputPath)

	store.Create("b", "")
	store.Update("b", Patch{Status: state(models.JobInProgress), FramesProcessing: num(3)})
	bundles := []models.CasesBundle{{PageName: "P", Cases: []models.TestCase{{ID: "1"}}}}
	done, ok := store.Complete("b", "out/b.xlsx", bundles, 42)
	require.True(t, ok)
	assert.Equal(t, models.JobCompleted, done.Status)
	assert.Equal(t, "out/b.xlsx", done.OutputPath)
	assert.Equal(t, uint64(42), done.AnalysisID)
	assert.Equal(t, 3, done.Processed)
	assert.Len(t, done.Results, 1)

	// progress after completion is ignored
	store.SetProgress("b", 10, "late", 10)
	final, _ := store.Get("b")
	assert.Equal(t, 3, final.Processed)
	assert.Equal(t, 0, final.CasesTotal)
}

func TestStore_SnapshotsAreCopies(t *testing.T) {
	store := NewStore()
	store.Create("j", "")
	store.Update("j", Patch{Status: state(models.JobInProgress)})
	store.Complete("j", "o", []models.CasesBundle{{Cases: []models.TestCase{{
		ID:          "c1",
		Pasos:       []string{"Abrir la pantalla"},
		DatosPrueba: map[string]any{"email": "a@b.co"},
	}}}}, 1)

	snap, _ := store.Get("j")
	snap.Message = "mutated"
	snap.Results[0].Cases[0].ID = "changed"
	snap.Results[0].Cases[0].Pasos[0] = "changed"
	snap.Results[0].Cases[0].DatosPrueba["email"] = "changed"

	again, _ := store.Get("j")
	assert.NotEqual(t, "mutated", again.Message)
	assert.Equal(t, "c1", again.Results[0].Cases[0].ID)
	assert.Equal(t, "Abrir la pantalla", again.Results[0].Cases[0].Pasos[0])
	assert.Equal(t, "a@b.co", again.Results[0].Cases[0].DatosPrueba["email"])
}

func TestStore_ConcurrentProgress(t *testing.T) {
	store := NewStore()
	store.Create("j", "")
	store.Update("j", Patch{Status: state(models.JobInProgress)})

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			store.SetProgress("j", i, fmt.Sprintf("step %d", i), 1)
			_, _ = store.Get("j")
		}(i)
	}
	wg.Wait()

	got, _ := store.Get("j")
	assert.Equal(t, 50, got.Processed)
	assert.Equal(t, 50, got.CasesTotal)
}

func TestStore_EvictTerminal(t *testing.T) {
	store := NewStore()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }

	store.Create("old-done", "")
	store.Update("old-done", Patch{Status: state(models.JobInProgress)})
	store.Complete("old-done", "", nil, 0)

	store.Create("old-running", "")
	store.Update("old-running", Patch{Status: state(models.JobInProgress)})

	store.now = func() time.Time { return base.Add(2 * time.Hour) }
	store.Create("new-failed", "")
	store.Update("new-failed", Patch{Status: state(models.JobInProgress)})
	store.Fail("new-failed", "x")

	removed := store.EvictTerminal(base.Add(time.Hour))
	assert.Equal(t, 1, removed)

	_, ok := store.Get("old-done")
	assert.False(t, ok)
	_, ok = store.Get("old-running")
	assert.True(t, ok)
	_, ok = store.Get("new-failed")
	assert.True(t, ok)
}

func TestStore_ListNewestFirst(t *testing.T) {
	store := NewStore()
	base := time.Now()
	store.now = func() time.Time { return base }
	store.Create("first", "")
	store.now = func() time.Time { return base.Add(time.Minute) }
	store.Create("second", "")

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].JobID)
}

func TestEvictor_RunOnce(t *testing.T) {
	store := NewStore()
	store.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	store.Create("stale", "")
	store.Update("stale", Patch{Status: state(models.JobInProgress)})
	store.Fail("stale", "boom")
	store.now = time.Now
	store.Create("fresh", "")

	evictor := NewEvictor(store, 24*time.Hour, arbor.NewLogger())
	assert.Equal(t, 1, evictor.RunOnce())
	assert.Equal(t, 1, store.Len())
}

func TestEvictor_StartStop(t *testing.T) {
	evictor := NewEvictor(NewStore(), time.Hour, arbor.NewLogger())

	assert.Error(t, evictor.Start("not a cron"))
	require.NoError(t, evictor.Start("*/5 * * * *"))
	assert.Error(t, evictor.Start("*/5 * * * *"))
	evictor.Stop()
	evictor.Stop()
}
