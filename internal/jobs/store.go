// Package jobs holds the in-memory record of every analysis run and the
// retention job that evicts finished records.
package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/figmaqa/internal/models"
)

// Patch carries optional field updates. Nil fields are left unchanged.
type Patch struct {
	Status           *models.JobState
	Message          *string
	Stage            *string
	FileKey          *string
	FramesTotal      *int
	FramesProcessing *int
	UnitsTotal       *int
}

// Store is a mutex-guarded table of job records. Every read returns a copy.
// Operations on an unknown job id report false and change nothing.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*models.JobStatus
	now  func() time.Time
}

// NewStore creates an empty job store
func NewStore() *Store {
	return &Store{
		jobs: make(map[string]*models.JobStatus),
		now:  time.Now,
	}
}

// Create registers a queued job. An existing record with the same id is kept
// and its snapshot returned, so a finished run never goes back to queued.
func (s *Store) Create(jobID, fileKey string) models.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.jobs[jobID]; ok {
		return existing.Clone()
	}

	now := s.now()
	job := &models.JobStatus{
		JobID:     jobID,
		Status:    models.JobQueued,
		Message:   "En cola",
		Stage:     models.StageQueued,
		FileKey:   fileKey,
		StartedAt: now,
		UpdatedAt: now,
	}
	s.jobs[jobID] = job
	return job.Clone()
}

// Get returns a snapshot of the job
func (s *Store) Get(jobID string) (models.JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return models.JobStatus{}, false
	}
	return job.Clone(), true
}

// Update applies a patch to a job that has not finished. Status changes must
// follow queued -> in_progress -> completed|failed; others are ignored.
// Frame and unit totals are only set once.
func (s *Store) Update(jobID string, patch Patch) (models.JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return models.JobStatus{}, false
	}

	if job.Status.IsTerminal() {
		return job.Clone(), true
	}
	if patch.Status != nil && canTransition(job.Status, *patch.Status) {
		job.Status = *patch.Status
	}
	if patch.Message != nil {
		job.Message = *patch.Message
	}
	if patch.Stage != nil {
		job.Stage = *patch.Stage
	}
	if patch.FileKey != nil {
		job.FileKey = *patch.FileKey
	}
	if patch.FramesTotal != nil && job.FramesTotal == 0 {
		job.FramesTotal = *patch.FramesTotal
	}
	if patch.FramesProcessing != nil && job.FramesProcessing == 0 {
		job.FramesProcessing = *patch.FramesProcessing
	}
	if patch.UnitsTotal != nil && job.UnitsTotal == 0 {
		job.UnitsTotal = *patch.UnitsTotal
	}
	job.UpdatedAt = s.now()
	return job.Clone(), true
}

// SetProgress overwrites processed (never lowering it), adds casesDelta to the
// case counter and replaces the message when non-empty. Negative deltas are ignored.
func (s *Store) SetProgress(jobID string, processed int, message string, casesDelta int) (models.JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return models.JobStatus{}, false
	}
	if job.Status.IsTerminal() {
		return job.Clone(), true
	}

	if processed > job.Processed {
		job.Processed = processed
	}
	if casesDelta > 0 {
		job.CasesTotal += casesDelta
	}
	if message != "" {
		job.Message = message
	}
	job.UpdatedAt = s.now()
	return job.Clone(), true
}

// Fail marks a running job failed with the given error text. Queued and
// finished jobs are left as is.
func (s *Store) Fail(jobID string, errText string) (models.JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return models.JobStatus{}, false
	}
	if job.Status == models.JobInProgress {
		job.Status = models.JobFailed
		job.Stage = models.StageFailed
		job.Error = errText
		job.Message = "Error: " + errText
		job.UpdatedAt = s.now()
	}
	return job.Clone(), true
}

// Complete marks a running job completed with references to its outputs.
func (s *Store) Complete(jobID, outputPath string, results []models.CasesBundle, analysisID uint64) (models.JobStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return models.JobStatus{}, false
	}
	if job.Status == models.JobInProgress {
		job.Status = models.JobCompleted
		job.Stage = models.StageCompleted
		job.Message = "Completado"
		job.OutputPath = outputPath
		job.Results = results
		job.AnalysisID = analysisID
		if job.Processed < job.FramesProcessing {
			job.Processed = job.FramesProcessing
		}
		job.UpdatedAt = s.now()
	}
	return job.Clone(), true
}

// List returns snapshots of all jobs, newest first
func (s *Store) List() []models.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.JobStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// EvictTerminal removes completed and failed jobs last updated before cutoff.
// Returns the number of records removed.
func (s *Store) EvictTerminal(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if job.Status.IsTerminal() && job.UpdatedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of records held
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func canTransition(from, to models.JobState) bool {
	switch from {
	case models.JobQueued:
		return to == models.JobInProgress
	case models.JobInProgress:
		return to == models.JobCompleted || to == models.JobFailed
	}
	return false
}
