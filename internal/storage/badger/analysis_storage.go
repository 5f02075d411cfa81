package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/figmaqa/internal/interfaces"
	"github.com/ternarybob/figmaqa/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

var (
	// ErrAnalysisNotFound is returned when no run has the requested id
	ErrAnalysisNotFound = errors.New("analysis not found")
	// ErrCaseNotFound is returned when no stored case has the requested id
	ErrCaseNotFound = errors.New("case not found")
)

const defaultListLimit = 50

// AnalysisStorage stores AnalysisRun records and their StoredCase rows
type AnalysisStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	now    func() time.Time
}

// NewAnalysisStorage creates a new AnalysisStorage instance
func NewAnalysisStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AnalysisStorage {
	return &AnalysisStorage{
		db:     db,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SaveAnalysis stores the run and one StoredCase per case, all in one transaction
func (s *AnalysisStorage) SaveAnalysis(ctx context.Context, run *models.AnalysisRun, bundles []models.CasesBundle) (uint64, error) {
	now := s.now()
	total := 0
	for _, b := range bundles {
		total += len(b.Cases)
	}

	run.ID = 0
	run.TotalCases = total
	if run.Status == "" {
		run.Status = string(models.JobCompleted)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	store := s.db.Store()
	err := store.Badger().Update(func(tx *badger.Txn) error {
		if err := store.TxInsert(tx, badgerhold.NextSequence(), run); err != nil {
			return fmt.Errorf("failed to insert analysis: %w", err)
		}
		for bundleIdx, bundle := range bundles {
			for caseIdx, tc := range bundle.Cases {
				stored := &models.StoredCase{
					RunID:       run.ID,
					PageName:    bundle.PageName,
					FrameName:   bundle.FrameName,
					NodeID:      bundle.NodeID,
					BundleLabel: bundle.FrameName,
					BundleIndex: bundleIdx,
					CaseIndex:   caseIdx,
					Case:        tc,
					Evaluation:  models.Evaluation{Status: models.EvaluationPending},
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				if err := store.TxInsert(tx, badgerhold.NextSequence(), stored); err != nil {
					return fmt.Errorf("failed to insert case %d of bundle %d: %w", caseIdx, bundleIdx, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Str("file_key", run.FileKey).
		Str("job_id", run.JobID).
		Int("bundles", len(bundles)).
		Int("cases", total).
		Msgf("Analysis %d persisted", run.ID)

	return run.ID, nil
}

// ListAnalyses returns runs newest first, optionally filtered by file key
func (s *AnalysisStorage) ListAnalyses(ctx context.Context, limit int, fileKey string) ([]models.AnalysisRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var query *badgerhold.Query
	if fileKey != "" {
		query = badgerhold.Where("FileKey").Eq(fileKey).Index("FileKey")
	}

	var runs []models.AnalysisRun
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	sortNewestFirst(runs)
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetAnalysis returns a run; with includeCases its cases are ordered by
// (bundle label, case index)
func (s *AnalysisStorage) GetAnalysis(ctx context.Context, id uint64, includeCases bool) (*models.AnalysisDetail, error) {
	run, err := s.getRun(id)
	if err != nil {
		return nil, err
	}

	detail := &models.AnalysisDetail{AnalysisRun: *run}
	if !includeCases {
		return detail, nil
	}

	cases, err := s.casesForRun(id)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(cases, func(i, j int) bool {
		if cases[i].BundleLabel != cases[j].BundleLabel {
			return cases[i].BundleLabel < cases[j].BundleLabel
		}
		return cases[i].CaseIndex < cases[j].CaseIndex
	})
	detail.Cases = cases
	return detail, nil
}

// GetBundles rebuilds the bundles of a run in their original order
func (s *AnalysisStorage) GetBundles(ctx context.Context, id uint64) ([]models.CasesBundle, error) {
	if _, err := s.getRun(id); err != nil {
		return nil, err
	}

	cases, err := s.casesForRun(id)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(cases, func(i, j int) bool {
		if cases[i].BundleIndex != cases[j].BundleIndex {
			return cases[i].BundleIndex < cases[j].BundleIndex
		}
		return cases[i].CaseIndex < cases[j].CaseIndex
	})

	bundles := []models.CasesBundle{}
	current := -1
	for _, c := range cases {
		if len(bundles) == 0 || c.BundleIndex != current {
			bundles = append(bundles, models.CasesBundle{
				PageName:  c.PageName,
				FrameName: c.FrameName,
				NodeID:    c.NodeID,
			})
			current = c.BundleIndex
		}
		last := &bundles[len(bundles)-1]
		last.Cases = append(last.Cases, c.Case)
	}
	return bundles, nil
}

// DeleteAnalysis removes a run and all of its cases
func (s *AnalysisStorage) DeleteAnalysis(ctx context.Context, id uint64) error {
	if _, err := s.getRun(id); err != nil {
		return err
	}

	store := s.db.Store()
	err := store.Badger().Update(func(tx *badger.Txn) error {
		if err := store.TxDeleteMatching(tx, &models.StoredCase{}, badgerhold.Where("RunID").Eq(id).Index("RunID")); err != nil {
			return fmt.Errorf("failed to delete cases: %w", err)
		}
		if err := store.TxDelete(tx, id, &models.AnalysisRun{}); err != nil {
			return fmt.Errorf("failed to delete analysis: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().Msgf("Analysis %d deleted", id)
	return nil
}

// GetCase returns one stored case
func (s *AnalysisStorage) GetCase(ctx context.Context, caseID uint64) (*models.StoredCase, error) {
	var c models.StoredCase
	if err := s.db.Store().Get(caseID, &c); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrCaseNotFound, caseID)
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return &c, nil
}

// UpdateCaseEvaluation applies a reviewer patch and bumps the owning run's UpdatedAt
func (s *AnalysisStorage) UpdateCaseEvaluation(ctx context.Context, caseID uint64, patch models.CaseEvaluationPatch) (*models.StoredCase, error) {
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}

	applyPatch(&c.Evaluation, patch)
	now := s.now()
	c.UpdatedAt = now

	store := s.db.Store()
	err = store.Badger().Update(func(tx *badger.Txn) error {
		if err := store.TxUpdate(tx, caseID, c); err != nil {
			return fmt.Errorf("failed to update case: %w", err)
		}
		var run models.AnalysisRun
		if err := store.TxGet(tx, c.RunID, &run); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("failed to load analysis: %w", err)
		}
		run.UpdatedAt = now
		return store.TxUpdate(tx, run.ID, &run)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCase removes one stored case and decrements the run's case total
func (s *AnalysisStorage) DeleteCase(ctx context.Context, caseID uint64) error {
	c, err := s.GetCase(ctx, caseID)
	if err != nil {
		return err
	}

	store := s.db.Store()
	return store.Badger().Update(func(tx *badger.Txn) error {
		if err := store.TxDelete(tx, caseID, &models.StoredCase{}); err != nil {
			return fmt.Errorf("failed to delete case: %w", err)
		}
		var run models.AnalysisRun
		if err := store.TxGet(tx, c.RunID, &run); err != nil {
			if errors.Is(err, badgerhold.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("failed to load analysis: %w", err)
		}
		if run.TotalCases > 0 {
			run.TotalCases--
		}
		run.UpdatedAt = s.now()
		return store.TxUpdate(tx, run.ID, &run)
	})
}

// ListRecentFiles summarizes stored runs per file key, most recently analysed first
func (s *AnalysisStorage) ListRecentFiles(ctx context.Context, limit int) ([]models.FileHistory, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var runs []models.AnalysisRun
	if err := s.db.Store().Find(&runs, nil); err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}

	byFile := map[string]*models.FileHistory{}
	for _, r := range runs {
		h, ok := byFile[r.FileKey]
		if !ok {
			h = &models.FileHistory{FileKey: r.FileKey}
			byFile[r.FileKey] = h
		}
		h.Runs++
		if r.CreatedAt.After(h.LastRunAt) {
			h.LastRunAt = r.CreatedAt
		}
		if r.ID > h.LastAnalysisID {
			h.LastAnalysisID = r.ID
		}
	}

	history := make([]models.FileHistory, 0, len(byFile))
	for _, h := range byFile {
		history = append(history, *h)
	}
	sort.Slice(history, func(i, j int) bool {
		if !history[i].LastRunAt.Equal(history[j].LastRunAt) {
			return history[i].LastRunAt.After(history[j].LastRunAt)
		}
		return history[i].LastAnalysisID > history[j].LastAnalysisID
	})
	if len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}

func (s *AnalysisStorage) getRun(id uint64) (*models.AnalysisRun, error) {
	var run models.AnalysisRun
	if err := s.db.Store().Get(id, &run); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrAnalysisNotFound, id)
		}
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &run, nil
}

func (s *AnalysisStorage) casesForRun(id uint64) ([]models.StoredCase, error) {
	var cases []models.StoredCase
	if err := s.db.Store().Find(&cases, badgerhold.Where("RunID").Eq(id).Index("RunID")); err != nil {
		return nil, fmt.Errorf("failed to load cases: %w", err)
	}
	return cases, nil
}

func applyPatch(ev *models.Evaluation, patch models.CaseEvaluationPatch) {
	if patch.Evaluated != nil {
		ev.Evaluated = *patch.Evaluated
	}
	if patch.Status != nil {
		ev.Status = *patch.Status
	}
	if patch.ClearScore {
		ev.Score = nil
	} else if patch.Score != nil {
		score := *patch.Score
		ev.Score = &score
	}
	if patch.Notes != nil {
		ev.Notes = *patch.Notes
	}
	if patch.Checked != nil {
		ev.Checked = *patch.Checked
	}
}

// sortNewestFirst orders by CreatedAt descending, then id descending
func sortNewestFirst(runs []models.AnalysisRun) {
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID > runs[j].ID
	})
}
