package models

import "time"

// AnalyzeOptions are the per-run knobs accepted by start_run
type AnalyzeOptions struct {
	AnalysisLevel   AnalysisLevel `json:"analysis_level"`
	ImagesPerUnit   int           `json:"images_per_unit"`
	MaxFrames       int           `json:"max_frames,omitempty"`
	Model           string        `json:"model"`
	ImageScale      float64       `json:"image_scale"`
	ReasoningEffort string        `json:"reasoning_effort,omitempty"`
}

// AnalysisRun is the persisted record of one completed run
type AnalysisRun struct {
	ID              uint64        `json:"analysis_id" badgerhold:"key"`
	JobID           string        `json:"job_id" badgerhold:"index"`
	FileKey         string        `json:"file_key" badgerhold:"index"`
	FigmaURL        string        `json:"figma_url,omitempty"`
	AnalysisLevel   AnalysisLevel `json:"analysis_level"`
	Model           string        `json:"model"`
	ImagesPerUnit   int           `json:"images_per_unit"`
	ImageScale      float64       `json:"image_scale"`
	ReasoningEffort string        `json:"reasoning_effort,omitempty"`
	MaxFrames       int           `json:"max_frames,omitempty"`
	Status          string        `json:"status"`
	TotalCases      int           `json:"total_cases"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Options returns the options the run was started with
func (r *AnalysisRun) Options() AnalyzeOptions {
	return AnalyzeOptions{
		AnalysisLevel:   r.AnalysisLevel,
		ImagesPerUnit:   r.ImagesPerUnit,
		MaxFrames:       r.MaxFrames,
		Model:           r.Model,
		ImageScale:      r.ImageScale,
		ReasoningEffort: r.ReasoningEffort,
	}
}

// Evaluation statuses
const (
	EvaluationPending  = "pending"
	EvaluationApproved = "approved"
	EvaluationRejected = "rejected"
)

// Evaluation is the reviewer's verdict on a stored case
type Evaluation struct {
	Evaluated bool     `json:"evaluated"`
	Status    string   `json:"status"`
	Score     *float64 `json:"score"`
	Notes     string   `json:"notes,omitempty"`
	Checked   bool     `json:"checked"`
}

// StoredCase is one persisted test case belonging to an AnalysisRun
type StoredCase struct {
	ID          uint64     `json:"case_id" badgerhold:"key"`
	RunID       uint64     `json:"run_id" badgerhold:"index"`
	PageName    string     `json:"page_name"`
	FrameName   string     `json:"frame_name"`
	NodeID      string     `json:"node_id"`
	BundleLabel string     `json:"bundle_label"`
	BundleIndex int        `json:"bundle_index"`
	CaseIndex   int        `json:"case_index"`
	Case        TestCase   `json:"case"`
	Evaluation  Evaluation `json:"evaluation"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CaseEvaluationPatch carries the fields a reviewer may change. Nil means unchanged.
type CaseEvaluationPatch struct {
	Evaluated  *bool    `json:"evaluated,omitempty"`
	Status     *string  `json:"status,omitempty" validate:"omitempty,oneof=pending approved rejected"`
	Score      *float64 `json:"score,omitempty" validate:"omitempty,min=0,max=10"`
	ClearScore bool     `json:"clear_score,omitempty"`
	Notes      *string  `json:"notes,omitempty"`
	Checked    *bool    `json:"checked,omitempty"`
}

// AnalysisDetail is a run plus (optionally) its cases
type AnalysisDetail struct {
	AnalysisRun
	Cases []StoredCase `json:"cases,omitempty"`
}

// FileHistory summarizes stored runs for one design file
type FileHistory struct {
	FileKey        string    `json:"file_key"`
	Runs           int       `json:"runs"`
	LastRunAt      time.Time `json:"last_run_at"`
	LastAnalysisID uint64    `json:"last_analysis_id"`
}

// PartialFetchError collects per-batch (or per-entity) failures that did not abort the fetch
type PartialFetchError struct {
	Errors []string
}

func (e *PartialFetchError) Error() string {
	if len(e.Errors) == 1 {
		return "partial fetch failure: " + e.Errors[0]
	}
	msg := "partial fetch failure:"
	for _, s := range e.Errors {
		msg += " [" + s + "]"
	}
	return msg
}
