package models

import "time"

// JobState is the lifecycle state of one analysis run
type JobState string

const (
	JobQueued     JobState = "queued"
	JobInProgress JobState = "in_progress"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// IsTerminal reports whether no further transitions are allowed
func (s JobState) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Pipeline stage tags reported in JobStatus.Stage
const (
	StageQueued           = "queued"
	StageListFrames       = "list_frames"
	StagePrepare          = "prepare"
	StageFetchNodes       = "fetch_nodes"
	StageFetchNodesDone   = "fetch_nodes_done"
	StageRenderImages     = "render_images"
	StageRenderImagesDone = "render_images_done"
	StageGenerate         = "generate"
	StagePersist          = "persist"
	StageBuildExcel       = "build_excel"
	StageCompleted        = "completed"
	StageFailed           = "failed"
)

// JobStatus is the in-memory record of one run. Readers only ever get copies.
type JobStatus struct {
	JobID            string        `json:"job_id"`
	Status           JobState      `json:"status"`
	Message          string        `json:"message"`
	Stage            string        `json:"stage"`
	FileKey          string        `json:"file_key,omitempty"`
	FramesTotal      int           `json:"frames_total"`
	FramesProcessing int           `json:"frames_processing"`
	UnitsTotal       int           `json:"units_total"`
	Processed        int           `json:"processed"`
	CasesTotal       int           `json:"cases_total"`
	StartedAt        time.Time     `json:"started_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	Error            string        `json:"error,omitempty"`
	OutputPath       string        `json:"output_path,omitempty"`
	Results          []CasesBundle `json:"results,omitempty"`
	AnalysisID       uint64        `json:"analysis_id,omitempty"`
}

// Clone returns a copy that shares no mutable state with the receiver
func (j *JobStatus) Clone() JobStatus {
	c := *j
	if j.Results != nil {
		c.Results = make([]CasesBundle, len(j.Results))
		for i, b := range j.Results {
			if b.Cases != nil {
				cases := make([]TestCase, len(b.Cases))
				for k := range b.Cases {
					cases[k] = b.Cases[k].Clone()
				}
				b.Cases = cases
			}
			c.Results[i] = b
		}
	}
	return c
}
