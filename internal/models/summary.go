package models

// FrameSummary is what generation sees of one frame
type FrameSummary struct {
	FrameName string    `json:"frame_name"`
	NodeID    string    `json:"node_id"`
	ImageURL  string    `json:"image_url"`
	Texts     []string  `json:"texts"`
	Elements  []Element `json:"elements"`
}

// UnitSummary is the generation input for one unit. Variant selects how the
// prompt is assembled (per-frame detail for LevelFrame, sampled detail otherwise).
type UnitSummary struct {
	Variant   AnalysisLevel  `json:"variant"`
	FileKey   string         `json:"file_key"`
	PageName  string         `json:"page_name"`
	UnitLabel string         `json:"unit_label,omitempty"`
	Frames    []FrameSummary `json:"frames"`
}

// PrimaryImage is the image url assigned to cases that do not name one
func (s *UnitSummary) PrimaryImage() string {
	for _, f := range s.Frames {
		if f.ImageURL != "" {
			return f.ImageURL
		}
	}
	return ""
}

// ForFrame narrows a summary to a single frame (page-level fallback)
func (s *UnitSummary) ForFrame(f FrameSummary) *UnitSummary {
	return &UnitSummary{
		Variant:  LevelFrame,
		FileKey:  s.FileKey,
		PageName: s.PageName,
		Frames:   []FrameSummary{f},
	}
}

// GenerationOptions are the per-call generation knobs
type GenerationOptions struct {
	Model           string `json:"model"`
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
	ImagesPerUnit   int    `json:"images_per_unit"`
}
