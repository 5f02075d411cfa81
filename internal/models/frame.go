package models

import "fmt"

// AnalysisLevel is the grain of work fed to case generation
type AnalysisLevel string

const (
	LevelFrame   AnalysisLevel = "frame"
	LevelPage    AnalysisLevel = "page"
	LevelGroup   AnalysisLevel = "group"
	LevelSection AnalysisLevel = "section"
)

// ParseAnalysisLevel validates a level string. Empty means group.
func ParseAnalysisLevel(s string) (AnalysisLevel, error) {
	switch AnalysisLevel(s) {
	case "":
		return LevelGroup, nil
	case LevelFrame, LevelPage, LevelGroup, LevelSection:
		return AnalysisLevel(s), nil
	}
	return "", fmt.Errorf("invalid analysis level %q (expected frame, page, group or section)", s)
}

// FrameRef identifies one frame in a design file
type FrameRef struct {
	PageName  string `json:"page_name"`
	PageID    string `json:"page_id"`
	FrameName string `json:"frame_name"`
	NodeID    string `json:"node_id"`
}

// FrameItem is a (name, node id) pair as handled by the grouping engine
type FrameItem struct {
	Name   string `json:"name"`
	NodeID string `json:"node_id"`
}

// Item converts a FrameRef to a FrameItem
func (f FrameRef) Item() FrameItem {
	return FrameItem{Name: f.FrameName, NodeID: f.NodeID}
}

// Group is a labelled set of frames from one grouping pass
type Group struct {
	Label  string      `json:"label"`
	Frames []FrameItem `json:"frames"`
}

// Unit is one planned piece of work. All frames belong to PageName.
type Unit struct {
	Level    AnalysisLevel `json:"level"`
	PageName string        `json:"page_name"`
	PageID   string        `json:"page_id"`
	Label    string        `json:"label"`
	Frames   []FrameItem   `json:"frames"`
}

// Capped returns at most limit frames (all frames when limit <= 0)
func (u Unit) Capped(limit int) []FrameItem {
	if limit <= 0 || len(u.Frames) <= limit {
		return u.Frames
	}
	return u.Frames[:limit]
}

// BundleLabel is the label stored with cases generated for this unit
func (u Unit) BundleLabel() string {
	switch u.Level {
	case LevelGroup:
		return "[GROUP] " + u.Label
	case LevelSection:
		return "[SECTION] " + u.Label
	case LevelPage:
		return "[PAGE] " + u.PageName
	}
	if len(u.Frames) > 0 {
		return u.Frames[0].Name
	}
	return u.Label
}

// BundleNodeID is the node reference stored with this unit's cases
func (u Unit) BundleNodeID() string {
	if len(u.Frames) > 0 {
		return u.Frames[0].NodeID
	}
	if u.Level == LevelPage {
		return "page:" + u.PageName
	}
	return "label:" + u.Label
}
