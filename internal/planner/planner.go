// Package planner turns the frames of a design file into the ordered list of
// analysis units for one run.
package planner

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ternarybob/figmaqa/internal/grouping"
	"github.com/ternarybob/figmaqa/internal/models"
)

// MaxImagesPerUnit is the hard ceiling on frames rendered per unit
const MaxImagesPerUnit = 12

var (
	// ErrNoFrames means the design file contains no frame at all
	ErrNoFrames = errors.New("no frames found in the design file")
	// ErrNoUnits means grouping left nothing to analyse
	ErrNoUnits = errors.New("no analysis units could be planned")
)

// Limits are the ranking and size caps applied while planning
type Limits struct {
	MinGroupSize       int
	MaxGroupsPerPage   int
	MaxSectionsPerPage int
	MaxGroupsGlobal    int
	MaxSectionsGlobal  int
	MaxFrames          int // frame level only; 0 means all frames
}

// DefaultLimits mirrors the [analysis] defaults
func DefaultLimits() Limits {
	return Limits{
		MinGroupSize:       2,
		MaxGroupsPerPage:   8,
		MaxSectionsPerPage: 10,
		MaxGroupsGlobal:    12,
		MaxSectionsGlobal:  12,
	}
}

// Input is everything the planner reads. PageTrees is needed for section level,
// Elements (by frame node id) for group level.
type Input struct {
	Level     models.AnalysisLevel
	Frames    []models.FrameRef
	PageTrees map[string]*models.SceneNode
	Elements  map[string][]models.Element
}

// Page is the frames of one page in discovery order
type Page struct {
	ID     string
	Name   string
	Frames []models.FrameItem
}

// GroupByPage buckets frames by page id, keeping first-seen page order.
func GroupByPage(frames []models.FrameRef) []Page {
	index := map[string]int{}
	pages := []Page{}
	for _, f := range frames {
		i, ok := index[f.PageID]
		if !ok {
			i = len(pages)
			index[f.PageID] = i
			pages = append(pages, Page{ID: f.PageID, Name: f.PageName})
		}
		pages[i].Frames = append(pages[i].Frames, f.Item())
	}
	return pages
}

// Plan produces the ordered units for the requested level.
func Plan(in Input, limits Limits) ([]models.Unit, error) {
	if len(in.Frames) == 0 {
		return nil, ErrNoFrames
	}

	var units []models.Unit
	switch in.Level {
	case models.LevelFrame:
		units = planFrames(in.Frames, limits.MaxFrames)
	case models.LevelPage:
		units = planPages(in.Frames)
	case models.LevelGroup:
		units = planGroups(in, limits.MaxGroupsPerPage, limits.MaxGroupsGlobal)
	case models.LevelSection:
		units = planSections(in, limits)
	default:
		return nil, fmt.Errorf("unsupported analysis level %q", in.Level)
	}

	if len(units) == 0 {
		return nil, ErrNoUnits
	}
	return units, nil
}

func planFrames(frames []models.FrameRef, maxFrames int) []models.Unit {
	if maxFrames > 0 && len(frames) > maxFrames {
		frames = frames[:maxFrames]
	}
	units := make([]models.Unit, 0, len(frames))
	for _, f := range frames {
		units = append(units, models.Unit{
			Level:    models.LevelFrame,
			PageName: f.PageName,
			PageID:   f.PageID,
			Label:    f.PageName,
			Frames:   []models.FrameItem{f.Item()},
		})
	}
	return units
}

func planPages(frames []models.FrameRef) []models.Unit {
	pages := GroupByPage(frames)
	units := make([]models.Unit, 0, len(pages))
	for _, p := range pages {
		units = append(units, models.Unit{
			Level:    models.LevelPage,
			PageName: p.Name,
			PageID:   p.ID,
			Label:    p.Name,
			Frames:   p.Frames,
		})
	}
	return units
}

func planGroups(in Input, perPage, global int) []models.Unit {
	var units []models.Unit
	for _, p := range GroupByPage(in.Frames) {
		groups := grouping.ByComponentLabel(p.Frames, in.Elements)
		units = append(units, toUnits(models.LevelGroup, p, TopK(groups, perPage))...)
	}
	return topUnits(units, global)
}

func planSections(in Input, limits Limits) []models.Unit {
	var units []models.Unit
	for _, p := range GroupByPage(in.Frames) {
		groups := grouping.BySectionOrPrefix(in.PageTrees[p.ID], p.Frames, limits.MinGroupSize)
		units = append(units, toUnits(models.LevelSection, p, TopK(groups, limits.MaxSectionsPerPage))...)
	}
	return topUnits(units, limits.MaxSectionsGlobal)
}

func toUnits(level models.AnalysisLevel, p Page, groups []models.Group) []models.Unit {
	units := make([]models.Unit, 0, len(groups))
	for _, g := range groups {
		label := g.Label
		if label == "" {
			label = grouping.OtherLabel
		}
		units = append(units, models.Unit{
			Level:    level,
			PageName: p.Name,
			PageID:   p.ID,
			Label:    label,
			Frames:   g.Frames,
		})
	}
	return units
}

// TopK keeps the k largest groups by frame count. Ties keep encounter order.
// k <= 0 keeps everything (still ranked).
func TopK(groups []models.Group, k int) []models.Group {
	ranked := append([]models.Group(nil), groups...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return len(ranked[i].Frames) > len(ranked[j].Frames)
	})
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

func topUnits(units []models.Unit, k int) []models.Unit {
	ranked := append([]models.Unit(nil), units...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return len(ranked[i].Frames) > len(ranked[j].Frames)
	})
	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// ClampImagesPerUnit bounds the per-unit frame cap to [1, MaxImagesPerUnit]; 0 means the ceiling.
func ClampImagesPerUnit(n int) int {
	if n <= 0 || n > MaxImagesPerUnit {
		return MaxImagesPerUnit
	}
	return n
}

// ImageNodeIDs returns the deduplicated node ids whose images the units need,
// honouring the per-unit cap, in unit order.
func ImageNodeIDs(units []models.Unit, imagesPerUnit int) []string {
	seen := map[string]struct{}{}
	ids := []string{}
	for _, u := range units {
		for _, f := range u.Capped(imagesPerUnit) {
			if _, ok := seen[f.NodeID]; ok {
				continue
			}
			seen[f.NodeID] = struct{}{}
			ids = append(ids, f.NodeID)
		}
	}
	return ids
}

// FrameNodeIDs returns the node id of every frame, deduplicated, in input order.
func FrameNodeIDs(frames []models.FrameRef) []string {
	seen := map[string]struct{}{}
	ids := make([]string, 0, len(frames))
	for _, f := range frames {
		if _, ok := seen[f.NodeID]; ok {
			continue
		}
		seen[f.NodeID] = struct{}{}
		ids = append(ids, f.NodeID)
	}
	return ids
}
