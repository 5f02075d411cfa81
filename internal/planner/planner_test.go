package planner

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/figmaqa/internal/models"
)

func ref(page, frame, id string) models.FrameRef {
	return models.FrameRef{PageName: page, PageID: "p-" + page, FrameName: frame, NodeID: id}
}

func unitLabels(units []models.Unit) []string {
	out := make([]string, 0, len(units))
	for _, u := range units {
		out = append(out, u.Label)
	}
	return out
}

func TestPlan_NoFrames(t *testing.T) {
	_, err := Plan(Input{Level: models.LevelPage}, DefaultLimits())
	assert.ErrorIs(t, err, ErrNoFrames)
}

func TestPlan_UnknownLevel(t *testing.T) {
	_, err := Plan(Input{Level: "galaxy", Frames: []models.FrameRef{ref("A", "f", "1")}}, DefaultLimits())
	assert.Error(t, err)
}

func TestPlan_FrameLevel(t *testing.T) {
	frames := []models.FrameRef{ref("A", "f1", "1"), ref("A", "f2", "2"), ref("B", "f3", "3")}

	units, err := Plan(Input{Level: models.LevelFrame, Frames: frames}, DefaultLimits())
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, "A", units[0].Label)
	assert.Equal(t, []models.FrameItem{{Name: "f3", NodeID: "3"}}, units[2].Frames)

	limits := DefaultLimits()
	limits.MaxFrames = 2
	units, err = Plan(Input{Level: models.LevelFrame, Frames: frames}, limits)
	require.NoError(t, err)
	assert.Len(t, units, 2)
	assert.Equal(t, "2", units[1].Frames[0].NodeID)
}

func TestPlan_PageLevel(t *testing.T) {
	frames := []models.FrameRef{ref("A", "f1", "1"), ref("B", "f2", "2"), ref("A", "f3", "3")}

	units, err := Plan(Input{Level: models.LevelPage, Frames: frames}, DefaultLimits())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, unitLabels(units))
	assert.Len(t, units[0].Frames, 2)
	assert.Equal(t, "[PAGE] A", units[0].BundleLabel())
	assert.Equal(t, "1", units[0].BundleNodeID())
}

func TestPlan_SectionLevel(t *testing.T) {
	tree := &models.SceneNode{ID: "p-A", Type: "CANVAS", Name: "A", Children: []*models.SceneNode{
		{ID: "s", Type: "SECTION", Name: "Auth", Children: []*models.SceneNode{
			{ID: "1", Type: "FRAME", Name: "Login"},
			{ID: "2", Type: "FRAME", Name: "Logout"},
			{ID: "3", Type: "FRAME", Name: "Reset"},
		}},
		{ID: "4", Type: "FRAME", Name: "Home/Top"},
		{ID: "5", Type: "FRAME", Name: "Home/Bottom"},
	}}
	frames := []models.FrameRef{
		ref("A", "Login", "1"), ref("A", "Logout", "2"), ref("A", "Reset", "3"),
		ref("A", "Home/Top", "4"), ref("A", "Home/Bottom", "5"),
	}

	units, err := Plan(Input{
		Level:     models.LevelSection,
		Frames:    frames,
		PageTrees: map[string]*models.SceneNode{"p-A": tree},
	}, DefaultLimits())
	require.NoError(t, err)

	assert.Equal(t, []string{"Auth", "home"}, unitLabels(units))
	assert.Equal(t, "[SECTION] Auth", units[0].BundleLabel())
	assert.Equal(t, models.LevelSection, units[1].Level)
}

func TestPlan_SectionLevelNothingGroupable(t *testing.T) {
	frames := []models.FrameRef{ref("A", "Solo", "1")}
	_, err := Plan(Input{Level: models.LevelSection, Frames: frames}, DefaultLimits())
	assert.ErrorIs(t, err, ErrNoUnits)
}

func TestPlan_GroupLevelPerPageAndGlobalCaps(t *testing.T) {
	var frames []models.FrameRef
	elements := map[string][]models.Element{}

	// page A: label "a<i>" gets i+1 frames, 4 labels
	id := 0
	for label := 0; label < 4; label++ {
		for k := 0; k <= label; k++ {
			id++
			nid := fmt.Sprintf("%d", id)
			frames = append(frames, ref("A", "fa"+nid, nid))
			elements[nid] = []models.Element{{Type: "component", Name: fmt.Sprintf("A%d", label)}}
		}
	}
	// page B: two labels with 2 frames each
	for label := 0; label < 2; label++ {
		for k := 0; k < 2; k++ {
			id++
			nid := fmt.Sprintf("%d", id)
			frames = append(frames, ref("B", "fb"+nid, nid))
			elements[nid] = []models.Element{{Type: "group", Name: fmt.Sprintf("B%d", label)}}
		}
	}

	limits := DefaultLimits()
	limits.MaxGroupsPerPage = 3
	limits.MaxGroupsGlobal = 4

	units, err := Plan(Input{Level: models.LevelGroup, Frames: frames, Elements: elements}, limits)
	require.NoError(t, err)

	// page A keeps a3(4) a2(3) a1(2); page B keeps b0(2) b1(2); global top 4 stable
	assert.Equal(t, []string{"a3", "a2", "a1", "b0"}, unitLabels(units))
	assert.Equal(t, "[GROUP] a3", units[0].BundleLabel())
	assert.Equal(t, "A", units[0].PageName)
	assert.Equal(t, "B", units[3].PageName)
}

func TestTopK_StableTies(t *testing.T) {
	groups := []models.Group{
		{Label: "first", Frames: make([]models.FrameItem, 2)},
		{Label: "big", Frames: make([]models.FrameItem, 5)},
		{Label: "second", Frames: make([]models.FrameItem, 2)},
		{Label: "small", Frames: make([]models.FrameItem, 1)},
	}

	top := TopK(groups, 3)
	require.Len(t, top, 3)
	assert.Equal(t, "big", top[0].Label)
	assert.Equal(t, "first", top[1].Label)
	assert.Equal(t, "second", top[2].Label)

	// input untouched
	assert.Equal(t, "first", groups[0].Label)
	assert.Len(t, TopK(groups, 0), 4)
}

func TestImageNodeIDs_CapsAndDedupes(t *testing.T) {
	units := []models.Unit{
		{Frames: []models.FrameItem{{NodeID: "1"}, {NodeID: "2"}, {NodeID: "3"}}},
		{Frames: []models.FrameItem{{NodeID: "2"}, {NodeID: "4"}}},
	}
	assert.Equal(t, []string{"1", "2", "4"}, ImageNodeIDs(units, 2))
	assert.Equal(t, []string{"1", "2", "3", "4"}, ImageNodeIDs(units, 12))
}

func TestClampImagesPerUnit(t *testing.T) {
	assert.Equal(t, 12, ClampImagesPerUnit(0))
	assert.Equal(t, 12, ClampImagesPerUnit(40))
	assert.Equal(t, 1, ClampImagesPerUnit(1))
	assert.Equal(t, 6, ClampImagesPerUnit(6))
}

func TestFrameNodeIDs(t *testing.T) {
	frames := []models.FrameRef{ref("A", "x", "1"), ref("A", "y", "1"), ref("B", "z", "2")}
	assert.Equal(t, []string{"1", "2"}, FrameNodeIDs(frames))
}
