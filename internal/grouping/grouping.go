// Package grouping partitions the frames of one page into labelled groups.
//
// Two strategies exist:
//   - BySectionOrPrefix: explicit SECTION containers, then naming-convention
//     prefixes for unclaimed frames, then a single leftover bucket.
//   - ByComponentLabel: one group per normalized component or group name
//     detected inside each frame.
//
// Neither strategy ranks its output; callers apply top-K selection.
package grouping

import (
	"regexp"
	"strings"

	"github.com/ternarybob/figmaqa/internal/models"
	"github.com/ternarybob/figmaqa/internal/scene"
)

const (
	// OtherLabel names the bucket of frames no container or prefix claimed
	OtherLabel = "(otros)"
	// UnnamedSection is used for sections with an empty name
	UnnamedSection = "Sección"
)

var (
	prefixSeparators = regexp.MustCompile(`\s*[/:|>›»–\-]+\s*`)
	labelSeparators  = regexp.MustCompile(`[/|>:\-]`)
	variantWords     = regexp.MustCompile(`\b(primary|secondary|tertiary|default|filled|outlined|ghost|success|warning|error|info|active|inactive|disabled)\b`)
	spaces           = regexp.MustCompile(`\s+`)
)

// orderedGroups accumulates frames per label, keeping first-seen label order
// and at most one entry per node id within each label.
type orderedGroups struct {
	order  []string
	frames map[string][]models.FrameItem
	seen   map[string]map[string]struct{}
}

func newOrderedGroups() *orderedGroups {
	return &orderedGroups{
		frames: map[string][]models.FrameItem{},
		seen:   map[string]map[string]struct{}{},
	}
}

func (g *orderedGroups) add(label string, frame models.FrameItem) {
	ids, ok := g.seen[label]
	if !ok {
		ids = map[string]struct{}{}
		g.seen[label] = ids
		g.order = append(g.order, label)
	}
	if _, dup := ids[frame.NodeID]; dup {
		return
	}
	ids[frame.NodeID] = struct{}{}
	g.frames[label] = append(g.frames[label], frame)
}

// BySectionOrPrefix groups framesInPage (the frames of pageRoot) in three passes:
// section containers, name prefixes, leftovers. Groups smaller than minGroupSize
// are dropped and their frames fall through to the next pass; leftovers below
// the threshold are dropped entirely. A frame appears in at most one group.
func BySectionOrPrefix(pageRoot *models.SceneNode, framesInPage []models.FrameItem, minGroupSize int) []models.Group {
	wanted := make(map[string]models.FrameItem, len(framesInPage))
	for _, f := range framesInPage {
		wanted[f.NodeID] = f
	}

	claimed := map[string]struct{}{}
	groups := []models.Group{}

	// Pass 1: innermost SECTION ancestor
	sections := newOrderedGroups()
	scene.Walk(pageRoot, func(n *models.SceneNode, ancestors []*models.SceneNode) bool {
		if n.Kind() != models.KindFrame {
			return true
		}
		item, ok := wanted[n.ID]
		if !ok {
			return true
		}
		if section := containingSection(ancestors); section != "" {
			sections.add(section, item)
		}
		return true
	})
	for _, label := range sections.order {
		items := unclaimed(sections.frames[label], claimed)
		if len(items) < minGroupSize {
			continue
		}
		claim(items, claimed)
		groups = append(groups, models.Group{Label: label, Frames: items})
	}

	// Pass 2: name prefix
	prefixes := newOrderedGroups()
	for _, f := range framesInPage {
		if _, ok := claimed[f.NodeID]; ok {
			continue
		}
		if key := PrefixOf(f.Name); key != "" {
			prefixes.add(key, f)
		}
	}
	for _, label := range prefixes.order {
		items := unclaimed(prefixes.frames[label], claimed)
		if len(items) < minGroupSize {
			continue
		}
		claim(items, claimed)
		groups = append(groups, models.Group{Label: label, Frames: items})
	}

	// Pass 3: leftovers
	var leftovers []models.FrameItem
	seen := map[string]struct{}{}
	for _, f := range framesInPage {
		if _, ok := claimed[f.NodeID]; ok {
			continue
		}
		if _, dup := seen[f.NodeID]; dup {
			continue
		}
		seen[f.NodeID] = struct{}{}
		leftovers = append(leftovers, f)
	}
	if len(leftovers) > 0 && len(leftovers) >= minGroupSize {
		groups = append(groups, models.Group{Label: OtherLabel, Frames: leftovers})
	}

	return groups
}

func containingSection(ancestors []*models.SceneNode) string {
	for i := len(ancestors) - 1; i >= 0; i-- {
		if ancestors[i].Kind() == models.KindSection {
			if ancestors[i].Name == "" {
				return UnnamedSection
			}
			return ancestors[i].Name
		}
	}
	return ""
}

func unclaimed(items []models.FrameItem, claimed map[string]struct{}) []models.FrameItem {
	out := make([]models.FrameItem, 0, len(items))
	for _, f := range items {
		if _, ok := claimed[f.NodeID]; !ok {
			out = append(out, f)
		}
	}
	return out
}

func claim(items []models.FrameItem, claimed map[string]struct{}) {
	for _, f := range items {
		claimed[f.NodeID] = struct{}{}
	}
}

// PrefixOf derives the naming-convention key of a frame name: lower-cased,
// cut at the first separator, whitespace collapsed. Empty when nothing remains.
func PrefixOf(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return ""
	}
	base := prefixSeparators.Split(s, 2)[0]
	return spaces.ReplaceAllString(strings.TrimSpace(base), " ")
}

// NormalizeLabel reduces a component or group name to a grouping label by
// cutting variant suffixes and stripping visual-variant adjectives.
// Falls back to the lower-cased name when nothing is left.
func NormalizeLabel(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return ""
	}
	base := strings.TrimSpace(labelSeparators.Split(s, 2)[0])
	base = strings.TrimSpace(variantWords.ReplaceAllString(base, ""))
	base = spaces.ReplaceAllString(base, " ")
	if base == "" {
		return s
	}
	return base
}

// ByComponentLabel groups frames by the normalized names of the components and
// groups detected inside each frame. A frame joins every distinct label it
// contributes. No minimum size is applied; frames without labels are not grouped.
func ByComponentLabel(frames []models.FrameItem, elementsByNode map[string][]models.Element) []models.Group {
	labels := newOrderedGroups()
	for _, f := range frames {
		perFrame := map[string]struct{}{}
		for _, e := range elementsByNode[f.NodeID] {
			t := strings.ToLower(e.Type)
			name := strings.TrimSpace(e.Name)
			if (t != "component" && t != "group") || name == "" {
				continue
			}
			label := NormalizeLabel(name)
			if label == "" {
				label = OtherLabel
			}
			if _, dup := perFrame[label]; dup {
				continue
			}
			perFrame[label] = struct{}{}
			labels.add(label, f)
		}
	}

	groups := make([]models.Group, 0, len(labels.order))
	for _, label := range labels.order {
		groups = append(groups, models.Group{Label: label, Frames: labels.frames[label]})
	}
	return groups
}
