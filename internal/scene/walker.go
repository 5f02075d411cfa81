// Package scene walks design document trees and extracts the texts, controls
// and frames the analysis works with. Everything here is pure and allocation-local.
package scene

import (
	"strings"

	"github.com/ternarybob/figmaqa/internal/models"
)

// ControlKeywords are matched, in order, against lower-cased component names.
var ControlKeywords = []string{
	"button",
	"input",
	"textfield",
	"select",
	"dropdown",
	"checkbox",
	"radio",
	"switch",
	"tab",
	"accordion",
	"modal",
	"dialog",
	"toast",
	"tooltip",
	"link",
}

// UnnamedFrame replaces empty frame names in listings
const UnnamedFrame = "Untitled Frame"

// Visitor is called for every node in pre-order with the chain of ancestors
// (root first, parent last). Returning false skips the node's children.
// The ancestors slice is reused across calls and must not be retained.
type Visitor func(node *models.SceneNode, ancestors []*models.SceneNode) bool

// Walk performs a depth-first pre-order traversal of root. Trees are assumed acyclic.
func Walk(root *models.SceneNode, visit Visitor) {
	if root == nil {
		return
	}
	walk(root, make([]*models.SceneNode, 0, 16), visit)
}

func walk(node *models.SceneNode, ancestors []*models.SceneNode, visit Visitor) {
	if !visit(node, ancestors) {
		return
	}
	ancestors = append(ancestors, node)
	for _, child := range node.Children {
		if child != nil {
			walk(child, ancestors, visit)
		}
	}
}

// Flatten returns the deduplicated text content and the detected elements of a subtree.
func Flatten(root *models.SceneNode) ([]string, []models.Element) {
	return CollectTexts(root), DetectElements(root)
}

// CollectTexts returns trimmed, non-empty text leaf content in traversal order,
// keeping the first occurrence of each distinct string.
func CollectTexts(root *models.SceneNode) []string {
	texts := []string{}
	seen := map[string]struct{}{}
	Walk(root, func(n *models.SceneNode, _ []*models.SceneNode) bool {
		if n.Kind() != models.KindText {
			return true
		}
		text := strings.TrimSpace(n.Characters)
		if text == "" {
			return true
		}
		if _, ok := seen[text]; !ok {
			seen[text] = struct{}{}
			texts = append(texts, text)
		}
		return true
	})
	return texts
}

// DetectElements lists interactive controls and named containers in traversal order.
// A component or instance yields a keyword record (first match) plus a component record.
func DetectElements(root *models.SceneNode) []models.Element {
	elements := []models.Element{}
	Walk(root, func(n *models.SceneNode, _ []*models.SceneNode) bool {
		switch n.Kind() {
		case models.KindComponent, models.KindInstance:
			if kw := matchControl(n.Name); kw != "" {
				elements = append(elements, models.Element{Type: kw, Name: n.Name})
			}
			elements = append(elements, models.Element{Type: "component", Name: n.Name})
		case models.KindGroup, models.KindSection:
			if n.Name != "" {
				elements = append(elements, models.Element{Type: "group", Name: n.Name})
			}
		}
		return true
	})
	return elements
}

func matchControl(name string) string {
	lower := strings.ToLower(name)
	for _, kw := range ControlKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

// ListFrames returns a FrameRef for every frame anywhere under root, including
// frames nested in sections, groups, component sets and other frames.
func ListFrames(root *models.SceneNode, pageName, pageID string) []models.FrameRef {
	frames := []models.FrameRef{}
	Walk(root, func(n *models.SceneNode, _ []*models.SceneNode) bool {
		if n.Kind() == models.KindFrame {
			name := n.Name
			if name == "" {
				name = UnnamedFrame
			}
			frames = append(frames, models.FrameRef{
				PageName:  pageName,
				PageID:    pageID,
				FrameName: name,
				NodeID:    n.ID,
			})
		}
		return true
	})
	return frames
}

// ListDocumentFrames lists the frames of every page of a document root, page by page.
func ListDocumentFrames(document *models.SceneNode) []models.FrameRef {
	frames := []models.FrameRef{}
	for _, page := range document.Pages() {
		name := page.Name
		if name == "" {
			name = "Untitled Page"
		}
		frames = append(frames, ListFrames(page, name, page.ID)...)
	}
	return frames
}

// CountNodes returns the number of nodes in the subtree.
func CountNodes(root *models.SceneNode) int {
	count := 0
	Walk(root, func(*models.SceneNode, []*models.SceneNode) bool {
		count++
		return true
	})
	return count
}
