// -----------------------------------------------------------------------
// Scene graph - read-only design document tree
// -----------------------------------------------------------------------

package models

import "strings"

// NodeKind is the closed set of node kinds the analysis cares about.
// Everything the design API returns that is not listed maps to KindOther.
type NodeKind int

const (
	KindOther NodeKind = iota
	KindDocument
	KindPage
	KindSection
	KindFrame
	KindGroup
	KindComponent
	KindInstance
	KindText
)

var nodeKindNames = map[NodeKind]string{
	KindOther:     "other",
	KindDocument:  "document",
	KindPage:      "page",
	KindSection:   "section",
	KindFrame:     "frame",
	KindGroup:     "group",
	KindComponent: "component",
	KindInstance:  "instance",
	KindText:      "text",
}

func (k NodeKind) String() string {
	if name, ok := nodeKindNames[k]; ok {
		return name
	}
	return "other"
}

// ParseNodeKind maps a raw design API node type tag to a NodeKind.
func ParseNodeKind(nodeType string) NodeKind {
	switch strings.ToUpper(nodeType) {
	case "DOCUMENT":
		return KindDocument
	case "CANVAS":
		return KindPage
	case "SECTION":
		return KindSection
	case "FRAME":
		return KindFrame
	case "GROUP":
		return KindGroup
	case "COMPONENT", "COMPONENT_SET":
		return KindComponent
	case "INSTANCE":
		return KindInstance
	case "TEXT":
		return KindText
	default:
		return KindOther
	}
}

// SceneNode is one node of a design document as returned by the design API.
// Only the fields the analysis reads are decoded.
type SceneNode struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	Characters string       `json:"characters,omitempty"`
	Children   []*SceneNode `json:"children,omitempty"`
}

// Kind returns the classified node kind
func (n *SceneNode) Kind() NodeKind {
	if n == nil {
		return KindOther
	}
	return ParseNodeKind(n.Type)
}

// Pages returns the page (canvas) children of a document root.
func (n *SceneNode) Pages() []*SceneNode {
	if n == nil {
		return nil
	}
	pages := make([]*SceneNode, 0, len(n.Children))
	for _, child := range n.Children {
		if child.Kind() == KindPage {
			pages = append(pages, child)
		}
	}
	return pages
}

// Element is a detected interactive control or named container
type Element struct {
	Type string `json:"type"`
	Name string `json:"name"`
}
