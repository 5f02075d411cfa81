package pipeline

import (
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/figmaqa/internal/models"
	"github.com/ternarybob/figmaqa/internal/scene"
)

// runData is everything fetched for one run, keyed by frame node id
type runData struct {
	fileKey string
	nodes   map[string]*models.SceneNode
	images  map[string]string
}

// frameSummary flattens one frame's node tree. ok is false when the frame has no image.
func (r *runData) frameSummary(f models.FrameItem) (models.FrameSummary, bool) {
	url := r.images[f.NodeID]
	if url == "" {
		return models.FrameSummary{}, false
	}
	texts, elements := scene.Flatten(r.nodes[f.NodeID])
	return models.FrameSummary{
		FrameName: f.Name,
		NodeID:    f.NodeID,
		ImageURL:  url,
		Texts:     texts,
		Elements:  elements,
	}, true
}

// unitSummary builds the generation input for a unit from its capped frames,
// leaving out frames without an image.
func (r *runData) unitSummary(u models.Unit, imagesPerUnit int, logger arbor.ILogger) *models.UnitSummary {
	summary := &models.UnitSummary{
		Variant:   u.Level,
		FileKey:   r.fileKey,
		PageName:  u.PageName,
		UnitLabel: u.Label,
	}
	for _, f := range u.Capped(imagesPerUnit) {
		fs, ok := r.frameSummary(f)
		if !ok {
			logger.Warn().
				Str("node_id", f.NodeID).
				Str("frame", f.Name).
				Msg("Skipping frame without rendered image")
			continue
		}
		summary.Frames = append(summary.Frames, fs)
	}
	return summary
}

// elementsByFrame indexes the detected elements of every fetched frame
func elementsByFrame(nodes map[string]*models.SceneNode) map[string][]models.Element {
	out := make(map[string][]models.Element, len(nodes))
	for id, node := range nodes {
		out[id] = scene.DetectElements(node)
	}
	return out
}

// pageTrees indexes the page subtrees of a document root by page id
func pageTrees(document *models.SceneNode) map[string]*models.SceneNode {
	out := map[string]*models.SceneNode{}
	for _, p := range document.Pages() {
		out[p.ID] = p
	}
	return out
}
