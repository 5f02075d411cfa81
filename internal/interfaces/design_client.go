package interfaces

import (
	"context"

	"github.com/ternarybob/figmaqa/internal/models"
)

// DesignClient reads design files. Tokens are passed per call.
type DesignClient interface {
	// ListFrames returns the top-level frames of every page plus the document
	// root with each page's full tree attached
	ListFrames(ctx context.Context, token, fileKey string) ([]models.FrameRef, *models.SceneNode, error)

	// GetNodes returns node id -> subtree for the ids the API resolved.
	// A *models.PartialFetchError means some batches failed and the map is partial.
	GetNodes(ctx context.Context, token, fileKey string, ids []string) (map[string]*models.SceneNode, error)

	// GetImages returns node id -> rendered image url. Unrendered ids are absent.
	GetImages(ctx context.Context, token, fileKey string, ids []string, scale float64) (map[string]string, error)
}
