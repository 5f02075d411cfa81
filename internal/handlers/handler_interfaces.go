package handlers

import (
	"context"

	"github.com/ternarybob/figmaqa/internal/models"
	"github.com/ternarybob/figmaqa/internal/pipeline"
	"github.com/ternarybob/figmaqa/internal/services/figma"
)

// RunStarter starts analysis runs in the background
type RunStarter interface {
	Start(ctx context.Context, req pipeline.Request) string
	Normalize(opts models.AnalyzeOptions) models.AnalyzeOptions
}

// JobReader reads job snapshots
type JobReader interface {
	Get(jobID string) (models.JobStatus, bool)
	List() []models.JobStatus
}

// DesignBrowser lists pages, frames and files for the diagnostic endpoints
type DesignBrowser interface {
	ListPages(ctx context.Context, token, fileKey string) ([]figma.Page, error)
	ListFrames(ctx context.Context, token, fileKey string) ([]models.FrameRef, *models.SceneNode, error)
	ListAccessibleFiles(ctx context.Context, token string) (*figma.AccessibleFiles, error)
}

// OAuthFlow is the authorization-code flow of the design API
type OAuthFlow interface {
	AuthorizeURL(state string) (string, error)
	Exchange(ctx context.Context, code string) (*figma.Token, error)
	Refresh(ctx context.Context, refreshToken string) (*figma.Token, error)
}
