package interfaces

import (
	"context"

	"github.com/ternarybob/figmaqa/internal/models"
)

// AnalysisStorage persists completed runs and their cases
type AnalysisStorage interface {
	SaveAnalysis(ctx context.Context, run *models.AnalysisRun, bundles []models.CasesBundle) (uint64, error)
	ListAnalyses(ctx context.Context, limit int, fileKey string) ([]models.AnalysisRun, error)
	GetAnalysis(ctx context.Context, id uint64, includeCases bool) (*models.AnalysisDetail, error)
	GetBundles(ctx context.Context, id uint64) ([]models.CasesBundle, error)
	DeleteAnalysis(ctx context.Context, id uint64) error

	GetCase(ctx context.Context, caseID uint64) (*models.StoredCase, error)
	UpdateCaseEvaluation(ctx context.Context, caseID uint64, patch models.CaseEvaluationPatch) (*models.StoredCase, error)
	DeleteCase(ctx context.Context, caseID uint64) error

	ListRecentFiles(ctx context.Context, limit int) ([]models.FileHistory, error)
}

// StorageManager owns the database and hands out the typed stores
type StorageManager interface {
	AnalysisStorage() AnalysisStorage
	Close() error
}
