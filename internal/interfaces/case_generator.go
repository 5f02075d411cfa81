package interfaces

import (
	"context"

	"github.com/ternarybob/figmaqa/internal/models"
)

// CaseGenerator produces test cases for one unit summary.
// An empty result with a nil error means every model declined.
type CaseGenerator interface {
	GenerateCases(ctx context.Context, summary *models.UnitSummary, opts models.GenerationOptions) ([]models.TestCase, error)
}
