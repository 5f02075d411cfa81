package interfaces

import (
	"github.com/ternarybob/figmaqa/internal/models"
)

// Exporter renders case bundles to a file and returns its path
type Exporter interface {
	WriteWorkbook(bundles []models.CasesBundle, path string) error
	Export(bundles []models.CasesBundle, format, name string) (string, error)
}
