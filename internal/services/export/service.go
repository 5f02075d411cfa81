package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/figmaqa/internal/interfaces"
	"github.com/ternarybob/figmaqa/internal/models"
)

// Supported export formats
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
	FormatHTML = "html"
)

// Service writes export files under a single output directory
type Service struct {
	outputDir string
	logger    arbor.ILogger
}

var _ interfaces.Exporter = (*Service)(nil)

// NewService creates an export service writing to outputDir
func NewService(outputDir string, logger arbor.ILogger) *Service {
	return &Service{outputDir: outputDir, logger: logger}
}

// OutputDir returns the directory export files are written to
func (s *Service) OutputDir() string {
	return s.outputDir
}

// WriteWorkbook writes the workbook for a run to path
func (s *Service) WriteWorkbook(bundles []models.CasesBundle, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := WriteWorkbook(bundles, path); err != nil {
		return err
	}
	s.logger.Debug().Str("path", path).Int("bundles", len(bundles)).Msg("Workbook written")
	return nil
}

// Export renders bundles in the requested format and returns the file path.
// name is used for the report title and the file name prefix.
func (s *Service) Export(bundles []models.CasesBundle, format, name string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatXLSX
	}
	if format != FormatXLSX && format != FormatPDF && format != FormatHTML {
		return "", fmt.Errorf("unsupported export format %q (expected xlsx, pdf or html)", format)
	}

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	title := strings.TrimSpace(name)
	if title == "" {
		title = "Casos de prueba"
	}
	path := filepath.Join(s.outputDir, fmt.Sprintf("%s_%s.%s", slug(title), uuid.New().String()[:8], format))

	if format == FormatXLSX {
		if err := s.WriteWorkbook(bundles, path); err != nil {
			return "", err
		}
		return path, nil
	}

	report := Markdown(bundles, title)
	var (
		data []byte
		err  error
	)
	if format == FormatPDF {
		data, err = RenderPDF(report, title)
	} else {
		data, err = RenderHTML(report, title)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("format", format).Msg("Export rendering failed")
		return "", err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	s.logger.Info().Str("path", path).Str("format", format).Int("size", len(data)).Msg("Export written")
	return path, nil
}

func slug(s string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash && b.Len() > 0:
			b.WriteByte('_')
			lastDash = true
		}
	}
	out := strings.TrimRight(b.String(), "_")
	if out == "" {
		return "export"
	}
	if len(out) > 40 {
		out = strings.TrimRight(out[:40], "_")
	}
	return out
}
