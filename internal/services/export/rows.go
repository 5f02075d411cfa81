// Package export renders case bundles as XLSX, PDF and HTML reports.
package export

import (
	"strings"

	"github.com/ternarybob/figmaqa/internal/models"
)

// SheetName is the workbook sheet holding the cases
const SheetName = "Casos"

// EmptyMessage is written instead of cases when a run produced none
const EmptyMessage = "No se generaron casos. Revisa permisos del archivo, nivel de análisis o incrementa images_per_unit."

// Columns is the fixed column order of every export
var Columns = []string{
	"ID",
	"Página",
	"Frame",
	"Feature",
	"Objetivo",
	"Prioridad",
	"Severidad",
	"Precondiciones",
	"Pasos",
	"Datos de prueba",
	"Resultado esperado",
	"Casos negativos",
	"Bordes",
	"Accesibilidad",
	"Dispositivo/Resolución",
	"Dependencias",
	"Observaciones",
}

// CaseRow flattens one case into Columns order; list fields are newline joined
func CaseRow(page, frame string, c models.TestCase) []string {
	return []string{
		c.ID,
		page,
		frame,
		c.Feature,
		c.Objetivo,
		c.Prioridad,
		c.Severidad,
		strings.Join(c.Precondiciones, "\n"),
		strings.Join(c.Pasos, "\n"),
		formatTestData(c.DatosPrueba),
		c.ResultadoEsperado,
		strings.Join(c.Negativo, "\n"),
		strings.Join(c.Bordes, "\n"),
		strings.Join(c.Accesibilidad, "\n"),
		c.Dispositivo,
		strings.Join(c.Dependencias, "\n"),
		c.Observaciones,
	}
}

// Rows flattens every case of every bundle, in bundle order
func Rows(bundles []models.CasesBundle) [][]string {
	var rows [][]string
	for _, b := range bundles {
		for _, c := range b.Cases {
			rows = append(rows, CaseRow(b.PageName, b.FrameName, c))
		}
	}
	return rows
}

func formatTestData(data map[string]any) string {
	if len(data) == 0 {
		return ""
	}
	return models.FormatValue(data)
}
