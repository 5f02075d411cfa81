package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/ternarybob/figmaqa/internal/models"
)

// WriteWorkbook writes all cases to a single "Casos" sheet at path.
// With no cases the sheet holds one Mensaje column and a placeholder row.
func WriteWorkbook(bundles []models.CasesBundle, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	rows := Rows(bundles)
	if len(rows) == 0 {
		if err := f.SetSheetRow(SheetName, "A1", &[]interface{}{"Mensaje"}); err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, "A2", &[]interface{}{EmptyMessage}); err != nil {
			return err
		}
		return saveAs(f, path)
	}

	header := make([]interface{}, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(Columns))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", bold); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A2", fmt.Sprintf("%s%d", lastCol, len(rows)+1), wrap); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "A", lastCol, 28); err != nil {
		return err
	}

	return saveAs(f, path)
}

func saveAs(f *excelize.File, path string) error {
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}
