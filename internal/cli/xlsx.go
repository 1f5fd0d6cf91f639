package cli

import (
	"fmt"
	"io"

	"github.com/hyperjump/newsvec/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	articlesSheet = "Articles"
	skippedSheet  = "Skipped"
)

var (
	articleHeader = []interface{}{"Name", "Title", "Content", "DataType", "Label", "Path", "ID"}
	skippedHeader = []interface{}{"Path", "Kind", "Reason"}
)

// ExportArticles writes articles as an XLSX workbook, one row per article in
// listing order. When skipped is non-empty a second sheet lists them.
func ExportArticles(w io.Writer, articles []*models.Article, skipped []models.SkippedDocument) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", articlesSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(articlesSheet, "A1", &articleHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, a := range articles {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{a.Name, a.Title, a.Content, a.DataType, a.Label, a.Path, a.ID}
		if err := f.SetSheetRow(articlesSheet, cell, &row); err != nil {
			return fmt.Errorf("write article row %d: %w", i+1, err)
		}
	}

	if len(skipped) > 0 {
		if _, err := f.NewSheet(skippedSheet); err != nil {
			return fmt.Errorf("add sheet: %w", err)
		}
		if err := f.SetSheetRow(skippedSheet, "A1", &skippedHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for i, s := range skipped {
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			row := []interface{}{s.Path, s.Kind, s.Reason}
			if err := f.SetSheetRow(skippedSheet, cell, &row); err != nil {
				return fmt.Errorf("write skipped row %d: %w", i+1, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
