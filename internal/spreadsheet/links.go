package spreadsheet

import (
	"fmt"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/xlharvest/internal/model"
)

// LinksSheet is the worksheet name of an exported target list.
const LinksSheet = "download_links"

// LinksHeader is the header row of an exported target list.
var LinksHeader = []string{"description", "download_link", "filename"}

// ExportLinks writes links to a new workbook at path with a single
// download_links worksheet. Descriptions and filenames are trimmed.
func ExportLinks(path string, links []model.LinkRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), LinksSheet); err != nil {
		return fmt.Errorf("failed to name worksheet: %w", err)
	}
	if err := writeRow(f, LinksSheet, 1, toCells(LinksHeader)); err != nil {
		return err
	}

	for i, link := range links {
		row := []any{strings.TrimSpace(link.Description), link.URL, link.Filename()}
		if err := writeRow(f, LinksSheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// ReadLinks reads an exported target list. Rows without a download link
// are skipped.
func ReadLinks(path string) ([]model.LinkRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sheet := LinksSheet
	if !slices.Contains(f.GetSheetList(), sheet) {
		sheet, err = firstSheet(f)
		if err != nil {
			return nil, err
		}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return []model.LinkRecord{}, nil
	}

	cols, err := indexHeader(rows[0], "download_link")
	if err != nil {
		return nil, err
	}

	links := make([]model.LinkRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		link := cell(row, cols, "download_link")
		if link == "" {
			continue
		}
		links = append(links, model.NewLinkRecord(cell(row, cols, "description"), link))
	}
	return links, nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	ref, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, ref, &values); err != nil {
		return fmt.Errorf("failed to write row %d: %w", rowNum, err)
	}
	return nil
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func firstSheet(f *excelize.File) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", ErrNoSheet
	}
	return sheets[0], nil
}

// indexHeader maps normalised column names to their index and checks
// that every required column exists.
func indexHeader(header []string, required ...string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := cols[key]; !dup && key != "" {
			cols[key] = i
		}
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return cols, nil
}

// cell returns the trimmed value of column name in row, or "".
func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
