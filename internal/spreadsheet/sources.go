package spreadsheet

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/xlharvest/internal/model"
)

// Metadata sheet column names.
const (
	ColDownloadLink    = "download_link"
	ColFilename        = "filename"
	ColHeadersCoord    = "headers_coord"
	ColDataStarts      = "data_starts"
	ColFrequency       = "frequency"
	ColTimeHeaderCoord = "time_header_coord"
	ColContext         = "context"
	ColWorksheetName   = "ws_name"
	ColCategories      = "categories"
	ColDescription     = "description"
)

// SourceColumns is the header row of a metadata sheet.
var SourceColumns = []string{
	ColDownloadLink,
	ColFilename,
	ColHeadersCoord,
	ColDataStarts,
	ColFrequency,
	ColTimeHeaderCoord,
	ColContext,
	ColWorksheetName,
	ColCategories,
	ColDescription,
}

// ReadSources reads the first worksheet of a metadata spreadsheet. Rows
// with an empty download_link and filename are skipped. The filename
// defaults to the last segment of the download link.
func ReadSources(path string) ([]model.SourceRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	sheet, err := firstSheet(f)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColDownloadLink)
	}

	cols, err := indexHeader(rows[0], ColDownloadLink, ColFilename)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	sources := make([]model.SourceRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		src := model.SourceRow{
			DownloadLink:    cell(row, cols, ColDownloadLink),
			Filename:        cell(row, cols, ColFilename),
			HeadersCoord:    cell(row, cols, ColHeadersCoord),
			Frequency:       cell(row, cols, ColFrequency),
			TimeHeaderCoord: cell(row, cols, ColTimeHeaderCoord),
			Context:         cell(row, cols, ColContext),
			WorksheetName:   cell(row, cols, ColWorksheetName),
			Categories:      cell(row, cols, ColCategories),
			Description:     cell(row, cols, ColDescription),
		}
		if src.DownloadLink == "" && src.Filename == "" {
			continue
		}
		if src.Filename == "" {
			src.Filename = model.FilenameFromURL(src.DownloadLink)
		}

		n, err := parseIndex(cell(row, cols, ColDataStarts))
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %s: %w", path, i+2, ColDataStarts, err)
		}
		src.DataStarts = n

		sources = append(sources, src)
	}
	return sources, nil
}

// WriteSourceTemplate writes a metadata sheet with one row per link. Only
// the download link, filename and description are filled.
func WriteSourceTemplate(path string, links []model.LinkRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := writeRow(f, sheet, 1, toCells(SourceColumns)); err != nil {
		return err
	}
	for i, link := range links {
		row := make([]any, len(SourceColumns))
		for j, col := range SourceColumns {
			switch col {
			case ColDownloadLink:
				row[j] = link.URL
			case ColFilename:
				row[j] = link.Filename()
			case ColDescription:
				row[j] = strings.TrimSpace(link.Description)
			default:
				row[j] = ""
			}
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// WriteSources writes rows as a metadata sheet.
func WriteSources(path string, rows []model.SourceRow) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := writeRow(f, sheet, 1, toCells(SourceColumns)); err != nil {
		return err
	}
	for i, r := range rows {
		values := []any{
			r.DownloadLink, r.Filename, r.HeadersCoord, r.DataStarts, r.Frequency,
			r.TimeHeaderCoord, r.Context, r.WorksheetName, r.Categories, r.Description,
		}
		if err := writeRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

// parseIndex parses a row or column index written as an integer or an
// integral float ("3.0"). Empty means 0.
func parseIndex(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < 0 || v != math.Trunc(v) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	return int(v), nil
}
