package spreadsheet

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/xlharvest/internal/model"
)

// TestExportLinks tests the target list export.
func TestExportLinks(t *testing.T) {
	t.Parallel()

	t.Run("writes header and one row per target", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "links.xlsx")
		links := []model.LinkRecord{model.NewLinkRecord("Desc 1", "http://x.com/a.xlsx")}
		if err := ExportLinks(path, links); err != nil {
			t.Fatalf("export failed: %v", err)
		}

		f, err := excelize.OpenFile(path)
		if err != nil {
			t.Fatalf("failed to open export: %v", err)
		}
		defer f.Close()

		if sheets := f.GetSheetList(); !slices.Equal(sheets, []string{LinksSheet}) {
			t.Errorf("expected only %q, got %v", LinksSheet, sheets)
		}

		rows, err := f.GetRows(LinksSheet)
		if err != nil {
			t.Fatalf("failed to read rows: %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("expected 2 rows, got %d", len(rows))
		}
		if !slices.Equal(rows[0], []string{"description", "download_link", "filename"}) {
			t.Errorf("unexpected header %v", rows[0])
		}
		if !slices.Equal(rows[1], []string{"Desc 1", "http://x.com/a.xlsx", "a.xlsx"}) {
			t.Errorf("unexpected row %v", rows[1])
		}
	})

	t.Run("trims description", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "links.xlsx")
		links := []model.LinkRecord{model.NewLinkRecord("\n  Serie mensual \t", "http://x.com/dir/b.xls ")}
		if err := ExportLinks(path, links); err != nil {
			t.Fatalf("export failed: %v", err)
		}

		got, err := ReadLinks(path)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if len(got) != 1 || got[0].Description != "Serie mensual" || got[0].Filename() != "b.xls" {
			t.Errorf("unexpected links %v", got)
		}
	})

	t.Run("unwritable path", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "missing", "links.xlsx")
		if err := ExportLinks(path, nil); err == nil {
			t.Error("expected error for missing directory")
		}
	})
}

// TestReadSources tests metadata sheet parsing.
func TestReadSources(t *testing.T) {
	t.Parallel()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "indec.xlsx")
		want := []model.SourceRow{{
			DownloadLink:    "http://x.com/emae.xls",
			Filename:        "emae.xls",
			HeadersCoord:    "B1-D1",
			DataStarts:      2,
			Frequency:       "M",
			TimeHeaderCoord: "A1",
			Context:         "Total:B1-C1",
			Categories:      "actividad",
			Description:     "EMAE",
		}}
		if err := WriteSources(path, want); err != nil {
			t.Fatalf("write failed: %v", err)
		}

		got, err := ReadSources(path)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if !slices.Equal(got, want) {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("filename defaults to link segment", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "s.xlsx")
		if err := WriteSources(path, []model.SourceRow{{DownloadLink: "http://x.com/a/ipc.xlsx"}}); err != nil {
			t.Fatal(err)
		}
		got, err := ReadSources(path)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if len(got) != 1 || got[0].Filename != "ipc.xlsx" {
			t.Errorf("unexpected rows %+v", got)
		}
	})

	t.Run("missing required column", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.xlsx")
		f := excelize.NewFile()
		if err := f.SetSheetRow("Sheet1", "A1", &[]any{"filename", "frequency"}); err != nil {
			t.Fatal(err)
		}
		if err := f.SaveAs(path); err != nil {
			t.Fatal(err)
		}
		f.Close()

		_, err := ReadSources(path)
		if !errors.Is(err, ErrMissingColumn) {
			t.Errorf("expected ErrMissingColumn, got %v", err)
		}
	})

	t.Run("invalid data_starts", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "bad.xlsx")
		f := excelize.NewFile()
		if err := f.SetSheetRow("Sheet1", "A1", &[]any{"download_link", "filename", "data_starts"}); err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow("Sheet1", "A2", &[]any{"http://x.com/a.xls", "a.xls", "two"}); err != nil {
			t.Fatal(err)
		}
		if err := f.SaveAs(path); err != nil {
			t.Fatal(err)
		}
		f.Close()

		_, err := ReadSources(path)
		if !errors.Is(err, ErrInvalidValue) {
			t.Errorf("expected ErrInvalidValue, got %v", err)
		}
	})
}

// TestWriteSourceTemplate tests the metadata skeleton written from targets.
func TestWriteSourceTemplate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "template.xlsx")
	links := []model.LinkRecord{model.NewLinkRecord(" IPC ", "http://x.com/ipc.xls")}
	if err := WriteSourceTemplate(path, links); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	rows, err := ReadSources(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	want := model.SourceRow{DownloadLink: "http://x.com/ipc.xls", Filename: "ipc.xls", Description: "IPC"}
	if len(rows) != 1 || rows[0] != want {
		t.Errorf("got %+v, want %+v", rows, want)
	}
}

// TestParseIndex tests data_starts parsing.
func TestParseIndex(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 0, false},
		{"3", 3, false},
		{"3.0", 3, false},
		{"3.5", 0, true},
		{"-1", 0, true},
		{"x", 0, true},
	}
	for _, tt := range tests {
		got, err := parseIndex(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseIndex(%q) = %d, %v", tt.in, got, err)
		}
	}
}
