package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nao1215/xlharvest/internal/database"
	"github.com/nao1215/xlharvest/internal/fetcher"
	"github.com/nao1215/xlharvest/internal/model"
	"github.com/nao1215/xlharvest/internal/progress"
	"github.com/nao1215/xlharvest/internal/xlseries"
)

// workbook returns an xlsx file with a monthly series in column B.
func workbook(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	cells := map[string]any{
		"A1": "Fecha", "B1": "IPC",
		"A2": time.Date(2021, time.January, 1, 0, 0, 0, 0, time.UTC), "B2": 100.0,
		"A3": time.Date(2021, time.February, 1, 0, 0, 0, 0, time.UTC), "B3": 104.0,
	}
	for ref, v := range cells {
		if err := f.SetCellValue("Sheet1", ref, v); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func ipcRow(link string) model.SourceRow {
	return model.SourceRow{
		DownloadLink:    link,
		Filename:        "ipc.xlsx",
		HeadersCoord:    "B1",
		DataStarts:      2,
		Frequency:       "M",
		TimeHeaderCoord: "A1",
		Categories:      "precios",
		Description:     "Indice de precios",
	}
}

// TestBuildPipeline tests download, extraction and storage end to end.
func TestBuildPipeline(t *testing.T) {
	t.Parallel()

	body := workbook(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ipc.xlsx" {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(server.Close)

	t.Run("stores observations and records download", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		store, err := database.Open(filepath.Join(dir, "db"), database.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		defer store.Close()

		var lines []string
		p := NewBuildPipeline(BuildOptions{
			Downloader: fetcher.New(server.Client()),
			Directory:  filepath.Join(dir, "cache"),
			Store:      store,
			Reporter:   progress.Func(func(l string) { lines = append(lines, l) }),
		})

		job := model.NewSourceJob("indec", ipcRow(server.URL+"/ipc.xlsx"))
		if err := p.Execute(context.Background(), job); err != nil {
			t.Fatalf("pipeline failed: %v", err)
		}
		if job.Stored != 2 {
			t.Errorf("expected 2 stored observations, got %d", job.Stored)
		}

		rows, err := store.QuerySeries(context.Background(), database.SeriesFilter{Source: "indec"})
		if err != nil {
			t.Fatal(err)
		}
		if len(rows) != 2 || rows[0].Name != "IPC" || rows[0].Categories != "precios" || rows[1].Value != 104 {
			t.Errorf("unexpected rows %+v", rows)
		}

		rec, err := store.GetDownload(context.Background(), filepath.Join(dir, "cache", "ipc.xlsx"))
		if err != nil || rec == nil || rec.Status != "downloaded" {
			t.Errorf("expected download record, got %+v, %v", rec, err)
		}

		found := false
		for _, l := range lines {
			if l == "1 series were scraped from ipc.xlsx" {
				found = true
			}
		}
		if !found {
			t.Errorf("missing progress line: %v", lines)
		}

		// Building again updates rows in place.
		again := model.NewSourceJob("indec", ipcRow(server.URL+"/ipc.xlsx"))
		if err := p.Execute(context.Background(), again); err != nil {
			t.Fatalf("second run failed: %v", err)
		}
		rows, _ = store.QuerySeries(context.Background(), database.SeriesFilter{})
		if len(rows) != 2 {
			t.Errorf("expected upsert to keep 2 rows, got %d", len(rows))
		}
	})

	t.Run("failed download stops the job", func(t *testing.T) {
		t.Parallel()

		p := NewBuildPipeline(BuildOptions{
			Downloader: fetcher.New(server.Client()),
			Directory:  t.TempDir(),
		})
		job := model.NewSourceJob("indec", ipcRow(server.URL+"/missing.xlsx"))
		err := p.Execute(context.Background(), job)
		if !errors.Is(err, ErrDownloadFailed) {
			t.Fatalf("expected ErrDownloadFailed, got %v", err)
		}
		if len(job.PerformedSteps) != 0 {
			t.Errorf("no step should complete, got %v", job.PerformedSteps)
		}
	})

	t.Run("use cache skips the download", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "ipc.xlsx"), body, 0o600); err != nil {
			t.Fatal(err)
		}

		p := NewBuildPipeline(BuildOptions{
			Downloader: failingDownloader{},
			Directory:  dir,
			UseCache:   true,
		})
		job := model.NewSourceJob("indec", ipcRow("http://unused/ipc.xlsx"))
		if err := p.Execute(context.Background(), job); err != nil {
			t.Fatalf("pipeline failed: %v", err)
		}
		if job.SeriesCount() != 1 {
			t.Errorf("expected 1 series, got %d", job.SeriesCount())
		}
	})

	t.Run("invalid parameters fail extraction", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "ipc.xlsx"), body, 0o600); err != nil {
			t.Fatal(err)
		}

		row := ipcRow("")
		row.Frequency = "YQQQQ"
		p := NewBuildPipeline(BuildOptions{Directory: dir, UseCache: true})
		err := p.Execute(context.Background(), model.NewSourceJob("indec", row))
		if !errors.Is(err, xlseries.ErrUnsupportedFrequency) {
			t.Errorf("expected ErrUnsupportedFrequency, got %v", err)
		}
	})
}

// TestEntries tests flattening of extracted tables.
func TestEntries(t *testing.T) {
	t.Parallel()

	job := model.NewSourceJob("ine", model.SourceRow{Categories: "empleo", Description: "EPA"})
	date := time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)
	job.Tables = []model.SeriesTable{{
		Frequency:    "Q",
		Columns:      []string{"paro"},
		Observations: []model.Observation{{Name: "paro", Date: date, Value: 13.8}},
	}}

	entries := Entries(job)
	want := model.SeriesEntry{Source: "ine", Categories: "empleo", Description: "EPA", Name: "paro", Date: date, Value: 13.8, Frequency: "Q"}
	if len(entries) != 1 || entries[0] != want {
		t.Errorf("got %+v, want %+v", entries, want)
	}
}

type failingDownloader struct{}

func (failingDownloader) Download(context.Context, string, string, string) (*fetcher.Result, error) {
	return nil, errors.New("download should not be called")
}
