package model

import (
	"encoding/json"
	"testing"
)

// TestLinkRecordJSON tests the [description, url] array encoding.
func TestLinkRecordJSON(t *testing.T) {
	t.Parallel()

	t.Run("encodes as a two element array", func(t *testing.T) {
		t.Parallel()

		data, err := json.Marshal(NewLinkRecord("Desc 1", "http://x.com/a.xlsx"))
		if err != nil {
			t.Fatalf("failed to marshal: %v", err)
		}

		expected := `["Desc 1","http://x.com/a.xlsx"]`
		if string(data) != expected {
			t.Errorf("got %s, expected %s", data, expected)
		}
	})

	t.Run("decodes a list of pairs", func(t *testing.T) {
		t.Parallel()

		var links []LinkRecord
		input := `[["A","http://a.com/1.xls"],["B","http://b.com/2.xls"]]`
		if err := json.Unmarshal([]byte(input), &links); err != nil {
			t.Fatalf("failed to unmarshal: %v", err)
		}

		if len(links) != 2 {
			t.Fatalf("expected 2 links, got %d", len(links))
		}
		if links[1].Description != "B" || links[1].URL != "http://b.com/2.xls" {
			t.Errorf("unexpected second link: %+v", links[1])
		}
	})

	t.Run("rejects pairs with the wrong length", func(t *testing.T) {
		t.Parallel()

		var link LinkRecord
		if err := json.Unmarshal([]byte(`["only one"]`), &link); err == nil {
			t.Error("expected error for single element array")
		}
	})

	t.Run("rejects objects", func(t *testing.T) {
		t.Parallel()

		var link LinkRecord
		if err := json.Unmarshal([]byte(`{"url":"x"}`), &link); err == nil {
			t.Error("expected error for object input")
		}
	})
}

// TestFilenameFromURL tests filename derivation from the last URL segment.
func TestFilenameFromURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want string
	}{
		{name: "simple file", url: "http://x.com/a.xlsx", want: "a.xlsx"},
		{name: "nested path", url: "http://x.com/data/2020/series.xls", want: "series.xls"},
		{name: "trailing whitespace", url: "http://x.com/b.xls ", want: "b.xls"},
		{name: "trailing slash", url: "http://x.com/dir/", want: ""},
		{name: "no slash", url: "file.xls", want: "file.xls"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := FilenameFromURL(tt.url); got != tt.want {
				t.Errorf("FilenameFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
