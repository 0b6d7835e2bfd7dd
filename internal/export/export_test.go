package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sadopc/focustrack/internal/stats"
)

func sampleData() *stats.ExportData {
	return &stats.ExportData{
		From:          "2024-03-14",
		To:            "2024-03-15",
		GeneratedAt:   time.Date(2024, 3, 15, 18, 0, 0, 0, time.UTC),
		TotalDuration: 5430,
		Days: []stats.ExportDay{
			{
				Date:          "2024-03-14",
				TotalDuration: 3630,
				Tasks: []stats.ExportTask{
					{
						TaskID:        1,
						Title:         "Write report",
						FolderID:      2,
						FolderName:    "Work",
						TotalDuration: 3630,
						Apps: []stats.AppBreakdown{
							{AppName: "terminal", TotalDuration: 3600, SessionCount: 3},
							{AppName: "firefox", TotalDuration: 30, SessionCount: 1},
						},
					},
				},
			},
			{
				Date:          "2024-03-15",
				TotalDuration: 1800,
				Tasks: []stats.ExportTask{
					{
						TaskID:        3,
						Title:         "Inbox",
						FolderID:      1,
						FolderName:    "Default",
						TotalDuration: 1800,
						Apps: []stats.AppBreakdown{
							{AppName: "chrome", TotalDuration: 1800, SessionCount: 2},
						},
					},
				},
			},
		},
	}
}

func emptyData() *stats.ExportData {
	return &stats.ExportData{GeneratedAt: time.Now(), Days: []stats.ExportDay{}}
}

// ============================================================
// CSV
// ============================================================

func TestToCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.csv")

	if err := ToCSV(sampleData(), path); err != nil {
		t.Fatalf("ToCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	// header + one row per (date, task, app)
	if len(records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(records))
	}
	if records[0][0] != "Date" || records[0][3] != "Application" {
		t.Errorf("unexpected header: %v", records[0])
	}

	row := records[1]
	if row[0] != "2024-03-14" || row[1] != "Work" || row[2] != "Write report" || row[3] != "terminal" {
		t.Errorf("unexpected first row: %v", row)
	}
	if row[4] != "3" || row[5] != "3600" || row[6] != "01:00:00" {
		t.Errorf("unexpected first row numbers: %v", row)
	}
	if row[7] != "01:00:30" || row[8] != "01:00:30" {
		t.Errorf("unexpected totals: %v", row)
	}
	if records[3][3] != "chrome" || records[3][1] != "Default" {
		t.Errorf("unexpected last row: %v", records[3])
	}
}

func TestToCSV_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")

	if err := ToCSV(emptyData(), path); err != nil {
		t.Fatalf("ToCSV empty: %v", err)
	}

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Errorf("expected only header, got %d lines", len(lines))
	}
}

func TestToCSV_InvalidPath(t *testing.T) {
	err := ToCSV(emptyData(), "/nonexistent/dir/test.csv")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestToCSV_SpecialChars(t *testing.T) {
	data := sampleData()
	data.Days[0].Tasks[0].Title = `Fix "bug", then deploy`
	var buf bytes.Buffer

	if err := WriteCSV(&buf, data); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if records[1][2] != `Fix "bug", then deploy` {
		t.Errorf("title not preserved: %q", records[1][2])
	}
}

// ============================================================
// JSON
// ============================================================

func TestToJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.json")

	if err := ToJSON(sampleData(), path); err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var result jsonExport
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if result.TotalSec != 5430 || result.Total != "01:30:30" {
		t.Errorf("unexpected totals: %d %q", result.TotalSec, result.Total)
	}
	if result.ExportedAt != "2024-03-15T18:00:00Z" {
		t.Errorf("unexpected exported_at: %q", result.ExportedAt)
	}
	if len(result.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(result.Days))
	}
	task := result.Days[0].Tasks[0]
	if task.Title != "Write report" || task.Folder != "Work" || len(task.Apps) != 2 {
		t.Errorf("unexpected task: %+v", task)
	}
	if task.Apps[0].Name != "terminal" || task.Apps[0].Duration != "01:00:00" || task.Apps[0].Sessions != 3 {
		t.Errorf("unexpected app: %+v", task.Apps[0])
	}
}

func TestToJSON_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.json")

	if err := ToJSON(emptyData(), path); err != nil {
		t.Fatalf("ToJSON empty: %v", err)
	}

	raw, _ := os.ReadFile(path)
	var result map[string]any
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	days, ok := result["days"].([]any)
	if !ok || len(days) != 0 {
		t.Errorf("expected empty days array, got %v", result["days"])
	}
}

func TestToJSON_InvalidPath(t *testing.T) {
	err := ToJSON(emptyData(), "/nonexistent/dir/test.json")
	if err == nil {
		t.Error("expected error for invalid path")
	}
}

func TestToJSON_PrettyPrinted(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleData()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("JSON should be indented")
	}
}

// ============================================================
// Formats
// ============================================================

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{"CSV", FormatCSV, false},
		{" csv ", FormatCSV, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) err = %v", tt.in, err)
			continue
		}
		if tt.wantErr && !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("ParseFormat(%q) should wrap ErrUnknownFormat", tt.in)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteDispatch(t *testing.T) {
	var csvBuf, jsonBuf bytes.Buffer
	if err := Write(&csvBuf, FormatCSV, sampleData()); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(csvBuf.String(), "Date,Folder,Task") {
		t.Errorf("csv output starts with %q", csvBuf.String()[:20])
	}
	if err := Write(&jsonBuf, FormatJSON, sampleData()); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(jsonBuf.String(), "{") {
		t.Error("json output should be an object")
	}
	if err := Write(&bytes.Buffer{}, "xml", sampleData()); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
	if ContentType(FormatCSV) != "text/csv; charset=utf-8" || ContentType(FormatJSON) != "application/json" {
		t.Error("unexpected content types")
	}
}

func TestToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	if err := ToFile(path, FormatCSV, sampleData()); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file not written: %v", err)
	}
}

// ============================================================
// formatDuration
// ============================================================

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		secs int64
		want string
	}{
		{0, "00:00:00"},
		{1, "00:00:01"},
		{60, "00:01:00"},
		{3600, "01:00:00"},
		{3661, "01:01:01"},
		{86400, "24:00:00"},
		{90061, "25:01:01"},
	}

	for _, tt := range tests {
		got := formatDuration(tt.secs)
		if got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.secs, got, tt.want)
		}
	}
}
