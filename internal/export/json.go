package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sadopc/focustrack/internal/stats"
)

type jsonExport struct {
	ExportedAt string    `json:"exported_at"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to,omitempty"`
	Folder     string    `json:"folder,omitempty"`
	TotalSec   int64     `json:"total_seconds"`
	Total      string    `json:"total"`
	Days       []jsonDay `json:"days"`
}

type jsonDay struct {
	Date     string     `json:"date"`
	TotalSec int64      `json:"total_seconds"`
	Total    string     `json:"total"`
	Tasks    []jsonTask `json:"tasks"`
}

type jsonTask struct {
	ID       int64     `json:"id"`
	Title    string    `json:"title"`
	Folder   string    `json:"folder"`
	FolderID int64     `json:"folder_id"`
	TotalSec int64     `json:"total_seconds"`
	Total    string    `json:"total"`
	Apps     []jsonApp `json:"apps"`
}

type jsonApp struct {
	Name        string `json:"app_name"`
	Sessions    int    `json:"sessions"`
	DurationSec int64  `json:"duration_seconds"`
	Duration    string `json:"duration"`
}

// WriteJSON writes data as indented JSON with formatted durations next to
// the raw seconds.
func WriteJSON(w io.Writer, data *stats.ExportData) error {
	export := jsonExport{
		ExportedAt: data.GeneratedAt.UTC().Format(time.RFC3339),
		From:       data.From,
		To:         data.To,
		Folder:     data.FolderName,
		TotalSec:   data.TotalDuration,
		Total:      formatDuration(data.TotalDuration),
		Days:       []jsonDay{},
	}

	for _, d := range data.Days {
		day := jsonDay{
			Date:     d.Date,
			TotalSec: d.TotalDuration,
			Total:    formatDuration(d.TotalDuration),
		}
		for _, t := range d.Tasks {
			task := jsonTask{
				ID:       t.TaskID,
				Title:    t.Title,
				Folder:   t.FolderName,
				FolderID: t.FolderID,
				TotalSec: t.TotalDuration,
				Total:    formatDuration(t.TotalDuration),
			}
			for _, a := range t.Apps {
				task.Apps = append(task.Apps, jsonApp{
					Name:        a.AppName,
					Sessions:    a.SessionCount,
					DurationSec: a.TotalDuration,
					Duration:    formatDuration(a.TotalDuration),
				})
			}
			day.Tasks = append(day.Tasks, task)
		}
		export.Days = append(export.Days, day)
	}

	out, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}

func ToJSON(data *stats.ExportData, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json file: %w", err)
	}
	defer f.Close()

	if err := WriteJSON(f, data); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
