package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/sadopc/focustrack/internal/stats"
)

var csvHeader = []string{"Date", "Folder", "Task", "Application", "Sessions", "Duration (s)", "Duration", "Task Total", "Day Total"}

// WriteCSV writes one row per (date, task, application).
func WriteCSV(out io.Writer, data *stats.ExportData) error {
	w := csv.NewWriter(out)

	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, day := range data.Days {
		for _, task := range day.Tasks {
			title := task.Title
			if title == "" {
				title = "Unknown"
			}
			for _, app := range task.Apps {
				row := []string{
					day.Date,
					task.FolderName,
					title,
					app.AppName,
					fmt.Sprintf("%d", app.SessionCount),
					fmt.Sprintf("%d", app.TotalDuration),
					formatDuration(app.TotalDuration),
					formatDuration(task.TotalDuration),
					formatDuration(day.TotalDuration),
				}
				if err := w.Write(row); err != nil {
					return err
				}
			}
		}
	}

	w.Flush()
	return w.Error()
}

func ToCSV(data *stats.ExportData, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	if err := WriteCSV(f, data); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
