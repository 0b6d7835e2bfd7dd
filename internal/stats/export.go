package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sadopc/focustrack/internal/store"
)

// ExportQuery selects the activities of an export. Empty dates are open
// bounds; a nil FolderID exports every folder.
type ExportQuery struct {
	From     string
	To       string
	FolderID *int64
}

// ExportData is ready to render: date -> task -> app, each level with its
// own total. Durations are seconds.
type ExportData struct {
	From          string      `json:"from,omitempty"`
	To            string      `json:"to,omitempty"`
	FolderID      *int64      `json:"folder_id,omitempty"`
	FolderName    string      `json:"folder_name,omitempty"`
	GeneratedAt   time.Time   `json:"generated_at"`
	TotalDuration int64       `json:"total_duration"`
	Days          []ExportDay `json:"days"`
}

type ExportDay struct {
	Date          string       `json:"date"`
	TotalDuration int64        `json:"total_duration"`
	Tasks         []ExportTask `json:"tasks"`
}

type ExportTask struct {
	TaskID        int64          `json:"task_id"`
	Title         string         `json:"title"`
	FolderID      int64          `json:"folder_id"`
	FolderName    string         `json:"folder_name"`
	TotalDuration int64          `json:"total_duration"`
	Apps          []AppBreakdown `json:"apps"`
}

// Export builds the grouped export. Days ascend, tasks and apps descend by
// duration.
func (e *Engine) Export(ctx context.Context, q ExportQuery) (*ExportData, error) {
	for _, d := range []string{q.From, q.To} {
		if d == "" {
			continue
		}
		if err := ValidDate(d); err != nil {
			return nil, err
		}
	}
	if q.From != "" && q.To != "" && q.From > q.To {
		return nil, fmt.Errorf("export range %s..%s: %w", q.From, q.To, store.ErrInvalidArgument)
	}

	data := &ExportData{From: q.From, To: q.To, FolderID: q.FolderID, GeneratedAt: e.now().UTC(), Days: []ExportDay{}}
	if q.FolderID != nil {
		f, err := e.src.GetFolder(ctx, *q.FolderID)
		if err != nil {
			return nil, err
		}
		data.FolderName = f.Name
	}

	acts, err := e.src.ListActivities(ctx, store.ActivityFilter{
		From:       q.From,
		To:         q.To,
		FolderID:   q.FolderID,
		ClosedOnly: true,
	})
	if err != nil {
		return nil, err
	}
	tasks, err := e.src.ListTasks(ctx, nil)
	if err != nil {
		return nil, err
	}
	folders, err := e.src.ListFoldersWithStats(ctx)
	if err != nil {
		return nil, err
	}
	taskByID := make(map[int64]store.Task, len(tasks))
	for _, t := range tasks {
		taskByID[t.ID] = t
	}
	folderNames := make(map[int64]string, len(folders))
	for _, f := range folders {
		folderNames[f.ID] = f.Name
	}

	// date -> task -> activities
	byDay := make(map[string]map[int64][]store.Activity)
	for _, a := range acts {
		day, ok := byDay[a.Date]
		if !ok {
			day = make(map[int64][]store.Activity)
			byDay[a.Date] = day
		}
		day[a.TaskID] = append(day[a.TaskID], a)
	}

	for date, byTask := range byDay {
		day := ExportDay{Date: date}
		for taskID, list := range byTask {
			t := taskByID[taskID]
			et := ExportTask{
				TaskID:     taskID,
				Title:      t.Title,
				FolderID:   t.FolderID,
				FolderName: folderNames[t.FolderID],
				Apps:       e.breakdown(list),
			}
			for _, app := range et.Apps {
				et.TotalDuration += app.TotalDuration
			}
			day.TotalDuration += et.TotalDuration
			day.Tasks = append(day.Tasks, et)
		}
		sort.Slice(day.Tasks, func(i, j int) bool {
			if day.Tasks[i].TotalDuration != day.Tasks[j].TotalDuration {
				return day.Tasks[i].TotalDuration > day.Tasks[j].TotalDuration
			}
			return day.Tasks[i].TaskID < day.Tasks[j].TaskID
		})
		data.TotalDuration += day.TotalDuration
		data.Days = append(data.Days, day)
	}
	sort.Slice(data.Days, func(i, j int) bool { return data.Days[i].Date < data.Days[j].Date })
	return data, nil
}
