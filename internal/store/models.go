package store

import "time"

const dateLayout = "2006-01-02"

type Folder struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FolderStats is a folder with the aggregate of its tasks' activities.
type FolderStats struct {
	Folder
	TaskCount     int   `json:"task_count"`
	TotalDuration int64 `json:"total_duration"` // seconds
}

type Task struct {
	ID          int64     `json:"id"`
	FolderID    int64     `json:"folder_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskPatch holds the fields of a partial task update; nil leaves a field
// unchanged.
type TaskPatch struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Activity is one continuous span of time attributed to a task and a
// canonical application. EndTime and Duration are nil while it is open.
type Activity struct {
	ID          int64      `json:"id"`
	TaskID      int64      `json:"task_id"`
	AppName     string     `json:"app_name"`
	WindowTitle string     `json:"window_title"`
	StartTime   time.Time  `json:"start_time"`
	EndTime     *time.Time `json:"end_time"`
	Duration    *int64     `json:"duration"` // seconds
	Date        string     `json:"date"`
}

// Open reports whether the activity has not been closed yet.
func (a Activity) Open() bool {
	return a.EndTime == nil
}

// Application is the cumulative rollup row for a canonical app name. It is
// advisory: reports recompute totals from activities.
type Application struct {
	AppName   string     `json:"app_name"`
	TotalTime int64      `json:"total_time"` // seconds
	LastUsed  *time.Time `json:"last_used"`
}

// ActivityFilter is used to filter activities in queries. Dates are
// inclusive YYYY-MM-DD bounds.
type ActivityFilter struct {
	Date       string
	From       string
	To         string
	TaskID     *int64
	FolderID   *int64
	AppName    string
	ClosedOnly bool
	Limit      int
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}
