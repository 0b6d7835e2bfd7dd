// Package api exposes the store, the reports and the tracker over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sadopc/focustrack/internal/stats"
	"github.com/sadopc/focustrack/internal/store"
	"github.com/sadopc/focustrack/internal/tracker"
)

type Store interface {
	CreateFolder(ctx context.Context, name string) (*store.Folder, error)
	RenameFolder(ctx context.Context, id int64, name string) (*store.Folder, error)
	DeleteFolder(ctx context.Context, id int64) error
	ListFoldersWithStats(ctx context.Context) ([]store.FolderStats, error)

	CreateTask(ctx context.Context, folderID *int64, title, description string) (*store.Task, error)
	GetTask(ctx context.Context, id int64) (*store.Task, error)
	ListTasks(ctx context.Context, folderID *int64) ([]store.Task, error)
	UpdateTask(ctx context.Context, id int64, patch store.TaskPatch) (*store.Task, error)
	MoveTask(ctx context.Context, id, folderID int64) (*store.Task, error)
	DeleteTask(ctx context.Context, id int64) error
}

type Tracker interface {
	Start(ctx context.Context, taskID int64) error
	Stop(ctx context.Context) error
	Status() tracker.Status
	Subscribe() (<-chan tracker.Status, func())
}

// Deps are the services behind the routes. Tracker may be nil when no
// window sampler is available; tracker routes then answer 503.
type Deps struct {
	Store   Store
	Stats   *stats.Engine
	Tracker Tracker
}

func Register(mux *http.ServeMux, log *slog.Logger, deps Deps, timeout time.Duration) {
	// health
	mux.Handle("GET /api/health", NewHealthHandler(log, deps.Tracker))

	// tracker
	mux.Handle("GET /api/tracker/status", NewTrackerStatusHandler(log, deps.Tracker))
	mux.Handle("POST /api/tracker/start", NewTrackerStartHandler(log, deps.Tracker, timeout))
	mux.Handle("POST /api/tracker/stop", NewTrackerStopHandler(log, deps.Tracker, timeout))
	mux.Handle("GET /api/tracker/stream", NewTrackerStreamHandler(log, deps.Tracker))

	// folders
	mux.Handle("GET /api/folders", NewListFoldersHandler(log, deps.Store, timeout))
	mux.Handle("POST /api/folders", NewCreateFolderHandler(log, deps.Store, timeout))
	mux.Handle("PATCH /api/folders/{id}", NewRenameFolderHandler(log, deps.Store, timeout))
	mux.Handle("DELETE /api/folders/{id}", NewDeleteFolderHandler(log, deps.Store, timeout))

	// tasks
	mux.Handle("GET /api/tasks", NewListTasksHandler(log, deps.Store, timeout))
	mux.Handle("POST /api/tasks", NewCreateTaskHandler(log, deps.Store, timeout))
	mux.Handle("GET /api/tasks/{id}", NewGetTaskHandler(log, deps.Store, timeout))
	mux.Handle("PATCH /api/tasks/{id}", NewPatchTaskHandler(log, deps.Store, timeout))
	mux.Handle("DELETE /api/tasks/{id}", NewDeleteTaskHandler(log, deps.Store, deps.Tracker, timeout))
	mux.Handle("PUT /api/tasks/{id}/folder", NewMoveTaskHandler(log, deps.Store, timeout))
	mux.Handle("GET /api/tasks/{id}/stats", NewTaskStatsHandler(log, deps.Stats, timeout))

	// reports
	mux.Handle("GET /api/stats/daily", NewDailyStatsHandler(log, deps.Stats, timeout))
	mux.Handle("GET /api/stats/weekly", NewWeeklyStatsHandler(log, deps.Stats, timeout))
	mux.Handle("GET /api/stats/summary", NewSummaryHandler(log, deps.Stats, timeout))
	mux.Handle("GET /api/timeline", NewTimelineHandler(log, deps.Stats, timeout))
	mux.Handle("GET /api/applications", NewApplicationsHandler(log, deps.Stats, timeout))
	mux.Handle("GET /api/activities", NewActivitiesHandler(log, deps.Stats, timeout))
	mux.Handle("GET /api/export", NewExportHandler(log, deps.Stats, timeout))
}

// NewHandler returns a mux with every route registered, wrapped in CORS.
func NewHandler(log *slog.Logger, deps Deps, timeout time.Duration) http.Handler {
	mux := http.NewServeMux()
	Register(mux, log, deps, timeout)
	return CORS(mux)
}

// CORS allows any origin. The API only listens on loopback by default and
// the dashboard frontend is served from a different port.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
