package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sadopc/focustrack/internal/api/res"
	"github.com/sadopc/focustrack/internal/stats"
	"github.com/sadopc/focustrack/internal/store"
)

func NewListTasksHandler(_ *slog.Logger, st Store, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		folderID, ok := queryID(r, "folder_id")
		if !ok {
			res.Error(w, "invalid folder_id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		items, err := st.ListTasks(ctx, folderID)
		if err != nil {
			WriteErr(w, err)
			return
		}
		if items == nil {
			items = []store.Task{}
		}
		res.Json(w, map[string]any{"tasks": items}, http.StatusOK)
	}
}

func NewCreateTaskHandler(_ *slog.Logger, st Store, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in CreateTaskIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			res.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		// folder_id: nil or 0 both mean the default folder
		var fid *int64
		if in.FolderID != nil && *in.FolderID != 0 {
			fid = in.FolderID
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		t, err := st.CreateTask(ctx, fid, in.Title, in.Description)
		if err != nil {
			WriteErr(w, err)
			return
		}
		res.Json(w, t, http.StatusCreated)
	}
}

func NewGetTaskHandler(_ *slog.Logger, st Store, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			res.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		t, err := st.GetTask(ctx, id)
		if err != nil {
			WriteErr(w, err)
			return
		}
		res.Json(w, t, http.StatusOK)
	}
}

func NewPatchTaskHandler(_ *slog.Logger, st Store, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			res.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		var in PatchTaskIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			res.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		t, err := st.UpdateTask(ctx, id, store.TaskPatch{Title: in.Title, Description: in.Description})
		if err != nil {
			WriteErr(w, err)
			return
		}
		res.Json(w, t, http.StatusOK)
	}
}

func NewMoveTaskHandler(_ *slog.Logger, st Store, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			res.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		var in MoveTaskIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			res.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if in.FolderID <= 0 {
			res.Error(w, "invalid folder_id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		t, err := st.MoveTask(ctx, id, in.FolderID)
		if err != nil {
			WriteErr(w, err)
			return
		}
		res.Json(w, t, http.StatusOK)
	}
}

// NewDeleteTaskHandler stops the tracker first when it is tracking the task,
// so the open interval is closed before the cascade removes it.
func NewDeleteTaskHandler(log *slog.Logger, st Store, trk Tracker, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			res.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if trk != nil {
			if cur := trk.Status(); cur.Running && cur.TaskID != nil && *cur.TaskID == id {
				if err := trk.Stop(ctx); err != nil {
					log.Warn("stop tracker before task delete", "task_id", id, "error", err)
				}
			}
		}
		if err := st.DeleteTask(ctx, id); err != nil {
			WriteErr(w, err)
			return
		}
		log.Info("task deleted", "task_id", id)
		res.Json(w, map[string]any{"ok": true}, http.StatusOK)
	}
}

func NewTaskStatsHandler(_ *slog.Logger, eng *stats.Engine, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			res.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		ts, err := eng.Task(ctx, id)
		if err != nil {
			WriteErr(w, err)
			return
		}
		res.Json(w, ts, http.StatusOK)
	}
}
