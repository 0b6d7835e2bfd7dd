package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sadopc/focustrack/internal/api/res"
)

func NewListFoldersHandler(_ *slog.Logger, st Store, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		items, err := st.ListFoldersWithStats(ctx)
		if err != nil {
			WriteErr(w, err)
			return
		}
		res.Json(w, map[string]any{"folders": items}, http.StatusOK)
	}
}

func NewCreateFolderHandler(_ *slog.Logger, st Store, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in CreateFolderIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			res.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		f, err := st.CreateFolder(ctx, in.Name)
		if err != nil {
			WriteErr(w, err)
			return
		}
		res.Json(w, f, http.StatusCreated)
	}
}

func NewRenameFolderHandler(_ *slog.Logger, st Store, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			res.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		var in RenameFolderIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			res.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		f, err := st.RenameFolder(ctx, id, in.Name)
		if err != nil {
			WriteErr(w, err)
			return
		}
		res.Json(w, f, http.StatusOK)
	}
}

func NewDeleteFolderHandler(log *slog.Logger, st Store, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r)
		if !ok {
			res.Error(w, "invalid id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := st.DeleteFolder(ctx, id); err != nil {
			WriteErr(w, err)
			return
		}
		log.Info("folder deleted", "folder_id", id)
		res.Json(w, map[string]any{"ok": true}, http.StatusOK)
	}
}
