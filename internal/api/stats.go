package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sadopc/focustrack/internal/api/res"
	"github.com/sadopc/focustrack/internal/export"
	"github.com/sadopc/focustrack/internal/stats"
	"github.com/sadopc/focustrack/internal/store"
)

const (
	defaultTimelineLimit   = 100
	maxTimelineLimit       = 1000
	defaultActivitiesLimit = 1000
	maxActivitiesLimit     = 10000
)

func NewDailyStatsHandler(_ *slog.Logger, eng *stats.Engine, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = eng.Today()
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		items, err := eng.Daily(ctx, date)
		if err != nil {
			WriteErr(w, err)
			return
		}
		res.Json(w, map[string]any{"date": date, "statistics": items}, http.StatusOK)
	}
}

// NewWeeklyStatsHandler groups the weekly rows by date.
func NewWeeklyStatsHandler(_ *slog.Logger, eng *stats.Engine, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := r.URL.Query().Get("start_date")
		if start == "" {
			start = eng.DaysAgo(7)
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		items, err := eng.Weekly(ctx, start)
		if err != nil {
			WriteErr(w, err)
			return
		}
		grouped := make(map[string][]stats.DayAppStat)
		for _, it := range items {
			grouped[it.Date] = append(grouped[it.Date], it)
		}
		res.Json(w, map[string]any{
			"start_date": start,
			"end_date":   eng.Today(),
			"statistics": grouped,
		}, http.StatusOK)
	}
}

func NewSummaryHandler(_ *slog.Logger, eng *stats.Engine, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		s, err := eng.Summary(ctx)
		if err != nil {
			WriteErr(w, err)
			return
		}
		res.Json(w, s, http.StatusOK)
	}
}

func NewTimelineHandler(_ *slog.Logger, eng *stats.Engine, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := queryLimit(r, defaultTimelineLimit, maxTimelineLimit)
		if !ok {
			res.Error(w, fmt.Sprintf("limit must be between 1 and %d", maxTimelineLimit), http.StatusBadRequest)
			return
		}
		date := r.URL.Query().Get("date")
		if date == "" {
			date = eng.Today()
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		items, err := eng.Timeline(ctx, date, limit)
		if err != nil {
			WriteErr(w, err)
			return
		}
		if items == nil {
			items = []store.Activity{}
		}
		res.Json(w, map[string]any{"date": date, "activities": items}, http.StatusOK)
	}
}

func NewApplicationsHandler(_ *slog.Logger, eng *stats.Engine, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		items, err := eng.Applications(ctx)
		if err != nil {
			WriteErr(w, err)
			return
		}
		res.Json(w, map[string]any{"applications": items}, http.StatusOK)
	}
}

func NewActivitiesHandler(_ *slog.Logger, eng *stats.Engine, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, ok := queryLimit(r, defaultActivitiesLimit, maxActivitiesLimit)
		if !ok {
			res.Error(w, fmt.Sprintf("limit must be between 1 and %d", maxActivitiesLimit), http.StatusBadRequest)
			return
		}
		q := r.URL.Query()

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		items, err := eng.Activities(ctx, stats.ActivityQuery{
			From:    q.Get("start_date"),
			To:      q.Get("end_date"),
			AppName: q.Get("app_name"),
			Limit:   limit,
		})
		if err != nil {
			WriteErr(w, err)
			return
		}
		res.Json(w, map[string]any{"activities": items, "count": len(items)}, http.StatusOK)
	}
}

// NewExportHandler renders the grouped export as a download.
func NewExportHandler(log *slog.Logger, eng *stats.Engine, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		format, err := export.ParseFormat(q.Get("format"))
		if err != nil {
			WriteErr(w, err)
			return
		}
		folderID, ok := queryID(r, "folder_id")
		if !ok {
			res.Error(w, "invalid folder_id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		data, err := eng.Export(ctx, stats.ExportQuery{
			From:     q.Get("start_date"),
			To:       q.Get("end_date"),
			FolderID: folderID,
		})
		if err != nil {
			WriteErr(w, err)
			return
		}

		w.Header().Set("Content-Type", export.ContentType(format))
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="focustrack-%s.%s"`, data.GeneratedAt.Format("20060102"), format))
		w.WriteHeader(http.StatusOK)
		if err := export.Write(w, format, data); err != nil {
			log.Error("write export", "format", format, "error", err)
		}
	}
}
