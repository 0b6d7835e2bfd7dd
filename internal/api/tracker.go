package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/sadopc/focustrack/internal/api/res"
)

func NewHealthHandler(_ *slog.Logger, trk Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res.Json(w, map[string]any{
			"status":            "healthy",
			"timestamp":         time.Now().Format(time.RFC3339),
			"tracker_available": trk != nil,
		}, http.StatusOK)
	}
}

func NewTrackerStatusHandler(_ *slog.Logger, trk Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if trk == nil {
			WriteErr(w, ErrTrackerUnavailable)
			return
		}
		res.Json(w, trk.Status(), http.StatusOK)
	}
}

func NewTrackerStartHandler(log *slog.Logger, trk Tracker, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if trk == nil {
			WriteErr(w, ErrTrackerUnavailable)
			return
		}
		var in StartTrackerIn
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			res.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if in.TaskID <= 0 {
			res.Error(w, "invalid task_id", http.StatusBadRequest)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := trk.Start(ctx, in.TaskID); err != nil {
			log.Warn("tracker start failed", "task_id", in.TaskID, "error", err)
			WriteErr(w, err)
			return
		}
		res.Json(w, trk.Status(), http.StatusOK)
	}
}

func NewTrackerStopHandler(log *slog.Logger, trk Tracker, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if trk == nil {
			WriteErr(w, ErrTrackerUnavailable)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := trk.Stop(ctx); err != nil {
			log.Warn("tracker stop failed", "error", err)
			WriteErr(w, err)
			return
		}
		res.Json(w, trk.Status(), http.StatusOK)
	}
}

// NewTrackerStreamHandler pushes the current status and then every change
// over a WebSocket until the client goes away.
func NewTrackerStreamHandler(log *slog.Logger, trk Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if trk == nil {
			WriteErr(w, ErrTrackerUnavailable)
			return
		}
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			log.Warn("ws: accept failed", "error", err)
			return
		}
		defer func() { _ = conn.Close(websocket.StatusNormalClosure, "bye") }()

		updates, unsubscribe := trk.Subscribe()
		defer unsubscribe()

		// Reads are only needed to notice the client closing.
		ctx := conn.CloseRead(r.Context())

		if err := writeStatus(ctx, conn, trk.Status()); err != nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-updates:
				if !ok {
					return
				}
				if err := writeStatus(ctx, conn, st); err != nil {
					log.Debug("ws: write failed", "error", err)
					return
				}
			}
		}
	}
}

func writeStatus(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
