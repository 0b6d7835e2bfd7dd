package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/sadopc/focustrack/internal/api/res"
	"github.com/sadopc/focustrack/internal/export"
	"github.com/sadopc/focustrack/internal/store"
	"github.com/sadopc/focustrack/internal/tracker"
)

// ErrTrackerUnavailable is reported when no window sampler could be found
// at startup and the server runs without a tracker.
var ErrTrackerUnavailable = errors.New("tracker not available")

func WriteErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidArgument), errors.Is(err, export.ErrUnknownFormat):
		res.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrNotFound):
		res.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrDuplicateName):
		res.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, store.ErrProtected):
		res.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, ErrTrackerUnavailable), errors.Is(err, tracker.ErrClosed):
		res.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		res.Error(w, "timeout", http.StatusGatewayTimeout)
	default:
		res.Error(w, "internal error", http.StatusInternalServerError)
	}
}
