package tui

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/sadopc/focustrack/internal/store"
)

// viewState represents the currently active view.
type viewState int

const (
	viewDashboard viewState = iota
	viewTasks
	viewReports
	viewRules
)

var viewNames = []string{"Dashboard", "Tasks", "Reports", "Rules"}

var errTrackerUnavailable = errors.New("tracker unavailable: no supported window system found")

// storeTimeout bounds every store call made from a tea.Cmd.
const storeTimeout = 5 * time.Second

// --- Messages ---

type trackerStartedMsg struct {
	task store.Task
}

type trackerStoppedMsg struct{}

type statusMsg struct {
	text    string
	isError bool
}

type tickMsg time.Time

type exportDoneMsg struct {
	path string
}

// --- Helpers ---

func cmdContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), storeTimeout)
}

func errStatus(prefix string, err error) statusMsg {
	return statusMsg{text: fmt.Sprintf("%s: %v", prefix, err), isError: true}
}

func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func formatSeconds(secs int64) string {
	return formatDuration(time.Duration(secs) * time.Second)
}

func formatHours(secs int64) string {
	h := float64(secs) / 3600
	return fmt.Sprintf("%.1fh", h)
}

// appColor picks a stable palette color for an application name.
func appColor(app string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(app))
	return appPalette[h.Sum32()%uint32(len(appPalette))]
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string(r[:n-1]) + "…"
}
