package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/sadopc/focustrack/internal/normalize"
	"github.com/sadopc/focustrack/internal/stats"
	"github.com/sadopc/focustrack/internal/store"
	"github.com/sadopc/focustrack/internal/tracker"
)

type fakeTracker struct {
	mu       sync.Mutex
	status   tracker.Status
	startErr error
	started  []int64
	stopped  int
	updates  chan tracker.Status
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{updates: make(chan tracker.Status, 4)}
}

func (f *fakeTracker) Start(_ context.Context, taskID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, taskID)
	f.status = tracker.Status{Running: true, TaskID: &taskID}
	return nil
}

func (f *fakeTracker) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	f.status = tracker.Status{}
	return nil
}

func (f *fakeTracker) Status() tracker.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeTracker) Subscribe() (<-chan tracker.Status, func()) {
	return f.updates, func() {}
}

var day0 = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

type testServer struct {
	st      *store.Store
	trk     *fakeTracker
	handler http.Handler
	now     time.Time
}

func newTestServer(t *testing.T, withTracker bool) *testServer {
	t.Helper()
	ts := &testServer{now: day0}
	clock := func() time.Time { return ts.now }
	st, err := store.NewMemory(store.WithClock(clock), store.WithLocation(time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	ts.st = st

	deps := Deps{
		Store: st,
		Stats: stats.New(st, stats.WithNormalizer(normalize.New()), stats.WithClock(clock), stats.WithLocation(time.UTC)),
	}
	if withTracker {
		ts.trk = newFakeTracker()
		deps.Tracker = ts.trk
	}
	log := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ts.handler = NewHandler(log, deps, 5*time.Second)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

// record stores a closed activity of secs seconds.
func (ts *testServer) record(t *testing.T, taskID int64, app string, secs int) {
	t.Helper()
	ctx := context.Background()
	id, err := ts.st.StartActivity(ctx, taskID, app, "")
	if err != nil {
		t.Fatal(err)
	}
	ts.now = ts.now.Add(time.Duration(secs) * time.Second)
	if err := ts.st.EndActivity(ctx, id); err != nil {
		t.Fatal(err)
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expectCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// ============================================================
// Health and tracker
// ============================================================

func TestHealth(t *testing.T) {
	for _, withTracker := range []bool{true, false} {
		ts := newTestServer(t, withTracker)
		rec := ts.do(t, "GET", "/api/health", nil)
		expectCode(t, rec, http.StatusOK)

		var out map[string]any
		decode(t, rec, &out)
		if out["status"] != "healthy" || out["tracker_available"] != withTracker {
			t.Fatalf("unexpected health: %v", out)
		}
	}
}

func TestTrackerUnavailable(t *testing.T) {
	ts := newTestServer(t, false)
	for _, tc := range []struct{ method, path, body string }{
		{"GET", "/api/tracker/status", ""},
		{"POST", "/api/tracker/start", `{"task_id":1}`},
		{"POST", "/api/tracker/stop", ""},
		{"GET", "/api/tracker/stream", ""},
	} {
		rec := ts.do(t, tc.method, tc.path, tc.body)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s: expected 503, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestTrackerStartStop(t *testing.T) {
	ts := newTestServer(t, true)

	expectCode(t, ts.do(t, "POST", "/api/tracker/start", "{"), http.StatusBadRequest)
	expectCode(t, ts.do(t, "POST", "/api/tracker/start", `{"task_id":0}`), http.StatusBadRequest)

	rec := ts.do(t, "POST", "/api/tracker/start", StartTrackerIn{TaskID: 7})
	expectCode(t, rec, http.StatusOK)
	var st tracker.Status
	decode(t, rec, &st)
	if !st.Running || st.TaskID == nil || *st.TaskID != 7 {
		t.Fatalf("unexpected status: %+v", st)
	}

	rec = ts.do(t, "GET", "/api/tracker/status", nil)
	expectCode(t, rec, http.StatusOK)

	rec = ts.do(t, "POST", "/api/tracker/stop", nil)
	expectCode(t, rec, http.StatusOK)
	decode(t, rec, &st)
	if st.Running || ts.trk.stopped != 1 {
		t.Fatalf("tracker not stopped: %+v", st)
	}
}

func TestTrackerStartUnknownTask(t *testing.T) {
	ts := newTestServer(t, true)
	ts.trk.startErr = errors.Join(errors.New("get task 9"), store.ErrNotFound)
	expectCode(t, ts.do(t, "POST", "/api/tracker/start", `{"task_id":9}`), http.StatusNotFound)

	ts.trk.startErr = tracker.ErrClosed
	expectCode(t, ts.do(t, "POST", "/api/tracker/start", `{"task_id":9}`), http.StatusServiceUnavailable)
}

func TestTrackerStream(t *testing.T) {
	ts := newTestServer(t, true)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/api/tracker/stream", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "test done")

	var st tracker.Status
	if err := wsjson.Read(ctx, conn, &st); err != nil {
		t.Fatalf("read initial status: %v", err)
	}
	if st.Running {
		t.Fatalf("expected a stopped initial status: %+v", st)
	}

	id := int64(3)
	ts.trk.updates <- tracker.Status{Running: true, TaskID: &id, CurrentApp: "firefox"}
	if err := wsjson.Read(ctx, conn, &st); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if !st.Running || st.CurrentApp != "firefox" || *st.TaskID != 3 {
		t.Fatalf("unexpected update: %+v", st)
	}
}

// ============================================================
// Folders
// ============================================================

func TestFolderRoutes(t *testing.T) {
	ts := newTestServer(t, false)

	rec := ts.do(t, "POST", "/api/folders", CreateFolderIn{Name: "Work"})
	expectCode(t, rec, http.StatusCreated)
	var work store.Folder
	decode(t, rec, &work)
	if work.ID == 0 || work.Name != "Work" {
		t.Fatalf("unexpected folder: %+v", work)
	}

	expectCode(t, ts.do(t, "POST", "/api/folders", CreateFolderIn{Name: "work"}), http.StatusConflict)
	expectCode(t, ts.do(t, "POST", "/api/folders", CreateFolderIn{Name: "  "}), http.StatusBadRequest)
	expectCode(t, ts.do(t, "POST", "/api/folders", "not json"), http.StatusBadRequest)

	path := "/api/folders/" + strconv.FormatInt(work.ID, 10)
	rec = ts.do(t, "PATCH", path, RenameFolderIn{Name: "Client"})
	expectCode(t, rec, http.StatusOK)
	decode(t, rec, &work)
	if work.Name != "Client" {
		t.Fatalf("rename not applied: %+v", work)
	}

	def, err := ts.st.DefaultFolder(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defPath := "/api/folders/" + strconv.FormatInt(def.ID, 10)
	expectCode(t, ts.do(t, "PATCH", defPath, RenameFolderIn{Name: "Other"}), http.StatusForbidden)
	expectCode(t, ts.do(t, "DELETE", defPath, nil), http.StatusForbidden)

	rec = ts.do(t, "GET", "/api/folders", nil)
	expectCode(t, rec, http.StatusOK)
	var list struct {
		Folders []store.FolderStats `json:"folders"`
	}
	decode(t, rec, &list)
	if len(list.Folders) != 2 {
		t.Fatalf("expected 2 folders, got %+v", list.Folders)
	}

	expectCode(t, ts.do(t, "DELETE", path, nil), http.StatusOK)
	expectCode(t, ts.do(t, "DELETE", path, nil), http.StatusNotFound)
	expectCode(t, ts.do(t, "DELETE", "/api/folders/abc", nil), http.StatusBadRequest)
}

// ============================================================
// Tasks
// ============================================================

func TestTaskRoutes(t *testing.T) {
	ts := newTestServer(t, false)
	ctx := context.Background()
	work, err := ts.st.CreateFolder(ctx, "Work")
	if err != nil {
		t.Fatal(err)
	}

	rec := ts.do(t, "POST", "/api/tasks", CreateTaskIn{Title: "Inbox"})
	expectCode(t, rec, http.StatusCreated)
	var inbox store.Task
	decode(t, rec, &inbox)
	def, _ := ts.st.DefaultFolder(ctx)
	if inbox.FolderID != def.ID {
		t.Fatalf("task should land in the default folder: %+v", inbox)
	}

	rec = ts.do(t, "POST", "/api/tasks", CreateTaskIn{Title: "Report", FolderID: &work.ID})
	expectCode(t, rec, http.StatusCreated)
	var report store.Task
	decode(t, rec, &report)

	missing := int64(999)
	rec = ts.do(t, "POST", "/api/tasks", CreateTaskIn{Title: "Stray", FolderID: &missing})
	expectCode(t, rec, http.StatusCreated)
	var stray store.Task
	decode(t, rec, &stray)
	if stray.FolderID != def.ID {
		t.Fatalf("unknown folder should fall back to the default: %+v", stray)
	}
	expectCode(t, ts.do(t, "POST", "/api/tasks", CreateTaskIn{Title: " "}), http.StatusBadRequest)

	rec = ts.do(t, "GET", "/api/tasks?folder_id="+strconv.FormatInt(work.ID, 10), nil)
	expectCode(t, rec, http.StatusOK)
	var list struct {
		Tasks []store.Task `json:"tasks"`
	}
	decode(t, rec, &list)
	if len(list.Tasks) != 1 || list.Tasks[0].ID != report.ID {
		t.Fatalf("folder filter failed: %+v", list.Tasks)
	}
	expectCode(t, ts.do(t, "GET", "/api/tasks?folder_id=x", nil), http.StatusBadRequest)

	reportPath := "/api/tasks/" + strconv.FormatInt(report.ID, 10)
	title := "Quarterly report"
	rec = ts.do(t, "PATCH", reportPath, PatchTaskIn{Title: &title})
	expectCode(t, rec, http.StatusOK)
	decode(t, rec, &report)
	if report.Title != title {
		t.Fatalf("patch not applied: %+v", report)
	}

	rec = ts.do(t, "PUT", reportPath+"/folder", MoveTaskIn{FolderID: def.ID})
	expectCode(t, rec, http.StatusOK)
	decode(t, rec, &report)
	if report.FolderID != def.ID {
		t.Fatalf("move not applied: %+v", report)
	}
	expectCode(t, ts.do(t, "PUT", reportPath+"/folder", MoveTaskIn{}), http.StatusBadRequest)

	expectCode(t, ts.do(t, "GET", reportPath, nil), http.StatusOK)
	expectCode(t, ts.do(t, "DELETE", reportPath, nil), http.StatusOK)
	expectCode(t, ts.do(t, "GET", reportPath, nil), http.StatusNotFound)
	expectCode(t, ts.do(t, "GET", "/api/tasks/0", nil), http.StatusBadRequest)
}

func TestDeleteTrackedTaskStopsTracker(t *testing.T) {
	ts := newTestServer(t, true)
	ctx := context.Background()
	tracked, _ := ts.st.CreateTask(ctx, nil, "Tracked", "")
	other, _ := ts.st.CreateTask(ctx, nil, "Other", "")
	_ = ts.trk.Start(ctx, tracked.ID)

	expectCode(t, ts.do(t, "DELETE", "/api/tasks/"+strconv.FormatInt(other.ID, 10), nil), http.StatusOK)
	if ts.trk.stopped != 0 || !ts.trk.Status().Running {
		t.Fatal("deleting another task must not stop the tracker")
	}

	expectCode(t, ts.do(t, "DELETE", "/api/tasks/"+strconv.FormatInt(tracked.ID, 10), nil), http.StatusOK)
	if ts.trk.stopped != 1 || ts.trk.Status().Running {
		t.Fatal("deleting the tracked task should stop the tracker")
	}
}

func TestTaskStatsRoute(t *testing.T) {
	ts := newTestServer(t, false)
	task, err := ts.st.CreateTask(context.Background(), nil, "T", "")
	if err != nil {
		t.Fatal(err)
	}
	ts.record(t, task.ID, "kitty", 30)
	ts.record(t, task.ID, "firefox", 10)

	rec := ts.do(t, "GET", "/api/tasks/"+strconv.FormatInt(task.ID, 10)+"/stats", nil)
	expectCode(t, rec, http.StatusOK)
	var out stats.TaskStats
	decode(t, rec, &out)
	if out.TotalDuration != 40 || out.ActivityCount != 2 || out.Apps[0].AppName != "terminal" {
		t.Fatalf("unexpected task stats: %+v", out)
	}
	expectCode(t, ts.do(t, "GET", "/api/tasks/99/stats", nil), http.StatusNotFound)
}

// ============================================================
// Reports
// ============================================================

func TestDailyAndWeekly(t *testing.T) {
	ts := newTestServer(t, false)
	task, _ := ts.st.CreateTask(context.Background(), nil, "T", "")
	ts.record(t, task.ID, "kitty", 30)
	ts.record(t, task.ID, "Alacritty", 30)

	rec := ts.do(t, "GET", "/api/stats/daily", nil)
	expectCode(t, rec, http.StatusOK)
	var daily struct {
		Date       string          `json:"date"`
		Statistics []stats.AppStat `json:"statistics"`
	}
	decode(t, rec, &daily)
	if daily.Date != "2024-03-15" || len(daily.Statistics) != 1 || daily.Statistics[0].TotalDuration != 60 {
		t.Fatalf("unexpected daily: %+v", daily)
	}
	expectCode(t, ts.do(t, "GET", "/api/stats/daily?date=15-03-2024", nil), http.StatusBadRequest)

	rec = ts.do(t, "GET", "/api/stats/weekly", nil)
	expectCode(t, rec, http.StatusOK)
	var weekly struct {
		StartDate  string                        `json:"start_date"`
		EndDate    string                        `json:"end_date"`
		Statistics map[string][]stats.DayAppStat `json:"statistics"`
	}
	decode(t, rec, &weekly)
	if weekly.StartDate != "2024-03-08" || weekly.EndDate != "2024-03-15" {
		t.Fatalf("unexpected range: %+v", weekly)
	}
	if rows := weekly.Statistics["2024-03-15"]; len(rows) != 1 || rows[0].SessionCount != 2 {
		t.Fatalf("unexpected weekly rows: %+v", weekly.Statistics)
	}
}

func TestSummaryRoute(t *testing.T) {
	ts := newTestServer(t, false)
	rec := ts.do(t, "GET", "/api/stats/summary", nil)
	expectCode(t, rec, http.StatusOK)
	var s stats.Summary
	decode(t, rec, &s)
	if s != (stats.Summary{}) {
		t.Fatalf("expected an all-zero summary, got %+v", s)
	}
}

func TestTimelineLimits(t *testing.T) {
	ts := newTestServer(t, false)
	task, _ := ts.st.CreateTask(context.Background(), nil, "T", "")
	for i := 0; i < 3; i++ {
		ts.record(t, task.ID, "firefox", 5)
	}

	rec := ts.do(t, "GET", "/api/timeline?limit=2", nil)
	expectCode(t, rec, http.StatusOK)
	var out struct {
		Activities []store.Activity `json:"activities"`
	}
	decode(t, rec, &out)
	if len(out.Activities) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(out.Activities))
	}

	for _, q := range []string{"limit=0", "limit=1001", "limit=abc"} {
		expectCode(t, ts.do(t, "GET", "/api/timeline?"+q, nil), http.StatusBadRequest)
	}
	expectCode(t, ts.do(t, "GET", "/api/timeline?limit=1000", nil), http.StatusOK)
}

func TestActivitiesRoute(t *testing.T) {
	ts := newTestServer(t, false)
	task, _ := ts.st.CreateTask(context.Background(), nil, "T", "")
	ts.record(t, task.ID, "firefox", 5)
	ts.record(t, task.ID, "kitty", 5)

	rec := ts.do(t, "GET", "/api/activities?app_name=firefox&start_date=2024-03-15", nil)
	expectCode(t, rec, http.StatusOK)
	var out struct {
		Activities []store.Activity `json:"activities"`
		Count      int              `json:"count"`
	}
	decode(t, rec, &out)
	if out.Count != 1 || out.Activities[0].AppName != "firefox" {
		t.Fatalf("unexpected activities: %+v", out)
	}

	expectCode(t, ts.do(t, "GET", "/api/activities?limit=10001", nil), http.StatusBadRequest)
	expectCode(t, ts.do(t, "GET", "/api/activities?limit=10000", nil), http.StatusOK)
	expectCode(t, ts.do(t, "GET", "/api/activities?end_date=bad", nil), http.StatusBadRequest)
}

func TestApplicationsRoute(t *testing.T) {
	ts := newTestServer(t, false)
	task, _ := ts.st.CreateTask(context.Background(), nil, "T", "")
	ts.record(t, task.ID, "firefox", 5)

	rec := ts.do(t, "GET", "/api/applications", nil)
	expectCode(t, rec, http.StatusOK)
	var out struct {
		Applications []stats.AppTotal `json:"applications"`
	}
	decode(t, rec, &out)
	if len(out.Applications) != 1 || out.Applications[0].TotalTime != 5 {
		t.Fatalf("unexpected applications: %+v", out)
	}
}

func TestExportRoute(t *testing.T) {
	ts := newTestServer(t, false)
	task, _ := ts.st.CreateTask(context.Background(), nil, "Write", "")
	ts.record(t, task.ID, "firefox", 90)

	rec := ts.do(t, "GET", "/api/export?format=csv", nil)
	expectCode(t, rec, http.StatusOK)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "focustrack-20240315.csv") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
	if !strings.Contains(rec.Body.String(), "Write,firefox,1,90,00:01:30") {
		t.Fatalf("row missing from csv:\n%s", rec.Body.String())
	}

	rec = ts.do(t, "GET", "/api/export", nil)
	expectCode(t, rec, http.StatusOK)
	var out map[string]any
	decode(t, rec, &out)
	if out["total_seconds"] != float64(90) {
		t.Fatalf("unexpected json export: %v", out)
	}

	expectCode(t, ts.do(t, "GET", "/api/export?format=pdf", nil), http.StatusBadRequest)
	expectCode(t, ts.do(t, "GET", "/api/export?start_date=2024-03-15&end_date=2024-03-01", nil), http.StatusBadRequest)
	expectCode(t, ts.do(t, "GET", "/api/export?folder_id=42", nil), http.StatusNotFound)
}

// ============================================================
// CORS
// ============================================================

func TestCORS(t *testing.T) {
	ts := newTestServer(t, false)

	req := httptest.NewRequest("OPTIONS", "/api/tasks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	expectCode(t, rec, http.StatusNoContent)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected origin header %q", got)
	}

	rec = ts.do(t, "GET", "/api/health", nil)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("no origin header expected without Origin, got %q", got)
	}
}
