// Package stats derives reports from raw activity intervals. Stored app
// names are normalized again at query time so rule changes apply to
// history.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sadopc/focustrack/internal/normalize"
	"github.com/sadopc/focustrack/internal/store"
)

const dateLayout = "2006-01-02"

// Source is the read side of the activity store.
type Source interface {
	GetTask(ctx context.Context, id int64) (*store.Task, error)
	GetFolder(ctx context.Context, id int64) (*store.Folder, error)
	ListTasks(ctx context.Context, folderID *int64) ([]store.Task, error)
	ListActivities(ctx context.Context, f store.ActivityFilter) ([]store.Activity, error)
	ListApplications(ctx context.Context) ([]store.Application, error)
	ListFoldersWithStats(ctx context.Context) ([]store.FolderStats, error)
}

type Engine struct {
	src  Source
	norm *normalize.Normalizer
	now  func() time.Time
	loc  *time.Location
}

type Option func(*Engine)

func WithNormalizer(n *normalize.Normalizer) Option {
	return func(e *Engine) { e.norm = n }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

func New(src Source, opts ...Option) *Engine {
	e := &Engine{src: src, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AppStat is one application's share of a day.
type AppStat struct {
	AppName       string     `json:"app_name"`
	SessionCount  int        `json:"session_count"`
	TotalDuration int64      `json:"total_duration"`
	AvgDuration   int64      `json:"avg_duration"`
	FirstUsed     *time.Time `json:"first_used"`
	LastUsed      *time.Time `json:"last_used"`
}

// DayAppStat is one (date, application) group of the weekly report.
type DayAppStat struct {
	Date          string `json:"date"`
	AppName       string `json:"app_name"`
	TotalDuration int64  `json:"total_duration"`
	SessionCount  int    `json:"session_count"`
}

// AppTotal is an application rollup collapsed onto its canonical name.
type AppTotal struct {
	AppName   string     `json:"app_name"`
	TotalTime int64      `json:"total_time"`
	LastUsed  *time.Time `json:"last_used"`
}

type Summary struct {
	TotalTime         int64 `json:"total_time"`
	TotalApplications int   `json:"total_applications"`
	TotalActivities   int   `json:"total_activities"`
	TodayTime         int64 `json:"today_time"`
	WeekTime          int64 `json:"week_time"`
	MonthTime         int64 `json:"month_time"`
}

// AppBreakdown is an application's total within a task.
type AppBreakdown struct {
	AppName       string `json:"app_name"`
	TotalDuration int64  `json:"total_duration"`
	SessionCount  int    `json:"session_count"`
}

type TaskStats struct {
	Task          store.Task       `json:"task"`
	TotalDuration int64            `json:"total_duration"`
	ActivityCount int              `json:"activity_count"`
	Apps          []AppBreakdown   `json:"apps"`
	Timeline      []store.Activity `json:"timeline"`
}

func (e *Engine) today() time.Time {
	n := e.now().In(e.loc)
	return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, e.loc)
}

// Today returns the current local date.
func (e *Engine) Today() string {
	return e.today().Format(dateLayout)
}

// DaysAgo returns the local date n days before today.
func (e *Engine) DaysAgo(n int) string {
	return e.today().AddDate(0, 0, -n).Format(dateLayout)
}

// ValidDate reports an ErrInvalidArgument unless s is a YYYY-MM-DD date.
func ValidDate(s string) error {
	if _, err := time.Parse(dateLayout, s); err != nil {
		return fmt.Errorf("date %q: %w", s, store.ErrInvalidArgument)
	}
	return nil
}

func (e *Engine) canonical(a store.Activity) string {
	return e.norm.Normalize(a.AppName, a.WindowTitle)
}

func duration(a store.Activity) int64 {
	if a.Duration == nil {
		return 0
	}
	return *a.Duration
}

// Daily groups the closed activities of date by application. An empty
// date means today.
func (e *Engine) Daily(ctx context.Context, date string) ([]AppStat, error) {
	if date == "" {
		date = e.Today()
	}
	if err := ValidDate(date); err != nil {
		return nil, err
	}
	acts, err := e.src.ListActivities(ctx, store.ActivityFilter{Date: date, ClosedOnly: true})
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*AppStat)
	for _, a := range acts {
		app := e.canonical(a)
		g, ok := groups[app]
		if !ok {
			g = &AppStat{AppName: app}
			groups[app] = g
		}
		g.SessionCount++
		g.TotalDuration += duration(a)
		if g.FirstUsed == nil || a.StartTime.Before(*g.FirstUsed) {
			start := a.StartTime
			g.FirstUsed = &start
		}
		if a.EndTime != nil && (g.LastUsed == nil || a.EndTime.After(*g.LastUsed)) {
			end := *a.EndTime
			g.LastUsed = &end
		}
	}

	out := make([]AppStat, 0, len(groups))
	for _, g := range groups {
		g.AvgDuration = g.TotalDuration / int64(g.SessionCount)
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalDuration != out[j].TotalDuration {
			return out[i].TotalDuration > out[j].TotalDuration
		}
		return out[i].AppName < out[j].AppName
	})
	return out, nil
}

// Weekly groups closed activities from startDate through today by date and
// application. An empty startDate means seven days ago.
func (e *Engine) Weekly(ctx context.Context, startDate string) ([]DayAppStat, error) {
	if startDate == "" {
		startDate = e.DaysAgo(7)
	}
	if err := ValidDate(startDate); err != nil {
		return nil, err
	}
	acts, err := e.src.ListActivities(ctx, store.ActivityFilter{From: startDate, To: e.Today(), ClosedOnly: true})
	if err != nil {
		return nil, err
	}

	type key struct{ date, app string }
	groups := make(map[key]*DayAppStat)
	for _, a := range acts {
		k := key{a.Date, e.canonical(a)}
		g, ok := groups[k]
		if !ok {
			g = &DayAppStat{Date: k.date, AppName: k.app}
			groups[k] = g
		}
		g.SessionCount++
		g.TotalDuration += duration(a)
	}

	out := make([]DayAppStat, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		if out[i].TotalDuration != out[j].TotalDuration {
			return out[i].TotalDuration > out[j].TotalDuration
		}
		return out[i].AppName < out[j].AppName
	})
	return out, nil
}

// Timeline returns the activities of date, newest first. limit <= 0 means
// no cap.
func (e *Engine) Timeline(ctx context.Context, date string, limit int) ([]store.Activity, error) {
	if date == "" {
		date = e.Today()
	}
	if err := ValidDate(date); err != nil {
		return nil, err
	}
	acts, err := e.src.ListActivities(ctx, store.ActivityFilter{Date: date, Limit: limit})
	if err != nil {
		return nil, err
	}
	for i := range acts {
		acts[i].AppName = e.canonical(acts[i])
	}
	return acts, nil
}

// ActivityQuery filters Activities. Empty fields do not filter; AppName is
// compared after normalization.
type ActivityQuery struct {
	From    string
	To      string
	AppName string
	Limit   int
}

// Activities lists activities newest first with canonical app names.
func (e *Engine) Activities(ctx context.Context, q ActivityQuery) ([]store.Activity, error) {
	for _, d := range []string{q.From, q.To} {
		if d == "" {
			continue
		}
		if err := ValidDate(d); err != nil {
			return nil, err
		}
	}
	acts, err := e.src.ListActivities(ctx, store.ActivityFilter{From: q.From, To: q.To})
	if err != nil {
		return nil, err
	}
	var want string
	if q.AppName != "" {
		want = e.norm.Normalize(q.AppName, "")
	}

	out := make([]store.Activity, 0, len(acts))
	for _, a := range acts {
		a.AppName = e.canonical(a)
		if want != "" && a.AppName != want {
			continue
		}
		out = append(out, a)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// Applications collapses the rollup rows onto canonical names.
func (e *Engine) Applications(ctx context.Context) ([]AppTotal, error) {
	rows, err := e.src.ListApplications(ctx)
	if err != nil {
		return nil, err
	}
	groups := make(map[string]*AppTotal)
	for _, r := range rows {
		app := e.norm.Normalize(r.AppName, "")
		g, ok := groups[app]
		if !ok {
			g = &AppTotal{AppName: app}
			groups[app] = g
		}
		g.TotalTime += r.TotalTime
		if r.LastUsed != nil && (g.LastUsed == nil || r.LastUsed.After(*g.LastUsed)) {
			lu := *r.LastUsed
			g.LastUsed = &lu
		}
	}

	out := make([]AppTotal, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalTime != out[j].TotalTime {
			return out[i].TotalTime > out[j].TotalTime
		}
		return out[i].AppName < out[j].AppName
	})
	return out, nil
}

// Summary totals all activities. Every field is zero on an empty store.
func (e *Engine) Summary(ctx context.Context) (Summary, error) {
	var s Summary
	acts, err := e.src.ListActivities(ctx, store.ActivityFilter{})
	if err != nil {
		return s, err
	}
	today := e.Today()
	week := e.DaysAgo(7)
	month := e.DaysAgo(30)

	apps := make(map[string]struct{})
	for _, a := range acts {
		apps[e.canonical(a)] = struct{}{}
		d := duration(a)
		s.TotalTime += d
		if a.Date == today {
			s.TodayTime += d
		}
		if a.Date >= week {
			s.WeekTime += d
		}
		if a.Date >= month {
			s.MonthTime += d
		}
	}
	s.TotalActivities = len(acts)
	s.TotalApplications = len(apps)
	return s, nil
}

// Task reports a task's totals, per-app breakdown and full timeline.
func (e *Engine) Task(ctx context.Context, taskID int64) (*TaskStats, error) {
	task, err := e.src.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	acts, err := e.src.ListActivities(ctx, store.ActivityFilter{TaskID: &taskID})
	if err != nil {
		return nil, err
	}

	ts := &TaskStats{Task: *task, ActivityCount: len(acts), Timeline: acts}
	if ts.Timeline == nil {
		ts.Timeline = []store.Activity{}
	}
	for i := range ts.Timeline {
		ts.Timeline[i].AppName = e.canonical(ts.Timeline[i])
	}
	closed := make([]store.Activity, 0, len(acts))
	for _, a := range ts.Timeline {
		if a.Duration != nil {
			ts.TotalDuration += *a.Duration
			closed = append(closed, a)
		}
	}
	ts.Apps = e.breakdown(closed)
	return ts, nil
}

// breakdown groups closed activities by canonical app, largest first.
func (e *Engine) breakdown(acts []store.Activity) []AppBreakdown {
	groups := make(map[string]*AppBreakdown)
	for _, a := range acts {
		app := e.canonical(a)
		g, ok := groups[app]
		if !ok {
			g = &AppBreakdown{AppName: app}
			groups[app] = g
		}
		g.SessionCount++
		g.TotalDuration += duration(a)
	}
	out := make([]AppBreakdown, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalDuration != out[j].TotalDuration {
			return out[i].TotalDuration > out[j].TotalDuration
		}
		return out[i].AppName < out[j].AppName
	})
	return out
}

// Folders returns every folder with its task count and tracked total.
func (e *Engine) Folders(ctx context.Context) ([]store.FolderStats, error) {
	return e.src.ListFoldersWithStats(ctx)
}
