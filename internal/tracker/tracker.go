// Package tracker turns a stream of focused-window samples into activity
// intervals attributed to the selected task.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/focustrack/internal/normalize"
	"github.com/sadopc/focustrack/internal/sampler"
	"github.com/sadopc/focustrack/internal/store"
)

// ErrClosed is returned by requests made after Run has returned.
var ErrClosed = errors.New("tracker is not running")

// Store is the subset of the activity store the tracker writes to.
type Store interface {
	GetTask(ctx context.Context, id int64) (*store.Task, error)
	StartActivity(ctx context.Context, taskID int64, rawApp, windowTitle string) (int64, error)
	EndActivity(ctx context.Context, id int64) error
	GetActivity(ctx context.Context, id int64) (*store.Activity, error)
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Status is a point-in-time copy of the tracker state.
type Status struct {
	Running       bool       `json:"running"`
	TaskID        *int64     `json:"task_id"`
	SessionID     string     `json:"session_id,omitempty"`
	CurrentApp    string     `json:"current_app,omitempty"`
	CurrentWindow string     `json:"current_window,omitempty"`
	ActivityID    *int64     `json:"activity_id"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
}

type Config struct {
	Store        Store
	Sampler      sampler.Sampler
	Normalizer   *normalize.Normalizer
	PollInterval time.Duration // defaults to 2s
	Logger       *slog.Logger
	Now          func() time.Time
}

type requestKind int

const (
	reqStart requestKind = iota
	reqStop
	reqPoll
)

type request struct {
	kind   requestKind
	taskID int64
	reply  chan error
}

// session is owned by the loop goroutine.
type session struct {
	taskID     int64
	id         string
	startedAt  time.Time
	activityID int64
	lastApp    string
	lastTitle  string
}

type Tracker struct {
	store    Store
	sampler  sampler.Sampler
	norm     *normalize.Normalizer
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	reqs chan request
	done chan struct{}

	// loop-owned
	cur    *session
	ticker *time.Ticker

	status atomic.Pointer[Status]

	subMu sync.Mutex
	subs  map[chan Status]struct{}
}

func New(cfg Config) *Tracker {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	t := &Tracker{
		store:    cfg.Store,
		sampler:  cfg.Sampler,
		norm:     cfg.Normalizer,
		interval: interval,
		logger:   logger,
		now:      now,
		reqs:     make(chan request),
		done:     make(chan struct{}),
		subs:     make(map[chan Status]struct{}),
	}
	t.status.Store(&Status{})
	return t
}

// Run hosts the tracking loop until ctx is cancelled. Cancellation closes
// the open activity before Run returns.
func (t *Tracker) Run(ctx context.Context) error {
	defer close(t.done)
	for {
		var tick <-chan time.Time
		if t.ticker != nil {
			tick = t.ticker.C
		}
		select {
		case <-ctx.Done():
			stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			err := t.stopSession(stopCtx)
			cancel()
			if err != nil {
				t.logger.Error("close final activity", "error", err)
			}
			return nil
		case req := <-t.reqs:
			req.reply <- t.handle(ctx, req)
		case <-tick:
			t.poll(ctx)
		}
	}
}

// Start begins tracking taskID. Starting the task that is already tracked
// is a no-op; a different task ends the current session first.
func (t *Tracker) Start(ctx context.Context, taskID int64) error {
	return t.send(ctx, request{kind: reqStart, taskID: taskID})
}

// Stop ends the session, closing the open activity before it returns.
func (t *Tracker) Stop(ctx context.Context) error {
	return t.send(ctx, request{kind: reqStop})
}

// Resume starts tracking the last tracked task, if one was recorded.
func (t *Tracker) Resume(ctx context.Context) error {
	v, err := t.store.GetSetting(ctx, store.SettingLastTaskID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s %q: %w", store.SettingLastTaskID, v, err)
	}
	return t.Start(ctx, id)
}

// Status returns the latest snapshot. Safe to call from any goroutine.
func (t *Tracker) Status() Status {
	return *t.status.Load()
}

// Subscribe returns a channel receiving every status change. Slow readers
// miss intermediate snapshots. Call the returned func to unsubscribe.
func (t *Tracker) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, 8)
	t.subMu.Lock()
	t.subs[ch] = struct{}{}
	t.subMu.Unlock()
	return ch, func() {
		t.subMu.Lock()
		if _, ok := t.subs[ch]; ok {
			delete(t.subs, ch)
			close(ch)
		}
		t.subMu.Unlock()
	}
}

func (t *Tracker) send(ctx context.Context, req request) error {
	req.reply = make(chan error, 1)
	select {
	case t.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrClosed
	}
	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Tracker) handle(ctx context.Context, req request) error {
	switch req.kind {
	case reqStart:
		return t.startSession(ctx, req.taskID)
	case reqStop:
		return t.stopSession(ctx)
	case reqPoll:
		if t.cur != nil {
			t.poll(ctx)
		}
		return nil
	}
	return fmt.Errorf("unknown request %d", req.kind)
}

func (t *Tracker) startSession(ctx context.Context, taskID int64) error {
	if t.cur != nil && t.cur.taskID == taskID {
		return nil
	}
	if _, err := t.store.GetTask(ctx, taskID); err != nil {
		return err
	}
	if t.cur != nil {
		if err := t.stopSession(ctx); err != nil {
			t.logger.Warn("close activity of previous task", "error", err)
		}
	}

	t.cur = &session{
		taskID:    taskID,
		id:        uuid.NewString(),
		startedAt: t.now(),
	}
	if err := t.store.SetSetting(ctx, store.SettingLastTaskID, strconv.FormatInt(taskID, 10)); err != nil {
		t.logger.Warn("persist last task", "error", err)
	}
	t.ticker = time.NewTicker(t.interval)
	t.logger.Info("tracking started", "task_id", taskID, "session_id", t.cur.id)
	t.publish()

	t.poll(ctx)
	return nil
}

// stopSession disarms the ticker and closes the open activity. The tracker
// is stopped afterwards even when the close fails.
func (t *Tracker) stopSession(ctx context.Context) error {
	if t.ticker != nil {
		t.ticker.Stop()
		t.ticker = nil
	}
	if t.cur == nil {
		return nil
	}
	cur := t.cur
	t.cur = nil
	defer t.publish()

	t.logger.Info("tracking stopped", "task_id", cur.taskID, "session_id", cur.id)
	if cur.activityID == 0 {
		return nil
	}
	if err := t.store.EndActivity(ctx, cur.activityID); err != nil {
		return fmt.Errorf("end activity %d: %w", cur.activityID, err)
	}
	return nil
}

// poll samples the focused window once and advances the session. Store
// failures leave the session unchanged so the next poll retries.
func (t *Tracker) poll(ctx context.Context) {
	cur := t.cur
	if cur == nil {
		return
	}

	w, err := t.sampler.Sample(ctx)
	if err != nil {
		t.logger.Warn("sample focused window", "error", err)
		w = nil
	}

	if w == nil {
		if cur.activityID != 0 {
			if err := t.store.EndActivity(ctx, cur.activityID); err != nil {
				t.logger.Error("end activity", "activity_id", cur.activityID, "error", err)
				return
			}
			t.logger.Debug("no focused window", "activity_id", cur.activityID)
		}
		changed := cur.activityID != 0 || cur.lastApp != "" || cur.lastTitle != ""
		cur.activityID, cur.lastApp, cur.lastTitle = 0, "", ""
		if changed {
			t.publish()
		}
		return
	}

	app := t.norm.Normalize(w.App, w.Title)
	if cur.activityID != 0 && app == cur.lastApp && t.stillOpen(ctx, cur.activityID) {
		if w.Title != cur.lastTitle {
			cur.lastTitle = w.Title
			t.publish()
		}
		return
	}

	id, err := t.store.StartActivity(ctx, cur.taskID, w.App, w.Title)
	if errors.Is(err, store.ErrNotFound) {
		t.logger.Warn("tracked task is gone, stopping", "task_id", cur.taskID)
		if err := t.stopSession(ctx); err != nil {
			t.logger.Error("stop tracker", "error", err)
		}
		return
	}
	if err != nil {
		t.logger.Error("start activity", "task_id", cur.taskID, "app", app, "error", err)
		return
	}
	t.logger.Info("now tracking", "app", app, "title", w.Title, "activity_id", id)
	cur.activityID, cur.lastApp, cur.lastTitle = id, app, w.Title
	t.publish()
}

// stillOpen reports whether the session's activity row is still open. A row
// closed or deleted behind the tracker's back (its task was deleted) counts
// as an app change so the next write notices. Lookup failures keep the
// session as is.
func (t *Tracker) stillOpen(ctx context.Context, id int64) bool {
	a, err := t.store.GetActivity(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return false
	}
	if err != nil {
		t.logger.Warn("check open activity", "activity_id", id, "error", err)
		return true
	}
	return a.Open()
}

// pollNow runs one poll on the loop goroutine.
func (t *Tracker) pollNow(ctx context.Context) error {
	return t.send(ctx, request{kind: reqPoll})
}

func (t *Tracker) publish() {
	st := &Status{}
	if cur := t.cur; cur != nil {
		taskID := cur.taskID
		startedAt := cur.startedAt
		st.Running = true
		st.TaskID = &taskID
		st.SessionID = cur.id
		st.StartedAt = &startedAt
		st.CurrentApp = cur.lastApp
		st.CurrentWindow = cur.lastTitle
		if cur.activityID != 0 {
			id := cur.activityID
			st.ActivityID = &id
		}
	}
	t.status.Store(st)

	t.subMu.Lock()
	for ch := range t.subs {
		select {
		case ch <- *st:
		default:
		}
	}
	t.subMu.Unlock()
}
