package tui

import (
	"context"
	"time"

	"github.com/sadopc/focustrack/internal/tracker"
)

// Tracker is the part of the tracker the dashboard drives.
type Tracker interface {
	Start(ctx context.Context, taskID int64) error
	Stop(ctx context.Context) error
	Status() tracker.Status
}

// timerModel mirrors the tracker status between ticks. trk is nil when no
// window sampler is available.
type timerModel struct {
	trk    Tracker
	status tracker.Status
	now    func() time.Time
}

func newTimerModel(trk Tracker) timerModel {
	t := timerModel{trk: trk, now: time.Now}
	t.tick()
	return t
}

func (t timerModel) available() bool {
	return t.trk != nil
}

func (t *timerModel) start(taskID int64) error {
	if t.trk == nil {
		return errTrackerUnavailable
	}
	ctx, cancel := cmdContext()
	defer cancel()
	if err := t.trk.Start(ctx, taskID); err != nil {
		return err
	}
	t.tick()
	return nil
}

func (t *timerModel) stop() error {
	if t.trk == nil || !t.status.Running {
		return nil
	}
	ctx, cancel := cmdContext()
	defer cancel()
	err := t.trk.Stop(ctx)
	t.tick()
	return err
}

// tick refreshes the cached status.
func (t *timerModel) tick() {
	if t.trk == nil {
		t.status = tracker.Status{}
		return
	}
	t.status = t.trk.Status()
}

func (t timerModel) running() bool {
	return t.status.Running
}

func (t timerModel) taskID() int64 {
	if t.status.TaskID == nil {
		return 0
	}
	return *t.status.TaskID
}

// currentElapsed is the time since the session started.
func (t timerModel) currentElapsed() time.Duration {
	if !t.status.Running || t.status.StartedAt == nil {
		return 0
	}
	d := t.now().Sub(*t.status.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}
