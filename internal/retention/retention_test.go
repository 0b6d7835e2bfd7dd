package retention

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sadopc/focustrack/internal/store"
)

type fakeCleaner struct {
	mu    sync.Mutex
	calls []int
	err   error
}

func (f *fakeCleaner) CleanupOldData(_ context.Context, days int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, days)
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func (f *fakeCleaner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// waitFor polls check until it returns true or the deadline elapses.
func waitFor(t *testing.T, deadline time.Duration, check func() bool) {
	t.Helper()
	end := time.Now().Add(deadline)
	for time.Now().Before(end) {
		if check() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestRunOnce(t *testing.T) {
	c := &fakeCleaner{}
	s := NewScheduler(Config{Store: c, Logger: quietLogger(), Days: 90})

	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || len(c.calls) != 1 || c.calls[0] != 90 {
		t.Fatalf("unexpected cleanup: n=%d calls=%v", n, c.calls)
	}
}

func TestRunOnceError(t *testing.T) {
	boom := errors.New("disk full")
	s := NewScheduler(Config{Store: &fakeCleaner{err: boom}, Logger: quietLogger(), Days: 30})
	if _, err := s.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected the cleaner error, got %v", err)
	}
}

func TestDisabled(t *testing.T) {
	c := &fakeCleaner{}
	s := NewScheduler(Config{Store: c, Logger: quietLogger(), Days: 0})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()
	if n, err := s.RunOnce(context.Background()); n != 0 || err != nil {
		t.Fatalf("disabled retention should do nothing: %d %v", n, err)
	}
	if c.count() != 0 {
		t.Fatal("cleaner should not be called")
	}
}

func TestInvalidSchedule(t *testing.T) {
	s := NewScheduler(Config{Store: &fakeCleaner{}, Logger: quietLogger(), Days: 90, Schedule: "every tuesday"})
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected an error for an invalid schedule")
	}
	s.Stop()
}

func TestScheduledRun(t *testing.T) {
	c := &fakeCleaner{}
	s := NewScheduler(Config{Store: c, Logger: quietLogger(), Days: 7, Schedule: "@every 1s"})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	waitFor(t, 5*time.Second, func() bool { return c.count() > 0 })
}

func TestNextRunTime(t *testing.T) {
	after := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	next, err := NextRunTime("0 3 * * *", after)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 3, 16, 3, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("got %v, want %v", next, want)
	}
	if _, err := NextRunTime("61 * * * *", after); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestCleansRealStore(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	st, err := store.NewMemory(store.WithClock(clock), store.WithLocation(time.UTC))
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	ctx := context.Background()
	task, err := st.CreateTask(ctx, nil, "T", "")
	if err != nil {
		t.Fatal(err)
	}

	now = now.AddDate(0, 0, -100)
	old, _ := st.StartActivity(ctx, task.ID, "firefox", "")
	now = now.Add(time.Minute)
	_ = st.EndActivity(ctx, old)
	now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	recent, _ := st.StartActivity(ctx, task.ID, "firefox", "")
	now = now.Add(time.Minute)
	_ = st.EndActivity(ctx, recent)

	s := NewScheduler(Config{Store: st, Logger: quietLogger(), Days: 90})
	n, err := s.RunOnce(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted activity, got %d", n)
	}
	if _, err := st.GetActivity(ctx, old); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("old activity should be gone, got %v", err)
	}
	if _, err := st.GetActivity(ctx, recent); err != nil {
		t.Fatalf("recent activity should stay: %v", err)
	}
}
