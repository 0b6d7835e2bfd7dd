// Package sampler reports the currently focused desktop window.
package sampler

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrUnavailable means no supported window system could be queried.
var ErrUnavailable = errors.New("no supported window sampler available")

// Window is the focused window's raw identity.
type Window struct {
	App   string `json:"app"`
	Title string `json:"title"`
}

// Sampler returns the focused window, or nil with a nil error when nothing
// has focus.
type Sampler interface {
	Sample(ctx context.Context) (*Window, error)
}

// Func adapts a plain function to Sampler.
type Func func(ctx context.Context) (*Window, error)

func (f Func) Sample(ctx context.Context) (*Window, error) { return f(ctx) }

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// isExit reports whether err is a command that ran and exited non-zero.
func isExit(err error) bool {
	var ee *exec.ExitError
	return errors.As(err, &ee)
}

// Hyprland samples through hyprctl.
type Hyprland struct {
	Run Runner
}

func (h Hyprland) runner() Runner {
	if h.Run == nil {
		return ExecRunner
	}
	return h.Run
}

func (h Hyprland) Sample(ctx context.Context) (*Window, error) {
	out, err := h.runner()(ctx, "hyprctl", "activewindow", "-j")
	if err != nil {
		return nil, fmt.Errorf("hyprctl activewindow: %w", err)
	}
	if !gjson.ValidBytes(out) {
		return nil, fmt.Errorf("hyprctl activewindow: invalid json %q", truncate(string(out), 64))
	}
	res := gjson.ParseBytes(out)
	class := strings.TrimSpace(res.Get("class").String())
	if class == "" {
		return nil, nil
	}
	return &Window{App: class, Title: res.Get("title").String()}, nil
}

// X11 samples through xdotool and xprop.
type X11 struct {
	Run Runner
}

func (x X11) runner() Runner {
	if x.Run == nil {
		return ExecRunner
	}
	return x.Run
}

func (x X11) Sample(ctx context.Context) (*Window, error) {
	run := x.runner()
	out, err := run(ctx, "xdotool", "getactivewindow")
	if err != nil {
		// xdotool exits non-zero when no window has focus.
		if isExit(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("xdotool getactivewindow: %w", err)
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		return nil, nil
	}

	w := &Window{}
	if out, err := run(ctx, "xprop", "-id", id, "WM_CLASS"); err == nil {
		w.App = parseWMClass(string(out))
	} else if !isExit(err) {
		return nil, fmt.Errorf("xprop WM_CLASS: %w", err)
	}
	if out, err := run(ctx, "xdotool", "getwindowname", id); err == nil {
		w.Title = strings.TrimSpace(string(out))
	} else if !isExit(err) {
		return nil, fmt.Errorf("xdotool getwindowname: %w", err)
	}
	return w, nil
}

// parseWMClass extracts the class name (the last quoted value) from
// `WM_CLASS(STRING) = "Navigator", "firefox"`.
func parseWMClass(out string) string {
	_, value, ok := strings.Cut(out, "=")
	if !ok {
		return ""
	}
	parts := strings.Split(value, ",")
	return strings.Trim(strings.TrimSpace(parts[len(parts)-1]), `"`)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

type timeoutSampler struct {
	inner   Sampler
	timeout time.Duration
}

// WithTimeout bounds every Sample call of s by d.
func WithTimeout(s Sampler, d time.Duration) Sampler {
	if d <= 0 {
		return s
	}
	return timeoutSampler{inner: s, timeout: d}
}

func (t timeoutSampler) Sample(ctx context.Context) (*Window, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Sample(ctx)
}

// Detect checks for Hyprland first, then X11. run may be nil to use ExecRunner.
func Detect(ctx context.Context, run Runner) (Sampler, string, error) {
	if run == nil {
		run = ExecRunner
	}
	available := func(name string, args ...string) bool {
		ctx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		_, err := run(ctx, name, args...)
		return err == nil
	}
	if available("hyprctl", "version") {
		return Hyprland{Run: run}, "hyprland", nil
	}
	if available("xdotool", "version") {
		return X11{Run: run}, "x11", nil
	}
	return nil, "", ErrUnavailable
}
