package sampler

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) ([]byte, error) {
	cmd := strings.Join(append([]string{name}, args...), " ")
	f.calls = append(f.calls, cmd)
	if err, ok := f.errs[cmd]; ok {
		return nil, err
	}
	if out, ok := f.outputs[cmd]; ok {
		return []byte(out), nil
	}
	return nil, exec.ErrNotFound
}

var errExit = &exec.ExitError{}

// ============================================================
// Hyprland
// ============================================================

func TestHyprlandSample(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"hyprctl activewindow -j": `{"address":"0x1","class":"firefox","title":"Docs - Mozilla Firefox","pid":42}`,
	}}
	w, err := Hyprland{Run: r.run}.Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if w == nil || w.App != "firefox" || w.Title != "Docs - Mozilla Firefox" {
		t.Fatalf("unexpected window: %+v", w)
	}
}

func TestHyprlandNoFocus(t *testing.T) {
	for _, out := range []string{`{}`, `{"class":"","title":""}`} {
		r := &fakeRunner{outputs: map[string]string{"hyprctl activewindow -j": out}}
		w, err := Hyprland{Run: r.run}.Sample(context.Background())
		if err != nil || w != nil {
			t.Fatalf("%s: expected no window, got %+v, %v", out, w, err)
		}
	}
}

func TestHyprlandErrors(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"hyprctl activewindow -j": "Invalid"}}
	if _, err := (Hyprland{Run: r.run}).Sample(context.Background()); err == nil {
		t.Fatal("expected error for invalid json")
	}

	r = &fakeRunner{errs: map[string]error{"hyprctl activewindow -j": errExit}}
	if _, err := (Hyprland{Run: r.run}).Sample(context.Background()); err == nil {
		t.Fatal("expected error for failed command")
	}
}

// ============================================================
// X11
// ============================================================

func TestX11Sample(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{
		"xdotool getactivewindow":        "81788929\n",
		"xprop -id 81788929 WM_CLASS":    `WM_CLASS(STRING) = "Navigator", "firefox"` + "\n",
		"xdotool getwindowname 81788929": "Docs - Mozilla Firefox\n",
	}}
	w, err := X11{Run: r.run}.Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if w == nil || w.App != "firefox" || w.Title != "Docs - Mozilla Firefox" {
		t.Fatalf("unexpected window: %+v", w)
	}
}

func TestX11NoActiveWindow(t *testing.T) {
	r := &fakeRunner{errs: map[string]error{"xdotool getactivewindow": errExit}}
	w, err := X11{Run: r.run}.Sample(context.Background())
	if err != nil || w != nil {
		t.Fatalf("expected no window, got %+v, %v", w, err)
	}
}

func TestX11MissingBinary(t *testing.T) {
	r := &fakeRunner{}
	if _, err := (X11{Run: r.run}).Sample(context.Background()); !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestX11PartialInfo(t *testing.T) {
	r := &fakeRunner{
		outputs: map[string]string{"xdotool getactivewindow": "7"},
		errs: map[string]error{
			"xprop -id 7 WM_CLASS":    errExit,
			"xdotool getwindowname 7": errExit,
		},
	}
	w, err := X11{Run: r.run}.Sample(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if w == nil || w.App != "" || w.Title != "" {
		t.Fatalf("expected an empty window identity, got %+v", w)
	}
}

func TestParseWMClass(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`WM_CLASS(STRING) = "Navigator", "firefox"`, "firefox"},
		{`WM_CLASS(STRING) = "kitty"`, "kitty"},
		{`WM_CLASS(STRING) = "code", "Code"`, "Code"},
		{`WM_CLASS:  not found.`, ""},
	}
	for _, tt := range tests {
		if got := parseWMClass(tt.in); got != tt.want {
			t.Errorf("parseWMClass(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ============================================================
// Detect and timeouts
// ============================================================

func TestDetect(t *testing.T) {
	r := &fakeRunner{outputs: map[string]string{"hyprctl version": "Hyprland 0.40"}}
	s, name, err := Detect(context.Background(), r.run)
	if err != nil || name != "hyprland" {
		t.Fatalf("got %q, %v", name, err)
	}
	if _, ok := s.(Hyprland); !ok {
		t.Fatalf("expected Hyprland sampler, got %T", s)
	}

	r = &fakeRunner{outputs: map[string]string{"xdotool version": "xdotool version 3"}}
	s, name, err = Detect(context.Background(), r.run)
	if err != nil || name != "x11" {
		t.Fatalf("got %q, %v", name, err)
	}
	if _, ok := s.(X11); !ok {
		t.Fatalf("expected X11 sampler, got %T", s)
	}

	r = &fakeRunner{}
	if _, _, err := Detect(context.Background(), r.run); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestWithTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context) (*Window, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	start := time.Now()
	_, err := WithTimeout(slow, 20*time.Millisecond).Sample(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("timeout was not applied")
	}

	same := WithTimeout(slow, 0)
	if _, ok := same.(Func); !ok {
		t.Fatal("zero timeout should return the sampler unchanged")
	}
}
