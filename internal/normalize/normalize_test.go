package normalize

import (
	"sync"
	"testing"
)

func TestNormalizeFamilies(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"google-chrome", "chrome"},
		{"Google-chrome", "chrome"},
		{"chromium", "chrome"},
		{"chromium-browser", "chrome"},
		{"Code", "vscode"},
		{"code-oss", "vscode"},
		{"VSCodium", "vscode"},
		{"kitty", "terminal"},
		{"Alacritty", "terminal"},
		{"org.wezfurlong.wezterm", "terminal"},
		{"gnome-terminal-server", "terminal"},
		{"firefox", "firefox"},
		{"  Slack  ", "slack"},
		{"", Unknown},
		{"   ", Unknown},
	}
	for _, tt := range tests {
		if got := Normalize(tt.raw, "any title"); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	for _, raw := range []string{"firefox", "google-chrome", "kitty", "Obsidian", ""} {
		if Normalize(raw, "") != Normalize(raw, "") {
			t.Fatalf("Normalize(%q) not deterministic", raw)
		}
	}
}

func TestNormalizeIdempotentOnCanonicalKeys(t *testing.T) {
	for _, raw := range []string{"chromium", "code", "foot", "firefox", "Thunderbird", "", "unknown"} {
		once := Normalize(raw, "")
		twice := Normalize(once, "")
		if once != twice {
			t.Errorf("Normalize(Normalize(%q)) = %q, want %q", raw, twice, once)
		}
	}
	for _, r := range DefaultRules {
		if got := Normalize(r.Key, ""); got != r.Key {
			t.Errorf("canonical key %q normalizes to %q", r.Key, got)
		}
	}
}

func TestNormalizeFirstRuleWins(t *testing.T) {
	// "chrome-terminal" matches both the chrome and terminal families.
	if got := Normalize("chrome-terminal", ""); got != "chrome" {
		t.Fatalf("got %q, want chrome", got)
	}
}

func TestNormalizerExtraRules(t *testing.T) {
	n := New(Rule{Key: "Firefox", Keywords: []string{"firefox", "librewolf"}})
	if got := n.Normalize("LibreWolf", ""); got != "firefox" {
		t.Fatalf("got %q, want firefox", got)
	}
	// Built-ins still apply after the extra rules.
	if got := n.Normalize("chromium", ""); got != "chrome" {
		t.Fatalf("got %q, want chrome", got)
	}

	n.SetRules(nil)
	if got := n.Normalize("librewolf", ""); got != "librewolf" {
		t.Fatalf("after reset got %q, want librewolf", got)
	}
}

func TestNormalizerExtraKeysAreFixedPoints(t *testing.T) {
	n := New(Rule{Key: "editor-code", Keywords: []string{"zed"}})
	if got := n.Normalize("zed", ""); got != "editor-code" {
		t.Fatalf("got %q, want editor-code", got)
	}
	for _, r := range n.Rules() {
		if got := n.Normalize(r.Key, ""); got != r.Key {
			t.Fatalf("Normalize(%q) = %q, want the key itself", r.Key, got)
		}
	}
	for _, raw := range []string{"zed", "Zed-Editor", "code", "kitty", "slack"} {
		once := n.Normalize(raw, "")
		if twice := n.Normalize(once, ""); twice != once {
			t.Fatalf("Normalize(Normalize(%q)) = %q, want %q", raw, twice, once)
		}
	}
}

func TestNormalizerDropsClaimedKeys(t *testing.T) {
	n := &Normalizer{}
	dropped := n.SetRules([]Rule{
		{Key: "notes", Keywords: []string{"obsidian", "note"}},
		{Key: "notebook", Keywords: []string{"jupyter"}},
	})
	if len(dropped) != 1 || dropped[0] != "notebook" {
		t.Fatalf("expected notebook to be dropped, got %v", dropped)
	}
	if got := n.Normalize("jupyter", ""); got != "jupyter" {
		t.Fatalf("dropped rule must not apply, got %q", got)
	}
	if len(n.Rules()) != len(DefaultRules)+1 {
		t.Fatalf("expected one extra rule, got %d", len(n.Rules())-len(DefaultRules))
	}
}

func TestNormalizerSkipsInvalidRules(t *testing.T) {
	n := New(Rule{Key: "", Keywords: []string{"x"}}, Rule{Key: "empty"})
	if len(n.Rules()) != len(DefaultRules) {
		t.Fatalf("expected only built-in rules, got %d", len(n.Rules()))
	}
}

func TestNormalizerZeroValue(t *testing.T) {
	var n Normalizer
	if got := n.Normalize("kitty", ""); got != "terminal" {
		t.Fatalf("got %q, want terminal", got)
	}
}

func TestNormalizerConcurrentSetRules(t *testing.T) {
	n := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			n.SetRules([]Rule{{Key: "editor", Keywords: []string{"zed"}}})
		}()
		go func() {
			defer wg.Done()
			_ = n.Normalize("zed", "")
		}()
	}
	wg.Wait()
	if got := n.Normalize("zed", ""); got != "editor" {
		t.Fatalf("got %q, want editor", got)
	}
}
