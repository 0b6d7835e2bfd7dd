// Package normalize maps raw window identities onto canonical application
// keys so that related windows (every Chrome profile, every terminal
// emulator) are accounted to one bucket.
package normalize

import (
	"strings"
	"sync/atomic"
)

// Unknown is returned for empty identifiers.
const Unknown = "unknown"

// Rule maps any identifier containing one of Keywords onto Key.
type Rule struct {
	Key      string   `yaml:"key" json:"key"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

func (r Rule) match(id string) bool {
	for _, kw := range r.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(id, kw) {
			return true
		}
	}
	return false
}

// DefaultRules is the built-in priority list. Each key contains one of its
// own keywords so canonical keys normalize to themselves.
var DefaultRules = []Rule{
	{Key: "chrome", Keywords: []string{"google-chrome", "chromium", "chrome"}},
	{Key: "vscode", Keywords: []string{"visual studio code", "vscodium", "vscode", "code-oss", "code"}},
	{Key: "terminal", Keywords: []string{"gnome-terminal", "konsole", "alacritty", "kitty", "foot", "wezterm", "xterm", "terminal"}},
}

// Normalizer evaluates a replaceable rule list. The zero value uses
// DefaultRules.
type Normalizer struct {
	rules atomic.Pointer[[]Rule]
}

// New returns a Normalizer that evaluates extra before DefaultRules.
func New(extra ...Rule) *Normalizer {
	n := &Normalizer{}
	n.SetRules(extra)
	return n
}

// SetRules swaps the extra rules. Safe for concurrent use with Normalize.
// Each rule's key is added to its own keywords so that stored keys
// normalize to themselves. A rule whose key an earlier extra rule already
// claims is dropped, and its key is returned.
func (n *Normalizer) SetRules(extra []Rule) (dropped []string) {
	rules := make([]Rule, 0, len(extra)+len(DefaultRules))
	for _, r := range extra {
		key := strings.ToLower(strings.TrimSpace(r.Key))
		if key == "" || len(r.Keywords) == 0 {
			continue
		}
		if claimed(rules, key) {
			dropped = append(dropped, key)
			continue
		}
		keywords := append(append([]string(nil), r.Keywords...), key)
		rules = append(rules, Rule{Key: key, Keywords: keywords})
	}
	rules = append(rules, DefaultRules...)
	n.rules.Store(&rules)
	return dropped
}

func claimed(rules []Rule, key string) bool {
	for _, r := range rules {
		if r.match(key) {
			return true
		}
	}
	return false
}

// Rules returns the active rule list, extra rules first.
func (n *Normalizer) Rules() []Rule {
	if n == nil {
		return DefaultRules
	}
	p := n.rules.Load()
	if p == nil {
		return DefaultRules
	}
	return *p
}

// Normalize returns the canonical key for raw. title is accepted for
// callers that have one; the current rules only look at the identifier.
func (n *Normalizer) Normalize(raw, title string) string {
	_ = title
	id := strings.ToLower(strings.TrimSpace(raw))
	if id == "" {
		return Unknown
	}
	for _, r := range n.Rules() {
		if r.match(id) {
			return r.Key
		}
	}
	return id
}

// Normalize applies DefaultRules.
func Normalize(raw, title string) string {
	var n *Normalizer
	return n.Normalize(raw, title)
}
