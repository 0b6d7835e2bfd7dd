package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/focustrack/internal/normalize"
)

// rulesModel shows the active normalization rules and lets the user try a
// window class against them. Rules are edited in the config file.
type rulesModel struct {
	norm   *normalize.Normalizer
	width  int
	height int

	formActive bool
	form       *huh.Form

	// pointers survive value copies of the model
	sample *string
	result *string
}

func newRulesModel(n *normalize.Normalizer) rulesModel {
	sample, result := "", ""
	return rulesModel{
		norm:   n,
		sample: &sample,
		result: &result,
	}
}

func (r *rulesModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

func (r rulesModel) update(msg tea.Msg) (rulesModel, tea.Cmd) {
	if r.formActive && r.form != nil {
		return r.updateForm(msg)
	}

	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, keys.Enter), key.Matches(msg, keys.New):
			return r.showForm()
		}
	}
	return r, nil
}

func (r rulesModel) showForm() (rulesModel, tea.Cmd) {
	*r.sample = ""
	r.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Window class").
				Placeholder("e.g. Google-chrome").
				Value(r.sample),
		),
	).WithShowHelp(true)

	r.formActive = true
	return r, r.form.Init()
}

func (r rulesModel) updateForm(msg tea.Msg) (rulesModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "esc" {
		r.formActive = false
		r.form = nil
		return r, nil
	}

	form, cmd := r.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		r.form = f
	}

	if r.form.State == huh.StateCompleted {
		r.formActive = false
		r.form = nil
		*r.result = r.classify(*r.sample)
		return r, nil
	}
	return r, cmd
}

// classify renders "raw → key" for the sample result line.
func (r rulesModel) classify(raw string) string {
	return fmt.Sprintf("%q → %s", raw, r.norm.Normalize(raw, ""))
}

func (r rulesModel) view() string {
	w := r.width - 4
	title := titleStyle.Render("Rules")

	if r.formActive && r.form != nil {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left, title, "", r.form.View()),
		)
	}

	rows := []string{
		title,
		mutedStyle.Render("  First match wins. Custom rules come from the config file."),
		"",
	}

	custom := len(r.norm.Rules()) - len(normalize.DefaultRules)
	for i, rule := range r.norm.Rules() {
		origin := mutedStyle.Render("built-in")
		if i < custom {
			origin = highlightStyle.Render("custom")
		}
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(appColor(rule.Key))).Render("●")
		label := lipgloss.NewStyle().Width(14).Render(rule.Key)
		rows = append(rows, fmt.Sprintf("  %s %s %-9s %s",
			dot, label, origin, truncate(strings.Join(rule.Keywords, ", "), max(w-36, 10)),
		))
	}

	rows = append(rows, "")
	if *r.result != "" {
		rows = append(rows, "  "+highlightStyle.Render(*r.result), "")
	}
	rows = append(rows, mutedStyle.Render("  Press enter to test a window class"))

	return panelStyle.Width(w).Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}
