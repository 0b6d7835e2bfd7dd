package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/sadopc/focustrack/internal/stats"
)

type reportMode int

const (
	reportWeekly reportMode = iota
	reportDaily
)

const dateLayout = "2006-01-02"

type reportsModel struct {
	stats  *stats.Engine
	width  int
	height int

	mode   reportMode
	offset int // weeks (weekly) or days (daily) back from today

	week []stats.DayAppStat
	day  []stats.AppStat
	apps []stats.AppTotal

	chart barchart.Model
}

func newReportsModel(eng *stats.Engine) reportsModel {
	return reportsModel{
		stats: eng,
		chart: barchart.New(60, 12),
	}
}

func (r *reportsModel) setSize(w, h int) {
	r.width = w
	r.height = h
}

type reportsDataMsg struct {
	week []stats.DayAppStat
	day  []stats.AppStat
	apps []stats.AppTotal
}

// dateRange returns the first and last date shown, inclusive.
func (r reportsModel) dateRange() (string, string) {
	if r.mode == reportDaily {
		d := r.stats.DaysAgo(r.offset)
		return d, d
	}
	return r.stats.DaysAgo(6 + 7*r.offset), r.stats.DaysAgo(7 * r.offset)
}

func (r reportsModel) refresh() tea.Cmd {
	from, to := r.dateRange()
	mode := r.mode
	return func() tea.Msg {
		ctx, cancel := cmdContext()
		defer cancel()

		var msg reportsDataMsg
		var err error
		if mode == reportDaily {
			msg.day, err = r.stats.Daily(ctx, from)
			if err == nil {
				msg.apps, err = r.stats.Applications(ctx)
			}
		} else {
			var rows []stats.DayAppStat
			rows, err = r.stats.Weekly(ctx, from)
			for _, row := range rows {
				if row.Date <= to {
					msg.week = append(msg.week, row)
				}
			}
		}
		if err != nil {
			return errStatus("Load report", err)
		}
		return msg
	}
}

func (r reportsModel) update(msg tea.Msg) (reportsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportsDataMsg:
		r.week = msg.week
		r.day = msg.day
		r.apps = msg.apps
		r.buildChart()
		return r, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Left):
			r.offset++
			return r, r.refresh()
		case key.Matches(msg, keys.Right):
			if r.offset > 0 {
				r.offset--
			}
			return r, r.refresh()
		case key.Matches(msg, keys.Mode):
			if r.mode == reportDaily {
				r.mode = reportWeekly
			} else {
				r.mode = reportDaily
			}
			r.offset = 0
			return r, r.refresh()
		}
	}
	return r, nil
}

// buildChart draws one bar per day, stacked by application, in hours.
func (r *reportsModel) buildChart() {
	chartWidth := r.width - 8
	if chartWidth < 20 {
		chartWidth = 20
	}
	chartHeight := 12
	if r.height > 30 {
		chartHeight = 16
	}

	r.chart = barchart.New(chartWidth, chartHeight)

	from, to := r.dateRange()
	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return
	}

	var bars []barchart.BarData
	for d := start; d.Format(dateLayout) <= to; d = d.AddDate(0, 0, 1) {
		dateStr := d.Format(dateLayout)

		var values []barchart.BarValue
		for _, s := range r.week {
			if s.Date != dateStr {
				continue
			}
			values = append(values, barchart.BarValue{
				Name:  s.AppName,
				Value: float64(s.TotalDuration) / 3600.0,
				Style: lipgloss.NewStyle().Foreground(lipgloss.Color(appColor(s.AppName))),
			})
		}
		if len(values) == 0 {
			values = []barchart.BarValue{{Name: "", Value: 0, Style: lipgloss.NewStyle().Foreground(colorSubtle)}}
		}

		bars = append(bars, barchart.BarData{
			Label:  d.Format("Mon 02"),
			Values: values,
		})
	}

	r.chart.PushAll(bars)
	r.chart.Draw()
}

func (r reportsModel) view() string {
	w := r.width - 4

	weeklyTab := inactiveTabStyle.Render("Weekly")
	dailyTab := inactiveTabStyle.Render("Daily")
	if r.mode == reportWeekly {
		weeklyTab = activeTabStyle.Render("Weekly")
	} else {
		dailyTab = activeTabStyle.Render("Daily")
	}
	modeTabs := lipgloss.JoinHorizontal(lipgloss.Bottom, weeklyTab, dailyTab)

	from, to := r.dateRange()
	label := from
	if from != to {
		label = from + " to " + to
	}
	header := lipgloss.JoinHorizontal(lipgloss.Bottom,
		titleStyle.Render("Reports"), "  ", modeTabs, "  ", mutedStyle.Render(label),
	)

	nav := mutedStyle.Render("  ←/→: navigate  v: switch mode")

	if r.mode == reportDaily {
		return panelStyle.Width(w).Render(
			lipgloss.JoinVertical(lipgloss.Left,
				header, "", r.renderDayTable(w), "", r.renderAppsTable(w), "", nav,
			),
		)
	}

	return panelStyle.Width(w).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			header, "", r.chart.View(), "", r.renderLegend(), "", r.renderWeekTable(w), "", nav,
		),
	)
}

func (r reportsModel) renderWeekTable(w int) string {
	if len(r.week) == 0 {
		return mutedStyle.Render("  No data for this period")
	}

	totals := make(map[string]int64)
	sessions := make(map[string]int)
	for _, s := range r.week {
		totals[s.Date] += s.TotalDuration
		sessions[s.Date] += s.SessionCount
	}
	dates := make([]string, 0, len(totals))
	for d := range totals {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))

	rows := []string{
		mutedStyle.Render(fmt.Sprintf("  %-12s %10s %8s %9s", "Date", "Duration", "Hours", "Sessions")),
		mutedStyle.Render("  " + strings.Repeat("─", min(w-6, 42))),
	}
	for _, d := range dates {
		rows = append(rows, fmt.Sprintf("  %-12s %10s %8s %9d", d, formatSeconds(totals[d]), formatHours(totals[d]), sessions[d]))
	}
	return strings.Join(rows, "\n")
}

func (r reportsModel) renderDayTable(w int) string {
	if len(r.day) == 0 {
		return mutedStyle.Render("  Nothing tracked on this day")
	}

	rows := []string{
		mutedStyle.Render(fmt.Sprintf("  %-22s %10s %9s %10s  %s", "Application", "Duration", "Sessions", "Average", "Active")),
		mutedStyle.Render("  " + strings.Repeat("─", min(w-6, 72))),
	}
	for _, s := range r.day {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(appColor(s.AppName))).Render("●")
		active := ""
		if s.FirstUsed != nil && s.LastUsed != nil {
			active = s.FirstUsed.Local().Format("15:04") + "–" + s.LastUsed.Local().Format("15:04")
		}
		rows = append(rows, fmt.Sprintf("  %s %-20s %10s %9d %10s  %s",
			dot, truncate(s.AppName, 20), formatSeconds(s.TotalDuration), s.SessionCount, formatSeconds(s.AvgDuration), active,
		))
	}
	return strings.Join(rows, "\n")
}

// renderAppsTable lists all-time application totals.
func (r reportsModel) renderAppsTable(w int) string {
	if len(r.apps) == 0 {
		return ""
	}
	rows := []string{
		titleStyle.Render("  All time"),
		mutedStyle.Render(fmt.Sprintf("  %-22s %10s  %s", "Application", "Total", "Last used")),
		mutedStyle.Render("  " + strings.Repeat("─", min(w-6, 52))),
	}
	for _, a := range r.apps {
		last := "never"
		if a.LastUsed != nil {
			last = humanize.Time(*a.LastUsed)
		}
		rows = append(rows, fmt.Sprintf("  %-22s %10s  %s", truncate(a.AppName, 22), formatHours(a.TotalTime), last))
	}
	return strings.Join(rows, "\n")
}

func (r reportsModel) renderLegend() string {
	totals := make(map[string]int64)
	for _, s := range r.week {
		totals[s.AppName] += s.TotalDuration
	}
	apps := make([]string, 0, len(totals))
	for a := range totals {
		apps = append(apps, a)
	}
	sort.Slice(apps, func(i, j int) bool {
		if totals[apps[i]] != totals[apps[j]] {
			return totals[apps[i]] > totals[apps[j]]
		}
		return apps[i] < apps[j]
	})

	var items []string
	for _, a := range apps {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(appColor(a))).Render("●")
		items = append(items, fmt.Sprintf("%s %s", dot, a))
	}
	if len(items) == 0 {
		return ""
	}
	return "  " + strings.Join(items, "  ")
}
