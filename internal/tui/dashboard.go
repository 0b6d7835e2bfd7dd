package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/focustrack/internal/stats"
	"github.com/sadopc/focustrack/internal/store"
)

const recentLimit = 6

type dashboardModel struct {
	store  *store.Store
	stats  *stats.Engine
	timer  timerModel
	width  int
	height int

	todayApps []stats.AppStat
	recent    []store.Activity
	tasks     []store.Task
	folders   map[int64]string

	// Task picker state
	picking      bool
	pickerCursor int
}

func newDashboardModel(s *store.Store, eng *stats.Engine, trk Tracker) dashboardModel {
	return dashboardModel{
		store:   s,
		stats:   eng,
		timer:   newTimerModel(trk),
		folders: map[int64]string{},
	}
}

func (d dashboardModel) Init() tea.Cmd {
	return d.loadData()
}

func (d *dashboardModel) setSize(w, h int) {
	d.width = w
	d.height = h
}

func (d dashboardModel) isRunning() bool { return d.timer.running() }

type dashboardDataMsg struct {
	todayApps []stats.AppStat
	recent    []store.Activity
	tasks     []store.Task
	folders   map[int64]string
}

func (d dashboardModel) loadData() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := cmdContext()
		defer cancel()

		apps, err := d.stats.Daily(ctx, "")
		if err != nil {
			return errStatus("Load today", err)
		}
		recent, _ := d.stats.Timeline(ctx, "", recentLimit)
		tasks, _ := d.store.ListTasks(ctx, nil)
		folders, _ := d.store.ListFoldersWithStats(ctx)

		names := make(map[int64]string, len(folders))
		for _, f := range folders {
			names[f.ID] = f.Name
		}
		return dashboardDataMsg{
			todayApps: apps,
			recent:    recent,
			tasks:     tasks,
			folders:   names,
		}
	}
}

func (d dashboardModel) update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case dashboardDataMsg:
		d.todayApps = msg.todayApps
		d.recent = msg.recent
		d.tasks = msg.tasks
		d.folders = msg.folders
		if d.pickerCursor >= len(d.tasks) {
			d.pickerCursor = max(0, len(d.tasks)-1)
		}
		return d, nil

	case tickMsg:
		wasRunning := d.timer.running()
		d.timer.tick()
		// The tracker stops on its own when its task is deleted.
		if wasRunning && !d.timer.running() {
			return d, d.loadData()
		}
		return d, nil

	case tea.KeyMsg:
		if d.picking {
			return d.updatePicker(msg)
		}

		switch {
		case key.Matches(msg, keys.Start):
			if !d.timer.available() {
				return d, func() tea.Msg { return errStatus("Start", errTrackerUnavailable) }
			}
			if len(d.tasks) == 0 {
				return d, func() tea.Msg {
					return statusMsg{text: "No tasks yet. Press 2 to go to Tasks and create one.", isError: true}
				}
			}
			if len(d.tasks) == 1 {
				return d.startTracking(d.tasks[0])
			}
			d.picking = true
			return d, nil

		case key.Matches(msg, keys.Stop):
			return d.stopTracking()
		}
	}
	return d, nil
}

func (d dashboardModel) updatePicker(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if d.pickerCursor > 0 {
			d.pickerCursor--
		}
	case key.Matches(msg, keys.Down):
		if d.pickerCursor < len(d.tasks)-1 {
			d.pickerCursor++
		}
	case key.Matches(msg, keys.Enter):
		d.picking = false
		if d.pickerCursor < len(d.tasks) {
			return d.startTracking(d.tasks[d.pickerCursor])
		}
	case key.Matches(msg, keys.Back):
		d.picking = false
	}
	return d, nil
}

func (d dashboardModel) startTracking(task store.Task) (dashboardModel, tea.Cmd) {
	if err := d.timer.start(task.ID); err != nil {
		return d, func() tea.Msg { return errStatus("Start", err) }
	}
	return d, tea.Batch(
		d.loadData(),
		func() tea.Msg { return trackerStartedMsg{task: task} },
	)
}

func (d dashboardModel) stopTracking() (dashboardModel, tea.Cmd) {
	if !d.timer.running() {
		return d, nil
	}
	if err := d.timer.stop(); err != nil {
		return d, func() tea.Msg { return errStatus("Stop", err) }
	}
	return d, tea.Batch(
		d.loadData(),
		func() tea.Msg { return trackerStoppedMsg{} },
	)
}

func (d dashboardModel) taskTitle(id int64) string {
	for _, t := range d.tasks {
		if t.ID == id {
			return t.Title
		}
	}
	return fmt.Sprintf("task #%d", id)
}

func (d dashboardModel) view() string {
	if d.width < 20 {
		return "Terminal too small"
	}

	contentWidth := d.width - 4

	trackerPanel := d.renderTrackerPanel(contentWidth)
	todayPanel := d.renderTodayPanel(contentWidth)

	var bottomPanel string
	if d.picking {
		bottomPanel = d.renderTaskPicker(contentWidth)
	} else {
		bottomPanel = d.renderRecentPanel(contentWidth)
	}

	return lipgloss.JoinVertical(lipgloss.Left, trackerPanel, todayPanel, bottomPanel)
}

func (d dashboardModel) renderTrackerPanel(w int) string {
	if !d.timer.available() {
		content := lipgloss.JoinVertical(lipgloss.Center,
			timerStyle.Width(w-6).Render("--:--:--"),
			errorStyle.Render("✕  TRACKER UNAVAILABLE"),
			mutedStyle.Render("No Hyprland or X11 session was found. Reports still work."),
		)
		return panelStyle.Width(w).Render(content)
	}

	if d.timer.running() {
		st := d.timer.status
		timeDisplay := timerRunningStyle.Width(w - 6).Render(formatDuration(d.timer.currentElapsed()))
		indicator := successStyle.Render("●  TRACKING")
		taskLine := highlightStyle.Render(d.taskTitle(d.timer.taskID()))

		app := st.CurrentApp
		if app == "" {
			app = "no focused window"
		}
		appLine := accentStyle.Render(app)
		if st.CurrentWindow != "" {
			appLine += mutedStyle.Render(" · ") + windowStyle.Render(truncate(st.CurrentWindow, w-len(app)-12))
		}

		content := lipgloss.JoinVertical(lipgloss.Center, timeDisplay, indicator, taskLine, appLine)
		return activePanelStyle.Width(w).Render(content)
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		timerStyle.Width(w-6).Render("00:00:00"),
		mutedStyle.Render("■  STOPPED"),
		mutedStyle.Render("Press s to start tracking a task"),
	)
	return panelStyle.Width(w).Render(content)
}

func (d dashboardModel) renderTodayPanel(w int) string {
	var total int64
	for _, a := range d.todayApps {
		total += a.TotalDuration
	}
	header := fmt.Sprintf("%s  %s", titleStyle.Render("Today"), highlightStyle.Render(formatSeconds(total)))

	if len(d.todayApps) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			header,
			mutedStyle.Render("Nothing tracked today"),
		)
		return panelStyle.Width(w).Render(content)
	}

	rows := []string{header}
	for _, a := range d.todayApps {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(appColor(a.AppName))).Render("●")
		rows = append(rows, fmt.Sprintf("  %s %-20s %s  (%d sessions, avg %s)",
			dot,
			truncate(a.AppName, 20),
			formatSeconds(a.TotalDuration),
			a.SessionCount,
			formatSeconds(a.AvgDuration),
		))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderRecentPanel(w int) string {
	title := titleStyle.Render("Recent Activity")
	if len(d.recent) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			mutedStyle.Render("No activity yet"),
		)
		return panelStyle.Width(w).Render(content)
	}

	rows := []string{title}
	for _, a := range d.recent {
		dur := "running"
		status := "●"
		if a.Duration != nil {
			dur = formatSeconds(*a.Duration)
			status = "✓"
		}
		rows = append(rows, fmt.Sprintf("  %s %s  %-14s %-18s %s",
			status,
			a.StartTime.Local().Format("15:04"),
			truncate(a.AppName, 14),
			truncate(d.taskTitle(a.TaskID), 18),
			dur,
		))
	}
	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (d dashboardModel) renderTaskPicker(w int) string {
	rows := []string{titleStyle.Render("Select Task")}
	for i, t := range d.tasks {
		cursor := "  "
		style := normalItemStyle
		if i == d.pickerCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		folder := mutedStyle.Render(" [" + d.folders[t.FolderID] + "]")
		rows = append(rows, style.Render(cursor+t.Title)+folder)
	}
	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  enter: track  esc: cancel"))

	return activePanelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
