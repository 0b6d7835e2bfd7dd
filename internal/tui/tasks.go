package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/sadopc/focustrack/internal/store"
)

type formKind int

const (
	formNewFolder formKind = iota
	formRenameFolder
	formNewTask
	formEditTask
	formMoveTask
)

var formTitles = map[formKind]string{
	formNewFolder:    "New Folder",
	formRenameFolder: "Rename Folder",
	formNewTask:      "New Task",
	formEditTask:     "Edit Task",
	formMoveTask:     "Move Task",
}

// startTaskMsg asks the app to start tracking a task chosen outside the
// dashboard.
type startTaskMsg struct {
	task store.Task
}

type tasksModel struct {
	store  *store.Store
	width  int
	height int

	folders      []store.FolderStats
	tasks        []store.Task
	cursor       int
	taskCursor   int
	viewingTasks bool // true = viewing tasks of the selected folder

	formActive bool
	form       *huh.Form
	formKind   formKind

	// Form field pointers (survive value copies)
	formName   *string
	formDesc   *string
	formFolder *string

	editingID int64
}

func newTasksModel(s *store.Store) tasksModel {
	name, desc, folder := "", "", ""
	return tasksModel{
		store:      s,
		formName:   &name,
		formDesc:   &desc,
		formFolder: &folder,
	}
}

func (p *tasksModel) setSize(w, h int) {
	p.width = w
	p.height = h
}

type foldersDataMsg struct {
	folders []store.FolderStats
}

type tasksDataMsg struct {
	tasks []store.Task
}

func (p tasksModel) refresh() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := cmdContext()
		defer cancel()
		folders, err := p.store.ListFoldersWithStats(ctx)
		if err != nil {
			return errStatus("Load folders", err)
		}
		return foldersDataMsg{folders: folders}
	}
}

func (p tasksModel) refreshTasks() tea.Cmd {
	if p.cursor >= len(p.folders) {
		return nil
	}
	fid := p.folders[p.cursor].ID
	return func() tea.Msg {
		ctx, cancel := cmdContext()
		defer cancel()
		tasks, err := p.store.ListTasks(ctx, &fid)
		if err != nil {
			return errStatus("Load tasks", err)
		}
		return tasksDataMsg{tasks: tasks}
	}
}

// refreshAll reloads the folder stats and, when a folder is open, its tasks.
func (p tasksModel) refreshAll() tea.Cmd {
	if p.viewingTasks {
		return tea.Batch(p.refresh(), p.refreshTasks())
	}
	return p.refresh()
}

func (p tasksModel) selectedFolder() (store.FolderStats, bool) {
	if p.cursor >= len(p.folders) {
		return store.FolderStats{}, false
	}
	return p.folders[p.cursor], true
}

func (p tasksModel) selectedTask() (store.Task, bool) {
	if p.taskCursor >= len(p.tasks) {
		return store.Task{}, false
	}
	return p.tasks[p.taskCursor], true
}

func (p tasksModel) update(msg tea.Msg) (tasksModel, tea.Cmd) {
	if p.formActive && p.form != nil {
		return p.updateForm(msg)
	}

	switch msg := msg.(type) {
	case foldersDataMsg:
		p.folders = msg.folders
		if p.cursor >= len(p.folders) {
			p.cursor = max(0, len(p.folders)-1)
		}
		return p, nil

	case tasksDataMsg:
		p.tasks = msg.tasks
		if p.taskCursor >= len(p.tasks) {
			p.taskCursor = max(0, len(p.tasks)-1)
		}
		return p, nil

	case tea.KeyMsg:
		if p.viewingTasks {
			return p.updateTaskView(msg)
		}
		return p.updateFolderList(msg)
	}
	return p, nil
}

func (p tasksModel) updateFolderList(msg tea.KeyMsg) (tasksModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Up):
		if p.cursor > 0 {
			p.cursor--
		}
	case key.Matches(msg, keys.Down):
		if p.cursor < len(p.folders)-1 {
			p.cursor++
		}
	case key.Matches(msg, keys.Enter):
		if len(p.folders) > 0 {
			p.viewingTasks = true
			p.taskCursor = 0
			p.tasks = nil
			return p, p.refreshTasks()
		}
	case key.Matches(msg, keys.New):
		*p.formName = ""
		return p.showForm(formNewFolder)
	case key.Matches(msg, keys.Edit):
		if f, ok := p.selectedFolder(); ok {
			*p.formName = f.Name
			p.editingID = f.ID
			return p.showForm(formRenameFolder)
		}
	case key.Matches(msg, keys.Delete):
		if f, ok := p.selectedFolder(); ok {
			return p, p.deleteFolder(f)
		}
	}
	return p, nil
}

func (p tasksModel) updateTaskView(msg tea.KeyMsg) (tasksModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		p.viewingTasks = false
		return p, p.refresh()
	case key.Matches(msg, keys.Up):
		if p.taskCursor > 0 {
			p.taskCursor--
		}
	case key.Matches(msg, keys.Down):
		if p.taskCursor < len(p.tasks)-1 {
			p.taskCursor++
		}
	case key.Matches(msg, keys.New):
		*p.formName = ""
		*p.formDesc = ""
		return p.showForm(formNewTask)
	case key.Matches(msg, keys.Edit):
		if t, ok := p.selectedTask(); ok {
			*p.formName = t.Title
			*p.formDesc = t.Description
			p.editingID = t.ID
			return p.showForm(formEditTask)
		}
	case key.Matches(msg, keys.Move):
		if t, ok := p.selectedTask(); ok && len(p.folders) > 1 {
			*p.formFolder = strconv.FormatInt(t.FolderID, 10)
			p.editingID = t.ID
			return p.showForm(formMoveTask)
		}
	case key.Matches(msg, keys.Delete):
		if t, ok := p.selectedTask(); ok {
			return p, p.deleteTask(t)
		}
	case key.Matches(msg, keys.Start), key.Matches(msg, keys.Enter):
		if t, ok := p.selectedTask(); ok {
			return p, func() tea.Msg { return startTaskMsg{task: t} }
		}
	}
	return p, nil
}

func (p tasksModel) showForm(kind formKind) (tasksModel, tea.Cmd) {
	p.formKind = kind

	var fields []huh.Field
	switch kind {
	case formNewFolder, formRenameFolder:
		fields = append(fields, huh.NewInput().Title("Folder Name").Value(p.formName).Validate(notBlank))
	case formNewTask, formEditTask:
		fields = append(fields,
			huh.NewInput().Title("Title").Value(p.formName).Validate(notBlank),
			huh.NewText().Title("Description").Value(p.formDesc),
		)
	case formMoveTask:
		options := make([]huh.Option[string], 0, len(p.folders))
		for _, f := range p.folders {
			options = append(options, huh.NewOption(f.Name, strconv.FormatInt(f.ID, 10)))
		}
		fields = append(fields, huh.NewSelect[string]().Title("Folder").Options(options...).Value(p.formFolder))
	}

	p.form = huh.NewForm(huh.NewGroup(fields...)).WithShowHelp(true).WithShowErrors(true)
	p.formActive = true
	return p, p.form.Init()
}

func notBlank(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("must not be empty")
	}
	return nil
}

func (p tasksModel) updateForm(msg tea.Msg) (tasksModel, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if msg.String() == "esc" {
			p.formActive = false
			p.form = nil
			return p, nil
		}
	}

	form, cmd := p.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		p.form = f
	}

	if p.form.State == huh.StateCompleted {
		p.formActive = false
		return p, p.submitForm()
	}
	return p, cmd
}

// submitForm applies the completed form in the background and reloads.
func (p tasksModel) submitForm() tea.Cmd {
	kind := p.formKind
	name := strings.TrimSpace(*p.formName)
	desc := *p.formDesc
	folderStr := *p.formFolder
	editingID := p.editingID
	var folderID *int64
	if f, ok := p.selectedFolder(); ok {
		id := f.ID
		folderID = &id
	}

	apply := func() tea.Msg {
		ctx, cancel := cmdContext()
		defer cancel()

		var err error
		switch kind {
		case formNewFolder:
			_, err = p.store.CreateFolder(ctx, name)
		case formRenameFolder:
			_, err = p.store.RenameFolder(ctx, editingID, name)
		case formNewTask:
			_, err = p.store.CreateTask(ctx, folderID, name, desc)
		case formEditTask:
			_, err = p.store.UpdateTask(ctx, editingID, store.TaskPatch{Title: &name, Description: &desc})
		case formMoveTask:
			var target int64
			target, err = strconv.ParseInt(folderStr, 10, 64)
			if err == nil {
				_, err = p.store.MoveTask(ctx, editingID, target)
			}
		}
		if err != nil {
			return errStatus(formTitles[kind], err)
		}
		return statusMsg{text: formTitles[kind] + ": saved"}
	}
	return tea.Sequence(apply, p.refreshAll())
}

func (p tasksModel) deleteFolder(f store.FolderStats) tea.Cmd {
	del := func() tea.Msg {
		ctx, cancel := cmdContext()
		defer cancel()
		if err := p.store.DeleteFolder(ctx, f.ID); err != nil {
			return errStatus("Delete folder", err)
		}
		return statusMsg{text: fmt.Sprintf("Deleted %s, its tasks moved to %s", f.Name, store.DefaultFolderName)}
	}
	return tea.Sequence(del, p.refresh())
}

func (p tasksModel) deleteTask(t store.Task) tea.Cmd {
	del := func() tea.Msg {
		ctx, cancel := cmdContext()
		defer cancel()
		if err := p.store.DeleteTask(ctx, t.ID); err != nil {
			return errStatus("Delete task", err)
		}
		return statusMsg{text: "Deleted " + t.Title}
	}
	return tea.Sequence(del, p.refreshAll())
}

func (p tasksModel) view() string {
	if p.formActive && p.form != nil {
		title := titleStyle.Render(formTitles[p.formKind])
		content := lipgloss.JoinVertical(lipgloss.Left, title, "", p.form.View())
		return panelStyle.Width(p.width - 4).Render(content)
	}

	if p.viewingTasks {
		return p.renderTaskView()
	}
	return p.renderFolderList()
}

func (p tasksModel) renderFolderList() string {
	w := p.width - 4
	title := titleStyle.Render("Folders")

	rows := []string{title, ""}
	rows = append(rows, mutedStyle.Render(fmt.Sprintf("  %-26s %6s %10s", "Name", "Tasks", "Tracked")))

	for i, f := range p.folders {
		cursor := "  "
		style := normalItemStyle
		if i == p.cursor {
			cursor = "> "
			style = selectedItemStyle
		}
		name := truncate(f.Name, 26)
		if f.IsDefault {
			name = truncate(f.Name, 24) + " *"
		}
		rows = append(rows, style.Render(fmt.Sprintf("%s%-26s %6d %10s", cursor, name, f.TaskCount, formatSeconds(f.TotalDuration))))
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  n: new  r: rename  d: delete  enter: tasks  (* default)"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}

func (p tasksModel) renderTaskView() string {
	w := p.width - 4
	folder, _ := p.selectedFolder()
	title := titleStyle.Render(folder.Name + " · Tasks")

	if len(p.tasks) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			title,
			"",
			mutedStyle.Render("No tasks. Press n to add one."),
		)
		return panelStyle.Width(w).Render(content)
	}

	rows := []string{title, ""}
	for i, task := range p.tasks {
		cursor := "  "
		style := normalItemStyle
		if i == p.taskCursor {
			cursor = "> "
			style = selectedItemStyle
		}
		desc := ""
		if task.Description != "" {
			desc = mutedStyle.Render("  " + truncate(strings.ReplaceAll(task.Description, "\n", " "), w/2))
		}
		rows = append(rows, style.Render(cursor+task.Title)+desc)
	}

	rows = append(rows, "")
	rows = append(rows, mutedStyle.Render("  s/enter: track  n: new  r: edit  m: move  d: delete  esc: back"))

	return panelStyle.Width(w).Render(strings.Join(rows, "\n"))
}
