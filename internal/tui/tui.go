package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goerrors "github.com/go-errors/errors"
	"github.com/golang/glog"
	"github.com/jesseduffield/gocui"

	"github.com/Joseda-hg/teamboard/internal/model"
	"github.com/Joseda-hg/teamboard/internal/optimistic"
	"github.com/Joseda-hg/teamboard/internal/screen"
	"github.com/Joseda-hg/teamboard/internal/unlock"
	"github.com/Joseda-hg/teamboard/internal/view"
)

const (
	viewHeader = "header"
	viewFooter = "footer"
	viewQueue  = "queue"
	viewBoard  = "board"
	viewNotes  = "notes"
	viewLog    = "reassignments"
	viewDetail = "detail"
	viewForm   = "form"
)

const actionTimeout = 15 * time.Second

var paneOrder = []string{viewQueue, viewBoard, viewNotes, viewLog}

type UI struct {
	env screen.Env
	gui *gocui.Gui
	ctx context.Context

	date   string
	filter model.TaskFilter

	queue *screen.Queue
	board *screen.Board
	notes *screen.Notes
	log   *screen.Reassignments
	stops map[string]func()

	selectedQueue   int
	selectedBoard   int
	selectedNotes   int
	selectedLog     int
	selectedSubtask int
	focus           string
	detailFrom      string

	form       *formState
	formEditor *formEditor
	status     string

	mu     sync.Mutex
	notice string
}

func newUI(ctx context.Context, env screen.Env, date string) *UI {
	u := &UI{
		ctx:    ctx,
		date:   date,
		filter: model.TaskFilter{Date: date},
		stops:  make(map[string]func()),
		focus:  viewQueue,
	}
	u.formEditor = &formEditor{ui: u}
	notify := env.Notify
	env.Notify = func(n optimistic.Notice) {
		if notify != nil {
			notify(n)
		}
		u.setNotice(n.Message)
	}
	u.env = env
	return u
}

// Run shows the dashboard for date until the user quits.
func Run(ctx context.Context, env screen.Env, date string) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	u := newUI(ctx, env, date)
	u.gui = gui
	defer u.unmount()

	gui.SetManagerFunc(u.layout)
	if err := u.bindKeys(gui); err != nil {
		return err
	}
	u.mount()
	if err := u.refreshAll(); err != nil {
		u.status = err.Error()
	}

	if err := gui.MainLoop(); err != nil && !goerrors.Is(err, gocui.ErrQuit) {
		return err
	}
	return nil
}

// mount opens every screen that is not already open.
func (u *UI) mount() {
	if u.queue == nil {
		u.queue = screen.NewQueue(u.env, u.date)
		u.watch(u.queue)
	}
	if u.notes == nil {
		u.notes = screen.NewNotes(u.env, u.date)
		u.watch(u.notes)
	}
	if u.board == nil && u.env.Session.IsAdmin() {
		u.board = screen.NewBoard(u.env, u.filter)
		u.watch(u.board)
	}
	if u.log == nil {
		u.log = screen.NewReassignments(u.env)
		u.watch(u.log)
	}
}

// watch re-renders on every change of s. Without a gui nothing listens.
func (u *UI) watch(s screen.Screen) {
	if u.gui == nil {
		return
	}
	changes, stop := s.Changes()
	u.stops[s.Name()] = stop
	gui := u.gui
	go func() {
		for range changes {
			gui.Update(func(*gocui.Gui) error { return nil })
		}
	}()
}

func (u *UI) closeScreen(s screen.Screen) {
	if stop, ok := u.stops[s.Name()]; ok {
		stop()
		delete(u.stops, s.Name())
	}
	s.Close()
}

func (u *UI) unmountDay() {
	if u.queue != nil {
		u.closeScreen(u.queue)
		u.queue = nil
	}
	if u.notes != nil {
		u.closeScreen(u.notes)
		u.notes = nil
	}
}

func (u *UI) unmount() {
	u.unmountDay()
	if u.board != nil {
		u.closeScreen(u.board)
		u.board = nil
	}
	if u.log != nil {
		u.closeScreen(u.log)
		u.log = nil
	}
}

func (u *UI) screens() []screen.Screen {
	out := make([]screen.Screen, 0, 4)
	if u.queue != nil {
		out = append(out, u.queue)
	}
	if u.board != nil {
		out = append(out, u.board)
	}
	if u.notes != nil {
		out = append(out, u.notes)
	}
	if u.log != nil {
		out = append(out, u.log)
	}
	return out
}

func (u *UI) refreshAll() error {
	ctx, cancel := u.actionContext()
	defer cancel()
	var first error
	for _, s := range u.screens() {
		if err := s.Refresh(ctx); err != nil && !errors.Is(err, view.ErrStale) {
			glog.Infof("[tui]refresh %s: %s", s.Name(), err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (u *UI) actionContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(u.ctx, actionTimeout)
}

func (u *UI) setNotice(msg string) {
	u.mu.Lock()
	u.notice = msg
	u.mu.Unlock()
	if u.gui != nil {
		u.gui.Update(func(*gocui.Gui) error { return nil })
	}
}

func (u *UI) lastNotice() string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.notice
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	global := []struct {
		key     any
		handler func(*gocui.Gui, *gocui.View) error
	}{
		{gocui.KeyCtrlC, u.quit},
		{'q', u.quit},
		{'r', u.reload},
		{gocui.KeyTab, u.switchFocus},
		{'1', u.focusQueue},
		{'2', u.focusBoard},
		{'3', u.focusNotes},
		{'4', u.focusLog},
		{'j', u.moveDown},
		{gocui.KeyArrowDown, u.moveDown},
		{'k', u.moveUp},
		{gocui.KeyArrowUp, u.moveUp},
		{gocui.KeyEnter, u.openDetail},
		{'x', u.complete},
		{'X', u.reject},
		{'d', u.deleteTask},
		{'R', u.reassign},
		{'[', u.previousDay},
		{']', u.nextDay},
		{'s', u.cycleStatus},
		{'p', u.togglePrevious},
	}
	for _, b := range global {
		if err := gui.SetKeybinding("", b.key, gocui.ModNone, b.handler); err != nil {
			return err
		}
	}

	for _, name := range []string{viewQueue, viewBoard, viewDetail} {
		if err := gui.SetKeybinding(name, gocui.KeySpace, gocui.ModNone, u.toggleSubtask); err != nil {
			return err
		}
	}
	if err := gui.SetKeybinding(viewDetail, gocui.KeyEsc, gocui.ModNone, u.closeDetail); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEnter, gocui.ModNone, u.submitForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyTab, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowDown, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowUp, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEsc, gocui.ModNone, u.cancelForm); err != nil {
		return err
	}
	return nil
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 0, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = true
	u.renderHeader(headerView)

	footerY1 := max(maxY-2, 1)
	footerY0 := max(footerY1-2, 1)
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault | gocui.AttrDim
	u.renderFooter(footerView)

	bodyTop := 1
	bodyBottom := footerY0 - 1
	if bodyBottom < bodyTop {
		return nil
	}
	l := computeLayout(maxX, bodyBottom-bodyTop+1)

	leftX1 := l.leftWidth - 1
	rightX0 := min(leftX1+1, maxX-1)
	queueY1 := bodyTop + l.queueHeight - 1
	notesY1 := bodyTop + l.notesHeight - 1
	logY1 := notesY1 + l.logHeight

	panes := []struct {
		name           string
		title          string
		x0, y0, x1, y1 int
		color          gocui.Attribute
		render         func(*gocui.View)
	}{
		{viewQueue, u.queueTitle(), 0, bodyTop, leftX1, queueY1, gocui.ColorRed, u.renderQueue},
		{viewBoard, "2 Board", 0, queueY1 + 1, leftX1, bodyBottom, gocui.ColorGreen, u.renderBoard},
		{viewNotes, "3 Notes", rightX0, bodyTop, maxX - 1, notesY1, gocui.ColorYellow, u.renderNotes},
		{viewLog, "4 Reassignments", rightX0, notesY1 + 1, maxX - 1, logY1, gocui.ColorCyan, u.renderLog},
		{viewDetail, "Detail", rightX0, logY1 + 1, maxX - 1, bodyBottom, gocui.ColorDefault, u.renderDetail},
	}
	for _, p := range panes {
		v, err := gui.SetView(p.name, p.x0, p.y0, p.x1, p.y1, 0)
		if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
			return err
		}
		if goerrors.Is(err, gocui.ErrUnknownView) {
			v.TitleColor = p.color
		}
		v.Title = p.title
		applyViewStyle(v, u.focus == p.name)
		p.render(v)
	}

	_, _ = gui.SetViewOnTop(viewHeader)
	_, _ = gui.SetViewOnTop(viewFooter)

	if u.form != nil {
		if err := u.showForm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewForm)
		if current := gui.CurrentView(); current == nil || current.Name() != u.focus {
			_, _ = gui.SetCurrentView(u.focus)
		}
	}
	gui.Cursor = u.form != nil
	return nil
}

type layout struct {
	leftWidth   int
	queueHeight int
	notesHeight int
	logHeight   int
}

func computeLayout(width, height int) layout {
	safeWidth := max(width-2, 20)
	safeHeight := max(height, 9)

	leftWidth := safeWidth / 2
	if leftWidth < 30 {
		leftWidth = min(30, safeWidth-10)
	}

	queueHeight := max(safeHeight/2, 4)
	notesHeight := max(safeHeight/3, 3)
	logHeight := max(safeHeight/4, 3)
	if notesHeight+logHeight > safeHeight-3 {
		logHeight = max(safeHeight-notesHeight-3, 1)
	}

	return layout{
		leftWidth:   leftWidth,
		queueHeight: queueHeight,
		notesHeight: notesHeight,
		logHeight:   logHeight,
	}
}

func (u *UI) queueTitle() string {
	if u.queue == nil {
		return "1 Queue"
	}
	c := u.queue.Counters()
	return fmt.Sprintf("1 Queue (%d pending, %d done, %d late)", c.Pending, c.Completed, c.Late)
}

func (u *UI) renderHeader(v *gocui.View) {
	v.Clear()
	status := u.filter.Status
	if status == "" {
		status = "any"
	}
	realtime := u.queue != nil && u.queue.Realtime()
	fmt.Fprintf(v, "User: %s (%s) | Date: %s | Status: %s | Previous: %s | Realtime: %s",
		u.env.Session.Name, u.env.Session.Role, u.date, status, onOff(u.filter.ShowPrevious), onOff(realtime))
}

func (u *UI) renderFooter(v *gocui.View) {
	v.Clear()
	fmt.Fprintln(v, "j/k move | tab/1-4 panes | enter detail | space subtask | x complete | X reject | d delete | R reassign")
	fmt.Fprintln(v, "[/] day | s status | p previous | r refresh | q quit")
	msg := u.status
	if msg == "" {
		msg = u.lastNotice()
	}
	fmt.Fprint(v, msg)
}

func listPrefix(index, selected int, focused bool) string {
	if index != selected {
		return " "
	}
	if focused {
		return ">"
	}
	return "*"
}

func (u *UI) renderQueue(v *gocui.View) {
	v.Clear()
	entries := u.queueEntries()
	focused := u.focus == viewQueue
	for i, entry := range entries {
		fmt.Fprintf(v, "%s %s\n", listPrefix(i, u.selectedQueue, focused), formatQueueEntry(entry))
	}
	if len(entries) > 0 && unlock.AllClear(entries) {
		fmt.Fprintln(v, "")
		fmt.Fprintln(v, "  All targets cleared")
	}
	if focused && len(entries) > 0 {
		v.SetCursor(0, min(u.selectedQueue, len(entries)-1))
	}
}

func (u *UI) renderBoard(v *gocui.View) {
	v.Clear()
	if u.board == nil {
		fmt.Fprint(v, "admin only")
		return
	}
	tasks := u.board.Tasks()
	focused := u.focus == viewBoard
	for i, task := range tasks {
		fmt.Fprintf(v, "%s %s\n", listPrefix(i, u.selectedBoard, focused), formatBoardTask(task))
	}
	if focused && len(tasks) > 0 {
		v.SetCursor(0, min(u.selectedBoard, len(tasks)-1))
	}
}

func (u *UI) renderNotes(v *gocui.View) {
	v.Clear()
	notes := u.noteItems()
	focused := u.focus == viewNotes
	for i, note := range notes {
		fmt.Fprintf(v, "%s %s\n", listPrefix(i, u.selectedNotes, focused), formatNote(note))
	}
}

func (u *UI) renderLog(v *gocui.View) {
	v.Clear()
	entries := u.logItems()
	focused := u.focus == viewLog
	for i, entry := range entries {
		fmt.Fprintf(v, "%s %s\n", listPrefix(i, u.selectedLog, focused), formatReassignment(entry))
	}
}

func (u *UI) renderDetail(v *gocui.View) {
	v.Clear()
	switch u.detailSource() {
	case viewNotes:
		notes := u.noteItems()
		if u.selectedNotes >= len(notes) {
			fmt.Fprint(v, "No note selected")
			return
		}
		note := notes[u.selectedNotes]
		fmt.Fprintf(v, "%s\nDate: %s\nTo: %s\n\n%s", note.Title, model.DayOf(note.Date), recipientsLabel(note), note.Content)
		return
	case viewLog:
		entries := u.logItems()
		if u.selectedLog >= len(entries) {
			fmt.Fprint(v, "No reassignment selected")
			return
		}
		fmt.Fprint(v, formatReassignment(entries[u.selectedLog]))
		return
	}

	task, ok := u.selectedTask()
	if !ok {
		fmt.Fprint(v, "No task selected")
		return
	}
	lines := []string{
		task.Title,
		fmt.Sprintf("Owner: %s", ownerName(task)),
		fmt.Sprintf("Time: %s - %s", task.StartTime, task.EndTime),
		fmt.Sprintf("Status: %s", statusLabel(task)),
	}
	if task.CompletionNote != "" {
		lines = append(lines, fmt.Sprintf("Note: %s", task.CompletionNote))
	}
	if task.Description != "" {
		lines = append(lines, "", task.Description)
	}
	if len(task.Subtasks) > 0 {
		lines = append(lines, "", "Subtasks:")
		for i, st := range task.Subtasks {
			mark := " "
			if st.Completed {
				mark = "x"
			}
			cursor := " "
			if i == u.selectedSubtask {
				cursor = ">"
			}
			lines = append(lines, fmt.Sprintf("%s [%s] %s", cursor, mark, st.Title))
		}
	}
	fmt.Fprint(v, strings.Join(lines, "\n"))
}

func (u *UI) queueEntries() []unlock.Entry {
	if u.queue == nil {
		return nil
	}
	return u.queue.Entries()
}

func (u *UI) boardTasks() []model.Task {
	if u.board == nil {
		return nil
	}
	return u.board.Tasks()
}

func (u *UI) noteItems() []model.DailyNote {
	if u.notes == nil {
		return nil
	}
	return u.notes.Items()
}

func (u *UI) logItems() []model.Reassignment {
	if u.log == nil {
		return nil
	}
	return u.log.Items()
}

// detailSource is the pane whose selection the detail pane shows.
func (u *UI) detailSource() string {
	if u.focus == viewDetail {
		return u.detailFrom
	}
	return u.focus
}

func (u *UI) selectedTask() (model.Task, bool) {
	switch u.detailSource() {
	case viewBoard:
		tasks := u.boardTasks()
		if u.selectedBoard >= 0 && u.selectedBoard < len(tasks) {
			return tasks[u.selectedBoard], true
		}
	case viewQueue:
		entries := u.queueEntries()
		if u.selectedQueue >= 0 && u.selectedQueue < len(entries) {
			return entries[u.selectedQueue].Task, true
		}
	}
	return model.Task{}, false
}

func (u *UI) selectedState() unlock.State {
	task, ok := u.selectedTask()
	if !ok {
		return unlock.Locked
	}
	return unlock.StateOf(u.queueEntries(), task.ID)
}

func (u *UI) switchFocus(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	next := paneOrder[0]
	for i, name := range paneOrder {
		if name == u.focus {
			next = paneOrder[(i+1)%len(paneOrder)]
			break
		}
	}
	return u.setFocus(gui, next)
}

func (u *UI) focusQueue(gui *gocui.Gui, _ *gocui.View) error { return u.setFocus(gui, viewQueue) }
func (u *UI) focusBoard(gui *gocui.Gui, _ *gocui.View) error { return u.setFocus(gui, viewBoard) }
func (u *UI) focusNotes(gui *gocui.Gui, _ *gocui.View) error { return u.setFocus(gui, viewNotes) }
func (u *UI) focusLog(gui *gocui.Gui, _ *gocui.View) error   { return u.setFocus(gui, viewLog) }

func (u *UI) setFocus(gui *gocui.Gui, name string) error {
	if u.inputActive() {
		return nil
	}
	u.focus = name
	u.selectedSubtask = 0
	if gui != nil {
		_, _ = gui.SetCurrentView(name)
	}
	return nil
}

func (u *UI) moveDown(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewQueue:
		if u.selectedQueue < len(u.queueEntries())-1 {
			u.selectedQueue++
			u.selectedSubtask = 0
		}
	case viewBoard:
		if u.selectedBoard < len(u.boardTasks())-1 {
			u.selectedBoard++
			u.selectedSubtask = 0
		}
	case viewNotes:
		if u.selectedNotes < len(u.noteItems())-1 {
			u.selectedNotes++
		}
	case viewLog:
		if u.selectedLog < len(u.logItems())-1 {
			u.selectedLog++
		}
	case viewDetail:
		if task, ok := u.selectedTask(); ok && u.selectedSubtask < len(task.Subtasks)-1 {
			u.selectedSubtask++
		}
	}
	return nil
}

func (u *UI) moveUp(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	switch u.focus {
	case viewQueue:
		if u.selectedQueue > 0 {
			u.selectedQueue--
			u.selectedSubtask = 0
		}
	case viewBoard:
		if u.selectedBoard > 0 {
			u.selectedBoard--
			u.selectedSubtask = 0
		}
	case viewNotes:
		if u.selectedNotes > 0 {
			u.selectedNotes--
		}
	case viewLog:
		if u.selectedLog > 0 {
			u.selectedLog--
		}
	case viewDetail:
		if u.selectedSubtask > 0 {
			u.selectedSubtask--
		}
	}
	return nil
}

func (u *UI) openDetail(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.focus == viewDetail {
		return u.closeDetail(gui, nil)
	}
	u.detailFrom = u.focus
	u.selectedSubtask = 0
	u.focus = viewDetail
	if gui != nil {
		_, _ = gui.SetCurrentView(viewDetail)
	}
	return nil
}

func (u *UI) closeDetail(gui *gocui.Gui, _ *gocui.View) error {
	if u.focus != viewDetail {
		return nil
	}
	return u.setFocus(gui, u.detailFrom)
}

func (u *UI) reload(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.status = ""
	if err := u.refreshAll(); err != nil {
		u.status = err.Error()
	}
	return nil
}

func (u *UI) toggleSubtask(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.detailSource() != viewQueue {
		u.status = "subtasks are checked off from the queue"
		return nil
	}
	task, ok := u.selectedTask()
	if !ok {
		return nil
	}
	if len(task.Subtasks) == 0 {
		u.status = "task has no subtasks"
		return nil
	}

	ctx, cancel := u.actionContext()
	defer cancel()
	if err := u.queue.ToggleSubtask(ctx, task.ID, min(u.selectedSubtask, len(task.Subtasks)-1)); err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = ""
	return nil
}

func (u *UI) complete(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	source := u.detailSource()
	task, ok := u.selectedTask()
	if !ok {
		return nil
	}
	if source == viewQueue && u.selectedState() != unlock.Current {
		u.status = fmt.Sprintf("%q is %s", task.Title, u.selectedState())
		return nil
	}
	u.openForm(gui, newForm(formComplete, source, task))
	return nil
}

func (u *UI) reject(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.board == nil || u.detailSource() != viewBoard {
		u.status = "tasks are rejected from the board"
		return nil
	}
	task, ok := u.selectedTask()
	if !ok {
		return nil
	}
	u.openForm(gui, newForm(formReject, viewBoard, task))
	return nil
}

func (u *UI) reassign(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.board == nil || u.detailSource() != viewBoard {
		u.status = "tasks are reassigned from the board"
		return nil
	}
	task, ok := u.selectedTask()
	if !ok {
		return nil
	}
	u.openForm(gui, newForm(formReassign, viewBoard, task))
	return nil
}

func (u *UI) deleteTask(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	if u.board == nil || u.detailSource() != viewBoard {
		return nil
	}
	task, ok := u.selectedTask()
	if !ok {
		return nil
	}

	ctx, cancel := u.actionContext()
	defer cancel()
	if err := u.board.Delete(ctx, task.ID); err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = ""
	if u.selectedBoard >= len(u.boardTasks()) {
		u.selectedBoard = max(len(u.boardTasks())-1, 0)
	}
	return nil
}

func (u *UI) previousDay(gui *gocui.Gui, _ *gocui.View) error { return u.shiftDay(-1) }
func (u *UI) nextDay(gui *gocui.Gui, _ *gocui.View) error     { return u.shiftDay(1) }

// shiftDay remounts the day-bound screens and moves the board filter.
func (u *UI) shiftDay(days int) error {
	if u.inputActive() {
		return nil
	}
	date, err := shiftDate(u.date, days)
	if err != nil {
		u.status = err.Error()
		return nil
	}
	u.date = date
	u.filter.Date = date
	u.selectedQueue, u.selectedNotes, u.selectedBoard, u.selectedSubtask = 0, 0, 0, 0

	u.unmountDay()
	u.mount()

	ctx, cancel := u.actionContext()
	defer cancel()
	u.status = ""
	for _, s := range []screen.Screen{u.queue, u.notes} {
		if err := s.Refresh(ctx); err != nil && !errors.Is(err, view.ErrStale) {
			u.status = err.Error()
		}
	}
	return u.applyFilter(ctx)
}

func (u *UI) cycleStatus(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.filter.Status = nextStatusFilter(u.filter.Status)
	ctx, cancel := u.actionContext()
	defer cancel()
	return u.applyFilter(ctx)
}

func (u *UI) togglePrevious(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.filter.ShowPrevious = !u.filter.ShowPrevious
	ctx, cancel := u.actionContext()
	defer cancel()
	return u.applyFilter(ctx)
}

func (u *UI) applyFilter(ctx context.Context) error {
	if u.board == nil {
		return nil
	}
	if err := u.board.SetFilter(ctx, u.filter); err != nil && !errors.Is(err, view.ErrStale) {
		u.status = err.Error()
	}
	if u.selectedBoard >= len(u.boardTasks()) {
		u.selectedBoard = max(len(u.boardTasks())-1, 0)
	}
	return nil
}

func (u *UI) openForm(gui *gocui.Gui, form *formState) {
	u.form = form
	u.status = ""
}

func (u *UI) showForm(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := max(50, maxX/2)
	height := len(u.form.fields) + 1
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	v, err := gui.SetView(viewForm, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	v.Title = u.form.title()
	v.Wrap = true
	v.Editable = true
	v.KeybindOnEdit = true
	v.Editor = u.formEditor
	u.renderForm(v)
	_, _ = gui.SetCurrentView(viewForm)
	return nil
}

func (u *UI) renderForm(v *gocui.View) {
	if u.form == nil || v == nil {
		return
	}
	v.Clear()
	for index, field := range u.form.fields {
		prefix := "  "
		if index == u.form.index {
			prefix = "> "
		}
		fmt.Fprintf(v, "%s%s: %s\n", prefix, field.Label, field.Value)
	}
	current := u.form.fields[u.form.index]
	v.SetCursor(len([]rune(current.Label))+len([]rune(current.Value))+4, u.form.index)
}

func (u *UI) nextFormField(gui *gocui.Gui, v *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index < len(u.form.fields)-1 {
		u.form.index++
	}
	u.renderForm(v)
	return nil
}

func (u *UI) prevFormField(gui *gocui.Gui, v *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index > 0 {
		u.form.index--
	}
	u.renderForm(v)
	return nil
}

func (u *UI) submitForm(gui *gocui.Gui, _ *gocui.View) error {
	form := u.form
	if form == nil {
		return nil
	}

	ctx, cancel := u.actionContext()
	defer cancel()

	var err error
	switch form.kind {
	case formComplete:
		if form.source == viewBoard && u.board != nil {
			err = u.board.SetStatus(ctx, form.taskID, model.StatusCompleted, form.value(fieldNote))
		} else {
			err = u.queue.Complete(ctx, form.taskID, form.value(fieldNote))
		}
	case formReject:
		err = u.board.SetStatus(ctx, form.taskID, model.StatusRejected, form.value(fieldNote))
	case formReassign:
		input, perr := parseReassign(form.fields)
		if perr != nil {
			u.status = perr.Error()
			return nil
		}
		err = u.board.Reassign(ctx, form.taskID, input)
	}

	u.closeForm(gui)
	if err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = ""
	return nil
}

func (u *UI) cancelForm(gui *gocui.Gui, _ *gocui.View) error {
	u.closeForm(gui)
	return nil
}

func (u *UI) closeForm(gui *gocui.Gui) {
	u.form = nil
	if gui == nil {
		return
	}
	_ = gui.DeleteView(viewForm)
	_, _ = gui.SetCurrentView(u.focus)
}

func (u *UI) inputActive() bool {
	return u.form != nil
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	if u.form != nil {
		return nil
	}
	return gocui.ErrQuit
}

func applyViewStyle(v *gocui.View, focused bool) {
	v.Frame = true
	v.Highlight = false
	if focused {
		v.FrameColor = gocui.ColorCyan
		v.TitleColor = gocui.ColorCyan
	} else {
		v.FrameColor = gocui.ColorDefault
	}
}
