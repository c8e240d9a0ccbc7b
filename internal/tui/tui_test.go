package tui

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sadopc/lernzeit/internal/export"
	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/repository"
	"github.com/sadopc/lernzeit/internal/store"
	"github.com/sadopc/lernzeit/internal/timer"
)

var testNow = time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type testEnv struct {
	repo   *repository.Repository
	engine *timer.Engine
	clock  *fakeClock
	deps   *deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	repo, err := repository.New(s)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	clk := &fakeClock{t: testNow}
	engine := timer.New(repo, timer.WithClock(clk), timer.WithInterval(0))
	t.Cleanup(engine.Close)
	return &testEnv{
		repo:   repo,
		engine: engine,
		clock:  clk,
		deps: &deps{
			repo:   repo,
			engine: engine,
			loc:    time.UTC,
			now:    clk.Now,
			log:    slog.New(slog.DiscardHandler),
		},
	}
}

func (e *testEnv) newApp(t *testing.T) App {
	t.Helper()
	return NewApp(e.repo, e.engine,
		WithLocation(time.UTC),
		WithClock(e.clock.Now),
		WithExportDir(t.TempDir()),
	)
}

func (e *testEnv) addSession(t *testing.T, subject model.ID, start time.Time, secs int64, notes string) model.Session {
	t.Helper()
	s, err := e.repo.AddEntry(model.Session{SubjectID: subject, StartTime: start, Duration: secs, Notes: notes})
	if err != nil {
		t.Fatalf("add entry: %v", err)
	}
	return s
}

func keyMsg(k string) tea.KeyMsg {
	switch k {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

// collect runs cmd and flattens batches into their messages. It must only
// be used on commands that do not wait on timers.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func statusText(msgs []tea.Msg) string {
	for _, m := range msgs {
		if s, ok := m.(statusMsg); ok {
			return s.text
		}
	}
	return ""
}

func hasChanged(msgs []tea.Msg) bool {
	for _, m := range msgs {
		if _, ok := m.(dataChangedMsg); ok {
			return true
		}
	}
	return false
}

func updateApp(t *testing.T, a App, msg tea.Msg) (App, tea.Cmd) {
	t.Helper()
	m, cmd := a.Update(msg)
	app, ok := m.(App)
	if !ok {
		t.Fatalf("Update returned %T", m)
	}
	return app, cmd
}

// ============================================================
// Timer model
// ============================================================

func TestTimerModelLifecycle(t *testing.T) {
	e := newTestEnv(t)
	tm := newTimerModel(e.engine)
	if !tm.idle() {
		t.Fatal("timer should start idle")
	}

	if err := tm.start("1"); err != nil {
		t.Fatal(err)
	}
	if !tm.running() || tm.subject() != "1" {
		t.Fatalf("after start: %+v", tm.state)
	}

	e.clock.advance(90 * time.Second)
	tm.refresh()
	if tm.elapsed() != 90 {
		t.Fatalf("elapsed = %d, want 90", tm.elapsed())
	}

	if err := tm.toggle(); err != nil {
		t.Fatal(err)
	}
	if !tm.paused() {
		t.Fatal("toggle should pause")
	}
	e.clock.advance(time.Hour)
	tm.refresh()
	if tm.elapsed() != 90 {
		t.Fatalf("paused timer grew to %d", tm.elapsed())
	}

	if err := tm.toggle(); err != nil {
		t.Fatal(err)
	}
	if !tm.running() {
		t.Fatal("toggle should resume")
	}
	e.clock.advance(30 * time.Second)

	s, err := tm.finish("Kapitel 3")
	if err != nil {
		t.Fatal(err)
	}
	if s.Duration != 120 || s.Notes != "Kapitel 3" || s.SubjectID != "1" {
		t.Fatalf("saved session = %+v", s)
	}
	if !tm.idle() {
		t.Fatal("finish should reset the timer")
	}
	if _, ok := e.repo.TimerState(); ok {
		t.Fatal("finish should clear the persisted timer")
	}
}

func TestTimerModelToggleWhenIdle(t *testing.T) {
	e := newTestEnv(t)
	tm := newTimerModel(e.engine)

	if err := tm.toggle(); err != nil {
		t.Fatal(err)
	}
	if !tm.idle() {
		t.Fatal("toggle should not start the timer")
	}
}

func TestTimerModelPicksUpRecoveredTimer(t *testing.T) {
	e := newTestEnv(t)
	if err := e.repo.SaveTimerState(model.TimerState{
		IsRunning:          false,
		AccumulatedSeconds: 300,
		SubjectID:          "2",
		LastPersistedAt:    testNow.UnixMilli(),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := e.engine.Recover(); err != nil {
		t.Fatal(err)
	}

	tm := newTimerModel(e.engine)
	if !tm.paused() || tm.elapsed() != 300 || tm.subject() != "2" {
		t.Fatalf("recovered state = %+v", tm.state)
	}
}

// ============================================================
// Dashboard
// ============================================================

func newTestDashboard(t *testing.T, e *testEnv) dashboardModel {
	t.Helper()
	d := newDashboardModel(e.deps)
	d.setSize(100, 40)
	d, _ = d.update(d.loadData()())
	return d
}

func TestDashboardPickerStartsSelectedSubject(t *testing.T) {
	e := newTestEnv(t)
	d := newTestDashboard(t, e)

	d, _ = d.update(keyMsg("s"))
	if !d.picking {
		t.Fatal("start with several subjects should open the picker")
	}
	d, _ = d.update(keyMsg("down"))
	d, cmd := d.update(keyMsg("enter"))

	if d.picking {
		t.Fatal("picker should close")
	}
	if !d.timer.running() || d.timer.subject() != "2" {
		t.Fatalf("timer = %+v", d.timer.state)
	}
	if got := statusText(collect(cmd)); got != "Started Mathe" {
		t.Fatalf("status = %q", got)
	}
	if !strings.Contains(d.view(), "RUNNING") {
		t.Fatal("view should show the running timer")
	}
}

func TestDashboardStartWithOneSubject(t *testing.T) {
	e := newTestEnv(t)
	for _, id := range []model.ID{"2", "3"} {
		if err := e.repo.DeleteSubject(id); err != nil {
			t.Fatal(err)
		}
	}
	d := newTestDashboard(t, e)

	d, _ = d.update(keyMsg("s"))
	if d.picking {
		t.Fatal("a single subject should start without the picker")
	}
	if !d.timer.running() || d.timer.subject() != "1" {
		t.Fatalf("timer = %+v", d.timer.state)
	}
}

func TestDashboardStartWithoutSubjects(t *testing.T) {
	e := newTestEnv(t)
	for _, id := range []model.ID{"1", "2", "3"} {
		if err := e.repo.DeleteSubject(id); err != nil {
			t.Fatal(err)
		}
	}
	d := newTestDashboard(t, e)

	d, cmd := d.update(keyMsg("s"))
	msgs := collect(cmd)
	if len(msgs) != 1 || !msgs[0].(statusMsg).isError {
		t.Fatalf("expected an error status, got %v", msgs)
	}
	if !d.timer.idle() {
		t.Fatal("timer should stay idle")
	}
}

func TestDashboardStartWhilePausedResumes(t *testing.T) {
	e := newTestEnv(t)
	d := newTestDashboard(t, e)
	if err := d.timer.start("1"); err != nil {
		t.Fatal(err)
	}
	d, _ = d.update(keyMsg(" "))
	if !d.timer.paused() {
		t.Fatal("space should pause")
	}

	d, _ = d.update(keyMsg("s"))
	if d.picking || !d.timer.running() {
		t.Fatalf("start on a paused timer should resume, picking=%v state=%+v", d.picking, d.timer.state)
	}
}

func TestDashboardDiscardAsksFirst(t *testing.T) {
	e := newTestEnv(t)
	d := newTestDashboard(t, e)
	if err := d.timer.start("1"); err != nil {
		t.Fatal(err)
	}
	e.clock.advance(time.Minute)

	d, _ = d.update(keyMsg("x"))
	if !d.confirmDiscard {
		t.Fatal("discarding tracked time should ask first")
	}
	if !strings.Contains(d.view(), "Discard 01:00 of tracked time?") {
		t.Fatal("view should show the discard prompt")
	}

	d, _ = d.update(keyMsg("n"))
	if d.confirmDiscard || !d.timer.running() {
		t.Fatal("any key but y should keep the timer")
	}

	d, _ = d.update(keyMsg("x"))
	d, cmd := d.update(keyMsg("y"))
	if !d.timer.idle() {
		t.Fatal("y should discard the timer")
	}
	if got := statusText(collect(cmd)); got != "Timer stopped, nothing saved" {
		t.Fatalf("status = %q", got)
	}
	if len(e.repo.Entries()) != 0 {
		t.Fatal("discard must not save a session")
	}
}

func TestDashboardDiscardWithoutTrackedTime(t *testing.T) {
	e := newTestEnv(t)
	d := newTestDashboard(t, e)
	if err := d.timer.start("1"); err != nil {
		t.Fatal(err)
	}

	d, _ = d.update(keyMsg("x"))
	if d.confirmDiscard {
		t.Fatal("nothing tracked, nothing to confirm")
	}
	if !d.timer.idle() {
		t.Fatal("timer should be stopped")
	}
}

func TestDashboardFinishOpensNoteForm(t *testing.T) {
	e := newTestEnv(t)
	d := newTestDashboard(t, e)
	if err := d.timer.start("1"); err != nil {
		t.Fatal(err)
	}

	d, cmd := d.update(keyMsg("f"))
	if d.formActive {
		t.Fatal("finish without tracked time should not open the form")
	}
	if got := statusText(collect(cmd)); got != "Nothing to save yet" {
		t.Fatalf("status = %q", got)
	}

	e.clock.advance(10 * time.Minute)
	d, _ = d.update(keyMsg("f"))
	if !d.formActive {
		t.Fatal("finish should open the note form")
	}
	d, _ = d.update(keyMsg("esc"))
	if d.formActive || !d.timer.running() {
		t.Fatal("esc should close the form and keep the timer")
	}
}

func TestDashboardFinishSavesSession(t *testing.T) {
	e := newTestEnv(t)
	d := newTestDashboard(t, e)
	if err := d.timer.start("1"); err != nil {
		t.Fatal(err)
	}
	e.clock.advance(25 * time.Minute)

	d, cmd := d.finish("  Rekursion ")
	msgs := collect(cmd)
	if got := statusText(msgs); got != "Saved 25min for Informatik" {
		t.Fatalf("status = %q", got)
	}
	if !hasChanged(msgs) {
		t.Fatal("finish should announce changed data")
	}

	entries := e.repo.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].Duration != 1500 || entries[0].Notes != "Rekursion" {
		t.Fatalf("entry = %+v", entries[0])
	}
	if !d.timer.idle() {
		t.Fatal("timer should be idle after finish")
	}

	d, _ = d.update(d.loadData()())
	if d.overview.TodaySeconds != 1500 || len(d.recent) != 1 {
		t.Fatalf("overview today = %d, recent = %d", d.overview.TodaySeconds, len(d.recent))
	}
	if !strings.Contains(d.view(), "Rekursion") {
		t.Fatal("recent sessions should list the note")
	}
}

func TestDashboardRecentIsLimited(t *testing.T) {
	e := newTestEnv(t)
	for i := range 8 {
		e.addSession(t, "1", testNow.Add(-time.Duration(i+1)*time.Hour), 600, "")
	}
	d := newTestDashboard(t, e)

	if len(d.recent) != recentLimit {
		t.Fatalf("recent = %d, want %d", len(d.recent), recentLimit)
	}
	if !d.recent[0].StartTime.Equal(testNow.Add(-time.Hour)) {
		t.Fatalf("newest first, got %v", d.recent[0].StartTime)
	}
}

// ============================================================
// Subjects
// ============================================================

func newTestSubjects(t *testing.T, e *testEnv) subjectsModel {
	t.Helper()
	p := newSubjectsModel(e.deps)
	p.setSize(100, 40)
	p, _ = p.update(p.refresh()())
	return p
}

func TestSubjectsAdd(t *testing.T) {
	e := newTestEnv(t)
	p := newTestSubjects(t, e)

	p, _ = p.update(keyMsg("n"))
	if !p.formActive || p.editingID != "" {
		t.Fatal("n should open an empty subject form")
	}
	*p.formName = "  Physik "
	*p.formColor = "teal"
	*p.formGoal = "120"

	msgs := collect(p.save())
	if got := statusText(msgs); got != "Added Physik" {
		t.Fatalf("status = %q", got)
	}
	subjects := e.repo.Subjects()
	last := subjects[len(subjects)-1]
	if last.Name != "Physik" || last.Color != "teal" || last.GoalMinutes != 120 {
		t.Fatalf("added subject = %+v", last)
	}
}

func TestSubjectsEdit(t *testing.T) {
	e := newTestEnv(t)
	p := newTestSubjects(t, e)

	p, _ = p.update(keyMsg("enter"))
	if !p.formActive || p.editingID != "1" {
		t.Fatalf("enter should edit the first subject, editing %q", p.editingID)
	}
	if *p.formName != "Informatik" || *p.formGoal != "" {
		t.Fatalf("form prefilled with %q / %q", *p.formName, *p.formGoal)
	}
	*p.formName = "Info"
	*p.formGoal = "45"

	collect(p.save())
	s, ok := e.repo.Subject("1")
	if !ok || s.Name != "Info" || s.GoalMinutes != 45 || s.Color != "blue" {
		t.Fatalf("edited subject = %+v", s)
	}
}

func TestSubjectsRejectsBadGoal(t *testing.T) {
	e := newTestEnv(t)
	p := newTestSubjects(t, e)
	p, _ = p.update(keyMsg("n"))
	*p.formName = "Physik"
	*p.formGoal = "viel"

	msgs := collect(p.save())
	if len(msgs) != 1 || !msgs[0].(statusMsg).isError {
		t.Fatalf("expected an error status, got %v", msgs)
	}
	if len(e.repo.Subjects()) != 3 {
		t.Fatal("nothing should be added")
	}
}

func TestSubjectsDeleteKeepsSessions(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "2", testNow.Add(-time.Hour), 1800, "")
	p := newTestSubjects(t, e)

	// BySubject puts Mathe first as the only subject with time.
	if p.totals[0].Subject.ID != "2" {
		t.Fatalf("first row = %+v", p.totals[0].Subject)
	}
	p, _ = p.update(keyMsg("d"))
	if !p.confirmDelete {
		t.Fatal("d should ask for confirmation")
	}
	p, cmd := p.update(keyMsg("y"))
	msgs := collect(cmd)
	if got := statusText(msgs); got != "Deleted Mathe" {
		t.Fatalf("status = %q", got)
	}
	if _, ok := e.repo.Subject("2"); ok {
		t.Fatal("subject should be gone")
	}
	if len(e.repo.Entries()) != 1 {
		t.Fatal("sessions must survive subject deletion")
	}

	for _, m := range msgs {
		if data, ok := m.(subjectsDataMsg); ok {
			p, _ = p.update(data)
		}
	}
	if !strings.Contains(p.view(), "Unknown") {
		t.Fatal("orphaned time should show under Unknown")
	}
}

func TestSubjectsUnknownRowIsReadOnly(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "gone", testNow.Add(-time.Hour), 1800, "")
	p := newTestSubjects(t, e)

	if p.totals[0].Subject.Name != "Unknown" {
		t.Fatalf("first row = %+v", p.totals[0].Subject)
	}
	p, _ = p.update(keyMsg("d"))
	if p.confirmDelete {
		t.Fatal("the Unknown row cannot be deleted")
	}
	p, _ = p.update(keyMsg("enter"))
	if p.formActive {
		t.Fatal("the Unknown row cannot be edited")
	}
}

// ============================================================
// History
// ============================================================

func newTestHistory(t *testing.T, e *testEnv) historyModel {
	t.Helper()
	h := newHistoryModel(e.deps)
	h.setSize(120, 40)
	h, _ = h.update(h.refresh()())
	return h
}

func TestHistoryFilterBySubject(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "1", testNow.Add(-3*time.Hour), 600, "Graphen")
	e.addSession(t, "2", testNow.Add(-2*time.Hour), 900, "Integrale")
	e.addSession(t, "1", testNow.Add(-time.Hour), 1200, "Kapitel 4")
	h := newTestHistory(t, e)

	if len(h.sessions) != 3 {
		t.Fatalf("sessions = %d, want 3", len(h.sessions))
	}
	if h.sessions[0].Notes != "Kapitel 4" {
		t.Fatalf("newest first, got %q", h.sessions[0].Notes)
	}

	h, cmd := h.update(keyMsg("c"))
	h, _ = h.update(cmd())
	if len(h.sessions) != 2 {
		t.Fatalf("Informatik sessions = %d, want 2", len(h.sessions))
	}
	if !strings.Contains(h.view(), "Informatik") {
		t.Fatal("view should name the filter")
	}

	h, cmd = h.update(keyMsg("esc"))
	h, _ = h.update(cmd())
	if len(h.sessions) != 3 || h.filter != 0 {
		t.Fatal("esc should clear the filter")
	}
}

func TestHistorySearch(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "1", testNow.Add(-2*time.Hour), 600, "Graphen")
	e.addSession(t, "2", testNow.Add(-time.Hour), 900, "Integrale")
	h := newTestHistory(t, e)

	h, _ = h.update(keyMsg("/"))
	if !h.capturing() {
		t.Fatal("/ should focus the search box")
	}
	h.search.SetValue("mathe")
	h, _ = h.update(h.refresh()())
	if len(h.sessions) != 1 || h.sessions[0].Notes != "Integrale" {
		t.Fatalf("search by subject name = %+v", h.sessions)
	}

	h, _ = h.update(keyMsg("enter"))
	if h.capturing() {
		t.Fatal("enter should leave the search box")
	}
}

func TestHistoryLogSession(t *testing.T) {
	e := newTestEnv(t)
	h := newTestHistory(t, e)

	h, _ = h.update(keyMsg("n"))
	if !h.formActive || h.editingID != "" {
		t.Fatal("n should open the log form")
	}
	if *h.formSubject != "1" || *h.formMinutes != "30" || *h.formStart != "2026-03-11 08:30" {
		t.Fatalf("defaults = %q %q %q", *h.formSubject, *h.formMinutes, *h.formStart)
	}
	*h.formSubject = "3"
	*h.formStart = "2026-03-10 17:15"
	*h.formMinutes = "45"
	*h.formNote = "Vokabeln"

	msgs := collect(h.save())
	if got := statusText(msgs); got != "Logged 45min for Englisch" {
		t.Fatalf("status = %q", got)
	}
	entries := e.repo.Entries()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	want := time.Date(2026, 3, 10, 17, 15, 0, 0, time.UTC)
	got := entries[0]
	if !got.StartTime.Equal(want) || !got.EndTime.Equal(want.Add(45*time.Minute)) || got.Duration != 2700 {
		t.Fatalf("entry = %+v", got)
	}
}

func TestHistoryEditRecomputesEnd(t *testing.T) {
	e := newTestEnv(t)
	orig := e.addSession(t, "1", testNow.Add(-2*time.Hour), 600, "alt")
	h := newTestHistory(t, e)

	h, _ = h.update(keyMsg("enter"))
	if !h.formActive || h.editingID != orig.ID {
		t.Fatal("enter should edit the selected session")
	}
	if *h.formMinutes != "10" || *h.formNote != "alt" {
		t.Fatalf("prefilled %q / %q", *h.formMinutes, *h.formNote)
	}
	*h.formMinutes = "12.5"
	*h.formNote = "neu"

	if got := statusText(collect(h.save())); got != "Session updated" {
		t.Fatalf("status = %q", got)
	}
	s := e.repo.Entries()[0]
	if s.Duration != 750 || s.Notes != "neu" || !s.EndTime.Equal(s.StartTime.Add(750*time.Second)) {
		t.Fatalf("edited = %+v", s)
	}
}

func TestHistoryDelete(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "1", testNow.Add(-2*time.Hour), 600, "")
	h := newTestHistory(t, e)

	h, _ = h.update(keyMsg("d"))
	h, _ = h.update(keyMsg("n"))
	if len(e.repo.Entries()) != 1 {
		t.Fatal("declined delete should keep the session")
	}

	h, _ = h.update(keyMsg("d"))
	_, cmd := h.update(keyMsg("y"))
	if got := statusText(collect(cmd)); got != "Session deleted" {
		t.Fatalf("status = %q", got)
	}
	if len(e.repo.Entries()) != 0 {
		t.Fatal("session should be deleted")
	}
}

func TestHistoryLogNeedsSubjects(t *testing.T) {
	e := newTestEnv(t)
	for _, id := range []model.ID{"1", "2", "3"} {
		if err := e.repo.DeleteSubject(id); err != nil {
			t.Fatal(err)
		}
	}
	h := newTestHistory(t, e)

	h, cmd := h.update(keyMsg("n"))
	if h.formActive {
		t.Fatal("form needs at least one subject")
	}
	if msgs := collect(cmd); len(msgs) != 1 || !msgs[0].(statusMsg).isError {
		t.Fatalf("expected an error status, got %v", msgs)
	}
}

// ============================================================
// Reports
// ============================================================

func TestReportsLastSevenDays(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "1", testNow.Add(-time.Hour), 3600, "")
	e.addSession(t, "gone", testNow.Add(-25*time.Hour), 1800, "")
	e.addSession(t, "2", testNow.AddDate(0, 0, -10), 900, "")

	r := newReportsModel(e.deps)
	r.setSize(120, 40)
	r, _ = r.update(r.refresh()())

	days := r.days()
	if len(days) != 7 {
		t.Fatalf("days = %d, want 7", len(days))
	}
	if days[6].Seconds != 3600 || days[5].Seconds != 1800 {
		t.Fatalf("last days = %d, %d", days[5].Seconds, days[6].Seconds)
	}

	view := r.view()
	for _, want := range []string{"Reports", "1.5h", "2026-W11"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	r, _ = r.update(keyMsg("c"))
	if r.mode != reportMonths || !strings.Contains(r.view(), "2026-03") {
		t.Fatal("c should switch to the month table")
	}
}

func TestReportsDailyGoal(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "1", testNow.Add(-time.Hour), 3600, "")
	e.addSession(t, "2", testNow.Add(-25*time.Hour), 1800, "")

	r := newReportsModel(e.deps)
	r.setSize(120, 40)
	r, _ = r.update(r.refresh()())
	r, _ = r.update(keyMsg("c"))
	r, _ = r.update(keyMsg("c"))
	if r.mode != reportDays {
		t.Fatalf("mode = %v, want days", r.mode)
	}

	lines := strings.Split(r.renderDays(), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and 2 days, got %q", lines)
	}
	if !strings.Contains(lines[1], "2026-03-11") || !strings.Contains(lines[1], "100%") || !strings.Contains(lines[1], "✓") {
		t.Errorf("goal day row = %q", lines[1])
	}
	if !strings.Contains(lines[2], "2026-03-10") || !strings.Contains(lines[2], " 50%") || strings.Contains(lines[2], "✓") {
		t.Errorf("partial day row = %q", lines[2])
	}

	r, _ = r.update(keyMsg("c"))
	if r.mode != reportWeeks {
		t.Fatal("c should cycle back to weeks")
	}
}

func TestReportsNavigate(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "1", testNow.AddDate(0, 0, -8), 1200, "")

	r := newReportsModel(e.deps)
	r.setSize(120, 40)
	r, cmd := r.update(keyMsg("left"))
	if r.offset != 1 {
		t.Fatalf("offset = %d", r.offset)
	}
	r, _ = r.update(cmd())
	if !r.end.Equal(testNow.AddDate(0, 0, -7)) {
		t.Fatalf("end = %v", r.end)
	}
	if days := r.days(); days[5].Seconds != 1200 {
		t.Fatalf("previous week = %+v", days)
	}

	r, _ = r.update(keyMsg("l"))
	r, _ = r.update(keyMsg("l"))
	if r.offset != 0 {
		t.Fatal("offset must not go into the future")
	}
}

// ============================================================
// Settings
// ============================================================

func TestSettingsSave(t *testing.T) {
	e := newTestEnv(t)
	s := newSettingsModel(e.deps)
	s.setSize(100, 40)
	s, _ = s.update(s.refresh()())

	s, _ = s.update(keyMsg("enter"))
	if !s.formActive {
		t.Fatal("enter should open the form")
	}
	if *s.dailyGoal != "60" || *s.learningDays != 5 || !*s.darkMode {
		t.Fatalf("prefilled %q %d %v", *s.dailyGoal, *s.learningDays, *s.darkMode)
	}
	*s.dailyGoal = "90"
	*s.learningDays = 6
	*s.darkMode = false

	s, cmd := s.submit()
	if s.formActive {
		t.Fatal("submit should close the form")
	}
	msgs := collect(cmd)
	if got := statusText(msgs); got != "Settings saved" {
		t.Fatalf("status = %q", got)
	}
	want := model.Settings{DailyGoalMinutes: 90, LearningDaysPerWeek: 6, DarkMode: false}
	if got := e.repo.Settings(); got != want {
		t.Fatalf("settings = %+v, want %+v", got, want)
	}
	for _, m := range msgs {
		if data, ok := m.(settingsDataMsg); ok {
			s, _ = s.update(data)
		}
	}
	if !strings.Contains(s.view(), "9h 0min") {
		t.Fatal("view should show the weekly goal")
	}
}

func TestSettingsRejectsZeroGoal(t *testing.T) {
	e := newTestEnv(t)
	s := newSettingsModel(e.deps)
	s, _ = s.update(keyMsg("enter"))
	*s.dailyGoal = "0"

	msgs := collect(s.save())
	if len(msgs) != 1 || !msgs[0].(statusMsg).isError {
		t.Fatalf("expected an error status, got %v", msgs)
	}
	if e.repo.Settings().DailyGoalMinutes != 60 {
		t.Fatal("settings should be unchanged")
	}
}

// ============================================================
// App
// ============================================================

func TestAppSwitchViews(t *testing.T) {
	e := newTestEnv(t)
	a := e.newApp(t)

	a, _ = updateApp(t, a, keyMsg("3"))
	if a.activeView != viewHistory {
		t.Fatalf("active = %v", a.activeView)
	}
	a, _ = updateApp(t, a, keyMsg("tab"))
	if a.activeView != viewReports {
		t.Fatalf("active = %v", a.activeView)
	}
	a, _ = updateApp(t, a, keyMsg("5"))
	a, _ = updateApp(t, a, keyMsg("tab"))
	if a.activeView != viewDashboard {
		t.Fatal("tab should wrap around")
	}

	_, cmd := updateApp(t, a, keyMsg("q"))
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q should quit")
	}
}

func TestAppSearchCapturesKeys(t *testing.T) {
	e := newTestEnv(t)
	a := e.newApp(t)

	a, _ = updateApp(t, a, keyMsg("3"))
	a, _ = updateApp(t, a, keyMsg("/"))
	a, cmd := updateApp(t, a, keyMsg("q"))
	if a.activeView != viewHistory || a.history.search.Value() != "q" {
		t.Fatalf("q should be typed into the search, view %v value %q", a.activeView, a.history.search.Value())
	}
	if cmd == nil {
		t.Fatal("typing should refresh the list")
	}
}

func TestAppRendersTimerInFooter(t *testing.T) {
	e := newTestEnv(t)
	a := e.newApp(t)
	a, _ = updateApp(t, a, tea.WindowSizeMsg{Width: 120, Height: 40})
	a, _ = updateApp(t, a, a.dashboard.loadData()())

	if err := e.engine.Start("1"); err != nil {
		t.Fatal(err)
	}
	e.clock.advance(65 * time.Second)
	a, _ = updateApp(t, a, tickMsg(e.clock.Now()))

	view := a.View()
	for _, want := range []string{"lernzeit", "Dashboard", "Informatik", "01:05"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestAppDataChangedReloadsDashboard(t *testing.T) {
	e := newTestEnv(t)
	a := e.newApp(t)
	e.addSession(t, "1", testNow.Add(-time.Hour), 1200, "")

	a, cmd := updateApp(t, a, dataChangedMsg{})
	for _, m := range collect(cmd) {
		a, _ = updateApp(t, a, m)
	}
	if a.dashboard.overview.TodaySeconds != 1200 {
		t.Fatalf("today = %d", a.dashboard.overview.TodaySeconds)
	}
}

func TestAppExportCSV(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "1", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC), 5400, "Bäume")
	a := e.newApp(t)

	a, _ = updateApp(t, a, keyMsg("e"))
	if !a.exportPicking {
		t.Fatal("e should open the export picker")
	}
	a, _ = updateApp(t, a, keyMsg("down"))
	a, _ = updateApp(t, a, keyMsg("down"))
	a, cmd := updateApp(t, a, keyMsg("enter"))
	if a.exportPicking {
		t.Fatal("picker should close")
	}

	msg := cmd()
	done, ok := msg.(exportDoneMsg)
	if !ok {
		t.Fatalf("got %#v", msg)
	}
	if filepath.Base(done.path) != "lernzeit-backup-2026-03-11.csv" {
		t.Fatalf("path = %s", done.path)
	}
	data, err := os.ReadFile(done.path)
	if err != nil {
		t.Fatal(err)
	}
	want := "Date,Time,Subject,DurationMinutes,Notes\n2026-03-10,14:00,Informatik,90.00,Bäume\n"
	if string(data) != want {
		t.Fatalf("csv = %q", data)
	}

	a, _ = updateApp(t, a, msg)
	if a.status != "Exported to "+done.path {
		t.Fatalf("status = %q", a.status)
	}
}

func TestAppExportJSONRoundTrips(t *testing.T) {
	e := newTestEnv(t)
	e.addSession(t, "2", testNow.Add(-time.Hour), 900, "Integrale")
	a := e.newApp(t)

	a, _ = updateApp(t, a, keyMsg("e"))
	_, cmd := updateApp(t, a, keyMsg("enter"))
	done, ok := cmd().(exportDoneMsg)
	if !ok {
		t.Fatal("export failed")
	}

	data, err := os.ReadFile(done.path)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := export.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Subjects) != 3 || len(doc.Sessions) != 1 || doc.Sessions[0].Notes != "Integrale" {
		t.Fatalf("decoded = %+v", doc)
	}
}

func TestAppThemeFollowsSettings(t *testing.T) {
	e := newTestEnv(t)
	a := e.newApp(t)
	if colors != darkPalette {
		t.Fatal("default is the dark theme")
	}

	dark := false
	if _, err := e.repo.UpdateSettings(model.SettingsPatch{DarkMode: &dark}); err != nil {
		t.Fatal(err)
	}
	updateApp(t, a, dataChangedMsg{})
	if colors != lightPalette {
		t.Fatal("turning dark mode off should switch to the light theme")
	}
	setTheme(true)
}

// ============================================================
// Helpers
// ============================================================

func TestParseMinutes(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"30", 1800, true},
		{" 1.5 ", 90, true},
		{"0", 0, false},
		{"-5", 0, false},
		{"viel", 0, false},
	}
	for _, tt := range tests {
		got, err := parseMinutes(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("parseMinutes(%q) = %d, %v", tt.in, got, err)
		}
	}
}

func TestParseOptionalInt(t *testing.T) {
	if n, err := parseOptionalInt(" "); err != nil || n != 0 {
		t.Fatalf("empty = %d, %v", n, err)
	}
	if n, err := parseOptionalInt("45"); err != nil || n != 45 {
		t.Fatalf("45 = %d, %v", n, err)
	}
	if _, err := parseOptionalInt("0"); err == nil {
		t.Fatal("0 should be rejected")
	}
}

func TestParseDateTime(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	got, err := parseDateTime("2026-03-10 17:15", berlin)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(time.Date(2026, 3, 10, 16, 15, 0, 0, time.UTC)) {
		t.Fatalf("got %v", got)
	}
	if _, err := parseDateTime("2026-03-10", berlin); err != nil {
		t.Fatal(err)
	}
	if _, err := parseDateTime("10.03.2026", berlin); err == nil {
		t.Fatal("unsupported layout should fail")
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		frac         float64
		filled, rest int
	}{
		{0, 0, 10},
		{0.5, 5, 5},
		{1, 10, 0},
		{1.7, 10, 0},
		{-1, 0, 10},
	}
	for _, tt := range tests {
		bar := progressBar(tt.frac, 10)
		if strings.Count(bar, "█") != tt.filled || strings.Count(bar, "░") != tt.rest {
			t.Errorf("progressBar(%v) = %q", tt.frac, bar)
		}
	}
}

func TestMonthAbbr(t *testing.T) {
	if got := monthAbbr(time.March); got != "Mar" {
		t.Fatalf("got %q", got)
	}
	if got := monthAbbr(0); got != "Month" {
		t.Fatalf("got %q", got)
	}
}

func TestSubjectColorFallback(t *testing.T) {
	if subjectColor("teal") != subjectColors["teal"] {
		t.Fatal("known color should map")
	}
	if subjectColor("plaid") != colors.muted {
		t.Fatal("unknown color should fall back to muted")
	}
}

func TestViewNames(t *testing.T) {
	want := []string{"Dashboard", "Subjects", "History", "Reports", "Settings"}
	if len(viewNames) != len(want) {
		t.Fatalf("got %d view names", len(viewNames))
	}
	for i, name := range want {
		if viewNames[i] != name {
			t.Fatalf("viewNames[%d] = %q, want %q", i, viewNames[i], name)
		}
	}
}
