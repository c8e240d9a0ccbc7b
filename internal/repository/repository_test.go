package repository

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/store"
)

func newTestBackend(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.NewMemory()
	if err != nil {
		t.Fatalf("new memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	n := 0
	r, err := New(newTestBackend(t), WithIDGenerator(func() model.ID {
		n++
		return model.ID(fmt.Sprintf("id-%d", n))
	}))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	return r
}

// failingBackend wraps a backend and fails every write once armed.
type failingBackend struct {
	store.Backend
	fail bool
}

var errDiskFull = errors.New("disk full")

func (f *failingBackend) Put(key string, value []byte) error {
	if f.fail {
		return errDiskFull
	}
	return f.Backend.Put(key, value)
}

func (f *failingBackend) PutAll(values map[string][]byte) error {
	if f.fail {
		return errDiskFull
	}
	return f.Backend.PutAll(values)
}

func (f *failingBackend) Delete(key string) error {
	if f.fail {
		return errDiskFull
	}
	return f.Backend.Delete(key)
}

// recordingBackend notes which write method each call used.
type recordingBackend struct {
	store.Backend
	calls []string
}

func (b *recordingBackend) Put(key string, value []byte) error {
	b.calls = append(b.calls, "put "+key)
	return b.Backend.Put(key, value)
}

func (b *recordingBackend) PutAll(values map[string][]byte) error {
	b.calls = append(b.calls, fmt.Sprintf("putall %d", len(values)))
	return b.Backend.PutAll(values)
}

func (b *recordingBackend) Delete(key string) error {
	b.calls = append(b.calls, "delete "+key)
	return b.Backend.Delete(key)
}

var start = time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

func draft(subject model.ID, seconds int64) model.Session {
	return model.Session{SubjectID: subject, StartTime: start, Duration: seconds, Notes: "n"}
}

// ============================================================
// Seeding
// ============================================================

func TestSeedsDefaults(t *testing.T) {
	r := newTestRepo(t)
	subjects := r.Subjects()
	if diff := cmp.Diff(model.DefaultSubjects(), subjects); diff != "" {
		t.Fatalf("seeded subjects (-want +got):\n%s", diff)
	}
	if r.Settings() != model.DefaultSettings() {
		t.Fatalf("settings = %+v", r.Settings())
	}
	if len(r.Entries()) != 0 {
		t.Fatal("expected no entries")
	}
}

func TestSeedKeepsExistingSubjects(t *testing.T) {
	b := newTestBackend(t)
	b.Put(KeySubjects, []byte(`[{"id":"x","name":"Physik","color":"red"}]`))
	r, err := New(b)
	if err != nil {
		t.Fatal(err)
	}
	subjects := r.Subjects()
	if len(subjects) != 1 || subjects[0].Name != "Physik" {
		t.Fatalf("existing subjects overwritten: %+v", subjects)
	}
}

func TestSeedReplacesCorruptSubjects(t *testing.T) {
	b := newTestBackend(t)
	b.Put(KeySubjects, []byte(`{not json`))
	r, err := New(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Subjects()) != 3 {
		t.Fatalf("expected reseeded defaults, got %+v", r.Subjects())
	}
}

// ============================================================
// Corrupt reads
// ============================================================

func TestCorruptEntriesReadAsEmpty(t *testing.T) {
	b := newTestBackend(t)
	var logs bytes.Buffer
	r, err := New(b, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	if err != nil {
		t.Fatal(err)
	}
	b.Put(KeyEntries, []byte(`[{"id":1,`))

	if got := r.Entries(); len(got) != 0 {
		t.Fatalf("expected empty entries, got %d", len(got))
	}
	if !strings.Contains(logs.String(), KeyEntries) {
		t.Fatalf("expected warning naming the key, got %q", logs.String())
	}
}

func TestCorruptSettingsReadAsDefaults(t *testing.T) {
	b := newTestBackend(t)
	r, _ := New(b)
	b.Put(KeySettings, []byte(`"nope"`))
	if r.Settings() != model.DefaultSettings() {
		t.Fatalf("expected defaults, got %+v", r.Settings())
	}
}

func TestLegacyNumericIDs(t *testing.T) {
	b := newTestBackend(t)
	r, _ := New(b)
	b.Put(KeyEntries, []byte(`[{"id":1700000000123,"subjectId":"1","startTime":1700000000000,"duration":60,"notes":""}]`))

	ok, err := r.UpdateEntry(model.SessionPatch{ID: "1700000000123", Notes: ptr("edited")})
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("numeric id should match its string form")
	}
	if got := r.Entries()[0].Notes; got != "edited" {
		t.Fatalf("notes = %q", got)
	}
}

// ============================================================
// Entries
// ============================================================

func TestAddEntry(t *testing.T) {
	r := newTestRepo(t)
	e, err := r.AddEntry(draft("1", 90))
	if err != nil {
		t.Fatal(err)
	}
	if e.ID == "" {
		t.Fatal("expected id")
	}
	if !e.EndTime.Equal(start.Add(90 * time.Second)) {
		t.Fatalf("end = %v", e.EndTime)
	}
	entries := r.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if diff := cmp.Diff(e, entries[0]); diff != "" {
		t.Fatalf("stored entry (-returned +stored):\n%s", diff)
	}
}

func TestAddEntryUniqueIDs(t *testing.T) {
	b := newTestBackend(t)
	r, _ := New(b)
	seen := map[model.ID]bool{}
	for i := 0; i < 50; i++ {
		e, err := r.AddEntry(draft("1", 1))
		if err != nil {
			t.Fatal(err)
		}
		if seen[e.ID] {
			t.Fatalf("duplicate id %s", e.ID)
		}
		seen[e.ID] = true
	}
}

func TestAddEntryValidation(t *testing.T) {
	r := newTestRepo(t)
	tests := []struct {
		name string
		in   model.Session
	}{
		{"zero duration", draft("1", 0)},
		{"negative duration", draft("1", -5)},
		{"no subject", draft("", 60)},
		{"no start", model.Session{SubjectID: "1", Duration: 60}},
	}
	for _, tt := range tests {
		if _, err := r.AddEntry(tt.in); !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: expected ErrInvalid, got %v", tt.name, err)
		}
	}
	if len(r.Entries()) != 0 {
		t.Fatal("rejected drafts must not be written")
	}
}

func TestUpdateEntry(t *testing.T) {
	r := newTestRepo(t)
	e, _ := r.AddEntry(draft("1", 60))

	ok, err := r.UpdateEntry(model.SessionPatch{ID: e.ID, Duration: ptr[int64](120)})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	got := r.Entries()[0]
	if got.Duration != 120 || got.Notes != "n" || got.SubjectID != "1" {
		t.Fatalf("shallow merge failed: %+v", got)
	}
}

func TestUpdateEntryNotFound(t *testing.T) {
	r := newTestRepo(t)
	r.AddEntry(draft("1", 60))
	ok, err := r.UpdateEntry(model.SessionPatch{ID: "missing", Notes: ptr("x")})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no-op")
	}
	if r.Entries()[0].Notes != "n" {
		t.Fatal("entry changed")
	}
}

func TestDeleteEntry(t *testing.T) {
	r := newTestRepo(t)
	a, _ := r.AddEntry(draft("1", 60))
	b, _ := r.AddEntry(draft("2", 60))
	if err := r.DeleteEntry(a.ID); err != nil {
		t.Fatal(err)
	}
	entries := r.Entries()
	if len(entries) != 1 || entries[0].ID != b.ID {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if err := r.DeleteEntry("missing"); err != nil {
		t.Fatal(err)
	}
}

// ============================================================
// Subjects
// ============================================================

func TestAddSubject(t *testing.T) {
	r := newTestRepo(t)
	s, err := r.AddSubject(model.Subject{Name: "  Physik ", GoalMinutes: 600})
	if err != nil {
		t.Fatal(err)
	}
	if s.Name != "Physik" || s.Color == "" || s.ID == "" {
		t.Fatalf("unexpected subject: %+v", s)
	}
	if len(r.Subjects()) != 4 {
		t.Fatalf("expected 4 subjects, got %d", len(r.Subjects()))
	}
	if _, err := r.AddSubject(model.Subject{Name: "  "}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for blank name, got %v", err)
	}
}

func TestUpdateSubject(t *testing.T) {
	r := newTestRepo(t)
	ok, err := r.UpdateSubject(model.SubjectPatch{ID: "2", Color: ptr("red")})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	s, _ := r.Subject("2")
	if s.Name != "Mathe" || s.Color != "red" {
		t.Fatalf("unexpected subject: %+v", s)
	}
	if _, err := r.UpdateSubject(model.SubjectPatch{ID: "2", Name: ptr("")}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestDeleteSubjectKeepsSessions(t *testing.T) {
	r := newTestRepo(t)
	r.AddEntry(draft("1", 60))
	if err := r.DeleteSubject("1"); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.Subject("1"); ok {
		t.Fatal("subject still present")
	}
	entries := r.Entries()
	if len(entries) != 1 || entries[0].SubjectID != "1" {
		t.Fatalf("orphaned session must keep its subject id: %+v", entries)
	}
}

// ============================================================
// Settings
// ============================================================

func TestSettingsIdempotentRead(t *testing.T) {
	r := newTestRepo(t)
	if r.Settings() != r.Settings() {
		t.Fatal("two reads differ")
	}
}

func TestUpdateSettingsMerges(t *testing.T) {
	r := newTestRepo(t)
	got, err := r.UpdateSettings(model.SettingsPatch{DailyGoalMinutes: ptr(45)})
	if err != nil {
		t.Fatal(err)
	}
	want := model.DefaultSettings()
	want.DailyGoalMinutes = 45
	if got != want || r.Settings() != want {
		t.Fatalf("got %+v, stored %+v, want %+v", got, r.Settings(), want)
	}
}

func TestUpdateSettingsValidation(t *testing.T) {
	r := newTestRepo(t)
	for _, p := range []model.SettingsPatch{
		{DailyGoalMinutes: ptr(0)},
		{LearningDaysPerWeek: ptr(0)},
		{LearningDaysPerWeek: ptr(8)},
	} {
		if _, err := r.UpdateSettings(p); !errors.Is(err, ErrInvalid) {
			t.Errorf("expected ErrInvalid for %+v, got %v", p, err)
		}
	}
	if r.Settings() != model.DefaultSettings() {
		t.Fatal("rejected patch was written")
	}
}

// ============================================================
// Write failures
// ============================================================

func TestWriteFailureReportsAndKeepsOldData(t *testing.T) {
	fb := &failingBackend{Backend: newTestBackend(t)}
	r, err := New(fb)
	if err != nil {
		t.Fatal(err)
	}
	r.AddEntry(draft("1", 60))
	fb.fail = true

	e, err := r.AddEntry(draft("1", 30))
	if !errors.Is(err, ErrWriteFailed) || !errors.Is(err, errDiskFull) {
		t.Fatalf("expected ErrWriteFailed wrapping the cause, got %v", err)
	}
	if e.ID != "" {
		t.Fatal("failed add must not return a saved entry")
	}
	if len(r.Entries()) != 1 {
		t.Fatalf("expected previous state, got %d entries", len(r.Entries()))
	}

	if _, err := r.UpdateSettings(model.SettingsPatch{DarkMode: ptr(false)}); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	if !r.Settings().DarkMode {
		t.Fatal("settings changed despite failed write")
	}
}

func TestNewFailsWhenSeedCannotBeWritten(t *testing.T) {
	fb := &failingBackend{Backend: newTestBackend(t), fail: true}
	if _, err := New(fb); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
}

func TestNewOnSeededStoreDoesNotWrite(t *testing.T) {
	fb := &failingBackend{Backend: newTestBackend(t)}
	if _, err := New(fb); err != nil {
		t.Fatal(err)
	}
	fb.fail = true

	r, err := New(fb)
	if err != nil {
		t.Fatalf("opening a seeded store must not write: %v", err)
	}
	if len(r.Subjects()) != 3 || r.Settings() != model.DefaultSettings() {
		t.Fatalf("subjects=%+v settings=%+v", r.Subjects(), r.Settings())
	}
}

func TestSeedRewritesOnlyCorruptSettings(t *testing.T) {
	b := &recordingBackend{Backend: newTestBackend(t)}
	if _, err := New(b); err != nil {
		t.Fatal(err)
	}
	b.Backend.Put(KeySettings, []byte(`"nope"`))
	b.calls = nil

	r, err := New(b)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"putall 1"}, b.calls); diff != "" {
		t.Fatalf("seed writes (-want +got):\n%s", diff)
	}
	if r.Settings() != model.DefaultSettings() {
		t.Fatalf("settings = %+v", r.Settings())
	}
}

func TestClearTimerFailureKeepsState(t *testing.T) {
	fb := &failingBackend{Backend: newTestBackend(t)}
	r, _ := New(fb)
	r.SaveTimerState(model.TimerState{IsRunning: true, SubjectID: "1"})
	fb.fail = true
	if err := r.ClearTimerState(); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	if _, ok := r.TimerState(); !ok {
		t.Fatal("timer state lost despite failed clear")
	}
}

func TestSingleDocumentWritesUsePutAndDelete(t *testing.T) {
	b := &recordingBackend{Backend: newTestBackend(t)}
	r, err := New(b)
	if err != nil {
		t.Fatal(err)
	}
	b.calls = nil

	r.SaveTimerState(model.TimerState{IsRunning: true, SubjectID: "1"})
	r.ClearTimerState()
	r.AddEntry(draft("1", 60))
	r.CompleteSession(draft("1", 60))

	want := []string{"put " + KeyTimer, "delete " + KeyTimer, "put " + KeyEntries, "putall 2"}
	if diff := cmp.Diff(want, b.calls); diff != "" {
		t.Fatalf("backend calls (-want +got):\n%s", diff)
	}
}

// ============================================================
// Timer state
// ============================================================

func TestTimerStateLifecycle(t *testing.T) {
	r := newTestRepo(t)
	if _, ok := r.TimerState(); ok {
		t.Fatal("expected no timer state")
	}
	want := model.TimerState{IsRunning: true, AccumulatedSeconds: 12, SubjectID: "1", LastPersistedAt: 1700000000000}
	if err := r.SaveTimerState(want); err != nil {
		t.Fatal(err)
	}
	got, ok := r.TimerState()
	if !ok || got != want {
		t.Fatalf("got %+v ok=%v", got, ok)
	}
	if err := r.ClearTimerState(); err != nil {
		t.Fatal(err)
	}
	if _, ok := r.TimerState(); ok {
		t.Fatal("timer state not cleared")
	}
}

func TestCompleteSessionClearsTimer(t *testing.T) {
	r := newTestRepo(t)
	r.SaveTimerState(model.TimerState{IsRunning: true, AccumulatedSeconds: 90, SubjectID: "1"})

	e, err := r.CompleteSession(draft("1", 90))
	if err != nil {
		t.Fatal(err)
	}
	if e.ID != "id-1" || !e.EndTime.Equal(start.Add(90*time.Second)) {
		t.Fatalf("entry = %+v", e)
	}
	if got := r.Entries(); len(got) != 1 || got[0].ID != e.ID {
		t.Fatalf("entries = %+v", got)
	}
	if _, ok := r.TimerState(); ok {
		t.Fatal("timer state not cleared")
	}
}

func TestCompleteSessionFailureKeepsTimer(t *testing.T) {
	fb := &failingBackend{Backend: newTestBackend(t)}
	r, _ := New(fb)
	r.SaveTimerState(model.TimerState{IsRunning: true, AccumulatedSeconds: 90, SubjectID: "1"})
	fb.fail = true

	if _, err := r.CompleteSession(draft("1", 90)); !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed, got %v", err)
	}
	if len(r.Entries()) != 0 {
		t.Fatal("entry saved despite failed write")
	}
	if _, ok := r.TimerState(); !ok {
		t.Fatal("timer state lost despite failed write")
	}
}

func TestCompleteSessionValidates(t *testing.T) {
	r := newTestRepo(t)
	r.SaveTimerState(model.TimerState{IsRunning: true, SubjectID: "1"})
	if _, err := r.CompleteSession(draft("1", 0)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if _, ok := r.TimerState(); !ok {
		t.Fatal("invalid session must not clear the timer")
	}
}

// ============================================================
// Bulk operations
// ============================================================

func TestReplace(t *testing.T) {
	r := newTestRepo(t)
	r.AddEntry(draft("1", 60))

	snap := Snapshot{
		Subjects: []model.Subject{{ID: "s", Name: "Chemie", Color: "teal"}},
		Sessions: []model.Session{{ID: "e", SubjectID: "s", StartTime: start, EndTime: start.Add(time.Minute), Duration: 60}},
		Settings: model.Settings{DailyGoalMinutes: 30, LearningDaysPerWeek: 6},
	}
	if err := r.Replace(snap); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(snap, r.Snapshot()); diff != "" {
		t.Fatalf("snapshot after replace (-want +got):\n%s", diff)
	}
}

func TestReplaceRejectsInvalidWithoutWriting(t *testing.T) {
	r := newTestRepo(t)
	before := r.Snapshot()
	err := r.Replace(Snapshot{
		Subjects: []model.Subject{{ID: "s", Name: ""}},
		Settings: model.DefaultSettings(),
	})
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
	if diff := cmp.Diff(before, r.Snapshot()); diff != "" {
		t.Fatalf("state changed (-before +after):\n%s", diff)
	}
}

func TestAppend(t *testing.T) {
	r := newTestRepo(t)
	err := r.Append(
		[]model.Subject{{ID: "new", Name: "Bio", Color: "green"}},
		[]model.Session{{ID: "e1", SubjectID: "new", StartTime: start, Duration: 10}},
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Subjects()) != 4 || len(r.Entries()) != 1 {
		t.Fatalf("subjects=%d entries=%d", len(r.Subjects()), len(r.Entries()))
	}
}

func TestReset(t *testing.T) {
	r := newTestRepo(t)
	r.AddEntry(draft("1", 60))
	r.AddSubject(model.Subject{Name: "Physik"})
	r.UpdateSettings(model.SettingsPatch{DailyGoalMinutes: ptr(10)})
	r.SaveTimerState(model.TimerState{IsRunning: true, SubjectID: "1"})

	if err := r.Reset(); err != nil {
		t.Fatal(err)
	}
	if len(r.Entries()) != 0 || len(r.Subjects()) != 3 || r.Settings() != model.DefaultSettings() {
		t.Fatalf("reset incomplete: %+v", r.Snapshot())
	}
	if _, ok := r.TimerState(); ok {
		t.Fatal("timer state survived reset")
	}
}

func ptr[T any](v T) *T { return &v }
