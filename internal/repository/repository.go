// Package repository owns identity and persistence for subjects, sessions,
// settings and the in-progress timer. Every read returns a fresh copy and
// every write replaces a whole document.
package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/store"
)

// Persisted document keys.
const (
	KeyEntries  = "lernzeit_entries"
	KeySubjects = "lernzeit_subjects"
	KeySettings = "lernzeit_settings"
	KeyTimer    = "timer_state"
)

var (
	// ErrInvalid marks a rejected draft or patch. Nothing was written.
	ErrInvalid = errors.New("invalid input")
	// ErrWriteFailed marks a mutation that may not have been persisted.
	ErrWriteFailed = errors.New("write failed")
)

// Snapshot is the full user data set read in one call.
type Snapshot struct {
	Subjects []model.Subject
	Sessions []model.Session
	Settings model.Settings
}

type Repository struct {
	backend store.Backend
	log     *slog.Logger
	newID   func() model.ID

	// mu serializes read-modify-write cycles.
	mu sync.Mutex
}

type Option func(*Repository)

func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) { r.log = l }
}

// WithIDGenerator replaces the UUID v7 generator, mainly for tests.
func WithIDGenerator(f func() model.ID) Option {
	return func(r *Repository) { r.newID = f }
}

// New wraps backend and seeds default subjects and settings when they are
// missing or unreadable. An intact store is not written to.
func New(backend store.Backend, opts ...Option) (*Repository, error) {
	r := &Repository{
		backend: backend,
		log:     slog.New(slog.DiscardHandler),
		newID:   newUUID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.seed(); err != nil {
		return nil, err
	}
	return r, nil
}

func newUUID() model.ID {
	id, err := uuid.NewV7()
	if err != nil {
		return model.ID(uuid.NewString())
	}
	return model.ID(id.String())
}

// NewID returns a fresh identifier.
func (r *Repository) NewID() model.ID {
	return r.newID()
}

func (r *Repository) seed() error {
	values := map[string][]byte{}
	if len(r.Subjects()) == 0 {
		data, err := store.Encode(model.DefaultSubjects())
		if err != nil {
			return err
		}
		values[KeySubjects] = data
	}
	if _, err := store.Load[model.Settings](r.backend, KeySettings); err != nil {
		data, err := store.Encode(r.Settings())
		if err != nil {
			return err
		}
		values[KeySettings] = data
	}
	if len(values) == 0 {
		return nil
	}
	if err := r.backend.PutAll(values); err != nil {
		return fmt.Errorf("seed: %w: %w", ErrWriteFailed, err)
	}
	return nil
}

// load decodes key into T. Missing keys yield fallback silently; unreadable
// or corrupt ones yield fallback with a warning.
func load[T any](r *Repository, key string, fallback T) T {
	v, err := store.Load[T](r.backend, key)
	if err == nil {
		return v
	}
	if !errors.Is(err, store.ErrNotFound) {
		r.log.Warn("stored document unreadable, using defaults", "key", key, "error", err)
	}
	return fallback
}

func (r *Repository) save(values map[string]any) error {
	encoded := make(map[string][]byte, len(values))
	for key, v := range values {
		if v == nil {
			encoded[key] = nil
			continue
		}
		data, err := store.Encode(v)
		if err != nil {
			return err
		}
		encoded[key] = data
	}
	if err := r.write(encoded); err != nil {
		r.log.Error("persist failed", "error", err)
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// write sends a single document through Put or Delete and several through
// one PutAll, which the backend applies together.
func (r *Repository) write(values map[string][]byte) error {
	if len(values) != 1 {
		return r.backend.PutAll(values)
	}
	for key, data := range values {
		if data == nil {
			return r.backend.Delete(key)
		}
		return r.backend.Put(key, data)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// ============================================================
// Entries
// ============================================================

func (r *Repository) Entries() []model.Session {
	return load[[]model.Session](r, KeyEntries, nil)
}

// AddEntry assigns an id to draft and appends it. A zero EndTime is derived
// from StartTime and Duration.
func (r *Repository) AddEntry(draft model.Session) (model.Session, error) {
	return r.addEntry(draft, false)
}

// CompleteSession appends draft like AddEntry and deletes the timer state in
// the same write, so a finished timer can never be recovered and saved
// twice.
func (r *Repository) CompleteSession(draft model.Session) (model.Session, error) {
	return r.addEntry(draft, true)
}

func (r *Repository) addEntry(draft model.Session, clearTimer bool) (model.Session, error) {
	if draft.Duration <= 0 {
		return model.Session{}, invalid("duration must be positive")
	}
	if draft.StartTime.IsZero() {
		return model.Session{}, invalid("start time is required")
	}
	if draft.EndTime.IsZero() {
		draft.EndTime = draft.StartTime.Add(time.Duration(draft.Duration) * time.Second)
	}
	entry, err := normalizeEntry(draft)
	if err != nil {
		return model.Session{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry.ID = r.newID()
	values := map[string]any{KeyEntries: append(r.Entries(), entry)}
	if clearTimer {
		values[KeyTimer] = nil
	}
	if err := r.save(values); err != nil {
		return model.Session{}, err
	}
	return entry, nil
}

// UpdateEntry merges patch into the entry with the same id. It reports
// false when no such entry exists.
func (r *Repository) UpdateEntry(patch model.SessionPatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.Entries()
	for i := range entries {
		if entries[i].ID != patch.ID {
			continue
		}
		updated, err := normalizeEntry(patch.Apply(entries[i]))
		if err != nil {
			return false, err
		}
		entries[i] = updated
		if err := r.save(map[string]any{KeyEntries: entries}); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (r *Repository) DeleteEntry(id model.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.Entries()
	kept := entries[:0]
	for _, e := range entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(entries) {
		return nil
	}
	return r.save(map[string]any{KeyEntries: kept})
}

func normalizeEntry(s model.Session) (model.Session, error) {
	s.SubjectID = model.ID(strings.TrimSpace(string(s.SubjectID)))
	if s.SubjectID == "" {
		return model.Session{}, invalid("subject is required")
	}
	if s.Duration < 0 {
		return model.Session{}, invalid("duration must not be negative")
	}
	s.StartTime = model.Instant(s.StartTime)
	s.EndTime = model.Instant(s.EndTime)
	return s, nil
}

// ============================================================
// Subjects
// ============================================================

func (r *Repository) Subjects() []model.Subject {
	return load[[]model.Subject](r, KeySubjects, nil)
}

// Subject returns the subject with id, if any.
func (r *Repository) Subject(id model.ID) (model.Subject, bool) {
	for _, s := range r.Subjects() {
		if s.ID == id {
			return s, true
		}
	}
	return model.Subject{}, false
}

// AddSubject assigns an id to draft and appends it. An empty color is
// picked from the palette.
func (r *Repository) AddSubject(draft model.Subject) (model.Subject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subjects := r.Subjects()
	if draft.Color == "" {
		draft.Color = model.Colors[len(subjects)%len(model.Colors)]
	}
	subject, err := normalizeSubject(draft)
	if err != nil {
		return model.Subject{}, err
	}
	subject.ID = r.newID()
	subjects = append(subjects, subject)
	if err := r.save(map[string]any{KeySubjects: subjects}); err != nil {
		return model.Subject{}, err
	}
	return subject, nil
}

func (r *Repository) UpdateSubject(patch model.SubjectPatch) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subjects := r.Subjects()
	for i := range subjects {
		if subjects[i].ID != patch.ID {
			continue
		}
		updated, err := normalizeSubject(patch.Apply(subjects[i]))
		if err != nil {
			return false, err
		}
		subjects[i] = updated
		if err := r.save(map[string]any{KeySubjects: subjects}); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// DeleteSubject removes the subject. Sessions that reference it are kept.
func (r *Repository) DeleteSubject(id model.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	subjects := r.Subjects()
	kept := subjects[:0]
	for _, s := range subjects {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	if len(kept) == len(subjects) {
		return nil
	}
	return r.save(map[string]any{KeySubjects: kept})
}

func normalizeSubject(s model.Subject) (model.Subject, error) {
	s.Name = strings.TrimSpace(s.Name)
	if s.Name == "" {
		return model.Subject{}, invalid("subject name is required")
	}
	if s.GoalMinutes < 0 {
		return model.Subject{}, invalid("goal must be positive")
	}
	return s, nil
}

// ============================================================
// Settings
// ============================================================

func (r *Repository) Settings() model.Settings {
	return load(r, KeySettings, model.DefaultSettings())
}

func (r *Repository) UpdateSettings(patch model.SettingsPatch) (model.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	settings := patch.Apply(r.Settings())
	if err := ValidateSettings(settings); err != nil {
		return model.Settings{}, err
	}
	if err := r.save(map[string]any{KeySettings: settings}); err != nil {
		return model.Settings{}, err
	}
	return settings, nil
}

// ValidateSettings reports whether s may be persisted.
func ValidateSettings(s model.Settings) error {
	if s.DailyGoalMinutes <= 0 {
		return invalid("daily goal must be positive")
	}
	if s.LearningDaysPerWeek < 1 || s.LearningDaysPerWeek > 7 {
		return invalid("learning days must be between 1 and 7")
	}
	return nil
}

// ============================================================
// Timer state
// ============================================================

// TimerState returns the persisted timer, if a session is in progress.
func (r *Repository) TimerState() (model.TimerState, bool) {
	state, err := store.Load[model.TimerState](r.backend, KeyTimer)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			r.log.Warn("stored timer unreadable, discarding", "key", KeyTimer, "error", err)
		}
		return model.TimerState{}, false
	}
	return state, true
}

func (r *Repository) SaveTimerState(state model.TimerState) error {
	return r.save(map[string]any{KeyTimer: state})
}

func (r *Repository) ClearTimerState() error {
	return r.save(map[string]any{KeyTimer: nil})
}

// ============================================================
// Bulk operations
// ============================================================

func (r *Repository) Snapshot() Snapshot {
	return Snapshot{
		Subjects: r.Subjects(),
		Sessions: r.Entries(),
		Settings: r.Settings(),
	}
}

// Replace overwrites subjects, sessions and settings in one write.
func (r *Repository) Replace(snap Snapshot) error {
	if err := ValidateSettings(snap.Settings); err != nil {
		return err
	}
	subjects := make([]model.Subject, 0, len(snap.Subjects))
	for _, s := range snap.Subjects {
		ns, err := normalizeSubject(s)
		if err != nil {
			return err
		}
		subjects = append(subjects, ns)
	}
	sessions := make([]model.Session, 0, len(snap.Sessions))
	for _, s := range snap.Sessions {
		ns, err := normalizeEntry(s)
		if err != nil {
			return err
		}
		sessions = append(sessions, ns)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.save(map[string]any{
		KeySubjects: subjects,
		KeyEntries:  sessions,
		KeySettings: snap.Settings,
	})
}

// Append adds subjects and sessions, which must already carry their ids,
// in one write.
func (r *Repository) Append(subjects []model.Subject, sessions []model.Session) error {
	for i := range subjects {
		ns, err := normalizeSubject(subjects[i])
		if err != nil {
			return err
		}
		subjects[i] = ns
	}
	for i := range sessions {
		ns, err := normalizeEntry(sessions[i])
		if err != nil {
			return err
		}
		sessions[i] = ns
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.save(map[string]any{
		KeySubjects: append(r.Subjects(), subjects...),
		KeyEntries:  append(r.Entries(), sessions...),
	})
}

// Reset deletes all data and the running timer, then reseeds defaults.
func (r *Repository) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.save(map[string]any{
		KeyEntries:  nil,
		KeyTimer:    nil,
		KeySubjects: model.DefaultSubjects(),
		KeySettings: model.DefaultSettings(),
	})
}
