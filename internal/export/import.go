package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/tailscale/hujson"

	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/repository"
)

// ErrInvalidDocument marks a backup that was rejected before anything was
// imported.
var ErrInvalidDocument = errors.New("invalid backup document")

type rawDocument struct {
	Version    int             `json:"version"`
	ExportedAt model.FlexTime  `json:"exportedAt"`
	ExportDate model.FlexTime  `json:"exportDate"`
	Subjects   *[]rawSubject   `json:"subjects"`
	Sessions   *[]rawSession   `json:"sessions"`
	Entries    *[]rawSession   `json:"entries"`
	Settings   *model.Settings `json:"settings"`
}

type rawSubject struct {
	ID          model.ID `json:"id"`
	Name        string   `json:"name"`
	Color       string   `json:"color"`
	GoalMinutes *float64 `json:"goalMinutes"`
}

// rawSession also accepts durationSeconds / note as written by older
// exports.
type rawSession struct {
	ID              model.ID       `json:"id"`
	SubjectID       model.ID       `json:"subjectId"`
	StartTime       model.FlexTime `json:"startTime"`
	EndTime         model.FlexTime `json:"endTime"`
	Duration        *float64       `json:"duration"`
	DurationSeconds *float64       `json:"durationSeconds"`
	Notes           *string        `json:"notes"`
	Note            *string        `json:"note"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidDocument, fmt.Sprintf(format, args...))
}

// Decode parses and validates a backup. Comments and trailing commas are
// allowed. Nothing is partially accepted: any invalid record rejects the
// whole document.
func Decode(data []byte) (Document, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Document{}, invalid("parse: %v", err)
	}

	var raw rawDocument
	if err := json.Unmarshal(standardized, &raw); err != nil {
		return Document{}, invalid("decode: %v", err)
	}

	if raw.Subjects == nil {
		return Document{}, invalid("missing subjects")
	}
	sessions := raw.Sessions
	if sessions == nil {
		sessions = raw.Entries
	}
	if sessions == nil {
		return Document{}, invalid("missing sessions")
	}

	doc := Document{
		Version:    raw.Version,
		ExportedAt: raw.ExportedAt.Time,
		Subjects:   make([]model.Subject, 0, len(*raw.Subjects)),
		Sessions:   make([]model.Session, 0, len(*sessions)),
		Settings:   raw.Settings,
	}
	if doc.ExportedAt.IsZero() {
		doc.ExportedAt = raw.ExportDate.Time
	}

	seen := make(map[model.ID]bool, len(*raw.Subjects))
	for i, rs := range *raw.Subjects {
		s, err := rs.subject()
		if err != nil {
			return Document{}, invalid("subject %d: %v", i, err)
		}
		if seen[s.ID] {
			return Document{}, invalid("subject %d: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true
		doc.Subjects = append(doc.Subjects, s)
	}

	for i, rs := range *sessions {
		s, err := rs.session()
		if err != nil {
			return Document{}, invalid("session %d: %v", i, err)
		}
		doc.Sessions = append(doc.Sessions, s)
	}

	if doc.Settings != nil {
		if err := repository.ValidateSettings(*doc.Settings); err != nil {
			return Document{}, invalid("settings: %v", err)
		}
	}
	return doc, nil
}

func (r rawSubject) subject() (model.Subject, error) {
	s := model.Subject{ID: r.ID, Name: strings.TrimSpace(r.Name), Color: r.Color}
	if s.ID == "" {
		return s, errors.New("missing id")
	}
	if s.Name == "" {
		return s, errors.New("missing name")
	}
	if r.GoalMinutes != nil {
		if *r.GoalMinutes < 0 {
			return s, errors.New("negative goal")
		}
		s.GoalMinutes = int(math.Round(*r.GoalMinutes))
	}
	return s, nil
}

// session converts r. A missing subjectId is accepted here: a merge skips
// such sessions and an overwrite rejects them.
func (r rawSession) session() (model.Session, error) {
	s := model.Session{ID: r.ID, SubjectID: r.SubjectID}
	duration := r.Duration
	if duration == nil {
		duration = r.DurationSeconds
	}
	if duration == nil {
		return s, errors.New("missing duration")
	}
	if *duration < 0 {
		return s, errors.New("negative duration")
	}
	s.Duration = int64(math.Round(*duration))

	if r.StartTime.IsZero() {
		return s, errors.New("missing startTime")
	}
	s.StartTime = model.Instant(r.StartTime.Time)
	s.EndTime = model.Instant(r.EndTime.Time)
	if r.EndTime.IsZero() {
		s.EndTime = s.StartTime.Add(time.Duration(s.Duration) * time.Second)
	}

	switch {
	case r.Notes != nil:
		s.Notes = *r.Notes
	case r.Note != nil:
		s.Notes = *r.Note
	}
	return s, nil
}

type Strategy int

const (
	// Overwrite replaces all subjects, sessions and settings.
	Overwrite Strategy = iota
	// Merge adds the document's subjects under new ids and keeps only the
	// sessions whose subject is part of the document.
	Merge
)

func (s Strategy) String() string {
	if s == Merge {
		return "merge"
	}
	return "overwrite"
}

// Importer is the part of the repository an import writes to.
type Importer interface {
	NewID() model.ID
	Replace(repository.Snapshot) error
	Append([]model.Subject, []model.Session) error
}

type Result struct {
	Subjects int
	Sessions int
	// Skipped counts sessions dropped because their subject was missing or
	// not in the document.
	Skipped int
}

// Import applies doc with the given strategy in a single write.
func Import(repo Importer, doc Document, strategy Strategy) (Result, error) {
	switch strategy {
	case Overwrite:
		return importOverwrite(repo, doc)
	case Merge:
		return importMerge(repo, doc)
	default:
		return Result{}, fmt.Errorf("unknown import strategy %d", strategy)
	}
}

func importOverwrite(repo Importer, doc Document) (Result, error) {
	if doc.Settings == nil {
		return Result{}, invalid("missing settings")
	}
	sessions := make([]model.Session, len(doc.Sessions))
	copy(sessions, doc.Sessions)
	for i := range sessions {
		if sessions[i].SubjectID == "" {
			return Result{}, invalid("session %d: missing subjectId", i)
		}
		if sessions[i].ID == "" {
			sessions[i].ID = repo.NewID()
		}
	}
	snap := repository.Snapshot{
		Subjects: doc.Subjects,
		Sessions: sessions,
		Settings: *doc.Settings,
	}
	if err := repo.Replace(snap); err != nil {
		return Result{}, fmt.Errorf("replace: %w", err)
	}
	return Result{Subjects: len(doc.Subjects), Sessions: len(sessions)}, nil
}

func importMerge(repo Importer, doc Document) (Result, error) {
	idMap := make(map[model.ID]model.ID, len(doc.Subjects))
	subjects := make([]model.Subject, 0, len(doc.Subjects))
	for _, s := range doc.Subjects {
		newID := repo.NewID()
		idMap[s.ID] = newID
		s.ID = newID
		subjects = append(subjects, s)
	}

	var res Result
	sessions := make([]model.Session, 0, len(doc.Sessions))
	for _, s := range doc.Sessions {
		subjectID, ok := idMap[s.SubjectID]
		if !ok {
			res.Skipped++
			continue
		}
		s.ID = repo.NewID()
		s.SubjectID = subjectID
		sessions = append(sessions, s)
	}

	if err := repo.Append(subjects, sessions); err != nil {
		return Result{}, fmt.Errorf("append: %w", err)
	}
	res.Subjects = len(subjects)
	res.Sessions = len(sessions)
	return res, nil
}
