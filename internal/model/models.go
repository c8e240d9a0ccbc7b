// Package model holds the value types shared by the repository, the timer
// engine, the aggregator and the import/export codec.
package model

import (
	"time"
)

type Subject struct {
	ID          ID     `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Color       string `json:"color" yaml:"color"`
	GoalMinutes int    `json:"goalMinutes,omitempty" yaml:"goalMinutes,omitempty"`
}

// Session is one logged block of study time. Duration is authoritative for
// analytics; EndTime-StartTime may drift from it after manual edits.
type Session struct {
	ID        ID        `json:"id" yaml:"id"`
	SubjectID ID        `json:"subjectId" yaml:"subjectId"`
	StartTime time.Time `json:"startTime" yaml:"startTime"`
	EndTime   time.Time `json:"endTime" yaml:"endTime"`
	Duration  int64     `json:"duration" yaml:"duration"` // seconds
	Notes     string    `json:"notes" yaml:"notes"`
}

type Settings struct {
	DailyGoalMinutes    int  `json:"dailyGoalMinutes" yaml:"dailyGoalMinutes"`
	LearningDaysPerWeek int  `json:"learningDaysPerWeek" yaml:"learningDaysPerWeek"`
	DarkMode            bool `json:"darkMode" yaml:"darkMode"`
}

// TimerState is the persisted form of an in-progress timer.
// LastPersistedAt is the epoch-ms instant up to which AccumulatedSeconds
// has been counted.
type TimerState struct {
	IsRunning          bool  `json:"isRunning"`
	AccumulatedSeconds int64 `json:"accumulatedSeconds"`
	SubjectID          ID    `json:"subjectId"`
	LastPersistedAt    int64 `json:"lastPersistedAtEpochMs"`
}

const (
	DefaultDailyGoalMinutes    = 60
	DefaultLearningDaysPerWeek = 5
)

// DefaultSettings returns the settings used before the user changes anything.
func DefaultSettings() Settings {
	return Settings{
		DailyGoalMinutes:    DefaultDailyGoalMinutes,
		LearningDaysPerWeek: DefaultLearningDaysPerWeek,
		DarkMode:            true,
	}
}

// DefaultSubjects are seeded on first run so the subject list is never empty.
func DefaultSubjects() []Subject {
	return []Subject{
		{ID: "1", Name: "Informatik", Color: "blue"},
		{ID: "2", Name: "Mathe", Color: "green"},
		{ID: "3", Name: "Englisch", Color: "yellow"},
	}
}

// Colors is the categorical palette a subject color is chosen from.
var Colors = []string{"blue", "red", "purple", "green", "yellow", "pink", "indigo", "orange", "teal", "rose"}

// SessionPatch carries a shallow update; nil fields are left unchanged.
type SessionPatch struct {
	ID        ID
	SubjectID *ID
	StartTime *time.Time
	EndTime   *time.Time
	Duration  *int64
	Notes     *string
}

type SubjectPatch struct {
	ID          ID
	Name        *string
	Color       *string
	GoalMinutes *int
}

type SettingsPatch struct {
	DailyGoalMinutes    *int
	LearningDaysPerWeek *int
	DarkMode            *bool
}

// Apply merges p into s.
func (p SessionPatch) Apply(s Session) Session {
	if p.SubjectID != nil {
		s.SubjectID = *p.SubjectID
	}
	if p.StartTime != nil {
		s.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		s.EndTime = *p.EndTime
	}
	if p.Duration != nil {
		s.Duration = *p.Duration
	}
	if p.Notes != nil {
		s.Notes = *p.Notes
	}
	return s
}

func (p SubjectPatch) Apply(s Subject) Subject {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Color != nil {
		s.Color = *p.Color
	}
	if p.GoalMinutes != nil {
		s.GoalMinutes = *p.GoalMinutes
	}
	return s
}

func (p SettingsPatch) Apply(s Settings) Settings {
	if p.DailyGoalMinutes != nil {
		s.DailyGoalMinutes = *p.DailyGoalMinutes
	}
	if p.LearningDaysPerWeek != nil {
		s.LearningDaysPerWeek = *p.LearningDaysPerWeek
	}
	if p.DarkMode != nil {
		s.DarkMode = *p.DarkMode
	}
	return s
}

// Instant normalizes t to the UTC, millisecond precision used on disk.
func Instant(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
