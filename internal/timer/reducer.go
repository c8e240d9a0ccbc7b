// Package timer implements the study timer as a pure state machine plus an
// Engine that persists every transition and drives the 1-second tick.
//
// Elapsed time is always recomputed from an anchor timestamp, never counted
// up tick by tick, so missed ticks and process restarts do not lose time.
package timer

import (
	"errors"
	"strings"
	"time"

	"github.com/sadopc/lernzeit/internal/model"
)

var (
	ErrInvalidTransition = errors.New("invalid timer transition")
	ErrConfirmRequired   = errors.New("discarding tracked time requires confirmation")
	ErrNothingToSave     = errors.New("no time tracked")
	ErrNoSubject         = errors.New("a subject is required to start the timer")
)

type Status int

const (
	Idle Status = iota
	Running
	Paused
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// State is the in-memory timer. Anchor is only meaningful while Running:
// it is the wall-clock instant at which Accumulated would have been zero.
type State struct {
	Status      Status
	SubjectID   model.ID
	Accumulated int64
	Anchor      time.Time
}

// Elapsed returns the whole seconds tracked as of now.
func (s State) Elapsed(now time.Time) int64 {
	if s.Status != Running {
		return s.Accumulated
	}
	return secondsSince(s.Anchor, now)
}

// Persisted returns the stored form of s. While running, the persisted
// instant is anchor + accumulated, so recovery adds exactly the seconds
// that have not been counted yet.
func (s State) Persisted(now time.Time) model.TimerState {
	ts := model.TimerState{
		IsRunning:          s.Status == Running,
		AccumulatedSeconds: s.Accumulated,
		SubjectID:          s.SubjectID,
		LastPersistedAt:    now.UnixMilli(),
	}
	if s.Status == Running {
		ts.LastPersistedAt = s.Anchor.Add(time.Duration(s.Accumulated) * time.Second).UnixMilli()
	}
	return ts
}

type EventKind int

const (
	Start EventKind = iota
	Tick
	Pause
	Resume
	Stop
	Finish
)

func (k EventKind) String() string {
	return [...]string{"start", "tick", "pause", "resume", "stop", "finish"}[k]
}

type Event struct {
	Kind EventKind
	// SubjectID is read by Start from Idle.
	SubjectID model.ID
	// Notes is read by Finish.
	Notes string
	// Confirmed allows Stop to discard tracked time.
	Confirmed bool
}

// Effect tells the caller what to persist after a transition.
type Effect struct {
	Persist *model.TimerState
	Clear   bool
	// Session is the completed session produced by Finish.
	Session *model.Session
}

// Reduce applies ev to s at now. On error the returned state is s.
func Reduce(s State, ev Event, now time.Time) (State, Effect, error) {
	switch ev.Kind {
	case Start:
		switch s.Status {
		case Idle:
			subject := model.ID(strings.TrimSpace(string(ev.SubjectID)))
			if subject == "" {
				return s, Effect{}, ErrNoSubject
			}
			next := State{Status: Running, SubjectID: subject, Anchor: now}
			return next, persist(next, now), nil
		case Paused:
			return resume(s, now)
		}

	case Resume:
		if s.Status == Paused {
			return resume(s, now)
		}

	case Tick:
		if s.Status == Running {
			next := s
			next.Accumulated = secondsSince(s.Anchor, now)
			return next, persist(next, now), nil
		}

	case Pause:
		if s.Status == Running {
			next := s
			next.Accumulated = secondsSince(s.Anchor, now)
			next.Status = Paused
			next.Anchor = time.Time{}
			return next, persist(next, now), nil
		}

	case Stop:
		if s.Status == Running || s.Status == Paused {
			if s.Elapsed(now) > 0 && !ev.Confirmed {
				return s, Effect{}, ErrConfirmRequired
			}
			return State{}, Effect{Clear: true}, nil
		}

	case Finish:
		if s.Status == Running || s.Status == Paused {
			acc := s.Elapsed(now)
			if acc <= 0 {
				return s, Effect{}, ErrNothingToSave
			}
			end := model.Instant(now)
			session := model.Session{
				SubjectID: s.SubjectID,
				StartTime: end.Add(-time.Duration(acc) * time.Second),
				EndTime:   end,
				Duration:  acc,
				Notes:     strings.TrimSpace(ev.Notes),
			}
			return State{}, Effect{Clear: true, Session: &session}, nil
		}
	}
	return s, Effect{}, ErrInvalidTransition
}

func resume(s State, now time.Time) (State, Effect, error) {
	next := s
	next.Status = Running
	next.Anchor = now.Add(-time.Duration(s.Accumulated) * time.Second)
	return next, persist(next, now), nil
}

func persist(s State, now time.Time) Effect {
	ts := s.Persisted(now)
	return Effect{Persist: &ts}
}

// Recover rebuilds the in-memory state from a persisted timer. A running
// timer is credited with the whole seconds that passed since it was last
// persisted; a clock that moved backwards credits nothing.
func Recover(ts model.TimerState, now time.Time) State {
	s := State{
		Status:      Paused,
		SubjectID:   ts.SubjectID,
		Accumulated: max(ts.AccumulatedSeconds, 0),
	}
	if !ts.IsRunning {
		return s
	}
	s.Status = Running
	last := time.UnixMilli(ts.LastPersistedAt)
	if now.Before(last) {
		s.Anchor = now.Add(-time.Duration(s.Accumulated) * time.Second)
	} else {
		s.Anchor = last.Add(-time.Duration(s.Accumulated) * time.Second)
	}
	s.Accumulated = secondsSince(s.Anchor, now)
	return s
}

// needsRepair reports whether a recovered ts must be written back: its count
// was negative, or it was persisted in the future because the clock moved
// backwards. Otherwise the stored form already recovers to the same anchor.
func needsRepair(ts model.TimerState, now time.Time) bool {
	return ts.AccumulatedSeconds < 0 ||
		(ts.IsRunning && now.Before(time.UnixMilli(ts.LastPersistedAt)))
}

func secondsSince(anchor, now time.Time) int64 {
	d := now.Sub(anchor)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
