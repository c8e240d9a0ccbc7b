package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// ID is an opaque entity identifier. Older data stored ids as JSON numbers
// (millisecond timestamps), so decoding accepts both forms and normalizes
// them to the same string.
type ID string

func (id ID) String() string { return string(id) }

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number, got %s", data)
	}
	*id = idFromNumber(n)
	return nil
}

func idFromNumber(n json.Number) ID {
	if i, err := n.Int64(); err == nil {
		return ID(strconv.FormatInt(i, 10))
	}
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<63 {
		return ID(strconv.FormatInt(int64(f), 10))
	}
	return ID(n.String())
}

// UnmarshalJSON accepts startTime/endTime either as RFC 3339 strings or as
// epoch-millisecond numbers.
func (s *Session) UnmarshalJSON(data []byte) error {
	type plain Session
	var raw struct {
		plain
		StartTime FlexTime `json:"startTime"`
		EndTime   FlexTime `json:"endTime"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Session(raw.plain)
	s.StartTime = raw.StartTime.Time
	s.EndTime = raw.EndTime.Time
	return nil
}

// FlexTime decodes an absolute timestamp written as an RFC 3339 string or as
// a number of milliseconds since the Unix epoch.
type FlexTime struct {
	time.Time
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("timestamp must be a string or number, got %s", data)
	}
	ms, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil {
			return fmt.Errorf("parse timestamp %s: %w", data, ferr)
		}
		ms = int64(f)
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

// MarshalJSON writes the zero time as null so round trips stay stable.
func (t FlexTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time)
}

// UnmarshalJSON fills fields missing from data with their defaults and also
// accepts the older dailyGoal / learningDays names.
func (s *Settings) UnmarshalJSON(data []byte) error {
	var raw struct {
		DailyGoalMinutes    *int  `json:"dailyGoalMinutes"`
		DailyGoal           *int  `json:"dailyGoal"`
		LearningDaysPerWeek *int  `json:"learningDaysPerWeek"`
		LearningDays        *int  `json:"learningDays"`
		DarkMode            *bool `json:"darkMode"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := DefaultSettings()
	if raw.DailyGoal != nil {
		out.DailyGoalMinutes = *raw.DailyGoal
	}
	if raw.DailyGoalMinutes != nil {
		out.DailyGoalMinutes = *raw.DailyGoalMinutes
	}
	if raw.LearningDays != nil {
		out.LearningDaysPerWeek = *raw.LearningDays
	}
	if raw.LearningDaysPerWeek != nil {
		out.LearningDaysPerWeek = *raw.LearningDaysPerWeek
	}
	if raw.DarkMode != nil {
		out.DarkMode = *raw.DarkMode
	}
	*s = out
	return nil
}
