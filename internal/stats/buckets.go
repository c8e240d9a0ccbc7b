package stats

import (
	"sort"
	"time"

	"github.com/sadopc/lernzeit/internal/model"
)

// Total sums session durations in seconds.
func Total(sessions []model.Session) int64 {
	var sum int64
	for _, s := range sessions {
		sum += s.Duration
	}
	return sum
}

// Average returns the mean session length in seconds, or 0 for no sessions.
func Average(sessions []model.Session) float64 {
	if len(sessions) == 0 {
		return 0
	}
	return float64(Total(sessions)) / float64(len(sessions))
}

// Progress returns seconds/goal clamped to [0, 1]. A non-positive goal
// yields 0.
func Progress(seconds, goal int64) float64 {
	if goal <= 0 || seconds <= 0 {
		return 0
	}
	return min(float64(seconds)/float64(goal), 1)
}

type DayBucket struct {
	Day     Day   `json:"day"`
	Seconds int64 `json:"seconds"`
	Count   int   `json:"count"`
	// Representative is the start time of the earliest session that day.
	Representative time.Time `json:"representative"`
	GoalSeconds    int64     `json:"goalSeconds"`
	Progress       float64   `json:"progress"`
}

// DailyGoal is the target in seconds for one day.
func DailyGoal(settings model.Settings) int64 {
	return int64(settings.DailyGoalMinutes) * 60
}

// ByDay groups sessions by local calendar date, newest day first.
func ByDay(sessions []model.Session, settings model.Settings, loc *time.Location) []DayBucket {
	goal := DailyGoal(settings)
	idx := map[Day]int{}
	var out []DayBucket
	for _, s := range sessions {
		d := DayOf(s.StartTime, loc)
		i, ok := idx[d]
		if !ok {
			i = len(out)
			idx[d] = i
			out = append(out, DayBucket{Day: d, Representative: s.StartTime.In(loc), GoalSeconds: goal})
		}
		out[i].Seconds += s.Duration
		out[i].Count++
		if s.StartTime.Before(out[i].Representative) {
			out[i].Representative = s.StartTime.In(loc)
		}
	}
	for i := range out {
		out[i].Progress = Progress(out[i].Seconds, out[i].GoalSeconds)
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Day.Before(out[i].Day) })
	return out
}

type WeekBucket struct {
	ISOYear     int     `json:"isoYear"`
	ISOWeek     int     `json:"isoWeek"`
	Seconds     int64   `json:"seconds"`
	Count       int     `json:"count"`
	GoalSeconds int64   `json:"goalSeconds"`
	Progress    float64 `json:"progress"`
}

// WeeklyGoal is the target in seconds for one ISO week.
func WeeklyGoal(settings model.Settings) int64 {
	return int64(settings.DailyGoalMinutes) * 60 * int64(settings.LearningDaysPerWeek)
}

// ByWeek groups sessions by ISO-8601 week, newest first.
func ByWeek(sessions []model.Session, settings model.Settings, loc *time.Location) []WeekBucket {
	type key struct{ y, w int }
	goal := WeeklyGoal(settings)
	idx := map[key]int{}
	var out []WeekBucket
	for _, s := range sessions {
		y, w := s.StartTime.In(loc).ISOWeek()
		k := key{y, w}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, WeekBucket{ISOYear: y, ISOWeek: w, GoalSeconds: goal})
		}
		out[i].Seconds += s.Duration
		out[i].Count++
	}
	for i := range out {
		out[i].Progress = Progress(out[i].Seconds, out[i].GoalSeconds)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ISOYear != out[j].ISOYear {
			return out[i].ISOYear > out[j].ISOYear
		}
		return out[i].ISOWeek > out[j].ISOWeek
	})
	return out
}

// WeekOf returns the bucket for the ISO week containing now, which may be
// empty.
func WeekOf(sessions []model.Session, settings model.Settings, now time.Time) WeekBucket {
	y, w := now.ISOWeek()
	for _, b := range ByWeek(sessions, settings, now.Location()) {
		if b.ISOYear == y && b.ISOWeek == w {
			return b
		}
	}
	return WeekBucket{ISOYear: y, ISOWeek: w, GoalSeconds: WeeklyGoal(settings)}
}

type MonthBucket struct {
	Year        int        `json:"year"`
	Month       time.Month `json:"month"`
	Seconds     int64      `json:"seconds"`
	Count       int        `json:"count"`
	GoalSeconds int64      `json:"goalSeconds"`
	Progress    float64    `json:"progress"`
}

// MonthlyGoal is the target in seconds for the given calendar month.
func MonthlyGoal(settings model.Settings, year int, month time.Month) int64 {
	return int64(settings.DailyGoalMinutes) * 60 * int64(daysIn(year, month))
}

// ByMonth groups sessions by calendar month, newest first.
func ByMonth(sessions []model.Session, settings model.Settings, loc *time.Location) []MonthBucket {
	type key struct {
		y int
		m time.Month
	}
	idx := map[key]int{}
	var out []MonthBucket
	for _, s := range sessions {
		t := s.StartTime.In(loc)
		k := key{t.Year(), t.Month()}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, MonthBucket{Year: k.y, Month: k.m, GoalSeconds: MonthlyGoal(settings, k.y, k.m)})
		}
		out[i].Seconds += s.Duration
		out[i].Count++
	}
	for i := range out {
		out[i].Progress = Progress(out[i].Seconds, out[i].GoalSeconds)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	return out
}

// MonthOf returns the bucket for the month containing now, which may be
// empty.
func MonthOf(sessions []model.Session, settings model.Settings, now time.Time) MonthBucket {
	y, m := now.Year(), now.Month()
	for _, b := range ByMonth(sessions, settings, now.Location()) {
		if b.Year == y && b.Month == m {
			return b
		}
	}
	return MonthBucket{Year: y, Month: m, GoalSeconds: MonthlyGoal(settings, y, m)}
}

// SortByStartDesc returns a copy of sessions ordered newest first.
func SortByStartDesc(sessions []model.Session) []model.Session {
	out := make([]model.Session, len(sessions))
	copy(out, sessions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	return out
}
