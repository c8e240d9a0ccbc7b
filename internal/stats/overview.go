package stats

import (
	"time"

	"github.com/sadopc/lernzeit/internal/model"
)

// Overview bundles the figures shown on the dashboard.
type Overview struct {
	TotalSeconds   int64       `json:"totalSeconds"`
	Sessions       int         `json:"sessions"`
	AverageSeconds float64     `json:"averageSeconds"`
	Streak         int         `json:"streak"`
	TodaySeconds   int64       `json:"todaySeconds"`
	DailyGoal      int64       `json:"dailyGoalSeconds"`
	TodayProgress  float64     `json:"todayProgress"`
	Week           WeekBucket  `json:"week"`
	Month          MonthBucket `json:"month"`
	LastDays       []DayBucket `json:"lastDays"`
}

func NewOverview(sessions []model.Session, settings model.Settings, now time.Time) Overview {
	days := LastNDays(sessions, now, DefaultDays)
	today := days[len(days)-1].Seconds
	goal := int64(settings.DailyGoalMinutes) * 60
	return Overview{
		TotalSeconds:   Total(sessions),
		Sessions:       len(sessions),
		AverageSeconds: Average(sessions),
		Streak:         Streak(sessions, now),
		TodaySeconds:   today,
		DailyGoal:      goal,
		TodayProgress:  Progress(today, goal),
		Week:           WeekOf(sessions, settings, now),
		Month:          MonthOf(sessions, settings, now),
		LastDays:       days,
	}
}
