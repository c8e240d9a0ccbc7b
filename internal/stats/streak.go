package stats

import (
	"time"

	"github.com/sadopc/lernzeit/internal/model"
)

// Streak counts consecutive calendar days with at least one session, ending
// today or, if nothing was logged today yet, yesterday.
func Streak(sessions []model.Session, now time.Time) int {
	loc := now.Location()
	days := make(map[Day]bool, len(sessions))
	for _, s := range sessions {
		days[DayOf(s.StartTime, loc)] = true
	}

	day := DayOf(now, loc)
	if !days[day] {
		day = day.AddDays(-1)
		if !days[day] {
			return 0
		}
	}

	streak := 0
	for days[day] {
		streak++
		day = day.AddDays(-1)
	}
	return streak
}
