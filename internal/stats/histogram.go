package stats

import (
	"time"

	"github.com/sadopc/lernzeit/internal/model"
)

const (
	// MinScaleSeconds keeps a single short day from filling the chart.
	MinScaleSeconds = 3600
	// MinBarHeight is the visible floor for bars, as a fraction of the scale.
	MinBarHeight = 0.05
	DefaultDays  = 7
)

// LastNDays returns one bucket per calendar day for the n days ending
// today, oldest first. Days without sessions have zero seconds.
func LastNDays(sessions []model.Session, now time.Time, n int) []DayBucket {
	if n <= 0 {
		return nil
	}
	loc := now.Location()
	today := DayOf(now, loc)
	first := today.AddDays(-(n - 1))

	out := make([]DayBucket, n)
	idx := make(map[Day]int, n)
	for i := range out {
		d := first.AddDays(i)
		out[i] = DayBucket{Day: d, Representative: d.Start(loc)}
		idx[d] = i
	}
	for _, s := range sessions {
		if i, ok := idx[DayOf(s.StartTime, loc)]; ok {
			out[i].Seconds += s.Duration
			out[i].Count++
		}
	}
	return out
}

// ScaleMax is the chart denominator: the largest day, but at least an hour.
func ScaleMax(days []DayBucket) int64 {
	m := int64(MinScaleSeconds)
	for _, d := range days {
		m = max(m, d.Seconds)
	}
	return m
}

// BarHeights returns each day's height as a fraction of ScaleMax. Bars never
// drop below MinBarHeight, except that an empty first day stays at zero.
func BarHeights(days []DayBucket) []float64 {
	scale := float64(ScaleMax(days))
	out := make([]float64, len(days))
	for i, d := range days {
		if i == 0 && d.Seconds == 0 {
			continue
		}
		out[i] = max(float64(d.Seconds)/scale, MinBarHeight)
	}
	return out
}
