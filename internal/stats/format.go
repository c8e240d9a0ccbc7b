package stats

import "fmt"

// Clock renders seconds as a stopwatch reading: MM:SS below an hour,
// H:MM:SS above.
func Clock(secs int64) string {
	secs = max(secs, 0)
	h, m, s := secs/3600, secs%3600/60, secs%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// Human renders seconds as whole hours and minutes, e.g. "1h 5min" or
// "25min".
func Human(secs int64) string {
	m := max(secs, 0) / 60
	if h := m / 60; h > 0 {
		return fmt.Sprintf("%dh %dmin", h, m%60)
	}
	return fmt.Sprintf("%dmin", m)
}

// Hours renders seconds as decimal hours with one digit, e.g. "1.5h".
func Hours(secs int64) string {
	return fmt.Sprintf("%.1fh", float64(secs)/3600)
}
