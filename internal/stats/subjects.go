package stats

import (
	"sort"
	"strings"

	"github.com/sadopc/lernzeit/internal/model"
)

// UnknownSubject is shown for sessions whose subject was deleted.
const UnknownSubject = "Unknown"

// SubjectName resolves id against subjects, falling back to UnknownSubject.
func SubjectName(subjects []model.Subject, id model.ID) string {
	for _, s := range subjects {
		if s.ID == id {
			return s.Name
		}
	}
	return UnknownSubject
}

type Filter struct {
	SubjectID model.ID
	// Query matches notes or the subject name, case-insensitively.
	Query string
}

// FilterSessions keeps the sessions matching every non-empty field of f.
func FilterSessions(sessions []model.Session, subjects []model.Subject, f Filter) []model.Session {
	query := strings.ToLower(strings.TrimSpace(f.Query))
	names := make(map[model.ID]string, len(subjects))
	for _, s := range subjects {
		names[s.ID] = strings.ToLower(s.Name)
	}

	var out []model.Session
	for _, s := range sessions {
		if f.SubjectID != "" && s.SubjectID != f.SubjectID {
			continue
		}
		if query != "" {
			name, ok := names[s.SubjectID]
			if !ok {
				name = strings.ToLower(UnknownSubject)
			}
			if !strings.Contains(strings.ToLower(s.Notes), query) && !strings.Contains(name, query) {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

type SubjectTotal struct {
	Subject model.Subject `json:"subject"`
	Seconds int64         `json:"seconds"`
	Count   int           `json:"count"`
	// Share is this subject's fraction of all tracked time.
	Share float64 `json:"share"`
	// GoalSeconds comes from the subject's own goal and is 0 without one.
	GoalSeconds int64   `json:"goalSeconds"`
	Progress    float64 `json:"progress"`
}

// BySubject totals sessions per subject, largest first. Subjects without
// sessions are included with zero seconds; orphaned sessions are grouped
// under a single UnknownSubject entry.
func BySubject(sessions []model.Session, subjects []model.Subject) []SubjectTotal {
	idx := make(map[model.ID]int, len(subjects))
	out := make([]SubjectTotal, 0, len(subjects)+1)
	for _, s := range subjects {
		idx[s.ID] = len(out)
		out = append(out, SubjectTotal{Subject: s, GoalSeconds: int64(s.GoalMinutes) * 60})
	}
	unknown := -1
	for _, s := range sessions {
		i, ok := idx[s.SubjectID]
		if !ok {
			if unknown < 0 {
				unknown = len(out)
				out = append(out, SubjectTotal{Subject: model.Subject{Name: UnknownSubject}})
			}
			i = unknown
		}
		out[i].Seconds += s.Duration
		out[i].Count++
	}

	total := Total(sessions)
	for i := range out {
		if total > 0 {
			out[i].Share = float64(out[i].Seconds) / float64(total)
		}
		out[i].Progress = Progress(out[i].Seconds, out[i].GoalSeconds)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seconds > out[j].Seconds })
	return out
}
