package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/stats"
)

var csvHeader = []string{"Date", "Time", "Subject", "DurationMinutes", "Notes"}

// ToCSV writes one row per session, in the order given. Dates and times are
// rendered in loc.
func ToCSV(w io.Writer, sessions []model.Session, subjects []model.Subject, loc *time.Location) error {
	names := make(map[model.ID]string, len(subjects))
	for _, s := range subjects {
		names[s.ID] = s.Name
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for _, s := range sessions {
		subjectName, ok := names[s.SubjectID]
		if !ok {
			subjectName = stats.UnknownSubject
		}
		start := s.StartTime.In(loc)
		row := []string{
			start.Format("2006-01-02"),
			start.Format("15:04"),
			subjectName,
			formatMinutes(s.Duration),
			s.Notes,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSV renders the CSV view and replaces path atomically.
func WriteCSV(path string, sessions []model.Session, subjects []model.Subject, loc *time.Location) error {
	var buf bytes.Buffer
	if err := ToCSV(&buf, sessions, subjects, loc); err != nil {
		return fmt.Errorf("render csv: %w", err)
	}
	return WriteFile(path, buf.Bytes())
}

func formatMinutes(secs int64) string {
	return strconv.FormatFloat(float64(secs)/60, 'f', 2, 64)
}
