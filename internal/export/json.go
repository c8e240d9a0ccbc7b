// Package export converts the full data set to and from a portable backup
// document, and renders a flat CSV view of the sessions.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/repository"
)

// DocumentVersion is written into every exported document.
const DocumentVersion = 1

// Document is the backup format. Timestamps are absolute (RFC 3339 in UTC),
// so a backup can be restored in any time zone.
type Document struct {
	Version    int             `json:"version" yaml:"version"`
	ExportedAt time.Time       `json:"exportedAt" yaml:"exportedAt"`
	Subjects   []model.Subject `json:"subjects" yaml:"subjects"`
	Sessions   []model.Session `json:"sessions" yaml:"sessions"`
	Settings   *model.Settings `json:"settings,omitempty" yaml:"settings,omitempty"`
}

func NewDocument(snap repository.Snapshot, now time.Time) Document {
	settings := snap.Settings
	doc := Document{
		Version:    DocumentVersion,
		ExportedAt: model.Instant(now),
		Subjects:   snap.Subjects,
		Sessions:   make([]model.Session, len(snap.Sessions)),
		Settings:   &settings,
	}
	for i, s := range snap.Sessions {
		s.StartTime = model.Instant(s.StartTime)
		s.EndTime = model.Instant(s.EndTime)
		doc.Sessions[i] = s
	}
	if doc.Subjects == nil {
		doc.Subjects = []model.Subject{}
	}
	return doc
}

func EncodeJSON(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	return append(data, '\n'), nil
}

func EncodeYAML(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("marshal yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile replaces path atomically, so an interrupted export never
// leaves a truncated backup behind.
func WriteFile(path string, data []byte) error {
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// DefaultFileName names a backup taken at now, e.g.
// lernzeit-backup-2026-03-10.json.
func DefaultFileName(now time.Time, ext string) string {
	return fmt.Sprintf("lernzeit-backup-%s.%s", now.Format("2006-01-02"), ext)
}
