// Package server exposes the analytics over a read-only local JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sadopc/lernzeit/internal/export"
	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/repository"
	"github.com/sadopc/lernzeit/internal/stats"
	"github.com/sadopc/lernzeit/internal/timer"
)

// MaxHistogramDays bounds the ?days= parameter of /api/histogram.
const MaxHistogramDays = 366

// Source is the data the API reads. *repository.Repository satisfies it.
type Source interface {
	Entries() []model.Session
	Subjects() []model.Subject
	Settings() model.Settings
	TimerState() (model.TimerState, bool)
	Snapshot() repository.Snapshot
}

type Server struct {
	src Source
	log *slog.Logger
	now func() time.Time
	loc *time.Location
}

type Option func(*Server)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithLocation sets the zone used for day, week and month buckets.
func WithLocation(loc *time.Location) Option {
	return func(s *Server) { s.loc = loc }
}

func New(src Source, log *slog.Logger, opts ...Option) *Server {
	s := &Server{src: src, log: log, now: time.Now, loc: time.Local}
	if s.log == nil {
		s.log = slog.New(slog.DiscardHandler)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, "not found", http.StatusNotFound)
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/overview", s.getOverview)
		r.Get("/subjects", s.getSubjects)
		r.Get("/sessions", s.getSessions)
		r.Get("/days", s.getDays)
		r.Get("/weeks", s.getWeeks)
		r.Get("/months", s.getMonths)
		r.Get("/histogram", s.getHistogram)
		r.Get("/timer", s.getTimer)
		r.Get("/export", s.getExport)
		r.Get("/export.csv", s.getExportCSV)
	})
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) clock() time.Time {
	return s.now().In(s.loc)
}

func (s *Server) getOverview(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, stats.NewOverview(s.src.Entries(), s.src.Settings(), s.clock()), http.StatusOK)
}

func (s *Server) getSubjects(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, stats.BySubject(s.src.Entries(), s.src.Subjects()), http.StatusOK)
}

func (s *Server) getSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := stats.Filter{
		SubjectID: model.ID(q.Get("subject")),
		Query:     q.Get("q"),
	}
	sessions := stats.FilterSessions(s.src.Entries(), s.src.Subjects(), filter)
	respondJSON(w, stats.SortByStartDesc(sessions), http.StatusOK)
}

func (s *Server) getDays(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, nonNil(stats.ByDay(s.src.Entries(), s.src.Settings(), s.loc)), http.StatusOK)
}

func (s *Server) getWeeks(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, nonNil(stats.ByWeek(s.src.Entries(), s.src.Settings(), s.loc)), http.StatusOK)
}

func (s *Server) getMonths(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, nonNil(stats.ByMonth(s.src.Entries(), s.src.Settings(), s.loc)), http.StatusOK)
}

type histogram struct {
	Days         []stats.DayBucket `json:"days"`
	ScaleSeconds int64             `json:"scaleSeconds"`
	Heights      []float64         `json:"heights"`
}

func (s *Server) getHistogram(w http.ResponseWriter, r *http.Request) {
	n := stats.DefaultDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > MaxHistogramDays {
			respondError(w, fmt.Sprintf("days must be between 1 and %d", MaxHistogramDays), http.StatusBadRequest)
			return
		}
		n = v
	}
	days := stats.LastNDays(s.src.Entries(), s.clock(), n)
	respondJSON(w, histogram{
		Days:         days,
		ScaleSeconds: stats.ScaleMax(days),
		Heights:      stats.BarHeights(days),
	}, http.StatusOK)
}

type timerStatus struct {
	Status      string   `json:"status"`
	SubjectID   model.ID `json:"subjectId,omitempty"`
	SubjectName string   `json:"subjectName,omitempty"`
	Seconds     int64    `json:"seconds"`
}

func (s *Server) getTimer(w http.ResponseWriter, _ *http.Request) {
	out := timerStatus{Status: timer.Idle.String()}
	if ts, ok := s.src.TimerState(); ok {
		now := s.now()
		st := timer.Recover(ts, now)
		out = timerStatus{
			Status:      st.Status.String(),
			SubjectID:   st.SubjectID,
			SubjectName: stats.SubjectName(s.src.Subjects(), st.SubjectID),
			Seconds:     st.Elapsed(now),
		}
	}
	respondJSON(w, out, http.StatusOK)
}

func (s *Server) getExport(w http.ResponseWriter, _ *http.Request) {
	data, err := export.EncodeJSON(export.NewDocument(s.src.Snapshot(), s.now()))
	if err != nil {
		s.log.Error("encode export", "error", err)
		respondError(w, "export failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.DefaultFileName(s.clock(), "json")+`"`)
	_, _ = w.Write(data)
}

func (s *Server) getExportCSV(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.DefaultFileName(s.clock(), "csv")+`"`)
	sessions := stats.SortByStartDesc(s.src.Entries())
	if err := export.ToCSV(w, sessions, s.src.Subjects(), s.loc); err != nil {
		s.log.Error("write csv", "error", err)
	}
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
