// Package cli wires the lernzeit command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sadopc/lernzeit/internal/config"
	"github.com/sadopc/lernzeit/internal/logging"
	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/repository"
	"github.com/sadopc/lernzeit/internal/store"
	"github.com/sadopc/lernzeit/internal/timer"
)

// ErrAborted is returned when the user declines a confirmation prompt.
var ErrAborted = errors.New("aborted")

type options struct {
	env     []string
	now     func() time.Time
	confirm Confirmer
	runTUI  func(context.Context, *app) error
}

type Option func(*options)

// WithEnv replaces the process environment, as KEY=VALUE pairs.
func WithEnv(env []string) Option {
	return func(o *options) { o.env = env }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithConfirmer replaces the interactive yes/no prompt.
func WithConfirmer(c Confirmer) Option {
	return func(o *options) { o.confirm = c }
}

// app is what every command runs against: resolved config, a logger and
// the opened repository.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	logFile io.Closer
	backend store.Backend
	repo    *repository.Repository
	loc     *time.Location
	now     func() time.Time
	confirm Confirmer
}

func (a *app) Close() error {
	err := a.backend.Close()
	if a.logFile != nil {
		err = errors.Join(err, a.logFile.Close())
	}
	return err
}

// clock returns the current time in the configured zone.
func (a *app) clock() time.Time {
	return a.now().In(a.loc)
}

type clockFunc func() time.Time

func (f clockFunc) Now() time.Time { return f() }

// engine returns a timer engine without a tick goroutine. Commands are
// one-shot, so elapsed time comes from recovery alone.
func (a *app) engine() (*timer.Engine, error) {
	e := timer.New(a.repo,
		timer.WithClock(clockFunc(a.now)),
		timer.WithInterval(0),
		timer.WithLogger(a.log),
	)
	if _, err := e.Recover(); err != nil {
		return nil, err
	}
	return e, nil
}

// Execute runs the command tree with os.Args and returns the exit code.
func Execute(ctx context.Context) int {
	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "error:", describe(err))
		return 1
	}
	return 0
}

// describe turns well-known failures into an actionable message.
func describe(err error) string {
	switch {
	case errors.Is(err, repository.ErrWriteFailed):
		return err.Error() + " (check free disk space and permissions of the data path)"
	case errors.Is(err, store.ErrLocked):
		return err.Error() + " (is another lernzeit process running?)"
	default:
		return err.Error()
	}
}

func NewRootCmd(opts ...Option) *cobra.Command {
	o := &options{now: time.Now, runTUI: runTUI}
	for _, opt := range opts {
		opt(o)
	}

	root := &cobra.Command{
		Use:           "lernzeit",
		Short:         "Track study time per subject",
		Long:          "lernzeit tracks study sessions per subject, with a timer, goals, streaks and backups.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: withTUIApp(o),
	}
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newTUICmd(o))
	root.AddCommand(newTimerCmd(o))
	root.AddCommand(newLogCmd(o))
	root.AddCommand(newEntriesCmd(o))
	root.AddCommand(newSubjectsCmd(o))
	root.AddCommand(newStatsCmd(o))
	root.AddCommand(newExportCmd(o))
	root.AddCommand(newImportCmd(o))
	root.AddCommand(newSettingsCmd(o))
	root.AddCommand(newResetCmd(o))
	root.AddCommand(newServeCmd(o))
	root.AddCommand(newConfigCmd(o))
	return root
}

type runFunc func(cmd *cobra.Command, a *app, args []string) error

// logSink picks where an app logs once its config is resolved. The closer
// may be nil.
type logSink func(cmd *cobra.Command, cfg config.Config) (io.Writer, io.Closer, error)

func stderrSink(cmd *cobra.Command, _ config.Config) (io.Writer, io.Closer, error) {
	return cmd.ErrOrStderr(), nil, nil
}

// withApp resolves config, opens the backend for the duration of fn and
// closes it afterwards. Logs go to stderr.
func withApp(o *options, fn runFunc) func(*cobra.Command, []string) error {
	return withAppLogging(o, stderrSink, fn)
}

func withAppLogging(o *options, sink logSink, fn runFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, o, sink)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); cerr != nil {
				a.log.Warn("close backend", "error", cerr)
			}
		}()
		return fn(cmd, a, args)
	}
}

func openApp(cmd *cobra.Command, o *options, sink logSink) (_ *app, err error) {
	cfg, sources, err := config.Load(cmd.Flags(), o.env)
	if err != nil {
		return nil, err
	}
	w, logFile, err := sink(cmd, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil && logFile != nil {
			_ = logFile.Close()
		}
	}()
	log, err := logging.New(w, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	log.Debug("config resolved",
		"backend", cfg.Backend,
		"data", cfg.DataPath,
		"global", sources.Global,
		"explicit", sources.Explicit,
	)
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	backend, err := store.Open(cfg.Backend, cfg.DataPath)
	if err != nil {
		return nil, err
	}
	repo, err := repository.New(backend, repository.WithLogger(log))
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	confirm := o.confirm
	if confirm == nil {
		confirm = linerConfirmer{}
	}
	return &app{
		cfg:     cfg,
		log:     log,
		logFile: logFile,
		backend: backend,
		repo:    repo,
		loc:     loc,
		now:     o.now,
		confirm: confirm,
	}, nil
}

// resolveSubject accepts a subject id or a case-insensitive name.
func resolveSubject(subjects []model.Subject, arg string) (model.Subject, error) {
	arg = strings.TrimSpace(arg)
	for _, s := range subjects {
		if string(s.ID) == arg {
			return s, nil
		}
	}
	var matches []model.Subject
	for _, s := range subjects {
		if strings.EqualFold(s.Name, arg) {
			matches = append(matches, s)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return model.Subject{}, fmt.Errorf("no subject %q (see 'lernzeit subjects')", arg)
	default:
		return model.Subject{}, fmt.Errorf("subject name %q is ambiguous, use its id", arg)
	}
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
