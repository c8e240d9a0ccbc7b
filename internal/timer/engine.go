package timer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sadopc/lernzeit/internal/model"
)

// Store is the persistence the engine needs. *repository.Repository
// satisfies it.
type Store interface {
	TimerState() (model.TimerState, bool)
	SaveTimerState(model.TimerState) error
	ClearTimerState() error
	// CompleteSession saves a finished session and clears the timer state
	// in one write.
	CompleteSession(model.Session) (model.Session, error)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Engine owns the timer state and at most one tick goroutine. The goroutine
// runs exactly while the state is Running.
type Engine struct {
	mu       sync.Mutex
	state    State
	store    Store
	clock    Clock
	interval time.Duration
	log      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	ticks  chan State
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithInterval sets the tick period. Zero disables the tick goroutine;
// callers then drive the engine with Tick.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) { e.interval = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		clock:    systemClock{},
		interval: time.Second,
		log:      slog.New(slog.DiscardHandler),
		ticks:    make(chan State, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ticks delivers the state after every tick. Sends never block; a slow
// reader only sees the latest value.
func (e *Engine) Ticks() <-chan State {
	return e.ticks
}

// State returns the current state with Accumulated brought up to date.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.state
	s.Accumulated = s.Elapsed(e.clock.Now())
	return s
}

// Recover loads a persisted timer, if any, and resumes it. The stored state
// is only rewritten when it needs repair, so recovering is a read.
func (e *Engine) Recover() (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ts, ok := e.store.TimerState()
	if !ok {
		return e.state, nil
	}
	now := e.clock.Now()
	e.state = Recover(ts, now)
	e.syncTicker()
	e.log.Info("timer recovered",
		"status", e.state.Status.String(),
		"subject", e.state.SubjectID,
		"seconds", e.state.Accumulated,
	)
	if !needsRepair(ts, now) {
		return e.state, nil
	}
	if err := e.store.SaveTimerState(e.state.Persisted(now)); err != nil {
		return e.state, fmt.Errorf("persist recovered timer: %w", err)
	}
	return e.state, nil
}

func (e *Engine) Start(subject model.ID) error {
	_, err := e.dispatch(Event{Kind: Start, SubjectID: subject})
	return err
}

func (e *Engine) Pause() error {
	_, err := e.dispatch(Event{Kind: Pause})
	return err
}

func (e *Engine) Resume() error {
	_, err := e.dispatch(Event{Kind: Resume})
	return err
}

// Stop discards the tracked time. It returns ErrConfirmRequired when time
// would be lost and confirmed is false.
func (e *Engine) Stop(confirmed bool) error {
	_, err := e.dispatch(Event{Kind: Stop, Confirmed: confirmed})
	return err
}

// Finish saves the tracked time as a session and resets the timer.
func (e *Engine) Finish(notes string) (model.Session, error) {
	eff, err := e.dispatch(Event{Kind: Finish, Notes: notes})
	if eff.Session == nil {
		return model.Session{}, err
	}
	return *eff.Session, err
}

// Tick recomputes the elapsed time and persists it.
func (e *Engine) Tick() (State, error) {
	return e.tick(context.Background())
}

func (e *Engine) tick(ctx context.Context) (State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ctx.Err() != nil || e.state.Status != Running {
		return e.state, nil
	}
	_, err := e.applyLocked(Event{Kind: Tick})
	select {
	case e.ticks <- e.state:
	default:
	}
	return e.state, err
}

func (e *Engine) dispatch(ev Event) (Effect, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applyLocked(ev)
}

func (e *Engine) applyLocked(ev Event) (Effect, error) {
	now := e.clock.Now()
	next, eff, err := Reduce(e.state, ev, now)
	if err != nil {
		return eff, err
	}

	var perr error
	switch {
	case eff.Session != nil:
		saved, err := e.store.CompleteSession(*eff.Session)
		if err != nil {
			// Keep the timer so the time is not lost.
			return Effect{}, fmt.Errorf("save session: %w", err)
		}
		eff.Session = &saved
	case eff.Persist != nil:
		perr = e.store.SaveTimerState(*eff.Persist)
	case eff.Clear:
		perr = e.store.ClearTimerState()
	}
	if perr != nil {
		perr = fmt.Errorf("persist timer on %s: %w", ev.Kind, perr)
		e.log.Error("timer persist failed", "event", ev.Kind.String(), "error", perr)
		// Only a tick may run ahead of the stored state; the next tick
		// catches up. Any other transition must not outlive its write.
		if ev.Kind != Tick {
			return Effect{}, perr
		}
	}

	e.state = next
	e.syncTicker()
	return eff, perr
}

// syncTicker starts or cancels the tick goroutine to match the state.
func (e *Engine) syncTicker() {
	running := e.state.Status == Running && e.interval > 0
	switch {
	case running && e.cancel == nil:
		ctx, cancel := context.WithCancel(context.Background())
		e.cancel = cancel
		e.done = make(chan struct{})
		go e.run(ctx, e.interval, e.done)
	case !running && e.cancel != nil:
		e.cancel()
		e.cancel = nil
	}
}

func (e *Engine) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := e.tick(ctx); err != nil && !errors.Is(err, ErrInvalidTransition) {
				e.log.Warn("tick", "error", err)
			}
		}
	}
}

// Running reports whether a tick goroutine is live.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancel != nil
}

// Close stops the tick goroutine and waits for it to exit. The persisted
// state is left in place so the next process can recover it.
func (e *Engine) Close() {
	e.mu.Lock()
	done := e.done
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()
	if done != nil {
		<-done
	}
}
