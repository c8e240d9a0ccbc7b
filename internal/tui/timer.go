package tui

import (
	"github.com/sadopc/lernzeit/internal/model"
	"github.com/sadopc/lernzeit/internal/timer"
)

// timerModel is the view-side copy of the engine state. The engine owns
// the timer and persists it; the model only caches the last snapshot for
// rendering.
type timerModel struct {
	engine *timer.Engine
	state  timer.State
}

func newTimerModel(e *timer.Engine) timerModel {
	return timerModel{engine: e, state: e.State()}
}

func (t *timerModel) refresh() {
	t.state = t.engine.State()
}

func (t timerModel) idle() bool    { return t.state.Status == timer.Idle }
func (t timerModel) running() bool { return t.state.Status == timer.Running }
func (t timerModel) paused() bool  { return t.state.Status == timer.Paused }

func (t timerModel) elapsed() int64 { return t.state.Accumulated }

func (t timerModel) subject() model.ID { return t.state.SubjectID }

func (t *timerModel) start(subject model.ID) error {
	err := t.engine.Start(subject)
	t.refresh()
	return err
}

// toggle pauses a running timer and resumes a paused one.
func (t *timerModel) toggle() error {
	var err error
	switch t.state.Status {
	case timer.Running:
		err = t.engine.Pause()
	case timer.Paused:
		err = t.engine.Resume()
	}
	t.refresh()
	return err
}

func (t *timerModel) finish(notes string) (model.Session, error) {
	s, err := t.engine.Finish(notes)
	t.refresh()
	return s, err
}

func (t *timerModel) discard() error {
	err := t.engine.Stop(true)
	t.refresh()
	return err
}
