package cli

import (
	"errors"
	"io"
	"strings"

	"github.com/peterh/liner"
)

// Confirmer asks a yes/no question before a destructive action.
type Confirmer interface {
	Confirm(question string) (bool, error)
}

// linerConfirmer prompts on the controlling terminal. Ctrl-C and EOF count
// as "no".
type linerConfirmer struct{}

func (linerConfirmer) Confirm(question string) (bool, error) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	answer, err := line.Prompt(question + " (yes/no): ")
	if err != nil {
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return isYes(answer), nil
}

func isYes(answer string) bool {
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "yes" || answer == "y"
}

// confirmOrAbort returns ErrAborted unless skip is set or the user agrees.
func (a *app) confirmOrAbort(skip bool, question string) error {
	if skip {
		return nil
	}
	ok, err := a.confirm.Confirm(question)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAborted
	}
	return nil
}
