package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/sadopc/lernzeit/internal/config"
	"github.com/sadopc/lernzeit/internal/timer"
	"github.com/sadopc/lernzeit/internal/tui"
)

func newTUICmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the terminal UI (default)",
		Long: `Open the terminal UI (default).

The UI owns the terminal while it runs, so log output is appended to
lernzeit.log next to the data path instead of stderr.`,
		Args: cobra.NoArgs,
		RunE: withTUIApp(o),
	}
}

func withTUIApp(o *options) func(*cobra.Command, []string) error {
	return withAppLogging(o, fileSink, func(cmd *cobra.Command, a *app, _ []string) error {
		return o.runTUI(cmd.Context(), a)
	})
}

// fileSink appends to the log file next to the data path. Writing to stderr
// would draw over the alternate screen.
func fileSink(_ *cobra.Command, cfg config.Config) (io.Writer, io.Closer, error) {
	path := cfg.LogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return f, f, nil
}

func runTUI(ctx context.Context, a *app) error {
	engine := timer.New(a.repo,
		timer.WithClock(clockFunc(a.now)),
		timer.WithInterval(time.Second),
		timer.WithLogger(a.log),
	)
	defer engine.Close()
	if _, err := engine.Recover(); err != nil {
		a.log.Warn("recover timer", "error", err)
	}

	model := tui.NewApp(a.repo, engine,
		tui.WithLocation(a.loc),
		tui.WithLogger(a.log),
		tui.WithClock(a.now),
	)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
