package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sadopc/lernzeit/internal/server"
)

func newServeCmd(o *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the statistics as a read-only JSON API",
		Long: `Serve the statistics as a read-only JSON API on a local address.

Endpoints: /api/overview, /api/subjects, /api/sessions?subject=&q=,
/api/days, /api/weeks, /api/months, /api/histogram?days=N, /api/timer,
/api/export and /api/export.csv.`,
		Args: cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			if addr == "" {
				addr = a.cfg.Listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(a.repo, a.log,
				server.WithClock(a.now),
				server.WithLocation(a.loc),
			)
			printf(cmd.OutOrStdout(), "Serving on http://%s (Ctrl-C to stop)\n", addr)
			return srv.ListenAndServe(ctx, addr)
		}),
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:7420)")
	return cmd
}
