package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/sadopc/lernzeit/internal/export"
	"github.com/sadopc/lernzeit/internal/stats"
)

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatCSV  = "csv"
)

func newExportCmd(o *options) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a backup (json, yaml) or a session table (csv)",
		Long: `Write a backup of all subjects, sessions and settings. JSON backups can be
restored with 'lernzeit import'. CSV is a flat table for spreadsheets.

Use --output - to write to stdout.`,
		Args: cobra.NoArgs,
		RunE: withApp(o, func(cmd *cobra.Command, a *app, _ []string) error {
			now := a.clock()
			var data []byte
			switch format {
			case formatJSON, formatYAML:
				doc := export.NewDocument(a.repo.Snapshot(), now)
				var err error
				if format == formatJSON {
					data, err = export.EncodeJSON(doc)
				} else {
					data, err = export.EncodeYAML(doc)
				}
				if err != nil {
					return err
				}
			case formatCSV:
				var buf bytes.Buffer
				sessions := stats.SortByStartDesc(a.repo.Entries())
				if err := export.ToCSV(&buf, sessions, a.repo.Subjects(), a.loc); err != nil {
					return err
				}
				data = buf.Bytes()
			default:
				return fmt.Errorf("unknown format %q (json, yaml or csv)", format)
			}

			if output == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			path := output
			if path == "" {
				path = export.DefaultFileName(now, format)
			}
			if err := export.WriteFile(path, data); err != nil {
				return err
			}
			a.log.Info("exported", "path", path, "format", format)
			printf(cmd.OutOrStdout(), "Exported to %s\n", path)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatJSON, "json, yaml or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: lernzeit-backup-<date>.<format>)")
	return cmd
}

func newImportCmd(o *options) *cobra.Command {
	var (
		merge bool
		yes   bool
	)
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Restore a JSON backup",
		Long: `Restore a JSON backup. By default the backup replaces all subjects, sessions
and settings. With --merge its subjects are added under new ids together
with their sessions, and current data and settings are kept.

Use - to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: withApp(o, func(cmd *cobra.Command, a *app, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			doc, err := export.Decode(data)
			if err != nil {
				return err
			}

			strategy := export.Overwrite
			if merge {
				strategy = export.Merge
			} else {
				question := fmt.Sprintf("Replace %d subjects and %d sessions with the backup's %d subjects and %d sessions?",
					len(a.repo.Subjects()), len(a.repo.Entries()), len(doc.Subjects), len(doc.Sessions))
				if err := a.confirmOrAbort(yes, question); err != nil {
					return err
				}
			}

			res, err := export.Import(a.repo, doc, strategy)
			if err != nil {
				return err
			}
			a.log.Info("imported", "strategy", strategy.String(), "subjects", res.Subjects, "sessions", res.Sessions, "skipped", res.Skipped)
			printf(cmd.OutOrStdout(), "Imported %d subjects and %d sessions", res.Subjects, res.Sessions)
			if res.Skipped > 0 {
				printf(cmd.OutOrStdout(), " (%d sessions skipped: unknown subject)", res.Skipped)
			}
			printf(cmd.OutOrStdout(), "\n")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&merge, "merge", false, "add to the current data instead of replacing it")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		return nil, fmt.Errorf("read backup: %w", err)
	}
	return data, nil
}
