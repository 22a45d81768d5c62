package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"

	"github.com/roach88/lagprobe/internal/config"
	"github.com/roach88/lagprobe/internal/report"
	"github.com/roach88/lagprobe/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database string
	Language string
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report <session-id>",
		Short: "Render a stored session",
		Long: `Render a session archived by "measure --db".

Statistics, diagnostics and advisories are recomputed from the stored
attempts.

Examples:
  lagprobe report --db ./lagprobe.db 0190f4c2-7c1e-7d4a-9a51-3f7c2b8e1d00
  lagprobe report --db ./lagprobe.db --format json <session-id>`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Language, "language", config.DefaultLanguage, "number formatting language (BCP 47)")

	return cmd
}

func runReport(opts *ReportOptions, id string, cmd *cobra.Command) error {
	tag, err := language.Parse(opts.Language)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("invalid language %q", opts.Language), err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	stored, err := st.LoadReport(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, "unknown session", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load session", err)
	}

	view := report.View{
		SessionID: stored.ID,
		Label:     stored.Label,
		Report:    stored.Report,
		RefreshHz: stored.RefreshHz,
		Language:  tag,
	}
	if err := renderView(cmd.OutOrStdout(), opts.Format, view); err != nil {
		return WrapExitError(ExitCommandError, "failed to render report", err)
	}
	return nil
}
