package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/lagprobe/internal/store"
)

// SessionsOptions holds flags for the sessions command.
type SessionsOptions struct {
	*RootOptions
	Database string
	Label    string
}

// SessionSummary is the JSON form of one listed session.
type SessionSummary struct {
	ID        string  `json:"id"`
	Label     string  `json:"label,omitempty"`
	CreatedAt string  `json:"created_at"`
	RefreshHz int     `json:"refresh_hz"`
	Runs      int     `json:"runs"`
	Samples   int     `json:"samples"`
	MeanMs    float64 `json:"mean_ms,omitempty"`
}

// NewSessionsCommand creates the sessions command.
func NewSessionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SessionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List stored sessions",
		Long: `List the sessions archived in a database, oldest first.

Examples:
  lagprobe sessions --db ./lagprobe.db
  lagprobe sessions --db ./lagprobe.db --label desk --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessions(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Label, "label", "", "only sessions with this label")

	return cmd
}

func runSessions(opts *SessionsOptions, cmd *cobra.Command) error {
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	sessions, err := st.ListSessions(context.Background(), opts.Label)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	summaries := make([]SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		sum := SessionSummary{
			ID:        s.ID,
			Label:     s.Label,
			CreatedAt: s.CreatedAt.Format(time.RFC3339),
			RefreshHz: s.RefreshHz,
			Runs:      s.Runs,
			Samples:   s.Samples,
		}
		if s.Samples > 0 {
			sum.MeanMs = float64(s.Mean) / float64(time.Millisecond)
		}
		summaries = append(summaries, sum)
	}

	if opts.Format == "json" {
		out := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return out.Success(summaries)
	}
	printSessions(cmd.OutOrStdout(), summaries)
	return nil
}

func printSessions(w io.Writer, sessions []SessionSummary) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found")
		return
	}
	fmt.Fprintf(w, "Sessions: %d\n", len(sessions))
	for _, s := range sessions {
		fmt.Fprintf(w, "  %s  %s", s.ID, s.CreatedAt)
		if s.Label != "" {
			fmt.Fprintf(w, "  [%s]", s.Label)
		}
		fmt.Fprintln(w)
		if s.Samples > 0 {
			fmt.Fprintf(w, "       %d run(s), %d samples, avg %.2f ms @ %dHz\n", s.Runs, s.Samples, s.MeanMs, s.RefreshHz)
		} else {
			fmt.Fprintf(w, "       %d run(s), no accepted samples\n", s.Runs)
		}
	}
}
