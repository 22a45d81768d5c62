package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/lagprobe/internal/latency"
)

// Session is the summary of a stored session.
type Session struct {
	ID        string
	Seq       int64
	Label     string
	CreatedAt time.Time
	RefreshHz int

	// Runs counts all runs; Samples counts accepted, non-warm-up attempts
	// of completed runs.
	Runs    int
	Samples int

	// Mean is the mean over the counted samples. Valid only when Samples > 0.
	Mean time.Duration
}

// StoredReport is a session with its rebuilt report.
type StoredReport struct {
	Session
	Report *latency.Report
}

// ListSessions returns stored sessions in insertion order. A non-empty label
// restricts the list to sessions with that (normalised) label.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListSessions(ctx context.Context, label string) ([]Session, error) {
	label = normalizeLabel(label)
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.seq, s.label, s.created_at, s.refresh_hz,
			(SELECT COUNT(*) FROM runs rr WHERE rr.session_id = s.id),
			COUNT(a.idx),
			AVG(a.latency_ns)
		FROM sessions s
		LEFT JOIN runs r ON r.session_id = s.id AND r.failure = ''
		LEFT JOIN attempts a ON a.session_id = r.session_id AND a.run_idx = r.idx
			AND a.verdict = 'accepted' AND a.warmup = 0
		WHERE ? = '' OR s.label = ?
		GROUP BY s.id
		ORDER BY s.seq ASC, s.id COLLATE BINARY ASC
	`, label, label)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var (
			sess      Session
			createdAt string
			mean      sql.NullFloat64
		)
		if err := rows.Scan(&sess.ID, &sess.Seq, &sess.Label, &createdAt, &sess.RefreshHz,
			&sess.Runs, &sess.Samples, &mean); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if sess.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if mean.Valid {
			sess.Mean = time.Duration(mean.Float64)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// LoadReport rebuilds a stored session. Statistics, counters and advisories
// are recomputed from the attempt rows. A session without accepted samples
// loads without error; check Report.HasPooled.
//
// Returns an error wrapping ErrNotFound for an unknown id.
func (s *Store) LoadReport(ctx context.Context, id string) (*StoredReport, error) {
	var (
		out       StoredReport
		createdAt string
		cfgJSON   string
		rep       latency.Report
		started   int64
		finished  int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, label, created_at, refresh_hz, config,
			region_x, region_y, region_w, region_h, started_at_ns, finished_at_ns
		FROM sessions
		WHERE id = ?
	`, id).Scan(&out.ID, &out.Seq, &out.Label, &createdAt, &out.RefreshHz, &cfgJSON,
		&rep.Region.X, &rep.Region.Y, &rep.Region.W, &rep.Region.H, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	if out.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if rep.Config, err = unmarshalConfig(cfgJSON); err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	rep.StartedAt = latency.Timestamp(started)
	rep.FinishedAt = latency.Timestamp(finished)

	if rep.Runs, err = s.readRuns(ctx, id); err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}
	if err := s.readAttempts(ctx, id, rep.Runs); err != nil {
		return nil, fmt.Errorf("load report: %w", err)
	}

	if err := rep.Finalize(); err != nil && !latency.IsNoData(err) {
		return nil, fmt.Errorf("load report: %w", err)
	}

	out.Runs = len(rep.Runs)
	if rep.HasPooled {
		out.Samples = rep.Pooled.Count
		out.Mean = time.Duration(rep.Pooled.Mean)
	}
	out.Report = &rep
	return &out, nil
}

func (s *Store) readRuns(ctx context.Context, id string) ([]*latency.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, target, warmup, started_at_ns, finished_at_ns, failure
		FROM runs
		WHERE session_id = ?
		ORDER BY idx ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []*latency.Run{}
	for rows.Next() {
		var (
			run               latency.Run
			started, finished int64
		)
		if err := rows.Scan(&run.Index, &run.Target, &run.Warmup, &started, &finished, &run.Failure); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = latency.Timestamp(started)
		run.FinishedAt = latency.Timestamp(finished)
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func (s *Store) readAttempts(ctx context.Context, id string, runs []*latency.Run) error {
	byIndex := make(map[int]*latency.Run, len(runs))
	for _, r := range runs {
		byIndex[r.Index] = r
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_idx, idx, polarity, warmup, dispatched_at_ns, detected_at_ns,
			outcome, verdict, latency_ns, ticks, unchanged, timeouts, errors,
			dispatch_failed, error
		FROM attempts
		WHERE session_id = ?
		ORDER BY run_idx ASC, idx ASC
	`, id)
	if err != nil {
		return fmt.Errorf("query attempts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return err
		}
		run, ok := byIndex[a.Run]
		if !ok {
			return fmt.Errorf("attempt %d references unknown run %d", a.Index, a.Run)
		}
		a.Target = run.Target
		run.Attempts = append(run.Attempts, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate attempts: %w", err)
	}
	return nil
}

func scanAttempt(rows *sql.Rows) (latency.AttemptRecord, error) {
	var (
		a                         latency.AttemptRecord
		polarity                  int
		warmup, dispatchFailed    int
		dispatched, detected, lat int64
		outcome, verdict          string
	)
	err := rows.Scan(&a.Run, &a.Index, &polarity, &warmup, &dispatched, &detected,
		&outcome, &verdict, &lat, &a.Ticks, &a.Tally.Unchanged, &a.Tally.Timeouts, &a.Tally.Errors,
		&dispatchFailed, &a.Error)
	if err != nil {
		return a, fmt.Errorf("scan attempt: %w", err)
	}

	var ok bool
	if a.Outcome, ok = latency.ParseOutcomeKind(outcome); !ok {
		return a, fmt.Errorf("attempt %d/%d: unknown outcome %q", a.Run, a.Index, outcome)
	}
	if a.Verdict, ok = latency.ParseVerdict(verdict); !ok {
		return a, fmt.Errorf("attempt %d/%d: unknown verdict %q", a.Run, a.Index, verdict)
	}
	a.Polarity = latency.Polarity(polarity)
	a.Warmup = warmup != 0
	a.DispatchFailed = dispatchFailed != 0
	a.DispatchedAt = latency.Timestamp(dispatched)
	a.DetectedAt = latency.Timestamp(detected)
	a.Latency = time.Duration(lat)
	return a, nil
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse created_at %q: %w", s, err)
	}
	return t, nil
}
