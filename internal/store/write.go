package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/lagprobe/internal/latency"
)

// SaveReport stores a finished session under id. The label is trimmed and
// NFC-normalised. refreshHz is the rate used to express latencies in frames.
//
// Only configuration, timing and raw attempts are written; every aggregate in
// rep is ignored. Saving an existing id is an error.
func (s *Store) SaveReport(ctx context.Context, id, label string, refreshHz int, rep *latency.Report) error {
	if id == "" {
		return fmt.Errorf("save report: empty session id")
	}
	if rep == nil {
		return fmt.Errorf("save report: nil report")
	}

	cfgJSON, err := marshalConfig(rep.Config)
	if err != nil {
		return fmt.Errorf("save report: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save report: begin: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM sessions`).Scan(&seq); err != nil {
		return fmt.Errorf("save report: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions
		(id, seq, label, created_at, config, region_x, region_y, region_w, region_h,
		 refresh_hz, started_at_ns, finished_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		id,
		seq,
		normalizeLabel(label),
		s.now().UTC().Format(time.RFC3339),
		cfgJSON,
		rep.Region.X, rep.Region.Y, rep.Region.W, rep.Region.H,
		refreshHz,
		int64(rep.StartedAt),
		int64(rep.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("save report: insert session: %w", err)
	}

	for _, run := range rep.Runs {
		if err := writeRun(ctx, tx, id, run); err != nil {
			return fmt.Errorf("save report: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save report: commit: %w", err)
	}
	return nil
}

func writeRun(ctx context.Context, tx *sql.Tx, sessionID string, run *latency.Run) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(session_id, idx, target, warmup, started_at_ns, finished_at_ns, failure)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		sessionID,
		run.Index,
		run.Target,
		run.Warmup,
		int64(run.StartedAt),
		int64(run.FinishedAt),
		run.Failure,
	)
	if err != nil {
		return fmt.Errorf("insert run %d: %w", run.Index, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attempts
		(session_id, run_idx, idx, polarity, warmup, dispatched_at_ns, detected_at_ns,
		 outcome, verdict, latency_ns, ticks, unchanged, timeouts, errors,
		 dispatch_failed, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare attempts: %w", err)
	}
	defer stmt.Close()

	for _, a := range run.Attempts {
		_, err := stmt.ExecContext(ctx,
			sessionID,
			run.Index,
			a.Index,
			int(a.Polarity),
			boolToInt(a.Warmup),
			int64(a.DispatchedAt),
			int64(a.DetectedAt),
			a.Outcome.String(),
			a.Verdict.String(),
			int64(a.Latency),
			a.Ticks,
			a.Tally.Unchanged,
			a.Tally.Timeouts,
			a.Tally.Errors,
			boolToInt(a.DispatchFailed),
			a.Error,
		)
		if err != nil {
			return fmt.Errorf("insert attempt %d/%d: %w", run.Index, a.Index, err)
		}
	}
	return nil
}

// DeleteSession removes a session and its runs and attempts.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete session %s: %w", id, ErrNotFound)
	}
	return nil
}
