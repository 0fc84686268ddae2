package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when the index holds no matching run.
var ErrNotFound = errors.New("run not found")

// RunRecord is one indexed run.
type RunRecord struct {
	RunID        string
	CreatedAt    time.Time
	Unit         string
	Seed         int64
	DryRun       bool
	FlowPath     string
	MarginPath   string
	SafetySource string
	Status       string
	SummaryPath  string
	SubRuns      int
	Failed       int
}

// SubRunRecord is one indexed sub-run.
type SubRunRecord struct {
	ID        string
	RunID     string
	PointID   string
	Status    string
	StepCount int
	DurationS float64
}

const selectRuns = `
	SELECT r.id, r.created_unix, r.unit, r.seed, r.dry_run, r.flow_path, r.margin_path,
	       r.safety_source, r.status, r.summary_path,
	       (SELECT COUNT(*) FROM subruns s WHERE s.run_id = r.id),
	       (SELECT COUNT(*) FROM subruns s WHERE s.run_id = r.id AND s.status != 'PASS')
	FROM runs r
`

// LatestRun returns the most recently created run.
func (s *Store) LatestRun(ctx context.Context) (*RunRecord, error) {
	runs, err := s.queryRuns(ctx, selectRuns+` ORDER BY r.created_unix DESC, r.id DESC LIMIT 1`)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNotFound
	}
	return &runs[0], nil
}

// GetRun returns the run with the given id.
func (s *Store) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	runs, err := s.queryRuns(ctx, selectRuns+` WHERE r.id = ?`, runID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return &runs[0], nil
}

// ListRuns returns runs newest first. A limit of zero or less returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryRuns(ctx, selectRuns+` ORDER BY r.created_unix DESC, r.id DESC LIMIT ?`, limit)
}

// RunsBefore returns runs created strictly before cutoff, oldest first.
func (s *Store) RunsBefore(ctx context.Context, cutoff time.Time) ([]RunRecord, error) {
	return s.queryRuns(ctx, selectRuns+` WHERE r.created_unix < ? ORDER BY r.created_unix ASC, r.id ASC`,
		cutoff.UnixNano())
}

// SubRuns returns the sub-runs of a run in execution order.
func (s *Store) SubRuns(ctx context.Context, runID string) ([]SubRunRecord, error) {
	rows, err := s.Query(ctx, `
		SELECT id, run_id, point_id, status, step_count, duration_s
		FROM subruns
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query subruns: %w", err)
	}
	defer rows.Close()

	subs := []SubRunRecord{}
	for rows.Next() {
		var sub SubRunRecord
		if err := rows.Scan(&sub.ID, &sub.RunID, &sub.PointID, &sub.Status, &sub.StepCount, &sub.DurationS); err != nil {
			return nil, fmt.Errorf("scan subrun: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subruns: %w", err)
	}
	return subs, nil
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]RunRecord, error) {
	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(rows *sql.Rows) (RunRecord, error) {
	var (
		run         RunRecord
		createdUnix int64
		unit        sql.NullString
		marginPath  sql.NullString
	)
	err := rows.Scan(
		&run.RunID,
		&createdUnix,
		&unit,
		&run.Seed,
		&run.DryRun,
		&run.FlowPath,
		&marginPath,
		&run.SafetySource,
		&run.Status,
		&run.SummaryPath,
		&run.SubRuns,
		&run.Failed,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}
	run.CreatedAt = time.Unix(0, createdUnix).UTC()
	run.Unit = unit.String
	run.MarginPath = marginPath.String
	return run, nil
}
