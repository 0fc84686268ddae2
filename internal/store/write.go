package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/gjson"

	"github.com/roach88/roadrunner/internal/artifact"
	"github.com/roach88/roadrunner/internal/engine"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// RecordSummary upserts a run and replaces its sub-runs. It is called after
// every run, dry runs included, and implements engine.Indexer.
func (s *Store) RecordSummary(ctx context.Context, summary *engine.Summary, summaryPath string) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("record summary: %w", err)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return recordDocument(ctx, tx, data, summaryPath)
	})
}

// ReindexResult reports what Reindex found.
type ReindexResult struct {
	Indexed int
	// Skipped maps summary paths that could not be indexed to the reason.
	Skipped map[string]string
}

// Reindex drops every row and rebuilds the index from <runsDir>/*/summary.json.
// Unreadable or malformed summaries are skipped, not fatal.
func (s *Store) Reindex(ctx context.Context, runsDir string) (ReindexResult, error) {
	result := ReindexResult{Skipped: map[string]string{}}

	paths, err := filepath.Glob(filepath.Join(runsDir, "*", artifact.SummaryFile))
	if err != nil {
		return result, fmt.Errorf("reindex: %w", err)
	}

	err = s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM subruns`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs`); err != nil {
			return err
		}
		for _, path := range paths {
			data, err := os.ReadFile(path)
			if err != nil {
				result.Skipped[path] = err.Error()
				continue
			}
			if err := recordDocument(ctx, tx, data, path); err != nil {
				var malformed *MalformedSummaryError
				if errors.As(err, &malformed) {
					result.Skipped[path] = malformed.Reason
					continue
				}
				return err
			}
			result.Indexed++
		}
		return nil
	})
	if err != nil {
		return ReindexResult{}, fmt.Errorf("reindex: %w", err)
	}
	return result, nil
}

// DeleteRun removes a run and its sub-runs from the index. Deleting an
// unknown run is not an error.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM subruns WHERE run_id = ?`, runID); err != nil {
			return fmt.Errorf("delete run %s: %w", runID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID); err != nil {
			return fmt.Errorf("delete run %s: %w", runID, err)
		}
		return nil
	})
}

// MalformedSummaryError reports a summary.json the index cannot use.
type MalformedSummaryError struct {
	Path   string
	Reason string
}

func (e *MalformedSummaryError) Error() string {
	return fmt.Sprintf("malformed summary %s: %s", e.Path, e.Reason)
}

// recordDocument indexes one summary.json document.
func recordDocument(ctx context.Context, db execer, data []byte, summaryPath string) error {
	run, subs, err := ParseSummary(data, summaryPath)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO runs
		(id, created_at, created_unix, unit, seed, dry_run, flow_path, margin_path, safety_source, status, summary_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			created_unix = excluded.created_unix,
			unit = excluded.unit,
			seed = excluded.seed,
			dry_run = excluded.dry_run,
			flow_path = excluded.flow_path,
			margin_path = excluded.margin_path,
			safety_source = excluded.safety_source,
			status = excluded.status,
			summary_path = excluded.summary_path
	`,
		run.RunID,
		run.CreatedAt.Format(time.RFC3339Nano),
		run.CreatedAt.UnixNano(),
		nullable(run.Unit),
		run.Seed,
		run.DryRun,
		run.FlowPath,
		nullable(run.MarginPath),
		run.SafetySource,
		run.Status,
		run.SummaryPath,
	)
	if err != nil {
		return fmt.Errorf("write run %s: %w", run.RunID, err)
	}

	if _, err := db.ExecContext(ctx, `DELETE FROM subruns WHERE run_id = ?`, run.RunID); err != nil {
		return fmt.Errorf("write run %s: %w", run.RunID, err)
	}
	for i, sub := range subs {
		_, err := db.ExecContext(ctx, `
			INSERT INTO subruns (id, run_id, seq, point_id, status, step_count, duration_s)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, sub.ID, run.RunID, i, sub.PointID, sub.Status, sub.StepCount, sub.DurationS)
		if err != nil {
			return fmt.Errorf("write sub-run %s: %w", sub.ID, err)
		}
	}
	return nil
}

// LoadRecord reads a summary.json without touching the index. It lets
// callers work from the runs directory when the index is unavailable.
func LoadRecord(summaryPath string) (RunRecord, error) {
	data, err := os.ReadFile(summaryPath)
	if err != nil {
		return RunRecord{}, err
	}
	run, _, err := ParseSummary(data, summaryPath)
	return run, err
}

// ParseSummary extracts the indexed fields of a summary.json document.
// Problems with the document are reported as *MalformedSummaryError.
func ParseSummary(data []byte, summaryPath string) (RunRecord, []SubRunRecord, error) {
	malformed := func(reason string) error {
		return &MalformedSummaryError{Path: summaryPath, Reason: reason}
	}
	if !gjson.ValidBytes(data) {
		return RunRecord{}, nil, malformed("invalid JSON")
	}
	doc := gjson.ParseBytes(data)

	runID := doc.Get("run_id").String()
	if runID == "" {
		return RunRecord{}, nil, malformed("missing run_id")
	}
	created, err := time.Parse(time.RFC3339Nano, doc.Get("created_at").String())
	if err != nil {
		return RunRecord{}, nil, malformed("created_at: " + err.Error())
	}

	subruns := doc.Get("subruns").Array()
	run := RunRecord{
		RunID:        runID,
		CreatedAt:    created.UTC(),
		Unit:         doc.Get("unit").String(),
		Seed:         doc.Get("seed").Int(),
		DryRun:       doc.Get("dry_run").Bool(),
		FlowPath:     doc.Get("flow.path").String(),
		MarginPath:   doc.Get("margin.path").String(),
		SafetySource: doc.Get("safety_policy.source").String(),
		Status:       runStatus(subruns),
		SummaryPath:  summaryPath,
		SubRuns:      len(subruns),
	}

	subs := make([]SubRunRecord, len(subruns))
	for i, sub := range subruns {
		subs[i] = SubRunRecord{
			ID:        sub.Get("run_id").String(),
			RunID:     runID,
			PointID:   sub.Get("margin.point_id").String(),
			Status:    sub.Get("status").String(),
			StepCount: len(sub.Get("steps").Array()),
			DurationS: sub.Get("duration_s").Float(),
		}
		if subs[i].Status != string(engine.StatusPass) {
			run.Failed++
		}
	}
	return run, subs, nil
}

// runStatus mirrors engine.Summary.Status over raw sub-run documents.
func runStatus(subruns []gjson.Result) string {
	if len(subruns) == 0 {
		return string(engine.StatusPending)
	}
	for _, sub := range subruns {
		if sub.Get("status").String() != string(engine.StatusPass) {
			return string(engine.StatusFail)
		}
	}
	return string(engine.StatusPass)
}

// nullable stores an empty string as NULL.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
