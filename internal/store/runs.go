package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/provguard/internal/harness"
	"github.com/roach88/provguard/internal/snapshot"
)

// Run is one recorded suite run.
type Run struct {
	ID         string
	Seq        int64
	Suite      string
	Pass       bool
	Aborted    bool
	Fatal      string
	Digest     string
	Snapshot   string
	RecordedAt time.Time
	Cases      []CaseRecord
}

// CaseRecord is the stored outcome of one evaluated case.
type CaseRecord struct {
	Case       string
	Pass       bool
	ErrorKind  string
	Violations []harness.Violation
}

// RecordRun appends report to the history and returns the stored row.
// Run IDs are UUIDv7, so they also sort by creation time.
func (s *Store) RecordRun(ctx context.Context, report *harness.Report) (Run, error) {
	data, err := report.CanonicalJSON()
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	digest, err := report.Digest()
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	run := Run{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Suite:      report.Suite,
		Pass:       report.Pass,
		Aborted:    report.Aborted,
		Fatal:      report.Fatal,
		Digest:     digest,
		Snapshot:   string(data),
		RecordedAt: time.Now().UTC(),
		Cases:      make([]CaseRecord, len(report.Results)),
	}
	for i, r := range report.Results {
		run.Cases[i] = CaseRecord{
			Case:       r.Case,
			Pass:       r.Pass,
			ErrorKind:  r.ErrorKind,
			Violations: append([]harness.Violation{}, r.Violations...),
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record run: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, suite, pass, aborted, fatal, digest, snapshot, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Suite,
		run.Pass,
		run.Aborted,
		run.Fatal,
		run.Digest,
		run.Snapshot,
		run.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	if run.Seq, err = res.LastInsertId(); err != nil {
		return Run{}, fmt.Errorf("record run: seq: %w", err)
	}

	for i, c := range run.Cases {
		violations, err := marshalViolations(c.Violations)
		if err != nil {
			return Run{}, fmt.Errorf("record run: case %q: %w", c.Case, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO case_results (run_id, position, case_name, pass, error_kind, violations)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, i, c.Case, c.Pass, c.ErrorKind, violations)
		if err != nil {
			return Run{}, fmt.Errorf("record run: case %q: %w", c.Case, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record run: commit: %w", err)
	}
	return run, nil
}

// LatestRuns returns up to n runs of suite, newest first.
// Returns an empty slice (not nil) if none are recorded.
func (s *Store) LatestRuns(ctx context.Context, suite string, n int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, suite, pass, aborted, fatal, digest, snapshot, recorded_at
		FROM runs
		WHERE suite = ?
		ORDER BY seq DESC
		LIMIT ?
	`, suite, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run        Run
			recordedAt string
		)
		if err := rows.Scan(&run.Seq, &run.ID, &run.Suite, &run.Pass, &run.Aborted,
			&run.Fatal, &run.Digest, &run.Snapshot, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.RecordedAt, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
			return nil, fmt.Errorf("run %s: parse recorded_at: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	// Release the single connection before reading case rows.
	rows.Close()

	for i := range runs {
		if runs[i].Cases, err = s.readCases(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// Suites returns the names of all suites with recorded runs, most recently
// recorded first.
func (s *Store) Suites(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT suite FROM runs GROUP BY suite ORDER BY MAX(seq) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query suites: %w", err)
	}
	defer rows.Close()

	suites := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan suite: %w", err)
		}
		suites = append(suites, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate suites: %w", err)
	}
	return suites, nil
}

func (s *Store) readCases(ctx context.Context, runID string) ([]CaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT case_name, pass, error_kind, violations
		FROM case_results
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query case results: %w", err)
	}
	defer rows.Close()

	cases := []CaseRecord{}
	for rows.Next() {
		var (
			c          CaseRecord
			violations string
		)
		if err := rows.Scan(&c.Case, &c.Pass, &c.ErrorKind, &violations); err != nil {
			return nil, fmt.Errorf("scan case result: %w", err)
		}
		if c.Violations, err = unmarshalViolations(violations); err != nil {
			return nil, fmt.Errorf("case %q: %w", c.Case, err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case results: %w", err)
	}
	return cases, nil
}

// marshalViolations converts violations to canonical JSON TEXT for storage.
func marshalViolations(vs []harness.Violation) (string, error) {
	list := make([]any, len(vs))
	for i, v := range vs {
		list[i] = map[string]any{
			"kind":    string(v.Kind),
			"pattern": v.Pattern,
		}
	}
	data, err := snapshot.Marshal(list)
	if err != nil {
		return "", fmt.Errorf("marshal violations: %w", err)
	}
	return string(data), nil
}

func unmarshalViolations(data string) ([]harness.Violation, error) {
	vs := []harness.Violation{}
	if data == "" || data == "[]" {
		return vs, nil
	}
	if err := json.Unmarshal([]byte(data), &vs); err != nil {
		return nil, fmt.Errorf("unmarshal violations: %w", err)
	}
	return vs, nil
}
