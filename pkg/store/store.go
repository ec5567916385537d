// Package store persists rulesets, scenarios, speed zones, and
// violations in sqlite and answers the historical query surface.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/driveline/incidentlog/pkg/contracts"

	_ "modernc.org/sqlite"
)

// ErrScenarioNotFound is returned by queries against an unknown
// scenario identifier.
var ErrScenarioNotFound = errors.New("scenario not found")

// Store wraps a sql.DB carrying the incident log schema.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite database at path, enables foreign
// keys, and applies the schema. The pragma goes in the DSN so every
// pooled connection enforces it, not just the one that ran a PRAGMA.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return New(db)
}

// New wraps an existing connection and applies the schema. Used by Open
// and by tests that inject their own db.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS ruleset (
		rule_id             INTEGER PRIMARY KEY AUTOINCREMENT,
		max_speed           REAL NOT NULL,
		min_follow_distance REAL NOT NULL,
		stop_sign_wait      REAL NOT NULL
	);
	CREATE TABLE IF NOT EXISTS scenario (
		scenario_id INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		source_file TEXT NOT NULL DEFAULT '',
		ruleset_id  INTEGER NOT NULL REFERENCES ruleset(rule_id)
	);
	CREATE TABLE IF NOT EXISTS speed_zone (
		zone_id     INTEGER PRIMARY KEY AUTOINCREMENT,
		start_mile  REAL NOT NULL,
		end_mile    REAL NOT NULL,
		speed_limit REAL NOT NULL,
		scenario_id INTEGER NOT NULL REFERENCES scenario(scenario_id)
	);
	CREATE TABLE IF NOT EXISTS violation (
		violation_id INTEGER PRIMARY KEY AUTOINCREMENT,
		scenario_id  INTEGER NOT NULL REFERENCES scenario(scenario_id),
		tstamp       TEXT NOT NULL,
		type         TEXT NOT NULL,
		details      TEXT NOT NULL
	);`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertRuleset returns the id of an existing ruleset row with identical
// values, inserting one if none exists.
func (s *Store) UpsertRuleset(ctx context.Context, rules contracts.RoadRules) (int64, error) {
	return upsertRuleset(ctx, s.db, rules)
}

// querier covers both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func upsertRuleset(ctx context.Context, q querier, rules contracts.RoadRules) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `
		SELECT rule_id FROM ruleset
		WHERE max_speed = ? AND min_follow_distance = ? AND stop_sign_wait = ?`,
		rules.MaxSpeed, rules.MinFollowDistance, rules.StopSignWait,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("look up ruleset: %w", err)
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO ruleset (max_speed, min_follow_distance, stop_sign_wait)
		VALUES (?, ?, ?)`,
		rules.MaxSpeed, rules.MinFollowDistance, rules.StopSignWait,
	)
	if err != nil {
		return 0, fmt.Errorf("insert ruleset: %w", err)
	}
	return res.LastInsertId()
}

// SaveRun persists one analysis run (ruleset, scenario, zones, and all
// violations) in a single transaction, so a run is never observable as
// partially written. Returns the new scenario id.
func (s *Store) SaveRun(ctx context.Context, scenario *contracts.Scenario, sourceFile string, violations []contracts.Violation) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	ruleID, err := upsertRuleset(ctx, tx, scenario.Rules)
	if err != nil {
		return 0, err
	}

	name := strings.TrimSpace(scenario.Name)
	if name == "" {
		name = "Unnamed"
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO scenario (name, description, source_file, ruleset_id)
		VALUES (?, ?, ?, ?)`,
		name, scenario.Description, sourceFile, ruleID,
	)
	if err != nil {
		return 0, fmt.Errorf("insert scenario: %w", err)
	}
	scenarioID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, z := range scenario.Zones {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO speed_zone (start_mile, end_mile, speed_limit, scenario_id)
			VALUES (?, ?, ?, ?)`,
			z.StartMile, z.EndMile, z.SpeedLimit, scenarioID,
		); err != nil {
			return 0, fmt.Errorf("insert speed zone: %w", err)
		}
	}

	for _, v := range violations {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO violation (scenario_id, tstamp, type, details)
			VALUES (?, ?, ?, ?)`,
			scenarioID, v.Time, string(v.Kind), v.Details,
		); err != nil {
			return 0, fmt.Errorf("insert violation: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}
	return scenarioID, nil
}

// ViolationCounts returns violation counts by type for one scenario.
func (s *Store) ViolationCounts(ctx context.Context, scenarioID int64) (map[string]int, error) {
	if err := s.checkScenario(ctx, scenarioID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COUNT(*) FROM violation
		WHERE scenario_id = ?
		GROUP BY type`,
		scenarioID,
	)
	if err != nil {
		return nil, fmt.Errorf("count violations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// ViolationsByType returns a scenario's violations of one type, ordered
// by timestamp.
func (s *Store) ViolationsByType(ctx context.Context, scenarioID int64, kind contracts.ViolationKind) ([]contracts.Violation, error) {
	if err := s.checkScenario(ctx, scenarioID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT tstamp, type, details FROM violation
		WHERE scenario_id = ? AND type = ?
		ORDER BY tstamp`,
		scenarioID, string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	violations := []contracts.Violation{}
	for rows.Next() {
		var v contracts.Violation
		var k string
		if err := rows.Scan(&v.Time, &k, &v.Details); err != nil {
			return nil, err
		}
		v.Kind = contracts.ViolationKind(k)
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

// RunSummary is one row of the recent-runs query.
type RunSummary struct {
	ScenarioID int64          `json:"scenario_id"`
	Name       string         `json:"name"`
	Counts     map[string]int `json:"counts"`
	Total      int            `json:"total"`
}

// RecentRuns returns the most recent limit scenarios, newest first, each
// with its violation counts by type.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario_id, name FROM scenario
		ORDER BY scenario_id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query scenarios: %w", err)
	}
	defer func() { _ = rows.Close() }()

	runs := []RunSummary{}
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ScenarioID, &r.Name); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		counts, err := s.ViolationCounts(ctx, runs[i].ScenarioID)
		if err != nil {
			return nil, err
		}
		runs[i].Counts = counts
		for _, n := range counts {
			runs[i].Total += n
		}
	}
	return runs, nil
}

// RecentViolation is one row of the cross-scenario recency query.
type RecentViolation struct {
	ScenarioID int64  `json:"scenario_id"`
	Time       string `json:"time"`
	Type       string `json:"type"`
	Details    string `json:"details"`
}

// RecentViolations returns the newest limit violations across all
// scenarios, newest first.
func (s *Store) RecentViolations(ctx context.Context, limit int) ([]RecentViolation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scenario_id, tstamp, type, details FROM violation
		ORDER BY violation_id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent violations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	recent := []RecentViolation{}
	for rows.Next() {
		var r RecentViolation
		if err := rows.Scan(&r.ScenarioID, &r.Time, &r.Type, &r.Details); err != nil {
			return nil, err
		}
		recent = append(recent, r)
	}
	return recent, rows.Err()
}

func (s *Store) checkScenario(ctx context.Context, scenarioID int64) error {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT scenario_id FROM scenario WHERE scenario_id = ?`, scenarioID,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %d", ErrScenarioNotFound, scenarioID)
	}
	return err
}
