package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/driveline/incidentlog/pkg/config"
	"github.com/driveline/incidentlog/pkg/contracts"
	"github.com/driveline/incidentlog/pkg/store"
)

// runSummaryCmd implements `incidentlog summary`: the most recent runs
// with their violation counts by type.
func runSummaryCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("summary", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	dbPath := cmd.String("db", cfg.DatabasePath, "sqlite database path (REQUIRED)")
	limit := cmd.Int("limit", 10, "number of recent runs to report")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *dbPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: summary requires --db")
		return 2
	}

	return withStore(*dbPath, stderr, func(ctx context.Context, db *store.Store) error {
		runs, err := db.RecentRuns(ctx, *limit)
		if err != nil {
			return err
		}
		return writeJSON(stdout, runs)
	})
}

// runByTypeCmd implements `incidentlog by-type`: a scenario's
// violations of one type, ordered by timestamp.
func runByTypeCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("by-type", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	dbPath := cmd.String("db", cfg.DatabasePath, "sqlite database path (REQUIRED)")
	scenarioID := cmd.Int64("scenario", 0, "scenario identifier (REQUIRED)")
	kind := cmd.String("type", "", "violation type (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *dbPath == "" || *scenarioID == 0 || *kind == "" {
		_, _ = fmt.Fprintln(stderr, "Error: by-type requires --db, --scenario, and --type")
		return 2
	}

	return withStore(*dbPath, stderr, func(ctx context.Context, db *store.Store) error {
		violations, err := db.ViolationsByType(ctx, *scenarioID, contracts.ViolationKind(*kind))
		if err != nil {
			return err
		}
		return writeJSON(stdout, violations)
	})
}

// runRecentCmd implements `incidentlog recent`: the newest violations
// across all scenarios.
func runRecentCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("recent", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	dbPath := cmd.String("db", cfg.DatabasePath, "sqlite database path (REQUIRED)")
	limit := cmd.Int("limit", 20, "number of violations to report")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if *dbPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: recent requires --db")
		return 2
	}

	return withStore(*dbPath, stderr, func(ctx context.Context, db *store.Store) error {
		recent, err := db.RecentViolations(ctx, *limit)
		if err != nil {
			return err
		}
		return writeJSON(stdout, recent)
	})
}

func withStore(dbPath string, stderr io.Writer, fn func(context.Context, *store.Store) error) int {
	db, err := store.Open(dbPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = db.Close() }()

	if err := fn(context.Background(), db); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
