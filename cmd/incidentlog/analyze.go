package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/attribute"

	"github.com/driveline/incidentlog/pkg/audit"
	"github.com/driveline/incidentlog/pkg/config"
	"github.com/driveline/incidentlog/pkg/eventlog"
	"github.com/driveline/incidentlog/pkg/observability"
	"github.com/driveline/incidentlog/pkg/report"
	"github.com/driveline/incidentlog/pkg/rules"
	"github.com/driveline/incidentlog/pkg/scenario"
	"github.com/driveline/incidentlog/pkg/store"
)

// runAnalyzeCmd implements `incidentlog analyze`: load the scenario and
// event log, detect violations, write the report, and optionally
// persist the run.
func runAnalyzeCmd(args []string, cfg *config.Config, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("analyze", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	dbPath := cmd.String("db", cfg.DatabasePath, "sqlite database for persistence (optional)")
	outPath := cmd.String("out", cfg.ReportPath, "report output path")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if cmd.NArg() != 2 {
		_, _ = fmt.Fprintln(stderr, "Usage: incidentlog analyze [--db path] [--out report.json] <scenario.(json|yaml)> <events.log>")
		return 2
	}
	scenarioPath, logPath := cmd.Arg(0), cmd.Arg(1)

	ctx := context.Background()
	logger := slog.Default().With("command", "analyze")

	obs, err := observability.New(ctx, &observability.Config{
		ServiceName:    "incidentlog",
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Insecure:       true,
	})
	if err != nil {
		logger.Error("observability init failed", "error", err)
		return 1
	}
	defer func() { _ = obs.Shutdown(ctx) }()

	auditor, closeAudit, err := openAuditLogger(cfg.AuditLogPath)
	if err != nil {
		logger.Error("audit log init failed", "error", err, "path", cfg.AuditLogPath)
		return 1
	}
	defer closeAudit()

	ctx, done := obs.TrackRun(ctx, "analyze",
		attribute.String("scenario.path", scenarioPath),
	)

	rep, runErr := analyze(ctx, obs, scenarioPath, logPath, *dbPath, *outPath, auditor, logger)
	done(runErr)
	if runErr != nil {
		logger.Error("analysis failed", "error", runErr)
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", runErr)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(rep)
	return 0
}

func analyze(ctx context.Context, obs *observability.Provider, scenarioPath, logPath, dbPath, outPath string, auditor audit.Logger, logger *slog.Logger) (report.Report, error) {
	var rep report.Report

	_, loadSpan := obs.StartSpan(ctx, "load_scenario")
	scn, err := scenario.Load(scenarioPath)
	loadSpan.End()
	if err != nil {
		return rep, err
	}

	_, parseSpan := obs.StartSpan(ctx, "parse_events")
	events, err := eventlog.ReadFile(logPath)
	parseSpan.End()
	if err != nil {
		return rep, err
	}
	obs.RecordEvents(ctx, len(events))

	_, detectSpan := obs.StartSpan(ctx, "detect_violations")
	violations, err := rules.Detect(scn, events)
	detectSpan.End()
	if err != nil {
		return rep, err
	}
	obs.RecordViolations(ctx, len(violations),
		attribute.String("scenario.name", scn.Name),
	)

	rep = report.Build(scn, violations)
	digest, err := report.Digest(rep)
	if err != nil {
		return rep, err
	}
	if err := report.WriteFile(outPath, rep); err != nil {
		return rep, err
	}
	logger.Info("report written",
		"path", outPath,
		"scenario", rep.Scenario,
		"events", len(events),
		"violations", rep.TotalViolations,
		"digest", digest,
	)

	if err := auditor.Record(ctx, audit.EventAnalysis, "analyze", rep.Scenario, map[string]any{
		"events":        len(events),
		"violations":    rep.TotalViolations,
		"report_digest": digest,
	}); err != nil {
		return rep, fmt.Errorf("record audit event: %w", err)
	}

	if dbPath == "" {
		return rep, nil
	}

	_, persistSpan := obs.StartSpan(ctx, "persist_run")
	defer persistSpan.End()

	db, err := store.Open(dbPath)
	if err != nil {
		return rep, err
	}
	defer func() { _ = db.Close() }()

	scenarioID, err := db.SaveRun(ctx, scn, scenarioPath, violations)
	if err != nil {
		return rep, fmt.Errorf("persist run: %w", err)
	}
	logger.Info("run persisted", "db", dbPath, "scenario_id", scenarioID)

	if err := auditor.Record(ctx, audit.EventMutation, "save_run", rep.Scenario, map[string]any{
		"scenario_id": scenarioID,
		"violations":  rep.TotalViolations,
	}); err != nil {
		return rep, fmt.Errorf("record audit event: %w", err)
	}
	return rep, nil
}

// openAuditLogger opens the audit sink. An empty path disables auditing
// without changing the call sites.
func openAuditLogger(path string) (audit.Logger, func(), error) {
	if path == "" {
		return audit.NewLogger(nil), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return audit.NewLogger(f), func() { _ = f.Close() }, nil
}
