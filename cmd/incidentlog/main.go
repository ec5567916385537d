// incidentlog analyzes vehicle telemetry incident logs.
//
// Commands:
//
//	analyze <scenario> <events.log>   Detect road-rule violations
//	summary                           Recent runs with violation counts
//	by-type                           Violations of one type for a scenario
//	recent                            Newest violations across scenarios
//	version                           Show version information
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/driveline/incidentlog/pkg/config"
)

// Version information (set at build time)
var (
	Version   = "1.0.0"
	BuildDate = "unknown"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split from main for testing. Exit codes:
//
//	0 = success
//	1 = analysis or storage failure
//	2 = usage error
func Run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	initLogger(cfg.LogLevel, stderr)

	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "analyze":
		return runAnalyzeCmd(args[2:], cfg, stdout, stderr)
	case "summary":
		return runSummaryCmd(args[2:], cfg, stdout, stderr)
	case "by-type":
		return runByTypeCmd(args[2:], cfg, stdout, stderr)
	case "recent":
		return runRecentCmd(args[2:], cfg, stdout, stderr)
	case "version", "--version", "-v":
		_, _ = fmt.Fprintf(stdout, "incidentlog v%s (built %s)\n", Version, BuildDate)
		return 0
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func initLogger(level string, w io.Writer) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})))
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, `incidentlog analyzes vehicle telemetry incident logs.

Usage:
  incidentlog analyze [--db path] [--out report.json] <scenario.(json|yaml)> <events.log>
  incidentlog summary --db path [--limit N]
  incidentlog by-type --db path --scenario ID --type KIND
  incidentlog recent --db path [--limit N]
  incidentlog version

Environment:
  LOG_LEVEL            DEBUG|INFO|WARN|ERROR (default INFO)
  INCIDENTLOG_DB       default sqlite database path
  INCIDENTLOG_REPORT   default report output path (default report.json)
  INCIDENTLOG_AUDIT    audit trail file (empty disables auditing)
  OTEL_ENDPOINT        OTLP gRPC endpoint (empty disables telemetry)`)
}
