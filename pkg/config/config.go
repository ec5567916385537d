// Package config holds process configuration. Values come from
// environment variables with safe defaults; CLI flags override them.
package config

import "os"

// Config holds analyzer configuration.
type Config struct {
	LogLevel     string // DEBUG | INFO | WARN | ERROR
	DatabasePath string // sqlite file; empty disables persistence
	ReportPath   string // where analyze writes report.json
	AuditLogPath string // audit trail sink; empty disables auditing
	OTLPEndpoint string // OTLP gRPC endpoint; empty disables telemetry
}

// Load loads configuration from environment variables.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	reportPath := os.Getenv("INCIDENTLOG_REPORT")
	if reportPath == "" {
		reportPath = "report.json"
	}

	return &Config{
		LogLevel:     logLevel,
		DatabasePath: os.Getenv("INCIDENTLOG_DB"),
		ReportPath:   reportPath,
		AuditLogPath: os.Getenv("INCIDENTLOG_AUDIT"),
		OTLPEndpoint: os.Getenv("OTEL_ENDPOINT"),
	}
}
