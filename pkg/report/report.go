// Package report wraps a scenario and its detected violations into the
// output document shape. Pure and order-preserving: violations pass
// through exactly as the engine produced them.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/driveline/incidentlog/pkg/canonicalize"
	"github.com/driveline/incidentlog/pkg/contracts"
)

// Report is the analysis output document.
type Report struct {
	Scenario        string                `json:"scenario"`
	Violations      []contracts.Violation `json:"violations"`
	TotalViolations int                   `json:"total_violations"`
}

// Build assembles the report. A blank scenario name falls back to
// "Unnamed".
func Build(scenario *contracts.Scenario, violations []contracts.Violation) Report {
	name := "Unnamed"
	if scenario != nil {
		if trimmed := strings.TrimSpace(scenario.Name); trimmed != "" {
			name = trimmed
		}
	}
	if violations == nil {
		violations = []contracts.Violation{}
	}
	return Report{
		Scenario:        name,
		Violations:      violations,
		TotalViolations: len(violations),
	}
}

// Digest returns the SHA-256 of the report's RFC 8785 canonical JSON
// form. Identical analysis inputs yield identical digests.
func Digest(r Report) (string, error) {
	return canonicalize.Digest(r)
}

// WriteFile writes the report as indented JSON. Write to temp then
// rename, so a crashed run never leaves a torn report behind.
func WriteFile(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("commit report: %w", err)
	}
	return nil
}
