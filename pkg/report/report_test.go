package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/incidentlog/pkg/contracts"
)

func sampleViolations() []contracts.Violation {
	return []contracts.Violation{
		{Kind: contracts.ViolationSpeeding, Time: "00:05.0", Details: "50.0 mph in 45 mph zone"},
		{Kind: contracts.ViolationTailgating, Time: "00:12.0", Details: "1.8 m < 2.5 m"},
	}
}

func TestBuild(t *testing.T) {
	scn := &contracts.Scenario{Name: "Highway 9"}
	rep := Build(scn, sampleViolations())

	assert.Equal(t, "Highway 9", rep.Scenario)
	assert.Equal(t, 2, rep.TotalViolations)
	assert.Equal(t, sampleViolations(), rep.Violations)
}

func TestBuild_UnnamedFallback(t *testing.T) {
	assert.Equal(t, "Unnamed", Build(nil, nil).Scenario)
	assert.Equal(t, "Unnamed", Build(&contracts.Scenario{Name: "   "}, nil).Scenario)
}

// An empty run still renders a violations array, not null.
func TestBuild_EmptyViolations(t *testing.T) {
	rep := Build(&contracts.Scenario{Name: "Quiet drive"}, nil)
	assert.Equal(t, 0, rep.TotalViolations)

	data, err := json.Marshal(rep)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"violations":[]`)
}

func TestDigest_Deterministic(t *testing.T) {
	scn := &contracts.Scenario{Name: "Highway 9"}
	first, err := Digest(Build(scn, sampleViolations()))
	require.NoError(t, err)
	second, err := Digest(Build(scn, sampleViolations()))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	other, err := Digest(Build(scn, sampleViolations()[:1]))
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	rep := Build(&contracts.Scenario{Name: "Highway 9"}, sampleViolations())

	require.NoError(t, WriteFile(path, rep))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, rep, decoded)

	// No temp file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}
