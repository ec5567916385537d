package eventlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/incidentlog/pkg/contracts"
)

func TestParseTimestamp(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want float64
	}{
		{"0:05", 5},
		{"1:02.5", 62.5},
		{"0:00", 0},
		{"10:30", 630},
	} {
		got, err := ParseTimestamp(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParseTimestamp_Malformed(t *testing.T) {
	for _, in := range []string{"", "5", "1:2:3", "a:05", "1:xx", "-1:05", "1:-5"} {
		_, err := ParseTimestamp(in)
		assert.Error(t, err, in)
	}
}

func TestParse_AllKinds(t *testing.T) {
	log := `0:05 SPEED 50
0:12 FOLLOW_DISTANCE 1.8

0:20 LANE_CHANGE LEFT
0:25 STOP_SIGN_DETECTED
`
	events, err := Parse(strings.NewReader(log))
	require.NoError(t, err)
	require.Len(t, events, 4)

	assert.Equal(t, contracts.Event{Seconds: 5, Kind: contracts.EventSpeed, Value: 50}, events[0])
	assert.Equal(t, contracts.Event{Seconds: 12, Kind: contracts.EventFollowDistance, Value: 1.8}, events[1])
	assert.Equal(t, contracts.Event{Seconds: 20, Kind: contracts.EventLaneChange, Direction: contracts.LaneLeft}, events[2])
	assert.Equal(t, contracts.Event{Seconds: 25, Kind: contracts.EventStopSign}, events[3])
}

func TestParse_MalformedLines(t *testing.T) {
	for name, log := range map[string]string{
		"missing kind":           "0:05\n",
		"unknown kind":           "0:05 TELEPORT 9\n",
		"speed without arg":      "0:05 SPEED\n",
		"speed non-numeric":      "0:05 SPEED fast\n",
		"follow extra arg":       "0:05 FOLLOW_DISTANCE 1.8 2.0\n",
		"lane bad direction":     "0:05 LANE_CHANGE UP\n",
		"lane missing direction": "0:05 LANE_CHANGE\n",
		"stop with arg":          "0:05 STOP_SIGN_DETECTED now\n",
		"bad timestamp":          "abc SPEED 50\n",
	} {
		t.Run(name, func(t *testing.T) {
			events, err := Parse(strings.NewReader(log))
			assert.Nil(t, events)

			var parseErr *ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, 1, parseErr.Line)
		})
	}
}

// A malformed line aborts the parse even when earlier lines were valid.
func TestParse_NoPartialSequence(t *testing.T) {
	log := "0:05 SPEED 50\n0:10 TELEPORT 9\n"
	events, err := Parse(strings.NewReader(log))
	require.Error(t, err)
	assert.Nil(t, events)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, 2, parseErr.Line)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	require.NoError(t, os.WriteFile(path, []byte("0:05 SPEED 50\n"), 0o644))

	events, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, 5.0, events[0].Seconds)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "absent.log"))
	assert.Error(t, err)
}
