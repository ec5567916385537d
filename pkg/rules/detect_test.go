package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driveline/incidentlog/pkg/contracts"
)

func testScenario() *contracts.Scenario {
	return &contracts.Scenario{
		Name: "Highway 9",
		Rules: contracts.RoadRules{
			MaxSpeed:          45,
			MinFollowDistance: 2.5,
			StopSignWait:      3.0,
		},
	}
}

func speed(t, v float64) contracts.Event {
	return contracts.Event{Seconds: t, Kind: contracts.EventSpeed, Value: v}
}

func follow(t, v float64) contracts.Event {
	return contracts.Event{Seconds: t, Kind: contracts.EventFollowDistance, Value: v}
}

func laneChange(t float64) contracts.Event {
	return contracts.Event{Seconds: t, Kind: contracts.EventLaneChange, Direction: contracts.LaneLeft}
}

func stopSign(t float64) contracts.Event {
	return contracts.Event{Seconds: t, Kind: contracts.EventStopSign}
}

func TestDetect_EmptyEvents(t *testing.T) {
	violations, err := Detect(testScenario(), nil)
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = Detect(testScenario(), []contracts.Event{})
	require.NoError(t, err)
	assert.Empty(t, violations)
}

// TestDetect_Example is the worked example: three events, three
// violations, in event order.
func TestDetect_Example(t *testing.T) {
	events := []contracts.Event{
		speed(5, 50),
		follow(12, 1.8),
		laneChange(20),
	}

	violations, err := Detect(testScenario(), events)
	require.NoError(t, err)
	require.Len(t, violations, 3)

	assert.Equal(t, contracts.Violation{
		Kind:    contracts.ViolationSpeeding,
		Time:    "00:05.0",
		Details: "50.0 mph in 45 mph zone",
	}, violations[0])
	assert.Equal(t, contracts.Violation{
		Kind:    contracts.ViolationTailgating,
		Time:    "00:12.0",
		Details: "1.8 m < 2.5 m",
	}, violations[1])
	assert.Equal(t, contracts.Violation{
		Kind:    contracts.ViolationUnsafeLaneChange,
		Time:    "00:20.0",
		Details: "follow 1.8 m < 2.5 m",
	}, violations[2])
}

// Speed exactly at the limit is compliant; one unit above is not.
func TestDetect_SpeedingBoundary(t *testing.T) {
	violations, err := Detect(testScenario(), []contracts.Event{speed(5, 45)})
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = Detect(testScenario(), []contracts.Event{speed(5, 46)})
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, contracts.ViolationSpeeding, violations[0].Kind)
	assert.Equal(t, "46.0 mph in 45 mph zone", violations[0].Details)
}

// Follow distance exactly at the minimum is compliant; marginally below
// is not.
func TestDetect_TailgatingBoundary(t *testing.T) {
	violations, err := Detect(testScenario(), []contracts.Event{follow(3, 2.5)})
	require.NoError(t, err)
	assert.Empty(t, violations)

	violations, err = Detect(testScenario(), []contracts.Event{follow(3, 2.4)})
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, contracts.ViolationTailgating, violations[0].Kind)
	assert.Equal(t, "2.4 m < 2.5 m", violations[0].Details)
}

// A lane change before any follow-distance reading has no basis for a
// violation.
func TestDetect_LaneChangeWithoutReading(t *testing.T) {
	violations, err := Detect(testScenario(), []contracts.Event{laneChange(4)})
	require.NoError(t, err)
	assert.Empty(t, violations)
}

// Tailgating and unsafe-lane-change are independent: one bad reading
// can produce both.
func TestDetect_TailgatingAndLaneChangeBothFire(t *testing.T) {
	events := []contracts.Event{
		follow(10, 1.0),
		laneChange(15),
	}
	violations, err := Detect(testScenario(), events)
	require.NoError(t, err)
	require.Len(t, violations, 2)
	assert.Equal(t, contracts.ViolationTailgating, violations[0].Kind)
	assert.Equal(t, contracts.ViolationUnsafeLaneChange, violations[1].Kind)
}

// A compliant reading after a bad one clears the lane-change hazard.
func TestDetect_LaneChangeUsesLatestReading(t *testing.T) {
	events := []contracts.Event{
		follow(10, 1.0),
		follow(14, 3.0),
		laneChange(15),
	}
	violations, err := Detect(testScenario(), events)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, contracts.ViolationTailgating, violations[0].Kind)
}

// Waiting exactly the required time is compliant; one unit less is a
// rolling stop, emitted at the detection timestamp.
func TestDetect_RollingStopBoundary(t *testing.T) {
	// Resumes motion exactly stop_sign_wait later.
	events := []contracts.Event{
		stopSign(10),
		speed(13, 20),
	}
	violations, err := Detect(testScenario(), events)
	require.NoError(t, err)
	assert.Empty(t, violations)

	// Resumes one tenth of a second early.
	events = []contracts.Event{
		stopSign(10),
		speed(12.9, 20),
	}
	violations, err = Detect(testScenario(), events)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, contracts.ViolationRollingStop, violations[0].Kind)
	assert.Equal(t, "00:10.0", violations[0].Time)
	assert.Equal(t, "Stopped 2.9s; required 3.0s", violations[0].Details)
}

// Speed readings at or below walking pace are still part of the stop:
// they do not close the wait window.
func TestDetect_RollingStopIgnoresCrawlSpeed(t *testing.T) {
	events := []contracts.Event{
		stopSign(10),
		speed(11, 0.5),
		speed(13.5, 20),
	}
	violations, err := Detect(testScenario(), events)
	require.NoError(t, err)
	assert.Empty(t, violations)

	events = []contracts.Event{
		stopSign(10),
		speed(11, 0.5),
		speed(12, 20),
	}
	violations, err = Detect(testScenario(), events)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, contracts.ViolationRollingStop, violations[0].Kind)
}

// A second detection replaces an unresolved window without evaluating it.
func TestDetect_SecondStopSignReplacesWindow(t *testing.T) {
	events := []contracts.Event{
		stopSign(10),
		stopSign(14),
		speed(15, 20),
	}
	violations, err := Detect(testScenario(), events)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, contracts.ViolationRollingStop, violations[0].Kind)
	assert.Equal(t, "00:14.0", violations[0].Time)
	assert.Equal(t, "Stopped 1.0s; required 3.0s", violations[0].Details)
}

// A window still open at end of stream produces nothing: the wait
// cannot be measured.
func TestDetect_UnresolvedStopAtEndOfStream(t *testing.T) {
	events := []contracts.Event{
		speed(5, 30),
		stopSign(10),
	}
	violations, err := Detect(testScenario(), events)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

// ROLLING_STOP is back-dated to the detection timestamp, so the output
// is re-ordered to keep violation times non-decreasing.
func TestDetect_RollingStopOrdering(t *testing.T) {
	events := []contracts.Event{
		stopSign(10),
		speed(11, 50),
	}
	violations, err := Detect(testScenario(), events)
	require.NoError(t, err)
	require.Len(t, violations, 2)
	assert.Equal(t, contracts.ViolationRollingStop, violations[0].Kind)
	assert.Equal(t, "00:10.0", violations[0].Time)
	assert.Equal(t, contracts.ViolationSpeeding, violations[1].Kind)
	assert.Equal(t, "00:11.0", violations[1].Time)
}

// Ordering holds past the 100-minute mark, where rendered times no
// longer compare lexicographically ("100:00.0" < "99:00.0" as strings).
func TestDetect_OrderingPastHundredMinutes(t *testing.T) {
	events := []contracts.Event{
		speed(5940, 50), // 99:00
		speed(6000, 50), // 100:00
	}
	violations, err := Detect(testScenario(), events)
	require.NoError(t, err)
	require.Len(t, violations, 2)
	assert.Equal(t, "99:00.0", violations[0].Time)
	assert.Equal(t, "100:00.0", violations[1].Time)

	// Back-dated rolling stop across the same boundary still sorts
	// ahead of the later speeding event.
	events = []contracts.Event{
		stopSign(5999),  // 99:59
		speed(6000, 50), // 100:00, closes the window after 1.0s
	}
	violations, err = Detect(testScenario(), events)
	require.NoError(t, err)
	require.Len(t, violations, 2)
	assert.Equal(t, contracts.ViolationRollingStop, violations[0].Kind)
	assert.Equal(t, "99:59.0", violations[0].Time)
	assert.Equal(t, contracts.ViolationSpeeding, violations[1].Kind)
	assert.Equal(t, "100:00.0", violations[1].Time)
}

func TestDetect_MissingRuleFields(t *testing.T) {
	for _, tc := range []struct {
		name  string
		rules contracts.RoadRules
		field string
	}{
		{"max_speed", contracts.RoadRules{MinFollowDistance: 2.5, StopSignWait: 3}, "max_speed"},
		{"min_follow_distance", contracts.RoadRules{MaxSpeed: 45, StopSignWait: 3}, "min_follow_distance"},
		{"stop_sign_wait", contracts.RoadRules{MaxSpeed: 45, MinFollowDistance: 2.5}, "stop_sign_wait"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			scn := &contracts.Scenario{Rules: tc.rules}
			violations, err := Detect(scn, []contracts.Event{speed(5, 50)})
			assert.Nil(t, violations)

			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
		})
	}
}

func TestDetect_UnknownEventKind(t *testing.T) {
	events := []contracts.Event{
		{Seconds: 5, Kind: contracts.EventKind("TURBO_BOOST")},
	}
	violations, err := Detect(testScenario(), events)
	assert.Nil(t, violations)

	var evErr *MalformedEventError
	require.ErrorAs(t, err, &evErr)
	assert.Equal(t, "TURBO_BOOST", evErr.Kind)
}

// No partial results: a malformed event mid-stream fails the whole run
// even when violations were already found.
func TestDetect_NoPartialResultsOnError(t *testing.T) {
	events := []contracts.Event{
		speed(5, 50),
		{Seconds: 6, Kind: contracts.EventKind("WARP")},
	}
	violations, err := Detect(testScenario(), events)
	require.Error(t, err)
	assert.Nil(t, violations)
}

func TestDetect_Idempotent(t *testing.T) {
	events := []contracts.Event{
		speed(5, 50),
		stopSign(8),
		speed(9, 30),
		follow(12, 1.8),
		laneChange(20),
	}
	first, err := Detect(testScenario(), events)
	require.NoError(t, err)
	second, err := Detect(testScenario(), events)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
