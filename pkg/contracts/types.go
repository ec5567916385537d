// Package contracts holds the data model shared by the loader, the
// detection engine, the report builder, and the store.
package contracts

import "fmt"

// EventKind identifies a telemetry record type in the vehicle log.
type EventKind string

const (
	EventSpeed          EventKind = "SPEED"
	EventFollowDistance EventKind = "FOLLOW_DISTANCE"
	EventLaneChange     EventKind = "LANE_CHANGE"
	EventStopSign       EventKind = "STOP_SIGN_DETECTED"
)

// LaneDirection is the argument of a LANE_CHANGE event.
type LaneDirection string

const (
	LaneLeft  LaneDirection = "LEFT"
	LaneRight LaneDirection = "RIGHT"
)

// Event is one timestamped telemetry record. Seconds is the timestamp
// converted from the log's M:SS form. Value carries the numeric argument
// of SPEED and FOLLOW_DISTANCE events; Direction carries the LANE_CHANGE
// argument. Events are immutable once parsed.
type Event struct {
	Seconds   float64
	Kind      EventKind
	Value     float64
	Direction LaneDirection
}

// RoadRules are the global thresholds for a scenario. All fields are
// required and must be positive.
type RoadRules struct {
	MaxSpeed          float64 `json:"max_speed" yaml:"max_speed"`
	MinFollowDistance float64 `json:"min_follow_distance" yaml:"min_follow_distance"`
	StopSignWait      float64 `json:"stop_sign_wait" yaml:"stop_sign_wait"`
}

// SpeedZone overrides the global speed limit for a mile range.
type SpeedZone struct {
	StartMile  float64 `json:"start_mile" yaml:"start_mile"`
	EndMile    float64 `json:"end_mile" yaml:"end_mile"`
	SpeedLimit float64 `json:"speed_limit" yaml:"speed_limit"`
}

// Scenario is a named bundle of road rules and speed zones. It is built
// once per analysis run and read-only thereafter.
type Scenario struct {
	Name        string      `json:"name" yaml:"name"`
	Description string      `json:"description" yaml:"description"`
	Rules       RoadRules   `json:"road_rules" yaml:"road_rules"`
	Zones       []SpeedZone `json:"speed_zones" yaml:"speed_zones"`
}

// LimitAt returns the speed limit in force at the given mile marker:
// the covering zone's limit if one exists, the global maximum otherwise.
// Zones are validated non-overlapping at load time, so at most one match.
func (s *Scenario) LimitAt(mile float64) float64 {
	for _, z := range s.Zones {
		if mile >= z.StartMile && mile < z.EndMile {
			return z.SpeedLimit
		}
	}
	return s.Rules.MaxSpeed
}

// ViolationKind identifies a detected breach of a road rule.
type ViolationKind string

const (
	ViolationSpeeding         ViolationKind = "SPEEDING"
	ViolationRollingStop      ViolationKind = "ROLLING_STOP"
	ViolationTailgating       ViolationKind = "TAILGATING"
	ViolationUnsafeLaneChange ViolationKind = "UNSAFE_LANE_CHANGE"
)

// Violation ties a rule breach to its triggering event. Time is the
// rendered MM:SS.s timestamp; the same string flows into the report and
// the violation table unchanged.
type Violation struct {
	Kind    ViolationKind `json:"type"`
	Time    string        `json:"time"`
	Details string        `json:"details"`
}

// FormatSeconds renders a second count as MM:SS.s with zero-padded
// minutes and one decimal on the seconds. 65.4 -> "01:05.4".
func FormatSeconds(t float64) string {
	m := int(t) / 60
	s := t - float64(m)*60
	return fmt.Sprintf("%02d:%04.1f", m, s)
}
