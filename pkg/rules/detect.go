// Package rules implements the violation detection engine: a single
// forward pass over an ordered event sequence, evaluating each event
// against the scenario's road rules.
package rules

import (
	"fmt"
	"sort"

	"github.com/driveline/incidentlog/pkg/contracts"
)

// epsilon guards the threshold comparisons against floating-point
// jitter: a value exactly at a limit is always compliant.
const epsilon = 1e-9

// movingSpeed is the speed above which the vehicle counts as back in
// motion, closing a pending stop-sign wait window.
const movingSpeed = 1.0

// engineState is the cross-event memory threaded through one pass.
// It is created per Detect call and discarded on return.
type engineState struct {
	lastFollow  float64
	followKnown bool
	pendingStop float64
	stopPending bool
}

// timedViolation pairs a violation with its trigger time in seconds,
// kept for the final ordering pass. Rendered MM:SS.s strings stop
// comparing lexicographically once minutes reach three digits.
type timedViolation struct {
	at float64
	v  contracts.Violation
}

// Detect walks the ordered event sequence once and returns every road
// rule violation, ordered by violation time. An empty sequence yields
// an empty result. Detect is a pure function of its inputs: identical
// calls return identical sequences.
func Detect(scenario *contracts.Scenario, events []contracts.Event) ([]contracts.Violation, error) {
	if err := checkRules(scenario.Rules); err != nil {
		return nil, err
	}

	maxSpeed := scenario.Rules.MaxSpeed
	minFollow := scenario.Rules.MinFollowDistance
	stopWait := scenario.Rules.StopSignWait

	var st engineState
	found := []timedViolation{}

	for _, ev := range events {
		switch ev.Kind {
		case contracts.EventSpeed:
			if ev.Value > maxSpeed+epsilon {
				found = append(found, timedViolation{at: ev.Seconds, v: contracts.Violation{
					Kind:    contracts.ViolationSpeeding,
					Time:    contracts.FormatSeconds(ev.Seconds),
					Details: fmt.Sprintf("%.1f mph in %.0f mph zone", ev.Value, maxSpeed),
				}})
			}
			// A speed reading above walking pace closes any pending
			// stop-sign window: the vehicle is moving again.
			if st.stopPending && ev.Value > movingSpeed && ev.Seconds > st.pendingStop {
				waited := ev.Seconds - st.pendingStop
				if waited < stopWait-epsilon {
					found = append(found, timedViolation{at: st.pendingStop, v: contracts.Violation{
						Kind:    contracts.ViolationRollingStop,
						Time:    contracts.FormatSeconds(st.pendingStop),
						Details: fmt.Sprintf("Stopped %.1fs; required %.1fs", waited, stopWait),
					}})
				}
				st.stopPending = false
			}

		case contracts.EventFollowDistance:
			st.lastFollow = ev.Value
			st.followKnown = true
			if ev.Value < minFollow-epsilon {
				found = append(found, timedViolation{at: ev.Seconds, v: contracts.Violation{
					Kind:    contracts.ViolationTailgating,
					Time:    contracts.FormatSeconds(ev.Seconds),
					Details: fmt.Sprintf("%.1f m < %.1f m", ev.Value, minFollow),
				}})
			}

		case contracts.EventLaneChange:
			// No reading yet means no basis for a violation.
			if st.followKnown && st.lastFollow < minFollow-epsilon {
				found = append(found, timedViolation{at: ev.Seconds, v: contracts.Violation{
					Kind:    contracts.ViolationUnsafeLaneChange,
					Time:    contracts.FormatSeconds(ev.Seconds),
					Details: fmt.Sprintf("follow %.1f m < %.1f m", st.lastFollow, minFollow),
				}})
			}

		case contracts.EventStopSign:
			// A new detection replaces an unresolved window.
			st.pendingStop = ev.Seconds
			st.stopPending = true

		default:
			return nil, &MalformedEventError{Kind: string(ev.Kind)}
		}
	}

	// ROLLING_STOP is emitted at the detection timestamp, which can
	// predate violations already recorded between detection and
	// resolution. A stable sort over the numeric trigger times restores
	// the non-decreasing order.
	sort.SliceStable(found, func(i, j int) bool {
		return found[i].at < found[j].at
	})

	violations := make([]contracts.Violation, len(found))
	for i, tv := range found {
		violations[i] = tv.v
	}
	return violations, nil
}

func checkRules(r contracts.RoadRules) error {
	switch {
	case r.MaxSpeed <= 0:
		return &ConfigurationError{Field: "max_speed"}
	case r.MinFollowDistance <= 0:
		return &ConfigurationError{Field: "min_follow_distance"}
	case r.StopSignWait <= 0:
		return &ConfigurationError{Field: "stop_sign_wait"}
	}
	return nil
}
