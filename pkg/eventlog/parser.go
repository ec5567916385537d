// Package eventlog parses the plaintext vehicle telemetry log into the
// ordered event sequence the detection engine consumes.
package eventlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/driveline/incidentlog/pkg/contracts"
)

// ParseError reports a log line the parser could not accept.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// ReadFile parses the event log at path.
func ReadFile(path string) ([]contracts.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads one event per line: TIMESTAMP KIND [ARG]. Blank lines are
// skipped. Any malformed line aborts the parse; the engine never sees a
// partially valid sequence.
func Parse(r io.Reader) ([]contracts.Event, error) {
	events := []contracts.Event{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ev, err := parseLine(lineNo, line)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event log: %w", err)
	}
	return events, nil
}

func parseLine(lineNo int, line string) (contracts.Event, error) {
	tokens := strings.Fields(line)
	if len(tokens) < 2 {
		return contracts.Event{}, &ParseError{Line: lineNo, Text: line, Reason: "expected TIMESTAMP KIND [ARG]"}
	}

	seconds, err := ParseTimestamp(tokens[0])
	if err != nil {
		return contracts.Event{}, &ParseError{Line: lineNo, Text: line, Reason: err.Error()}
	}

	kind := contracts.EventKind(tokens[1])
	switch kind {
	case contracts.EventSpeed, contracts.EventFollowDistance:
		if len(tokens) != 3 {
			return contracts.Event{}, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("%s requires one numeric argument", kind)}
		}
		v, err := strconv.ParseFloat(tokens[2], 64)
		if err != nil {
			return contracts.Event{}, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("%s argument is not numeric", kind)}
		}
		return contracts.Event{Seconds: seconds, Kind: kind, Value: v}, nil

	case contracts.EventLaneChange:
		if len(tokens) != 3 || (tokens[2] != string(contracts.LaneLeft) && tokens[2] != string(contracts.LaneRight)) {
			return contracts.Event{}, &ParseError{Line: lineNo, Text: line, Reason: "LANE_CHANGE requires LEFT or RIGHT"}
		}
		return contracts.Event{Seconds: seconds, Kind: kind, Direction: contracts.LaneDirection(tokens[2])}, nil

	case contracts.EventStopSign:
		if len(tokens) != 2 {
			return contracts.Event{}, &ParseError{Line: lineNo, Text: line, Reason: "STOP_SIGN_DETECTED takes no argument"}
		}
		return contracts.Event{Seconds: seconds, Kind: kind}, nil

	default:
		return contracts.Event{}, &ParseError{Line: lineNo, Text: line, Reason: fmt.Sprintf("unknown event kind %q", tokens[1])}
	}
}

// ParseTimestamp converts an M:SS or M:SS.s timestamp into seconds.
// "0:05" -> 5.0, "1:02.5" -> 62.5.
func ParseTimestamp(ts string) (float64, error) {
	parts := strings.Split(ts, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("bad timestamp %q", ts)
	}
	minutes, err := strconv.Atoi(parts[0])
	if err != nil || minutes < 0 {
		return 0, fmt.Errorf("bad timestamp %q", ts)
	}
	seconds, err := strconv.ParseFloat(parts[1], 64)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("bad timestamp %q", ts)
	}
	return float64(minutes)*60 + seconds, nil
}
