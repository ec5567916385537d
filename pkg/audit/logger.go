// Package audit records a structured trail of analysis runs and
// persistence writes as JSON lines.
package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType defines the category of the audit event.
type EventType string

const (
	EventAnalysis EventType = "ANALYSIS"
	EventMutation EventType = "MUTATION"
	EventQuery    EventType = "QUERY"
)

// Event represents one structured audit record.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Logger records audit events.
type Logger interface {
	Record(ctx context.Context, eventType EventType, action, resource string, metadata map[string]any) error
}

// logger writes structured JSON to a configurable writer.
type logger struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewLogger creates a Logger writing to w. A nil writer yields a no-op
// logger.
func NewLogger(w io.Writer) Logger {
	if w == nil {
		return nopLogger{}
	}
	return &logger{writer: w}
}

func (l *logger) Record(_ context.Context, eventType EventType, action, resource string, metadata map[string]any) error {
	event := Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Action:    action,
		Resource:  resource,
		Timestamp: time.Now().UTC(),
		Metadata:  metadata,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	// Prefix with AUDIT: for easy filtering
	_, err = l.writer.Write(append([]byte("AUDIT: "), append(b, '\n')...))
	return err
}

type nopLogger struct{}

func (nopLogger) Record(context.Context, EventType, string, string, map[string]any) error {
	return nil
}
