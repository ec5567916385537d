package rules

import "fmt"

// ConfigurationError reports a scenario whose road rules are missing a
// required field. The engine never substitutes defaults.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("road rules missing required field: %s", e.Field)
}

// MalformedEventError reports an event whose kind is outside the
// supported vocabulary. Reaching the engine with one is an input-model
// contract breach; the run fails rather than skipping the event.
type MalformedEventError struct {
	Kind string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("unsupported event kind: %q", e.Kind)
}
