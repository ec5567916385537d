// Package scenario loads and validates scenario configuration documents.
// All format and range validation happens here; the detection engine
// consumes only the validated result.
package scenario

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/driveline/incidentlog/pkg/contracts"
)

// schemaJSON is the structural contract for scenario documents. JSON
// inputs are checked against it before decoding; YAML inputs get the
// equivalent checks from Validate.
const schemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["road_rules"],
  "properties": {
    "name": {"type": "string"},
    "description": {"type": "string"},
    "road_rules": {
      "type": "object",
      "required": ["max_speed", "min_follow_distance", "stop_sign_wait"],
      "properties": {
        "max_speed": {"type": "number", "exclusiveMinimum": 0},
        "min_follow_distance": {"type": "number", "exclusiveMinimum": 0},
        "stop_sign_wait": {"type": "number", "exclusiveMinimum": 0}
      }
    },
    "speed_zones": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["start_mile", "end_mile", "speed_limit"],
        "properties": {
          "start_mile": {"type": "number", "minimum": 0},
          "end_mile": {"type": "number", "minimum": 0},
          "speed_limit": {"type": "number", "exclusiveMinimum": 0}
        }
      }
    }
  }
}`

var scenarioSchema = compileSchema()

func compileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource("scenario.schema.json", strings.NewReader(schemaJSON)); err != nil {
		panic(err)
	}
	return c.MustCompile("scenario.schema.json")
}

// Load reads a scenario document from path. JSON and YAML are supported,
// selected by extension (.yaml/.yml, anything else is treated as JSON).
func Load(path string) (*contracts.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON decodes and validates a JSON scenario document.
func ParseJSON(data []byte) (*contracts.Scenario, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("scenario is not valid JSON: %w", err)
	}
	if err := scenarioSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("scenario failed schema validation: %w", err)
	}

	var s contracts.Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ParseYAML decodes and validates a YAML scenario document.
func ParseYAML(data []byte) (*contracts.Scenario, error) {
	var s contracts.Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("scenario is not valid YAML: %w", err)
	}
	if err := Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate applies the structural rules shared by both input formats:
// all three road-rule thresholds present and positive, every zone a
// proper positive-limit range, and no two zones overlapping.
func Validate(s *contracts.Scenario) error {
	if s.Rules.MaxSpeed <= 0 {
		return fmt.Errorf("road_rules.max_speed must be > 0")
	}
	if s.Rules.MinFollowDistance <= 0 {
		return fmt.Errorf("road_rules.min_follow_distance must be > 0")
	}
	if s.Rules.StopSignWait <= 0 {
		return fmt.Errorf("road_rules.stop_sign_wait must be > 0")
	}

	for i, z := range s.Zones {
		if z.StartMile >= z.EndMile {
			return fmt.Errorf("speed_zones[%d]: start_mile %.2f must be < end_mile %.2f", i, z.StartMile, z.EndMile)
		}
		if z.SpeedLimit <= 0 {
			return fmt.Errorf("speed_zones[%d]: speed_limit must be > 0", i)
		}
	}

	// Precedence between overlapping zones is undefined, so overlap is
	// rejected here rather than resolved in the engine.
	zones := make([]contracts.SpeedZone, len(s.Zones))
	copy(zones, s.Zones)
	sort.Slice(zones, func(i, j int) bool { return zones[i].StartMile < zones[j].StartMile })
	for i := 1; i < len(zones); i++ {
		if zones[i].StartMile < zones[i-1].EndMile {
			return fmt.Errorf("speed zones [%.2f, %.2f) and [%.2f, %.2f) overlap",
				zones[i-1].StartMile, zones[i-1].EndMile, zones[i].StartMile, zones[i].EndMile)
		}
	}
	return nil
}
