package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/qwsync/internal/doc"
)

// Scenario is one sync scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup seeds state before the first step. Seeding is not traced.
	Setup Setup `yaml:"setup,omitempty"`

	// Steps drive the sync layer.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Setup is the initial state.
type Setup struct {
	// Session signs a user in before the first step.
	Session string `yaml:"session,omitempty"`

	Cache  []CacheSeed  `yaml:"cache,omitempty"`
	Remote []RemoteSeed `yaml:"remote,omitempty"`
}

// CacheSeed is a cache entry. Raw, when set, is stored verbatim instead of
// Doc so malformed entries can be seeded.
type CacheSeed struct {
	Scope string         `yaml:"scope"`
	Path  string         `yaml:"path"`
	Doc   map[string]any `yaml:"doc,omitempty"`
	Raw   string         `yaml:"raw,omitempty"`
}

// RemoteSeed is a remote document.
type RemoteSeed struct {
	UID  string         `yaml:"uid"`
	Path string         `yaml:"path"`
	Doc  map[string]any `yaml:"doc"`
}

// Step is one action. Exactly one field must be set.
type Step struct {
	Bind       *BindStep  `yaml:"bind,omitempty"`
	Write      *WriteStep `yaml:"write,omitempty"`
	Advance    string     `yaml:"advance,omitempty"`
	Login      string     `yaml:"login,omitempty"`
	Logout     bool       `yaml:"logout,omitempty"`
	FailRemote string     `yaml:"fail_remote,omitempty"`
	Flush      bool       `yaml:"flush,omitempty"`
}

// BindStep binds a document.
type BindStep struct {
	Path     string         `yaml:"path"`
	Defaults map[string]any `yaml:"defaults,omitempty"`
}

// WriteStep writes through a bound document.
type WriteStep struct {
	Path string         `yaml:"path"`
	Doc  map[string]any `yaml:"doc"`
}

// FailRemote modes.
const (
	FailNone   = "none"
	FailGets   = "gets"
	FailWrites = "writes"
	FailAll    = "all"
)

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is state, trace_count or trace_order.
	Type string `yaml:"type"`

	// Query is a gjson path into the final state (state).
	Query string `yaml:"query,omitempty"`

	// Equals is the expected value at Query (state).
	Equals any `yaml:"equals,omitempty"`

	// Absent expects Query to match nothing (state).
	Absent bool `yaml:"absent,omitempty"`

	// Event and Path select trace events (trace_count). An empty Path
	// matches every path.
	Event string `yaml:"event,omitempty"`
	Path  string `yaml:"path,omitempty"`

	// Count is the expected number of matching events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected relative order of event types (trace_order).
	Events []string `yaml:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertState      = "state"
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, seed := range s.Setup.Cache {
		if seed.Scope == "" || seed.Path == "" {
			return fmt.Errorf("setup.cache[%d]: scope and path are required", i)
		}
		if seed.Doc == nil && seed.Raw == "" {
			return fmt.Errorf("setup.cache[%d]: doc or raw is required", i)
		}
	}
	for i, seed := range s.Setup.Remote {
		if seed.UID == "" || seed.Path == "" {
			return fmt.Errorf("setup.remote[%d]: uid and path are required", i)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step) error {
	set := 0
	for _, ok := range []bool{
		step.Bind != nil, step.Write != nil, step.Advance != "", step.Login != "",
		step.Logout, step.FailRemote != "", step.Flush,
	} {
		if ok {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one action is required, got %d", index, set)
	}

	switch {
	case step.Bind != nil && doc.SanitizePath(step.Bind.Path) == "":
		return fmt.Errorf("steps[%d]: bind.path is required", index)
	case step.Write != nil && doc.SanitizePath(step.Write.Path) == "":
		return fmt.Errorf("steps[%d]: write.path is required", index)
	case step.Advance != "":
		d, err := time.ParseDuration(step.Advance)
		if err != nil || d < 0 {
			return fmt.Errorf("steps[%d]: advance must be a non-negative duration, got %q", index, step.Advance)
		}
	case step.FailRemote != "":
		switch step.FailRemote {
		case FailNone, FailGets, FailWrites, FailAll:
		default:
			return fmt.Errorf("steps[%d]: fail_remote must be none, gets, writes or all, got %q", index, step.FailRemote)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertState:
		if a.Query == "" {
			return fmt.Errorf("assertions[%d]: query is required for state", index)
		}
		if a.Absent && a.Equals != nil {
			return fmt.Errorf("assertions[%d]: equals and absent are mutually exclusive", index)
		}
		if !a.Absent && a.Equals == nil {
			return fmt.Errorf("assertions[%d]: equals or absent is required for state", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
