package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/roach88/qwsync/internal/doc"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", ev.Seq, ev.Type)
			if ev.UID != "" {
				fmt.Fprintf(&buf, " uid=%s", ev.UID)
			}
			if ev.Path != "" {
				fmt.Fprintf(&buf, " path=%s", ev.Path)
			}
			if len(ev.Doc) > 0 {
				fmt.Fprintf(&buf, " %s", ev.Doc)
			}
			if ev.Detail != "" {
				fmt.Fprintf(&buf, " %s", ev.Detail)
			}
			if ev.Outcome != "" {
				fmt.Fprintf(&buf, " -> %s", ev.Outcome)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertState:
		return assertState(result.State, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertState evaluates a gjson query against the final state.
func assertState(state json.RawMessage, a Assertion) error {
	got := gjson.GetBytes(state, a.Query)

	if a.Absent {
		if got.Exists() {
			return &AssertionError{
				Type:     AssertState,
				Expected: fmt.Sprintf("%s absent", a.Query),
				Actual:   got.Raw,
			}
		}
		return nil
	}

	if !got.Exists() {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("%s = %v", a.Query, a.Equals),
			Actual:   "no value",
		}
	}

	expected, err := json.Marshal(a.Equals)
	if err != nil {
		return fmt.Errorf("encode expected value: %w", err)
	}
	if !reflect.DeepEqual(gjson.ParseBytes(expected).Value(), got.Value()) {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("%s = %s", a.Query, expected),
			Actual:   got.Raw,
		}
	}
	return nil
}

// assertTraceCount checks that exactly Count events match Event and Path.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	path := doc.SanitizePath(a.Path)
	count := 0
	for _, ev := range trace {
		if ev.Type == a.Event && (path == "" || ev.Path == path) {
			count++
		}
	}

	if count != a.Count {
		what := a.Event
		if path != "" {
			what += " on " + path
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks that Events appear in order. Other events may
// appear in between.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Events) && ev.Type == a.Events[next] {
			next++
		}
	}

	if next < len(a.Events) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("events in order: %v", a.Events),
			Actual:   fmt.Sprintf("matched %v, missing %s", a.Events[:next], a.Events[next]),
			Trace:    trace,
		}
	}
	return nil
}
