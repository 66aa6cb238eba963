package harness

import "encoding/json"

// Trace event types.
const (
	EventBind        = "bind"
	EventWrite       = "write"
	EventAdvance     = "advance"
	EventLogin       = "login"
	EventLogout      = "logout"
	EventFailRemote  = "fail_remote"
	EventFlush       = "flush"
	EventLoad        = "load"
	EventRemoteGet   = "remote_get"
	EventRemoteMerge = "remote_merge"
)

// TraceEvent is one entry of the trace. Doc holds the canonical encoding of
// the document involved, if any.
type TraceEvent struct {
	Seq     int             `json:"seq"`
	Type    string          `json:"type"`
	Path    string          `json:"path,omitempty"`
	UID     string          `json:"uid,omitempty"`
	Doc     json.RawMessage `json:"doc,omitempty"`
	Detail  string          `json:"detail,omitempty"`
	Outcome string          `json:"outcome,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains every step and effect in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final state document queried by state assertions.
	State json.RawMessage `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
