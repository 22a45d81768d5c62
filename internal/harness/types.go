package harness

import "github.com/roach88/lagprobe/internal/latency"

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// Report is the session report as measured.
	Report *latency.Report `json:"report"`

	// RefreshHz is the rate frame counts are computed against.
	RefreshHz int `json:"refresh_hz"`

	// SessionID is the id the report was stored under.
	SessionID string `json:"session_id"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
