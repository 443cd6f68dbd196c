package harness

import (
	"github.com/roach88/eir/internal/ir"
	"github.com/roach88/eir/internal/lower"
	"github.com/roach88/eir/internal/target"
)

// Result is the outcome of running one script.
type Result struct {
	// Script is the script name.
	Script string `json:"script"`

	// Pass is true when every assertion held and any expected build error
	// occurred with the expected code.
	Pass bool `json:"pass"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	Target      target.Info `json:"-"`
	Session     string      `json:"session"`
	Fingerprint string      `json:"fingerprint,omitempty"` // of the built module

	// Built is the printed module before lowering.
	Built string `json:"built,omitempty"`

	// Lowered is the printed module after lowering, if the script lowers.
	Lowered string       `json:"lowered,omitempty"`
	Stats   *lower.Stats `json:"stats,omitempty"`

	// ErrorCode is the build error code of a script expected to fail.
	ErrorCode string `json:"error_code,omitempty"`

	// ArtifactIDs are the store rows written for this run.
	ArtifactIDs []int64 `json:"artifact_ids,omitempty"`

	// Module is the final module (lowered when the script lowers).
	Module *ir.Module `json:"-"`
}

// NewResult creates a passing result.
func NewResult(script string, tgt target.Info) *Result {
	return &Result{
		Script: script,
		Pass:   true,
		Errors: []string{},
		Target: tgt,
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
	r.Pass = false
}

// Text returns the final printed module.
func (r *Result) Text() string {
	if r.Lowered != "" {
		return r.Lowered
	}
	return r.Built
}
