package result

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

// FailureKind classifies a failed invocation.
type FailureKind string

const (
	KindInvalidArgument  FailureKind = "invalid_argument"
	KindPolicyDenied     FailureKind = "policy_denied"
	KindAuthentication   FailureKind = "authentication_failed"
	KindTimeout          FailureKind = "timeout"
	KindRateLimited      FailureKind = "rate_limited"
	KindTransientFailure FailureKind = "transient_upstream_failure"
	KindPermanentFailure FailureKind = "permanent_upstream_failure"
	KindInternal         FailureKind = "internal"
)

// Origin identifies the pipeline stage that produced a failure.
type Origin string

const (
	OriginPolicy     Origin = "policy"
	OriginAuth       Origin = "auth"
	OriginExecution  Origin = "execution"
	OriginPagination Origin = "pagination"
	OriginInternal   Origin = "internal"
)

// Failure carries a structured invocation error.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	Hint    string      `json:"hint,omitempty"`
	Origin  Origin      `json:"origin"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s (%s): %s", f.Kind, f.Origin, f.Message)
}

// NewFailure creates a Failure with the given kind, origin and message.
func NewFailure(kind FailureKind, origin Origin, format string, args ...any) *Failure {
	return &Failure{
		Kind:    kind,
		Origin:  origin,
		Message: fmt.Sprintf(format, args...),
	}
}

// WithHint attaches a remediation hint and returns the failure.
func (f *Failure) WithHint(hint string) *Failure {
	f.Hint = hint
	return f
}

// Retryable reports whether the failure is transient and may succeed on retry.
func (f *Failure) Retryable() bool {
	switch f.Kind {
	case KindTimeout, KindRateLimited, KindTransientFailure:
		return true
	}
	return false
}

// Invocation is the outcome of a single tool invocation. Either Value is set
// (success, possibly paginated) or Failure is set. A paginated collection that
// failed mid-flight carries both: the partial Value and the recorded Failure.
type Invocation struct {
	Value        any           `json:"value,omitempty"`
	PagesFetched int           `json:"pages_fetched,omitempty"`
	Truncated    bool          `json:"truncated,omitempty"`
	DryRun       bool          `json:"dry_run,omitempty"`
	Duration     time.Duration `json:"-"`
	Failure      *Failure      `json:"error,omitempty"`
}

// Success creates a successful invocation carrying a value.
func Success(value any) *Invocation {
	return &Invocation{Value: value}
}

// Fail creates a failed invocation.
func Fail(f *Failure) *Invocation {
	return &Invocation{Failure: f}
}

// OK reports whether the invocation completed without failure.
func (r *Invocation) OK() bool {
	return r.Failure == nil
}

// ToMCPResult converts the invocation to an MCP CallToolResult. Errors are
// encoded in the result, not the error return value, following the MCP
// pattern.
func (r *Invocation) ToMCPResult() (*mcp.CallToolResult, error) {
	if r.Failure != nil && r.Value == nil {
		data, err := json.Marshal(r.Failure)
		if err != nil {
			return mcp.NewToolResultError(r.Failure.Error()), nil
		}
		return mcp.NewToolResultError(string(data)), nil
	}

	payload := map[string]any{"value": r.Value}
	if r.PagesFetched > 0 {
		payload["pages_fetched"] = r.PagesFetched
	}
	if r.Truncated {
		payload["truncated"] = true
	}
	if r.DryRun {
		payload["dry_run"] = true
	}
	if r.Failure != nil {
		// Partial pagination result: items plus the recorded failure.
		payload["error"] = r.Failure
	}

	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultStructured(payload, string(jsonBytes)), nil
}
