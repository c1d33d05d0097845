package result

import (
	"encoding/json"
	"testing"
)

func TestFailureError(t *testing.T) {
	f := NewFailure(KindPolicyDenied, OriginPolicy, "tool %s is hidden", "x.Delete")
	want := "policy_denied (policy): tool x.Delete is hidden"
	if f.Error() != want {
		t.Errorf("Error() = %q, want %q", f.Error(), want)
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		kind FailureKind
		want bool
	}{
		{KindTimeout, true},
		{KindRateLimited, true},
		{KindTransientFailure, true},
		{KindInvalidArgument, false},
		{KindPolicyDenied, false},
		{KindAuthentication, false},
		{KindPermanentFailure, false},
		{KindInternal, false},
	}
	for _, tc := range tests {
		f := NewFailure(tc.kind, OriginExecution, "x")
		if got := f.Retryable(); got != tc.want {
			t.Errorf("Retryable(%s) = %v, want %v", tc.kind, got, tc.want)
		}
	}
}

func TestToMCPResultFailure(t *testing.T) {
	inv := Fail(NewFailure(KindInvalidArgument, OriginExecution, "bad limit").WithHint("pass an integer"))

	res, err := inv.ToMCPResult()
	if err != nil {
		t.Fatalf("ToMCPResult: %v", err)
	}
	if !res.IsError {
		t.Fatal("failure should produce an error result")
	}
}

func TestToMCPResultSuccess(t *testing.T) {
	inv := Success([]any{"a", "b"})
	inv.PagesFetched = 2
	inv.Truncated = true

	res, err := inv.ToMCPResult()
	if err != nil {
		t.Fatalf("ToMCPResult: %v", err)
	}
	if res.IsError {
		t.Fatal("success must not be an error result")
	}

	payload, ok := res.StructuredContent.(map[string]any)
	if !ok {
		t.Fatalf("structured content = %T, want map", res.StructuredContent)
	}
	if payload["pages_fetched"] != 2 || payload["truncated"] != true {
		t.Errorf("payload = %v", payload)
	}
}

func TestToMCPResultPartial(t *testing.T) {
	inv := Success([]any{"a"})
	inv.PagesFetched = 2
	inv.Failure = NewFailure(KindTransientFailure, OriginPagination, "page 2 failed")

	res, err := inv.ToMCPResult()
	if err != nil {
		t.Fatalf("ToMCPResult: %v", err)
	}
	if res.IsError {
		t.Fatal("partial result carries items and must not be a bare error")
	}
	payload := res.StructuredContent.(map[string]any)
	if payload["error"] == nil {
		t.Error("partial result should carry the failure")
	}
}

func TestFailureJSONShape(t *testing.T) {
	f := NewFailure(KindTimeout, OriginExecution, "too slow").WithHint("raise the timeout")
	data, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, field := range []string{"kind", "message", "hint", "origin"} {
		if _, ok := decoded[field]; !ok {
			t.Errorf("missing field %q in %s", field, data)
		}
	}
}
