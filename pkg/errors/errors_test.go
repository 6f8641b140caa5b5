package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestDispatchCodeMetadata(t *testing.T) {
	tests := []struct {
		name      string
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{name: "duplicate request maps to conflict", code: CodeDuplicateRequest, status: http.StatusConflict, publicMsg: "a matching request was already submitted", detailsOK: true},
		{name: "expired subscription demands payment", code: CodeSubscriptionExpired, status: http.StatusPaymentRequired, publicMsg: "group subscription is missing or expired"},
		{name: "uncovered location is unprocessable", code: CodeLocationNotCovered, status: http.StatusUnprocessableEntity, publicMsg: "location is outside the firm's coverage", detailsOK: true},
		{name: "missing request is not found", code: CodeRequestNotFound, status: http.StatusNotFound, publicMsg: "panic request not found"},
		{name: "illegal transition is unprocessable", code: CodeIllegalStatusTransition, status: http.StatusUnprocessableEntity, publicMsg: "status transition disallowed", detailsOK: true},
		{name: "busy provider is a retryable conflict", code: CodeProviderUnavailable, status: http.StatusConflict, publicMsg: "provider is not available", retryable: true},
		{name: "lost claim is a retryable conflict", code: CodeAssignmentConflict, status: http.StatusConflict, publicMsg: "assignment lost a concurrent update", retryable: true, detailsOK: true},
		{name: "rate limit maps to too many requests", code: CodeRateLimit, status: http.StatusTooManyRequests, publicMsg: "rate limit exceeded"},
		{name: "unverified member is forbidden", code: CodeUnauthorizedRequest, status: http.StatusForbidden, publicMsg: "phone is not a verified member of the group"},
		{name: "dependency outage is retryable", code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := MetadataFor(tt.code)
			if meta.HTTPStatus != tt.status {
				t.Fatalf("status %d, want %d", meta.HTTPStatus, tt.status)
			}
			if meta.PublicMessage != tt.publicMsg {
				t.Fatalf("public message %q, want %q", meta.PublicMessage, tt.publicMsg)
			}
			if meta.Retryable != tt.retryable {
				t.Fatalf("retryable %v, want %v", meta.Retryable, tt.retryable)
			}
			if meta.DetailsAllowed != tt.detailsOK {
				t.Fatalf("details allowed %v, want %v", meta.DetailsAllowed, tt.detailsOK)
			}
		})
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
	if !meta.Retryable {
		t.Fatal("unknown codes inherit the internal retryable flag")
	}
}

func TestConflictDetailsTravelWithError(t *testing.T) {
	err := New(CodeAssignmentConflict, "provider was claimed concurrently").
		WithDetails(map[string]any{"reason": "provider_claimed"})
	if err.Code() != CodeAssignmentConflict {
		t.Fatalf("unexpected code %s", err.Code())
	}
	details, ok := err.Details().(map[string]any)
	if !ok || details["reason"] != "provider_claimed" {
		t.Fatalf("expected conflict reason in details, got %+v", err.Details())
	}
	if err.Error() != "ASSIGNMENT_CONFLICT: provider was claimed concurrently" {
		t.Fatalf("unexpected error string %q", err.Error())
	}
}

func TestWrapPreservesCauseChain(t *testing.T) {
	cause := stdErrors.New("connection reset")
	wrapped := Wrap(CodeDependency, cause, "rate limit check failed")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatal("Wrap must keep the cause reachable via errors.Is")
	}
	if wrapped.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
	if Wrap(CodeInternal, nil, "no cause").Unwrap() != nil {
		t.Fatal("nil cause must wrap to a bare error")
	}
}

func TestAsFindsTypedErrorThroughWrapping(t *testing.T) {
	typed := New(CodeProviderNotFound, "provider not found")
	chained := Wrap(CodeInternal, typed, "load provider")
	// Wrap buries the inner code; As surfaces the outermost typed error.
	if got := As(chained); got == nil || got.Code() != CodeInternal {
		t.Fatalf("expected outer typed error, got %v", got)
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatal("plain errors carry no code")
	}
	if As(nil) != nil {
		t.Fatal("As(nil) should return nil")
	}
}
