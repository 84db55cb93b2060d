package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeDuplicateSource, status: http.StatusConflict, publicMsg: "source file already registered", detailsOK: true},
		{code: CodeIntegrity, status: http.StatusConflict, publicMsg: "operation violates referential integrity", detailsOK: true},
		{code: CodeInvalidMerge, status: http.StatusUnprocessableEntity, publicMsg: "merge disallowed", detailsOK: true},
		{code: CodeParseFatal, status: http.StatusUnprocessableEntity, publicMsg: "document could not be parsed", detailsOK: true},
		{code: CodeParseRetryable, status: http.StatusServiceUnavailable, publicMsg: "document parsing temporarily unavailable", retryable: true, detailsOK: true},
		{code: CodeTxAborted, status: http.StatusServiceUnavailable, publicMsg: "operation aborted, no changes applied", retryable: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing format tag")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing format tag" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "format"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeIntegrity, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeIntegrity {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestDumpCarriesCodeMetadata(t *testing.T) {
	cause := stdErrors.New("boom")
	err := Wrap(CodeParseRetryable, cause, "parsing document").
		WithDetails(map[string]any{"format": "json_v1"})

	d := Dump(err)
	if d.Code != CodeParseRetryable {
		t.Fatalf("expected code %s, got %s", CodeParseRetryable, d.Code)
	}
	if d.HTTPStatus != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", d.HTTPStatus)
	}
	if !d.Retryable {
		t.Fatalf("expected retryable dump")
	}
	if d.Details == nil {
		t.Fatalf("expected details to be carried")
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected unwrap chain of 2, got %d", len(d.Chain))
	}
}

func TestDumpNilError(t *testing.T) {
	d := Dump(nil)
	if d.TopMessage != "" || d.Code != "" {
		t.Fatalf("nil error should dump empty, got %+v", d)
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeInvalidMerge, "self merge")
	if got := As(err); got == nil || got.Code() != CodeInvalidMerge {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}
