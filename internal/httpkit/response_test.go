package httpkit

import (
	"encoding/json"
	stderrors "errors"
	"net/http/httptest"
	"strings"
	"testing"

	"eduvid/internal/pkg/errors"
)

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestWriteErrorTypedMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", errors.ValidationField("prompt", "prompt is required"), 400, "VALIDATION_ERROR"},
		{"not found", errors.NotFound("job", "abc"), 404, "NOT_FOUND"},
		{"conflict", errors.New(errors.CodeConflict, "video not ready"), 409, "CONFLICT"},
		{"timeout", errors.Timeout("render"), 504, "TIMEOUT"},
		{"unavailable", errors.New(errors.CodeUnavailable, "job queue unavailable"), 503, "UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			env := decodeEnvelope(t, rec)
			if env.Error.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", env.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestWriteErrorCarriesFields(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, errors.ValidationField("quality", "quality must be one of low, medium, high"))

	env := decodeEnvelope(t, rec)
	if env.Error.Details["field"] != "quality" {
		t.Errorf("details = %v", env.Error.Details)
	}
}

func TestWriteErrorUntypedStaysOpaque(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, stderrors.New("dial tcp 10.0.0.1: connection refused"))

	if rec.Code != 500 {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error.Code != "INTERNAL_ERROR" {
		t.Errorf("code = %q", env.Error.Code)
	}
	if strings.Contains(env.Error.Message, "10.0.0.1") {
		t.Errorf("message leaks cause: %q", env.Error.Message)
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"prompt":"x","bogus":1}`))
	var v struct {
		Prompt string `json:"prompt"`
	}
	if err := DecodeJSON(req, &v); err == nil {
		t.Error("expected error for unknown field")
	}
}
