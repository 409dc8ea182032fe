package httpkit

import (
	"encoding/json"
	"io"
	"net/http"

	"eduvid/internal/pkg/errors"
)

// maxBodyBytes bounds request bodies; the API only accepts small JSON
// payloads.
const maxBodyBytes = 1 << 20

type ErrorEnvelope struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details,omitempty"`
	} `json:"error"`
}

func DecodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func WriteErr(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	var env ErrorEnvelope
	env.Error.Code = code
	env.Error.Message = msg
	env.Error.Details = details

	_ = json.NewEncoder(w).Encode(env)
}

// WriteError renders a typed error with its own code, HTTP status, and
// fields. Untyped errors are reported as internal without leaking detail.
func WriteError(w http.ResponseWriter, err error) {
	var e *errors.Error
	if !errors.As(err, &e) {
		WriteErr(w, http.StatusInternalServerError, string(errors.CodeInternal), "internal error", nil)
		return
	}
	WriteErr(w, e.HTTPStatus(), string(e.Code), e.Message, e.Fields)
}
