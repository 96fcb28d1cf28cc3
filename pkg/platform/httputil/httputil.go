// Package httputil is the single place where domain errors become HTTP
// responses and where request bodies are decoded and validated.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "persona-gateway/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to its HTTP status and writes the wire
// error body. Internal errors omit the description so backend details never
// leak to API consumers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": wireCode(code)}
	var de *dErrors.Error
	if code != dErrors.CodeInternal && errors.As(err, &de) {
		body["error_description"] = de.Message
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

func wireCode(code dErrors.Code) string {
	if code == dErrors.CodeInternal {
		return "internal_error"
	}
	return string(code)
}

// Normalizer is implemented by request types that canonicalize their fields
// before validation.
type Normalizer interface {
	Normalize()
}

// Validator is implemented by request types that check their own invariants.
type Validator interface {
	Validate() error
}

// DecodeAndPrepare decodes the JSON request body into T, then runs its
// Normalize and Validate hooks when present. On failure it writes the error
// response and returns ok=false; the handler just returns.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (T, bool) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "request body decode failed",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return req, false
	}
	if n, ok := any(&req).(Normalizer); ok {
		n.Normalize()
	}
	if v, ok := any(&req).(Validator); ok {
		if err := v.Validate(); err != nil {
			WriteError(w, dErrors.Wrap(err, dErrors.CodeValidation, err.Error()))
			return req, false
		}
	}
	return req, true
}
