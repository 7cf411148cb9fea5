// Package http holds the REST handlers. Every error response uses one
// envelope: {"error":{"code","message"},"traceId"} with the trace id
// taken from the active span so clients can quote it in bug reports.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"go.opentelemetry.io/otel/trace"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

type errorBody struct {
	Error   errorDetail `json:"error"`
	TraceID string      `json:"traceId,omitempty"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	body := errorBody{Error: errorDetail{Code: code, Message: message}}
	body.TraceID = traceID(r)
	respondJSON(w, status, body)
}

// traceID returns the active trace id, or "" outside a sampled request.
func traceID(r *http.Request) string {
	if sc := trace.SpanContextFromContext(r.Context()); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// decodeJSON reads a request body into dst. An empty body leaves dst at
// its zero value, so endpoints with all-optional fields accept bare
// POSTs.
func decodeJSON(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
