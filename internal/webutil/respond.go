// Package webutil provides the JSON response, CORS, and middleware helpers
// shared by every HTTP-facing Lambda. Replaces the per-handler response
// boilerplate that would otherwise be duplicated across upload, search,
// tag, auth, notify, and batch Lambdas.
package webutil

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/apierr"
)

// corsHeaders are attached to every response. The API is fronted by a
// browser single-page app served from a different origin.
var corsHeaders = map[string]string{
	"Access-Control-Allow-Origin":  "*",
	"Access-Control-Allow-Headers": "Content-Type,X-Amz-Date,Authorization,X-Api-Key,X-Amz-Security-Token",
	"Access-Control-Allow-Methods": "GET,POST,PUT,DELETE,OPTIONS",
}

func writeCORS(w http.ResponseWriter) {
	for k, v := range corsHeaders {
		w.Header().Set(k, v)
	}
}

// RespondJSON writes data as a JSON body with uniform CORS headers.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeCORS(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// errorBody is the uniform JSON error envelope.
type errorBody struct {
	Code    apierr.Code `json:"code"`
	Message string      `json:"message"`
}

// RespondError translates any error into the uniform JSON error body.
// The client sees only the code and message; the wrapped cause is logged
// server-side and never leaves the function.
func RespondError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierr.From(err)

	evt := log.Error()
	if apiErr.Status < http.StatusInternalServerError {
		evt = log.Warn()
	}
	evt.
		Err(apiErr.Err).
		Str("code", string(apiErr.Code)).
		Int("status", apiErr.Status).
		Str("path", r.URL.Path).
		Str("method", r.Method).
		Msg(apiErr.Message)

	RespondJSON(w, apiErr.Status, map[string]errorBody{
		"error": {Code: apiErr.Code, Message: apiErr.Message},
	})
}

// MethodNotAllowed responds 405 with the uniform error body.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	RespondError(w, r, apierr.New(apierr.CodeInvalidRequest, http.StatusMethodNotAllowed, "method not allowed"))
}

// NotFound responds 404 with the uniform error body.
func NotFound(w http.ResponseWriter, r *http.Request) {
	RespondError(w, r, apierr.NotFound("not found"))
}

// DecodeJSON decodes the request body into out, returning a 400-level
// error on malformed JSON.
func DecodeJSON(r *http.Request, out interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		return apierr.Wrap(apierr.CodeInvalidRequest, http.StatusBadRequest, "invalid JSON body", err)
	}
	return nil
}
