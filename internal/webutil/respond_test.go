package webutil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nlawson/birdtag/internal/apierr"
)

func TestRespondJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondJSON(rec, http.StatusCreated, map[string]string{"jobId": "abc"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("CORS origin header = %q, want *", origin)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["jobId"] != "abc" {
		t.Errorf("body = %v", body)
	}
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "api error passes through",
			err:        apierr.Invalid("species is required"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
			wantMsg:    "species is required",
		},
		{
			name:       "plain error becomes 500 without leaking",
			err:        errors.New("dynamo endpoint unreachable at 10.0.0.5"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "UNKNOWN_ERROR",
			wantMsg:    "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/search", nil)
			RespondError(rec, req, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			var body map[string]map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"]["code"] != tt.wantCode {
				t.Errorf("code = %q, want %q", body["error"]["code"], tt.wantCode)
			}
			if body["error"]["message"] != tt.wantMsg {
				t.Errorf("message = %q, want %q", body["error"]["message"], tt.wantMsg)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/tags", strings.NewReader("{not json"))
	var out map[string]any

	err := DecodeJSON(req, &out)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if apierr.From(err).Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", apierr.From(err).Status)
	}
}

func TestWithPreflight(t *testing.T) {
	called := false
	h := WithPreflight(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/v1/search", nil))

	if called {
		t.Error("OPTIONS request should not reach the handler")
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("preflight response missing CORS methods header")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/search", nil))
	if !called {
		t.Error("GET request should reach the handler")
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/v1/search", "/v1/search"},
		{"/v1/batch/status/a1b2c3d4-e5f6-7890-abcd-ef1234567890", "/v1/batch/status/*"},
		{"/v1/stats/species/crow", "/v1/stats/species/*"},
		{"/v1/health", "/v1/health"},
	}

	for _, tt := range tests {
		if got := NormalizeEndpoint(tt.path); got != tt.want {
			t.Errorf("NormalizeEndpoint(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
