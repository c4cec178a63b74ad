package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func localServer() *server {
	return &server{auth: newLocalAuth()}
}

func post(t *testing.T, handler func(http.ResponseWriter, *http.Request), body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/v1/auth/x", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, r)
	return w
}

func TestRegisterLoginFlow(t *testing.T) {
	srv := localServer()

	w := post(t, srv.handleRegister, `{"email": "a@example.com", "password": "hunter2hunter2"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register status = %d, body = %s", w.Code, w.Body.String())
	}

	// Login before verification is rejected.
	w = post(t, srv.handleLogin, `{"email": "a@example.com", "password": "hunter2hunter2"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("unverified login status = %d, want 403", w.Code)
	}

	w = post(t, srv.handleVerify, `{"email": "a@example.com", "code": "000000"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d, body = %s", w.Code, w.Body.String())
	}

	w = post(t, srv.handleLogin, `{"email": "a@example.com", "password": "hunter2hunter2"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}
	var tokens Tokens
	if err := json.Unmarshal(w.Body.Bytes(), &tokens); err != nil {
		t.Fatal(err)
	}
	if tokens.AccessToken == "" {
		t.Error("login returned empty access token")
	}
}

func TestLoginWrongPassword(t *testing.T) {
	srv := localServer()
	post(t, srv.handleRegister, `{"email": "a@example.com", "password": "hunter2hunter2"}`)
	post(t, srv.handleVerify, `{"email": "a@example.com", "code": "000000"}`)

	w := post(t, srv.handleLogin, `{"email": "a@example.com", "password": "wrong-password"}`)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	srv := localServer()
	post(t, srv.handleRegister, `{"email": "a@example.com", "password": "hunter2hunter2"}`)

	w := post(t, srv.handleRegister, `{"email": "A@Example.com", "password": "hunter2hunter2"}`)
	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestRegisterShortPassword(t *testing.T) {
	srv := localServer()

	w := post(t, srv.handleRegister, `{"email": "a@example.com", "password": "short"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestVerifyWrongCode(t *testing.T) {
	srv := localServer()
	post(t, srv.handleRegister, `{"email": "a@example.com", "password": "hunter2hunter2"}`)

	w := post(t, srv.handleVerify, `{"email": "a@example.com", "code": "123456"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestMissingFields(t *testing.T) {
	srv := localServer()

	tests := []struct {
		name    string
		handler func(http.ResponseWriter, *http.Request)
		body    string
	}{
		{"register no password", srv.handleRegister, `{"email": "a@example.com"}`},
		{"login no email", srv.handleLogin, `{"password": "hunter2hunter2"}`},
		{"verify no code", srv.handleVerify, `{"email": "a@example.com"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, tt.handler, tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}
