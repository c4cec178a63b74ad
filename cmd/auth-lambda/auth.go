package main

import (
	"context"
	"net/http"

	"github.com/nlawson/birdtag/internal/apierr"
	"github.com/nlawson/birdtag/internal/webutil"
)

// Tokens are the credentials returned on successful login.
type Tokens struct {
	IDToken      string `json:"idToken,omitempty"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int32  `json:"expiresIn,omitempty"`
}

// authenticator abstracts the identity backend (Cognito or local).
type authenticator interface {
	Register(ctx context.Context, email, password string) error
	Login(ctx context.Context, email, password string) (*Tokens, error)
	Verify(ctx context.Context, email, code string) error
}

type server struct {
	auth authenticator
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webutil.MethodNotAllowed(w, r)
		return
	}

	var req credentialsRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	if err := apierr.RequireFields(map[string]string{
		"email":    req.Email,
		"password": req.Password,
	}, "email", "password"); err != nil {
		webutil.RespondError(w, r, err)
		return
	}

	if err := s.auth.Register(r.Context(), req.Email, req.Password); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	webutil.RespondJSON(w, http.StatusCreated, map[string]string{
		"email":   req.Email,
		"message": "verification code sent",
	})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webutil.MethodNotAllowed(w, r)
		return
	}

	var req credentialsRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	if err := apierr.RequireFields(map[string]string{
		"email":    req.Email,
		"password": req.Password,
	}, "email", "password"); err != nil {
		webutil.RespondError(w, r, err)
		return
	}

	tokens, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	webutil.RespondJSON(w, http.StatusOK, tokens)
}

func (s *server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webutil.MethodNotAllowed(w, r)
		return
	}

	var req struct {
		Email string `json:"email"`
		Code  string `json:"code"`
	}
	if err := webutil.DecodeJSON(r, &req); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	if err := apierr.RequireFields(map[string]string{
		"email": req.Email,
		"code":  req.Code,
	}, "email", "code"); err != nil {
		webutil.RespondError(w, r, err)
		return
	}

	if err := s.auth.Verify(r.Context(), req.Email, req.Code); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	webutil.RespondJSON(w, http.StatusOK, map[string]string{"message": "account verified"})
}
