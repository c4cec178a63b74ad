package main

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/nlawson/birdtag/internal/apierr"
)

// localAuth is the IS_LOCAL backend: an in-memory user table with
// bcrypt-hashed passwords. Verification codes are not sent anywhere;
// the fixed code "000000" confirms any account.
type localAuth struct {
	mu    sync.Mutex
	users map[string]*localUser
}

type localUser struct {
	passwordHash []byte
	confirmed    bool
}

const localVerifyCode = "000000"

func newLocalAuth() *localAuth {
	return &localAuth{users: make(map[string]*localUser)}
}

func (l *localAuth) Register(_ context.Context, email, password string) error {
	if len(password) < 8 {
		return apierr.New(apierr.CodeInvalidInput, http.StatusBadRequest, "password does not meet requirements")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apierr.Internal(apierr.CodeAuthError, "registration failed", err)
	}

	key := strings.ToLower(email)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.users[key]; exists {
		return apierr.New(apierr.CodeAuthError, http.StatusConflict, "an account with this email already exists")
	}
	l.users[key] = &localUser{passwordHash: hash}
	return nil
}

func (l *localAuth) Login(_ context.Context, email, password string) (*Tokens, error) {
	l.mu.Lock()
	user := l.users[strings.ToLower(email)]
	l.mu.Unlock()

	if user == nil || bcrypt.CompareHashAndPassword(user.passwordHash, []byte(password)) != nil {
		return nil, apierr.New(apierr.CodeAuthError, http.StatusUnauthorized, "invalid email or password")
	}
	if !user.confirmed {
		return nil, apierr.New(apierr.CodeAuthError, http.StatusForbidden, "account is not verified")
	}

	return &Tokens{AccessToken: uuid.NewString(), ExpiresIn: 3600}, nil
}

func (l *localAuth) Verify(_ context.Context, email, code string) error {
	if code != localVerifyCode {
		return apierr.New(apierr.CodeInvalidInput, http.StatusBadRequest, "invalid or expired verification code")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	user := l.users[strings.ToLower(email)]
	if user == nil {
		return apierr.New(apierr.CodeAuthError, http.StatusUnauthorized, "invalid email or password")
	}
	user.confirmed = true
	return nil
}
