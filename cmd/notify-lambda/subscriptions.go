package main

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/nlawson/birdtag/internal/apierr"
	"github.com/nlawson/birdtag/internal/store"
	"github.com/nlawson/birdtag/internal/webutil"
)

type subscribeRequest struct {
	Email   string   `json:"email"`
	Species []string `json:"species"`
}

func (s *server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webutil.MethodNotAllowed(w, r)
		return
	}

	var req subscribeRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		webutil.RespondError(w, r, apierr.Invalid("a valid email is required"))
		return
	}
	if len(req.Species) == 0 {
		webutil.RespondError(w, r, apierr.Invalid("at least one species is required"))
		return
	}

	// Merge with any existing subscriptions: the SNS filter policy must
	// cover the union, since one SNS subscription serves the email.
	existing, err := s.store.GetSubscriptions(r.Context(), req.Email)
	if err != nil {
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "failed to load subscriptions", err))
		return
	}

	union := map[string]bool{}
	for _, sub := range existing {
		union[sub.Species] = true
	}
	for _, sp := range req.Species {
		union[strings.ToLower(strings.TrimSpace(sp))] = true
	}
	delete(union, "")

	allSpecies := make([]string, 0, len(union))
	for sp := range union {
		allSpecies = append(allSpecies, sp)
	}

	arn, err := s.subs.Subscribe(r.Context(), req.Email, allSpecies)
	if err != nil {
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeUnknown, "subscription failed", err))
		return
	}

	for _, sp := range req.Species {
		sub := &store.Subscription{Email: req.Email, Species: sp, SubscriptionARN: arn}
		if err := s.store.PutSubscription(r.Context(), sub); err != nil {
			webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "failed to persist subscription", err))
			return
		}
	}

	log.Info().Str("email", req.Email).Strs("species", req.Species).Msg("Subscription created")
	webutil.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"email":           req.Email,
		"species":         allSpecies,
		"subscriptionArn": arn,
	})
}

type unsubscribeRequest struct {
	Email   string   `json:"email"`
	Species []string `json:"species,omitempty"`
}

func (s *server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		webutil.MethodNotAllowed(w, r)
		return
	}

	var req unsubscribeRequest
	if err := webutil.DecodeJSON(r, &req); err != nil {
		webutil.RespondError(w, r, err)
		return
	}
	if req.Email == "" {
		webutil.RespondError(w, r, apierr.Invalid("email is required"))
		return
	}

	existing, err := s.store.GetSubscriptions(r.Context(), req.Email)
	if err != nil {
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "failed to load subscriptions", err))
		return
	}
	if len(existing) == 0 {
		webutil.RespondError(w, r, apierr.NotFound("no subscriptions for this email"))
		return
	}

	// Empty species list removes everything.
	remove := map[string]bool{}
	for _, sp := range req.Species {
		remove[strings.ToLower(strings.TrimSpace(sp))] = true
	}

	removed := 0
	remaining := []string{}
	arn := ""
	for _, sub := range existing {
		arn = sub.SubscriptionARN
		if len(remove) > 0 && !remove[sub.Species] {
			remaining = append(remaining, sub.Species)
			continue
		}
		if err := s.store.DeleteSubscription(r.Context(), req.Email, sub.Species); err != nil {
			webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "failed to remove subscription", err))
			return
		}
		removed++
	}

	if len(remaining) == 0 {
		if err := s.subs.Unsubscribe(r.Context(), arn); err != nil {
			log.Warn().Err(err).Str("email", req.Email).Msg("Failed to remove SNS subscription")
		}
	} else {
		// Narrow the filter policy to the species still subscribed.
		if _, err := s.subs.Subscribe(r.Context(), req.Email, remaining); err != nil {
			log.Warn().Err(err).Str("email", req.Email).Msg("Failed to narrow SNS filter policy")
		}
	}

	log.Info().Str("email", req.Email).Int("removed", removed).Msg("Unsubscribed")
	webutil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"removed":   removed,
		"remaining": remaining,
	})
}

func (s *server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		webutil.MethodNotAllowed(w, r)
		return
	}

	email := r.URL.Query().Get("email")
	if email == "" {
		webutil.RespondError(w, r, apierr.Invalid("email query parameter is required"))
		return
	}

	subs, err := s.store.GetSubscriptions(r.Context(), email)
	if err != nil {
		webutil.RespondError(w, r, apierr.Internal(apierr.CodeDBError, "failed to load subscriptions", err))
		return
	}

	species := make([]string, 0, len(subs))
	for _, sub := range subs {
		species = append(species, sub.Species)
	}
	webutil.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"email":   email,
		"species": species,
	})
}
