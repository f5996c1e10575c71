// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package httpapi

import (
	"errors"
	"net/http"

	"github.com/Cazexotono/MasterApi/internal/handshake"
)

// stateCookieValue reads the tracked state token from the browser cookie,
// if any.
func stateCookieValue(r *http.Request) string {
	c, err := r.Cookie(handshake.CookieStateToken)
	if err != nil {
		return ""
	}
	return c.Value
}

// handleStateBegin is the browser leg's entry point: the game client opens
// the browser on this URL with its freshly generated state token. The
// handler starts tracking and bounces the browser to the login form or the
// approval page depending on whether it already holds a valid session.
func (s *Server) handleStateBegin(w http.ResponseWriter, r *http.Request) {
	claims, _, err := s.authenticate(w, r)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	stateToken := r.URL.Query().Get("state")
	redirect, setCookie, err := s.opts.Links.BeginTracking(r.Context(), stateToken, stateCookieValue(r), claims != nil)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if setCookie {
		http.SetCookie(w, &http.Cookie{
			Name:     handshake.CookieStateToken,
			Value:    stateToken,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.opts.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

// handleStatePoll is the game client's polling call.
func (s *Server) handleStatePoll(w http.ResponseWriter, r *http.Request) {
	session, err := s.opts.Links.PollStatus(r.Context(), r.URL.Query().Get("state"))
	switch {
	case err == nil:
		respondJSON(w, http.StatusOK, session)
	case errors.Is(err, handshake.ErrPending):
		respondError(w, http.StatusUnauthorized, "pending")
	case errors.Is(err, handshake.ErrDenied):
		respondError(w, http.StatusForbidden, "denied")
	case errors.Is(err, handshake.ErrPoisoned):
		respondError(w, http.StatusForbidden, "error")
	case errors.Is(err, handshake.ErrExpired):
		respondError(w, http.StatusUnauthorized, "expired")
	default:
		respondServiceError(w, err)
	}
}

type resolveRequest struct {
	Status string `json:"status"`
}

// handleStateResolve records the browser user's approve/deny decision on
// the handshake tracked in their state cookie. A malformed decision
// poisons the handshake so the polling client stops waiting.
func (s *Server) handleStateResolve(w http.ResponseWriter, r *http.Request) {
	claims, _, err := s.authenticate(w, r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	subject, err := claims.SubjectID()
	if err != nil {
		respondServiceError(w, err)
		return
	}

	cookieToken := stateCookieValue(r)

	var req resolveRequest
	if err := decodeJSON(r, &req); err != nil {
		if markErr := s.opts.Links.MarkError(r.Context(), cookieToken); markErr != nil && !markSkippable(markErr) {
			respondServiceError(w, markErr)
			return
		}
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	err = s.opts.Links.ResolveTracking(r.Context(), cookieToken, subject, handshake.Status(req.Status))
	switch {
	case err == nil:
		respondJSON(w, http.StatusNoContent, nil)
	case errors.Is(err, handshake.ErrInvalidDecision):
		if markErr := s.opts.Links.MarkError(r.Context(), cookieToken); markErr != nil && !markSkippable(markErr) {
			respondServiceError(w, markErr)
			return
		}
		respondError(w, http.StatusBadRequest, "invalid decision")
	case errors.Is(err, handshake.ErrExpired):
		respondError(w, http.StatusGone, "handshake expired")
	default:
		respondServiceError(w, err)
	}
}

// markSkippable reports MarkError outcomes that leave nothing to poison:
// no tracked handshake, an expired one, or one already decided.
func markSkippable(err error) bool {
	return errors.Is(err, handshake.ErrNoTracking) ||
		errors.Is(err, handshake.ErrExpired) ||
		errors.Is(err, handshake.ErrAlreadyResolved)
}
