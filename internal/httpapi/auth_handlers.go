// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package httpapi

import (
	"net/http"
)

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name,omitempty"`
	Remember    bool   `json:"remember,omitempty"`
}

type identityResponse struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, err := s.opts.Accounts.Register(r.Context(), req.Email, req.Password, req.DisplayName, clientIP(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	jar := newCookieJar(w, r, s.opts.CookieSecure)
	if _, err := s.opts.Tokens.IssueBoth(r.Context(), jar, user.ID, user.DisplayName, deviceOf(r), req.Remember); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, identityResponse{ID: user.ID, DisplayName: user.DisplayName})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	user, err := s.opts.Accounts.Login(r.Context(), req.Email, req.Password, clientIP(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	jar := newCookieJar(w, r, s.opts.CookieSecure)
	if _, err := s.opts.Tokens.IssueBoth(r.Context(), jar, user.ID, user.DisplayName, deviceOf(r), req.Remember); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, identityResponse{ID: user.ID, DisplayName: user.DisplayName})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, jar, err := s.authenticate(w, r)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if claims == nil {
		respondError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	if err := s.opts.Tokens.Revoke(r.Context(), jar, claims.ID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

type accountResponse struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Avatar      string `json:"avatar,omitempty"`
	Description string `json:"description,omitempty"`
	Locale      string `json:"locale,omitempty"`
	Verified    bool   `json:"verified"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
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
	user, err := s.opts.Accounts.Get(r.Context(), subject)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, accountResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Avatar:      user.Avatar,
		Description: user.Description,
		Locale:      user.Locale,
		Verified:    user.Verified,
	})
}
