// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Cazexotono/MasterApi/internal/account"
)

type publicProfileResponse struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	Avatar      string    `json:"avatar,omitempty"`
	Description string    `json:"description,omitempty"`
	Locale      string    `json:"locale,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := s.opts.Accounts.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, publicProfileResponse{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Avatar:      user.Avatar,
		Description: user.Description,
		Locale:      user.Locale,
		CreatedAt:   user.CreatedAt,
	})
}

type profileUpdateRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Avatar      *string `json:"avatar,omitempty"`
	Description *string `json:"description,omitempty"`
	Locale      *string `json:"locale,omitempty"`
}

func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

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
	if subject != id {
		respondError(w, http.StatusForbidden, "cannot edit another user's profile")
		return
	}

	var req profileUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	update := account.ProfileUpdate{
		DisplayName: req.DisplayName,
		Avatar:      req.Avatar,
		Description: req.Description,
		Locale:      req.Locale,
	}
	if err := s.opts.Accounts.UpdateProfile(r.Context(), id, update); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
