// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/Cazexotono/MasterApi/internal/account"
	"github.com/Cazexotono/MasterApi/internal/gameserver"
	"github.com/Cazexotono/MasterApi/internal/handshake"
	"github.com/Cazexotono/MasterApi/internal/registry"
)

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Debug("response encoding failed", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// respondServiceError maps domain failures onto HTTP statuses. Anything
// unrecognized is a 500 with the detail kept out of the response.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		respondError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, account.ErrEmailTaken):
		respondError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, account.ErrNotFound):
		respondError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, gameserver.ErrServerNotFound):
		respondError(w, http.StatusNotFound, "server not found")
	case errors.Is(err, gameserver.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "game session not found")
	case errors.Is(err, gameserver.ErrNoHost):
		respondError(w, http.StatusForbidden, "server has no registered host")
	case errors.Is(err, registry.ErrServerNotRegistered):
		respondError(w, http.StatusNotFound, "server is not online")
	case errors.Is(err, registry.ErrManifestUnavailable):
		respondError(w, http.StatusBadRequest, "server manifest unavailable")
	case errors.Is(err, handshake.ErrInvalidStateToken):
		respondError(w, http.StatusUnprocessableEntity, "invalid state token")
	case errors.Is(err, handshake.ErrSessionExpired):
		respondError(w, http.StatusUnauthorized, "link token expired")
	case errors.Is(err, handshake.ErrNoTracking):
		respondError(w, http.StatusBadRequest, "no tracked handshake")
	case errors.Is(err, handshake.ErrAlreadyResolved):
		respondError(w, http.StatusConflict, "handshake already resolved")
	case isValidationError(err):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "error", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

// isValidationError recognizes input-validation failures by their error
// code so they surface as 400s with their message intact.
func isValidationError(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	code, _ := oopsErr.Code().(string)
	return strings.Contains(code, "INVALID")
}

func decodeJSON(r *http.Request, into any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(into)
}
