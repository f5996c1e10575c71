// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/Cazexotono/MasterApi/internal/account"
	"github.com/Cazexotono/MasterApi/internal/gameserver"
	"github.com/Cazexotono/MasterApi/internal/handshake"
)

func TestRespondServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "invalid credentials",
			err:        account.ErrInvalidCredentials,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "duplicate email",
			err:        account.ErrEmailTaken,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "wrapped duplicate email keeps its status",
			err:        oops.Code("ACCOUNT_REGISTER_FAILED").Wrap(account.ErrEmailTaken),
			wantStatus: http.StatusConflict,
		},
		{
			name:       "unknown account",
			err:        account.ErrNotFound,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "wrapped unknown server",
			err:        oops.Code("SERVER_LOOKUP_FAILED").Wrap(gameserver.ErrServerNotFound),
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "hostless server",
			err:        gameserver.ErrNoHost,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "expired link token",
			err:        handshake.ErrSessionExpired,
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "validation failure",
			err:        oops.Code("ACCOUNT_INVALID_EMAIL").Errorf("invalid email address"),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "coded infrastructure failure stays internal",
			err:        oops.Code("USER_LOOKUP_FAILED").Wrap(errors.New("connection refused")),
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "plain error stays internal",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondServiceError(rec, tt.err)
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, isValidationError(oops.Code("SERVER_INVALID_INPUT").Errorf("port out of range")))
	assert.False(t, isValidationError(oops.Code("SERVER_CREATE_FAILED").Errorf("insert failed")))
	assert.False(t, isValidationError(errors.New("no code at all")))
}
