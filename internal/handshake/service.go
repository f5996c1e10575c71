// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package handshake

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/samber/oops"

	"github.com/Cazexotono/MasterApi/internal/cache"
	"github.com/Cazexotono/MasterApi/internal/observability"
)

// Service coordinates handshakes through the shared cache so any API
// instance can serve any leg of the flow.
type Service struct {
	cache    cache.Cache
	profiles ProfileSource

	// Redirect targets for the browser leg: authenticated users land on
	// the approval page, anonymous users on the login form.
	AuthenticatedURL string
	AnonymousURL     string
}

// NewService creates a handshake Service.
func NewService(c cache.Cache, profiles ProfileSource) *Service {
	return &Service{
		cache:            c,
		profiles:         profiles,
		AuthenticatedURL: "/link",
		AnonymousURL:     "/login",
	}
}

func stateKey(token string) string {
	return "state:" + token
}

func stateUserKey(token string) string {
	return "state_user:" + token
}

func sessionKey(token string) string {
	return "session_token:" + token
}

// BeginTracking starts (or re-enters) tracking for a state token presented
// by the browser. It returns the URL the browser should be redirected to
// and whether the state cookie must be (re)written. Re-entering with the
// same token already held in the cookie does not reset the pending state.
func (s *Service) BeginTracking(ctx context.Context, stateToken, cookieToken string, authenticated bool) (string, bool, error) {
	if !stateTokenPattern.MatchString(stateToken) {
		return "", false, ErrInvalidStateToken
	}

	redirect := s.AnonymousURL
	if authenticated {
		redirect = s.AuthenticatedURL
	}

	if cookieToken == stateToken {
		return redirect, false, nil
	}

	if err := s.cache.Set(ctx, stateKey(stateToken), string(StatusNone), pendingTTL); err != nil {
		return "", false, oops.Code("HANDSHAKE_TRACK_FAILED").
			With("operation", "begin tracking").
			Wrap(err)
	}
	return redirect, true, nil
}

// PollStatus is the game client's polling call. While the handshake is
// pending it renews the pending window and returns ErrPending. A decision
// is consumed on first read: exactly one concurrent poll can win an
// approved handshake, and a denied or poisoned one reports once and then
// expires.
func (s *Service) PollStatus(ctx context.Context, stateToken string) (*GameSession, error) {
	if !stateTokenPattern.MatchString(stateToken) {
		return nil, ErrInvalidStateToken
	}

	value, err := s.cache.Get(ctx, stateKey(stateToken))
	if cache.IsMiss(err) {
		observability.RecordHandshakeResult("expired")
		return nil, ErrExpired
	}
	if err != nil {
		return nil, oops.Code("HANDSHAKE_POLL_FAILED").
			With("operation", "read state").
			Wrap(err)
	}

	switch Status(value) {
	case StatusNone:
		if err := s.cache.Expire(ctx, stateKey(stateToken), pendingTTL); err != nil && !cache.IsMiss(err) {
			return nil, oops.Code("HANDSHAKE_POLL_FAILED").
				With("operation", "renew pending state").
				Wrap(err)
		}
		return nil, ErrPending

	case StatusError:
		if err := s.cache.Delete(ctx, stateKey(stateToken)); err != nil {
			return nil, oops.Code("HANDSHAKE_POLL_FAILED").
				With("operation", "clear poisoned state").
				Wrap(err)
		}
		observability.RecordHandshakeResult("error")
		return nil, ErrPoisoned

	case StatusDenied:
		if err := s.cache.Delete(ctx, stateKey(stateToken)); err != nil {
			return nil, oops.Code("HANDSHAKE_POLL_FAILED").
				With("operation", "clear denied state").
				Wrap(err)
		}
		observability.RecordHandshakeResult("denied")
		return nil, ErrDenied

	case StatusAccess:
		return s.consumeApproval(ctx, stateToken)

	default:
		slog.Warn("unexpected handshake state", "state", value)
		observability.RecordHandshakeResult("expired")
		return nil, ErrExpired
	}
}

// consumeApproval atomically claims the approved subject and converts it
// into a short-lived game session. GetDel guarantees a single winner under
// concurrent polling.
func (s *Service) consumeApproval(ctx context.Context, stateToken string) (*GameSession, error) {
	raw, err := s.cache.GetDel(ctx, stateUserKey(stateToken))
	if cache.IsMiss(err) {
		observability.RecordHandshakeResult("expired")
		return nil, ErrExpired
	}
	if err != nil {
		return nil, oops.Code("HANDSHAKE_CONSUME_FAILED").
			With("operation", "claim approved subject").
			Wrap(err)
	}

	if err := s.cache.Delete(ctx, stateKey(stateToken)); err != nil {
		return nil, oops.Code("HANDSHAKE_CONSUME_FAILED").
			With("operation", "clear consumed state").
			Wrap(err)
	}

	subject, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, oops.Code("HANDSHAKE_CONSUME_FAILED").
			With("operation", "parse approved subject").
			Wrap(err)
	}

	profile, err := s.profiles.ProfileOf(ctx, subject)
	if err != nil {
		return nil, oops.Code("HANDSHAKE_CONSUME_FAILED").
			With("subject", subject).
			Wrap(err)
	}

	sessionToken, err := newSessionToken()
	if err != nil {
		return nil, oops.Code("HANDSHAKE_CONSUME_FAILED").
			With("operation", "mint session token").
			Wrap(err)
	}

	if err := s.cache.Set(ctx, sessionKey(sessionToken), raw, sessionTTL); err != nil {
		return nil, oops.Code("HANDSHAKE_CONSUME_FAILED").
			With("operation", "store session token").
			Wrap(err)
	}

	observability.RecordHandshakeResult("access")
	return &GameSession{
		Token:         sessionToken,
		APIID:         subject,
		Username:      profile.DisplayName,
		Discriminator: fmt.Sprintf("%s#%d", profile.DisplayName, subject),
		Avatar:        profile.Avatar,
	}, nil
}

// ResolveTracking records the browser user's decision on their tracked
// handshake. Only a pending handshake can be resolved; the decision must
// be approve (access) or deny.
func (s *Service) ResolveTracking(ctx context.Context, cookieToken string, subject int64, decision Status) error {
	if cookieToken == "" || !stateTokenPattern.MatchString(cookieToken) {
		return ErrNoTracking
	}

	value, err := s.cache.Get(ctx, stateKey(cookieToken))
	if cache.IsMiss(err) {
		return ErrExpired
	}
	if err != nil {
		return oops.Code("HANDSHAKE_RESOLVE_FAILED").
			With("operation", "read state").
			Wrap(err)
	}
	if Status(value) != StatusNone {
		return ErrAlreadyResolved
	}

	switch decision {
	case StatusAccess:
		if err := s.cache.Set(ctx, stateUserKey(cookieToken), strconv.FormatInt(subject, 10), decidedTTL); err != nil {
			return oops.Code("HANDSHAKE_RESOLVE_FAILED").
				With("operation", "store approved subject").
				Wrap(err)
		}
		if err := s.cache.Set(ctx, stateKey(cookieToken), string(StatusAccess), decidedTTL); err != nil {
			return oops.Code("HANDSHAKE_RESOLVE_FAILED").
				With("operation", "store decision").
				Wrap(err)
		}
		return nil

	case StatusDenied:
		if err := s.cache.Set(ctx, stateKey(cookieToken), string(StatusDenied), decidedTTL); err != nil {
			return oops.Code("HANDSHAKE_RESOLVE_FAILED").
				With("operation", "store decision").
				Wrap(err)
		}
		return nil

	default:
		return ErrInvalidDecision
	}
}

// MarkError poisons a tracked handshake after a malformed resolution
// attempt so the polling client stops waiting. Like ResolveTracking it
// only transitions a pending handshake; a decided one keeps its decision.
func (s *Service) MarkError(ctx context.Context, cookieToken string) error {
	if cookieToken == "" || !stateTokenPattern.MatchString(cookieToken) {
		return ErrNoTracking
	}
	value, err := s.cache.Get(ctx, stateKey(cookieToken))
	if cache.IsMiss(err) {
		return ErrExpired
	}
	if err != nil {
		return oops.Code("HANDSHAKE_RESOLVE_FAILED").
			With("operation", "read state").
			Wrap(err)
	}
	if Status(value) != StatusNone {
		return ErrAlreadyResolved
	}
	if err := s.cache.Set(ctx, stateKey(cookieToken), string(StatusError), decidedTTL); err != nil {
		return oops.Code("HANDSHAKE_RESOLVE_FAILED").
			With("operation", "poison state").
			Wrap(err)
	}
	return nil
}

// ConsumeSession exchanges a granted session token for the subject it was
// issued to. The token is single-use.
func (s *Service) ConsumeSession(ctx context.Context, sessionToken string) (int64, error) {
	raw, err := s.cache.GetDel(ctx, sessionKey(sessionToken))
	if cache.IsMiss(err) {
		return 0, ErrSessionExpired
	}
	if err != nil {
		return 0, oops.Code("HANDSHAKE_SESSION_FAILED").
			With("operation", "claim session token").
			Wrap(err)
	}
	subject, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, oops.Code("HANDSHAKE_SESSION_FAILED").
			With("operation", "parse session subject").
			Wrap(err)
	}
	return subject, nil
}

// newSessionToken mints a 64-hex-character random token, the same shape as
// the client-generated state token.
func newSessionToken() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf[:]), nil
}
