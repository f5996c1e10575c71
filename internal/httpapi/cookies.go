// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package httpapi

import (
	"net/http"
	"time"
)

// cookieJar implements token.CookieJar over one request/response pair.
// Writes go straight to the response headers; Get prefers staged writes
// over request cookies so a rotation is visible to the rest of the same
// request.
type cookieJar struct {
	r      *http.Request
	w      http.ResponseWriter
	secure bool
	staged map[string]string
}

func newCookieJar(w http.ResponseWriter, r *http.Request, secure bool) *cookieJar {
	return &cookieJar{r: r, w: w, secure: secure, staged: make(map[string]string)}
}

func (j *cookieJar) Get(name string) (string, bool) {
	if v, ok := j.staged[name]; ok {
		return v, v != ""
	}
	c, err := j.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (j *cookieJar) Set(name, value string, expires time.Time) {
	j.staged[name] = value
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if !expires.IsZero() {
		cookie.Expires = expires
	}
	http.SetCookie(j.w, cookie)
}

func (j *cookieJar) Clear(name string) {
	j.staged[name] = ""
	http.SetCookie(j.w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   j.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// deviceMaxLength bounds the device label derived from the User-Agent so
// it fits the refresh token schema.
const deviceMaxLength = 64

// deviceOf derives the audience label a token pair is bound to.
func deviceOf(r *http.Request) string {
	ua := r.UserAgent()
	if ua == "" {
		return "unknown"
	}
	if len(ua) > deviceMaxLength {
		ua = ua[:deviceMaxLength]
	}
	return ua
}
