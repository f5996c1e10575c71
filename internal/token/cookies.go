// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MasterApi Contributors

package token

import "time"

// Cookie names shared with existing web and game clients.
const (
	CookieRefreshToken = "refresh_token"
	CookieAccessToken  = "access_token"
)

// CookieJar abstracts the request/response cookie pair so the manager can
// read presented credentials and stage mutations without knowing about
// HTTP. The serving layer applies the staged mutations to the response.
type CookieJar interface {
	// Get returns the request cookie value for name, if present.
	Get(name string) (string, bool)

	// Set stages a cookie write. A zero expires time means a
	// session-only cookie.
	Set(name, value string, expires time.Time)

	// Clear stages removal of the cookie.
	Clear(name string)
}
