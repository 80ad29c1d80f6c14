// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"
	"time"
)

// DefaultCookieName is the session cookie name.
const DefaultCookieName = "jwt"

// CookieConfig shapes the session cookie.
type CookieConfig struct {
	Name string
	// MaxAge is the cookie lifetime; zero makes it a browser-session cookie.
	MaxAge time.Duration
}

func (c CookieConfig) name() string {
	if c.Name == "" {
		return DefaultCookieName
	}
	return c.Name
}

func (c CookieConfig) session(token string) *http.Cookie {
	return &http.Cookie{
		Name:     c.name(),
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

// cleared returns a cookie that removes the session cookie (Max-Age=0).
func (c CookieConfig) cleared() *http.Cookie {
	cookie := c.session("")
	cookie.MaxAge = -1
	return cookie
}

// token returns the session token from r, or "" when there is none.
func (c CookieConfig) token(r *http.Request) string {
	cookie, err := r.Cookie(c.name())
	if err != nil {
		return ""
	}
	return cookie.Value
}
