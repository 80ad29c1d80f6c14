// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"net/http"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// CORS answers cross-origin requests from origins matching any of its glob
// patterns. '*' stops at '.', so "https://*.example.com" matches one
// subdomain level; "**" matches any number.
type CORS struct {
	patterns []glob.Glob
}

// NewCORS compiles the allowed origin patterns.
func NewCORS(origins []string) (*CORS, error) {
	c := &CORS{patterns: make([]glob.Glob, 0, len(origins))}
	for _, origin := range origins {
		g, err := glob.Compile(origin, '.')
		if err != nil {
			return nil, oops.Code("CORS_ORIGIN_INVALID").With("origin", origin).Wrap(err)
		}
		c.patterns = append(c.patterns, g)
	}
	return c, nil
}

// Allowed reports whether origin matches an allowed pattern.
func (c *CORS) Allowed(origin string) bool {
	if origin == "" {
		return false
	}
	for _, g := range c.patterns {
		if g.Match(origin) {
			return true
		}
	}
	return false
}

// Wrap adds CORS headers for allowed origins and answers every OPTIONS
// request with 204.
func (c *CORS) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		w.Header().Add("Vary", "Origin")
		if c.Allowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method == http.MethodOptions {
			if c.Allowed(origin) {
				w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				w.Header().Set("Access-Control-Max-Age", "600")
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
