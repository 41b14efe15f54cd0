// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TPO Portal Contributors

package httpapi

import (
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName carries the session handle for browser clients.
const DefaultCookieName = "tpo_session"

// Config holds the HTTP surface settings.
type Config struct {
	AllowedOrigins []string
	CookieName     string
	CookieSecure   bool
	CookieMaxAge   time.Duration
	// ExposeTokens returns issued token values in responses. Development only.
	ExposeTokens bool
}

func (c Config) withDefaults() Config {
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"http://localhost:5173"}
	}
	return c
}

// sessionHandle reads the handle from the Authorization header, falling
// back to the session cookie.
func (h *Handler) sessionHandle(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(h.cfg.CookieName); err == nil {
		return c.Value
	}
	return ""
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, handle string) {
	c := &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    handle,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if h.cfg.CookieMaxAge > 0 {
		c.MaxAge = int(h.cfg.CookieMaxAge.Seconds())
	}
	http.SetCookie(w, c)
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
