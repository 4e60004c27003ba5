package authgate

import (
	"net/http"
	"time"
)

// WriteSessionCookies mints the login response cookies for a session
// handle: the HttpOnly session cookie and the readable CSRF cookie the
// client must echo in the configured header. Secure/SameSite flags come
// from [CookieConfig] so environments can relax them deliberately.
func (e *Engine) WriteSessionCookies(w http.ResponseWriter, handle *SessionHandle) {
	if handle == nil {
		return
	}

	maxAge := int(time.Until(handle.ExpiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}

	cfg := e.config.Cookie

	http.SetCookie(w, &http.Cookie{
		Name:     cfg.SessionName,
		Value:    handle.SessionID,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   maxAge,
		Secure:   cfg.Secure,
		HttpOnly: true,
		SameSite: cfg.SameSite,
	})

	// Readable on purpose: double-submit requires the client to read this
	// value back and echo it.
	http.SetCookie(w, &http.Cookie{
		Name:     cfg.CSRFName,
		Value:    handle.CSRFToken,
		Path:     cfg.Path,
		Domain:   cfg.Domain,
		MaxAge:   maxAge,
		Secure:   cfg.Secure,
		HttpOnly: false,
		SameSite: cfg.SameSite,
	})
}

// ClearSessionCookies expires both cookies, for logout responses.
func (e *Engine) ClearSessionCookies(w http.ResponseWriter) {
	cfg := e.config.Cookie

	for _, name := range []string{cfg.SessionName, cfg.CSRFName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     cfg.Path,
			Domain:   cfg.Domain,
			MaxAge:   -1,
			Secure:   cfg.Secure,
			HttpOnly: name == cfg.SessionName,
			SameSite: cfg.SameSite,
		})
	}
}

// SessionCookieName exposes the configured session cookie name for HTTP
// adapters.
func (e *Engine) SessionCookieName() string {
	return e.config.Cookie.SessionName
}

// CSRFHeaderName exposes the configured CSRF echo header for HTTP
// adapters.
func (e *Engine) CSRFHeaderName() string {
	return e.config.CSRF.Header
}
