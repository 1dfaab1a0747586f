package api

import (
	"net/http"

	"github.com/google/uuid"
)

const csrfCookieName = "foamcore_csrf"

// setCSRFCookie issues a new CSRF token cookie, Secure only when the
// request arrived over TLS — TLS termination itself stays out of core
// scope, but the cookie flag is surface behavior the core owns.
func setCSRFCookie(w http.ResponseWriter, r *http.Request) string {
	token := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}
