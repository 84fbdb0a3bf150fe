package instagram

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// correlationCookiePrefix prefixes the name of the cookie which carries a
// challenge's anti-forgery marker back to the callback.
const correlationCookiePrefix = ".cap.Correlation."

func (h *Handler) correlationCookieName() string {
	return correlationCookiePrefix + h.config.AuthenticationType
}

// setCorrelationCookie binds the marker to the user-agent which started the
// challenge. It lives as long as the state.
func (h *Handler) setCorrelationCookie(w http.ResponseWriter, r *http.Request, marker string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.correlationCookieName(),
		Value:    marker,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   h.isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
}

// consumeCorrelationCookie returns the marker sent by the user-agent and
// deletes the cookie, so a marker is only ever accepted once.
func (h *Handler) consumeCorrelationCookie(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(h.correlationCookieName())
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.correlationCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   h.isSecure(r),
		SameSite: http.SameSiteLaxMode,
	})
	return c.Value
}

// validateCorrelation compares the state's marker with the user-agent's in
// constant time.
func validateCorrelation(p *Properties, cookieMarker string) error {
	const op = "validateCorrelation"
	marker := p.xsrf()
	switch {
	case marker == "":
		return fmt.Errorf("%s: state has no anti-forgery marker: %w", op, ErrCorrelationFailed)
	case cookieMarker == "":
		return fmt.Errorf("%s: correlation cookie is missing: %w", op, ErrCorrelationFailed)
	case subtle.ConstantTimeCompare([]byte(marker), []byte(cookieMarker)) != 1:
		return fmt.Errorf("%s: anti-forgery marker mismatch: %w", op, ErrCorrelationFailed)
	}
	return nil
}

// isSecure reports whether the correlation cookie should only be sent over
// https. An https RedirectURL counts, for servers behind a TLS terminating
// proxy.
func (h *Handler) isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	u, err := url.Parse(h.config.RedirectURL)
	return err == nil && strings.EqualFold(u.Scheme, "https")
}
