package authapi

import (
	"net/http"
	"strings"
	"time"
)

// refreshTokenFromCookie returns the trimmed refresh value, if any.
func (h *Handler) refreshTokenFromCookie(r *http.Request) (string, bool) {
	c, err := r.Cookie(h.cfg.RefreshCookieName)
	if err != nil {
		return "", false
	}
	v := strings.TrimSpace(c.Value)
	return v, v != ""
}

// setRefreshCookie stores the refresh value. The cookie expires with the session.
func (h *Handler) setRefreshCookie(w http.ResponseWriter, value string, exp time.Time) {
	http.SetCookie(w, h.refreshCookie(value, exp.UTC(), 0))
}

// clearRefreshCookie tells the browser to drop the refresh value.
func (h *Handler) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, h.refreshCookie("", time.Unix(0, 0).UTC(), -1))
}

func (h *Handler) refreshCookie(value string, exp time.Time, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cfg.RefreshCookieName,
		Value:    value,
		Path:     h.cfg.CookiePath,
		Domain:   h.cfg.CookieDomain,
		Expires:  exp,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: h.cfg.CookieSameSite,
	}
}
