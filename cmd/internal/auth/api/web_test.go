package authapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSetRefreshCookie(t *testing.T) {
	h := &Handler{cfg: Config{
		RefreshCookieName: "refreshToken",
		CookiePath:        "/api/v1",
		CookieSecure:      true,
		CookieSameSite:    http.SameSiteLaxMode,
	}}

	rr := httptest.NewRecorder()
	exp := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	h.setRefreshCookie(rr, "refresh-token-123", exp)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected 1 cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != "refreshToken" || c.Value != "refresh-token-123" {
		t.Fatalf("unexpected cookie %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly || !c.Secure || c.Path != "/api/v1" {
		t.Fatalf("unexpected attributes: %+v", c)
	}
	if !c.Expires.Equal(exp) {
		t.Fatalf("expected expiry %v, got %v", exp, c.Expires)
	}
}

func TestClearRefreshCookie(t *testing.T) {
	h := &Handler{cfg: Config{RefreshCookieName: "refreshToken", CookiePath: "/api/v1"}}

	rr := httptest.NewRecorder()
	h.clearRefreshCookie(rr)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected an expiring cookie, got %+v", cookies)
	}
}

func TestRefreshTokenFromCookie(t *testing.T) {
	h := &Handler{cfg: Config{RefreshCookieName: "refreshToken"}}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/login", nil)
	if _, ok := h.refreshTokenFromCookie(req); ok {
		t.Fatalf("expected no cookie")
	}

	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "tok-123"})
	token, ok := h.refreshTokenFromCookie(req)
	if !ok {
		t.Fatalf("expected cookie token to be found")
	}
	if token != "tok-123" {
		t.Fatalf("unexpected cookie token: %q", token)
	}
}
