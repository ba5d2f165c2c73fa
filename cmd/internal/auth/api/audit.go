package authapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// audit writes one security event. Secrets never reach attrs.
func (h *Handler) audit(ctx context.Context, r *http.Request, action string, attrs ...slog.Attr) {
	if h == nil || h.log == nil {
		return
	}
	base := []slog.Attr{slog.String("user_agent", strings.TrimSpace(r.UserAgent()))}
	if ip := clientIP(r, h.cfg.TrustProxy); ip != nil {
		base = append(base, slog.String("ip", ip.String()))
	}
	h.log.LogAttrs(ctx, slog.LevelInfo, action, append(base, attrs...)...)
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
