package authapi

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls auth API behavior and cookie transport.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	RefreshCookieName string
	CookiePath        string
	CookieDomain      string
	CookieSecure      bool
	CookieSameSite    http.SameSite
}

// DefaultConfig returns the defaults LoadConfigFromEnv starts from.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:      1 << 20, // 1 MiB
		RefreshCookieName: "refreshToken",
		CookiePath:        "/api/v1",
		CookieSameSite:    http.SameSiteLaxMode,
	}
}

// LoadConfigFromEnv loads auth config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		TrustProxy:        envBool("TASKHUB_AUTH_TRUST_PROXY", false),
		MaxBodyBytes:      envInt64("TASKHUB_AUTH_MAX_BODY_BYTES", def.MaxBodyBytes),
		RefreshCookieName: envString("TASKHUB_AUTH_REFRESH_COOKIE_NAME", def.RefreshCookieName),
		CookiePath:        envString("TASKHUB_AUTH_COOKIE_PATH", def.CookiePath),
		CookieDomain:      envString("TASKHUB_AUTH_COOKIE_DOMAIN", ""),
		CookieSecure:      envBool("TASKHUB_COOKIE_SECURE", false),
		CookieSameSite:    parseSameSite(envString("TASKHUB_AUTH_COOKIE_SAMESITE", "lax")),
	}

	// Browsers drop SameSite=None cookies that are not Secure.
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}
	return cfg
}

func parseSameSite(v string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
