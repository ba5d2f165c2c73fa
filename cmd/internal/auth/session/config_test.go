package session

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv_MissingSecretKey(t *testing.T) {
	t.Setenv("TASKHUB_SECRET_KEY", "")
	_, err := LoadConfigFromEnv()
	if err != ErrConfig {
		t.Fatalf("expected ErrConfig on missing secret, got %v", err)
	}
}

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("TASKHUB_SECRET_KEY", "dev-secret")
	t.Setenv("TASKHUB_JWT_ALGORITHM", "")
	t.Setenv("TASKHUB_ACCESS_TOKEN_EXPIRE_MINUTES", "")
	t.Setenv("TASKHUB_REFRESH_TOKEN_EXPIRE_MINUTES", "")
	t.Setenv("TASKHUB_AUTH_REUSE_EXPIRES_SESSION", "")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if string(cfg.Secret) != "dev-secret" {
		t.Fatalf("secret not loaded")
	}
	if cfg.Algorithm != "HS256" || cfg.AccessTokenTTL != 15*time.Minute || cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if !cfg.ReuseExpiresSession {
		t.Fatalf("reuse invalidation should default to on")
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("TASKHUB_SECRET_KEY", "dev-secret")
	t.Setenv("TASKHUB_JWT_ALGORITHM", "hs512")
	t.Setenv("TASKHUB_ACCESS_TOKEN_EXPIRE_MINUTES", "5")
	t.Setenv("TASKHUB_REFRESH_TOKEN_EXPIRE_MINUTES", "60")
	t.Setenv("TASKHUB_AUTH_REUSE_EXPIRES_SESSION", "false")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Algorithm != "HS512" || cfg.AccessTokenTTL != 5*time.Minute || cfg.RefreshTokenTTL != time.Hour {
		t.Fatalf("override failed: %+v", cfg)
	}
	if cfg.ReuseExpiresSession {
		t.Fatalf("expected reuse invalidation off")
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"negative access ttl":  {"TASKHUB_ACCESS_TOKEN_EXPIRE_MINUTES", "-5"},
		"non-numeric ttl":      {"TASKHUB_REFRESH_TOKEN_EXPIRE_MINUTES", "7d"},
		"asymmetric algorithm": {"TASKHUB_JWT_ALGORITHM", "RS256"},
		"small refresh bytes":  {"TASKHUB_AUTH_REFRESH_TOKEN_BYTES", "16"},
		"bad bool":             {"TASKHUB_AUTH_REUSE_EXPIRES_SESSION", "maybe"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("TASKHUB_SECRET_KEY", "dev-secret")
			t.Setenv(kv[0], kv[1])
			if _, err := LoadConfigFromEnv(); err != ErrConfig {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestLoadConfigFromEnv_RefreshShorterThanAccess(t *testing.T) {
	t.Setenv("TASKHUB_SECRET_KEY", "dev-secret")
	t.Setenv("TASKHUB_ACCESS_TOKEN_EXPIRE_MINUTES", "30")
	t.Setenv("TASKHUB_REFRESH_TOKEN_EXPIRE_MINUTES", "10")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}
