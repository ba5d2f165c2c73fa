package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string // "json" or "pretty"

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	// DatabaseURL empty runs every store in memory (dev mode).
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32
	// DBMigrate applies the embedded migrations at startup.
	DBMigrate bool

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// If true, TASKHUB_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and refresh values are HMAC-hashed.
	RequireTokenHMAC bool

	CORSAllowedOrigins   []string
	CORSAllowCredentials bool
	CORSMaxAgeSeconds    int
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr:  EnvString("TASKHUB_HTTP_ADDR", "0.0.0.0:8000"),
		LogLevel:  EnvString("TASKHUB_LOG_LEVEL", "info"),
		LogFormat: EnvString("TASKHUB_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("TASKHUB_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("TASKHUB_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("TASKHUB_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("TASKHUB_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("TASKHUB_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("TASKHUB_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("TASKHUB_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("TASKHUB_DB_MIN_CONNS", 0),
		DBMigrate:   EnvBool("TASKHUB_DB_MIGRATE", true),

		ReadinessRequireDB: EnvBool("TASKHUB_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("TASKHUB_REQUIRE_TOKEN_HMAC", false),

		CORSAllowedOrigins:   EnvCSV("TASKHUB_CORS_ALLOWED_ORIGINS"),
		CORSAllowCredentials: EnvBool("TASKHUB_CORS_ALLOW_CREDENTIALS", true),
		CORSMaxAgeSeconds:    EnvInt("TASKHUB_CORS_MAX_AGE_SECONDS", 600),
	}
}
