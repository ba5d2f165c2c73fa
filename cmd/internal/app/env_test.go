package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("TASKHUB_T_STR", "  value ")
	t.Setenv("TASKHUB_T_BOOL", "nope")
	t.Setenv("TASKHUB_T_INT", "-4")
	t.Setenv("TASKHUB_T_INT32", "12")
	t.Setenv("TASKHUB_T_DUR", "1500ms")
	t.Setenv("TASKHUB_T_CSV", " a, ,b ,")

	if got := EnvString("TASKHUB_T_STR", "def"); got != "value" {
		t.Fatalf("EnvString=%q", got)
	}
	if got := EnvString("TASKHUB_T_MISSING", "def"); got != "def" {
		t.Fatalf("EnvString default=%q", got)
	}
	if got := EnvBool("TASKHUB_T_BOOL", true); !got {
		t.Fatalf("invalid bool must fall back to default")
	}
	if got := EnvInt("TASKHUB_T_INT", 7); got != 7 {
		t.Fatalf("negative int must fall back, got %d", got)
	}
	if got := EnvInt32("TASKHUB_T_INT32", 1); got != 12 {
		t.Fatalf("EnvInt32=%d", got)
	}
	if got := EnvDuration("TASKHUB_T_DUR", time.Second); got != 1500*time.Millisecond {
		t.Fatalf("EnvDuration=%v", got)
	}
	got := EnvCSV("TASKHUB_T_CSV")
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("EnvCSV=%q", got)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("TASKHUB_T_DOTENV=from-file\nTASKHUB_T_KEEP=from-file\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("TASKHUB_T_KEEP", "from-env")
	// Registered for cleanup, then removed so the file can supply it.
	t.Setenv("TASKHUB_T_DOTENV", "")
	if err := os.Unsetenv("TASKHUB_T_DOTENV"); err != nil {
		t.Fatalf("unsetenv: %v", err)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("TASKHUB_T_DOTENV"); got != "from-file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("TASKHUB_T_KEEP"); got != "from-env" {
		t.Fatalf("existing env must win, got %q", got)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file must be ignored, got %v", err)
	}
}
