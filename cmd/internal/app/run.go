package app

import (
	"context"
	"os/signal"
	"syscall"
)

// Run is the CLI entrypoint used by cmd/taskhub.
// It returns an error instead of calling os.Exit to keep defers effective.
func Run() error {
	if err := LoadDotEnv(EnvString("TASKHUB_ENV_FILE", ".env")); err != nil {
		return err
	}

	cfg := LoadConfig()
	log := NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		log.Error("server.init.fail", "err", err)
		return err
	}

	return a.Run(ctx)
}
