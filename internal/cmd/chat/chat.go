// Package chat parses chat command flags and composes transport entrypoints.
package chat

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/perbarindodpdjateng/chat/internal/platform/cmd"
	server "github.com/perbarindodpdjateng/chat/internal/services/chat/app"
)

// Config holds chat command configuration.
type Config struct {
	HTTPAddr      string        `env:"CHAT_HTTP_ADDR"      envDefault:":3001"`
	SweepInterval time.Duration `env:"CHAT_SWEEP_INTERVAL" envDefault:"3s"`
	StaticDir     string        `env:"CHAT_STATIC_DIR"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "chat HTTP listen address")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "waiting queue sweep interval")
	fs.StringVar(&cfg.StaticDir, "static-dir", cfg.StaticDir, "directory of static client assets")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the chat app and starts realtime transport behavior.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceChat, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:      cfg.HTTPAddr,
			StaticDir:     cfg.StaticDir,
			SweepInterval: cfg.SweepInterval,
		}); err != nil {
			return fmt.Errorf("serve chat: %w", err)
		}
		return nil
	})
}
