package host

import (
	"fmt"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// NewLogger builds the host logger: a text handler on stderr, plus a
// file handler when cfg.LogFile is set, fanned out together. The
// returned func closes the log file.
func NewLogger(cfg Config) (*slog.Logger, func(), error) {
	level := new(slog.LevelVar)
	switch cfg.LogLevel {
	case "", "info":
		level.Set(slog.LevelInfo)
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		return nil, nil, fmt.Errorf("config: bad log_level %q", cfg.LogLevel)
	}

	handlers := []slog.Handler{
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}),
	}
	closeFn := func() {}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}))
		closeFn = func() { _ = f.Close() }
	}

	log := slog.New(slogmulti.Fanout(handlers...)).With("machine", cfg.Name)
	return log, closeFn, nil
}
