// Package otuslog builds the package-level structured logger shared by the
// Segmenter, Reassembler and LBManager, adapted from the teacher's
// internal/log/logger.go: a log/slog handler over a multi-writer that
// includes a gopkg.in/natefinch/lumberjack.v2-rotated file sink when
// configured.
package otuslog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config mirrors the teacher's LogConfig/FileOutputConfig/RotationConfig
// shape, flattened. internal/econfig does not load it; Segmenter and
// Reassembler take a *slog.Logger rather than a Config.
type Config struct {
	Level  string // debug | info | warn | error
	Format string // json | text

	Console bool // write to stdout; defaults to true when no file path is set

	FilePath   string
	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// New builds a *slog.Logger from cfg, the way the teacher's Init builds and
// installs a global logger — here the logger is returned rather than
// globally installed, so Segmenter/Reassembler/LBManager each hold their own
// and attach component-specific fields via Logger.With.
func New(cfg Config) (*slog.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("otuslog: invalid level: %w", err)
	}

	var writers []io.Writer
	if cfg.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		})
	}
	if cfg.Console || len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	out := io.MultiWriter(writers...)
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		handler = slog.NewJSONHandler(out, opts)
	case "text":
		handler = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("otuslog: unsupported format %q (must be json or text)", cfg.Format)
	}

	return slog.New(handler), nil
}

// Default returns an info-level, JSON, stdout-only logger — used when no
// explicit Config is supplied (e.g. in tests or ad hoc tools).
func Default() *slog.Logger {
	logger, err := New(Config{Level: "info", Format: "json", Console: true})
	if err != nil {
		// New() only fails on caller-supplied level/format strings, neither
		// of which is user-controlled here.
		panic(err)
	}
	return logger
}

func parseLevel(levelStr string) (slog.Level, error) {
	switch strings.ToLower(levelStr) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown level %q", levelStr)
	}
}

// Component returns logger with a "component" field attached, matching the
// structured-field convention the teacher's pipeline stages use (e.g.
// sender.go's log.GetLogger().WithField("partition", ...)), adapted to
// slog's With.
func Component(logger *slog.Logger, name string) *slog.Logger {
	return logger.With(slog.String("component", name))
}
