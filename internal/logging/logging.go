// Package logging builds the daemon's structured logger: JSON lines to an
// optionally-rotated file (via lumberjack), always mirrored to stderr, in
// place of the teacher's plain slog.NewTextHandler(os.Stderr, ...).
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New. An empty FilePath means stderr-only.
type Options struct {
	FilePath   string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Level      slog.Level
}

// New builds a *slog.Logger writing JSON lines to Options.FilePath (if
// set, rotated via lumberjack) and always to stderr.
func New(opts Options) *slog.Logger {
	if opts.MaxSizeMB == 0 {
		opts.MaxSizeMB = 100
	}
	if opts.MaxBackups == 0 {
		opts.MaxBackups = 5
	}
	if opts.MaxAgeDays == 0 {
		opts.MaxAgeDays = 28
	}

	var w io.Writer = os.Stderr
	if opts.FilePath != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		})
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
	return slog.New(h)
}
