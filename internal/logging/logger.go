package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type Options struct {
	Level     string
	Writer    io.Writer // defaults to stderr
	File      string    // optional, appended to as JSON lines
	Quiet     bool      // write to File only
	Component string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewLogger builds a JSON slog logger. The returned closer releases the log
// file, if one was opened.
func NewLogger(opts Options) (*slog.Logger, io.Closer, error) {
	writer := opts.Writer
	if writer == nil {
		writer = os.Stderr
	}

	var closer io.Closer = nopCloser{}
	if path := strings.TrimSpace(opts.File); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, nil, err
		}
		file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		closer = file
		if opts.Quiet {
			writer = file
		} else {
			writer = io.MultiWriter(writer, file)
		}
	} else if opts.Quiet {
		writer = io.Discard
	}

	h := slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	lg := slog.New(h)
	if c := strings.TrimSpace(opts.Component); c != "" {
		lg = lg.With("component", c)
	}
	return lg, closer, nil
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
