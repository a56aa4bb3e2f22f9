package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultMaxSizeMB  = 5
	DefaultMaxBackups = 5
)

// New builds a logger writing to w (stderr when nil). format is "text" or
// "json"; level is any name slog understands ("debug", "info", "warn",
// "error").
func New(level, format string, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q", level)
		}
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

// Discard is a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Rotating returns a writer appending to path, rotated once it reaches
// maxSizeMB with at most maxBackups old files kept. Missing directories are
// created on first write.
func Rotating(path string, maxSizeMB, maxBackups int) io.WriteCloser {
	if maxSizeMB <= 0 {
		maxSizeMB = DefaultMaxSizeMB
	}
	if maxBackups < 0 {
		maxBackups = DefaultMaxBackups
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
}

// Output is console plus, when path is set, a rotating file. The returned
// closer releases the file and is never nil.
func Output(console io.Writer, path string, maxSizeMB, maxBackups int) (io.Writer, io.Closer) {
	if path == "" {
		return console, nopCloser{}
	}
	file := Rotating(path, maxSizeMB, maxBackups)
	return io.MultiWriter(console, file), file
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
