package infra

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Logger aliases the zerolog.Logger so callers outside the infra package can
// depend on the logging contract without importing the third-party module
// directly.
type Logger = zerolog.Logger

// NewLogger builds the process logger for cfg. Development gets a console
// writer on stdout, everything else JSON lines.
func NewLogger(cfg *Config, service string) Logger {
	return newLogger(LoggerOptions{
		AppEnv:  cfg.AppEnv,
		Level:   cfg.LogLevel,
		Service: service,
		Out:     os.Stdout,
		Colour:  IsTerminal(os.Stdout),
	})
}

// LoggerOptions shapes a logger. A zero Out discards output.
type LoggerOptions struct {
	AppEnv  string
	Level   string
	Service string
	Out     io.Writer
	Colour  bool
	// Console forces the human-readable writer regardless of AppEnv.
	Console bool
}

func newLogger(opts LoggerOptions) Logger {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	development := opts.AppEnv == "development"
	if development || opts.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: !opts.Colour}
	}

	ctx := zerolog.New(out).Level(ResolveLogLevel(opts.AppEnv, opts.Level)).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	return ctx.Logger()
}

// ResolveLogLevel returns the explicit level when it parses, otherwise debug
// in development and info elsewhere.
func ResolveLogLevel(appEnv, level string) zerolog.Level {
	if level = strings.ToLower(strings.TrimSpace(level)); level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			return parsed
		}
	}
	if appEnv == "development" {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewConsoleLogger is the human-readable logger used by command line tools.
func NewConsoleLogger(out io.Writer, level string) Logger {
	return newLogger(LoggerOptions{Level: level, Out: out, Colour: IsTerminal(out), Console: true})
}
