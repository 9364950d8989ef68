package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger is a slog.Logger that stamps every record with its component.
type Logger struct {
	*slog.Logger
	component string
}

type Config struct {
	Level     slog.Level
	Component string
	Output    io.Writer
	JSON      bool
}

func DefaultConfig() Config {
	return Config{Level: slog.LevelInfo, Component: ComponentApp, Output: os.Stdout}
}

// New builds a text (or JSON) handler logger from cfg.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}
	var h slog.Handler
	if cfg.JSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	component := cfg.Component
	if component == "" {
		component = ComponentApp
	}
	return &Logger{Logger: slog.New(h).With(FieldComponent, component), component: component}
}

// Wrap adapts an existing slog.Logger.
func Wrap(l *slog.Logger, component string) *Logger {
	if l == nil {
		l = slog.Default()
	}
	return &Logger{Logger: l.With(FieldComponent, component), component: component}
}

// ParseLevel maps LOG_LEVEL values; unknown input yields info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), component: l.component}
}

// WithComponent returns a child logger tagged with a different component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With(FieldComponent, component), component: component}
}

func (l *Logger) Component() string {
	return l.component
}

// LogError logs err with operation context at error level.
func (l *Logger) LogError(ctx context.Context, msg string, err error, op string, fields Fields) {
	if fields == nil {
		fields = NewFields()
	}
	l.ErrorContext(ctx, msg, fields.WithError(err).WithOperation(op).ToSlice()...)
}

func SetDefault(l *Logger) {
	slog.SetDefault(l.Logger)
}
