package log

import (
	"fmt"
	stdlog "log"
	"strings"
)

// Config declaratively describes a logger: level, format, and destination.
type Config struct {
	// Level is one of debug, info, warn, error, fatal.
	Level string `json:"level" yaml:"level"`
	// Format is "json" (default) or "text".
	Format string `json:"format" yaml:"format"`
	// Output is "console" (default), "file", or "null".
	Output string `json:"output" yaml:"output"`
	// FilePath is required when Output is "file".
	FilePath string `json:"filePath" yaml:"filePath"`
}

// ParseLevel converts a level name to a Level. Unknown names are an error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return InfoLevel, nil
	case "debug":
		return DebugLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "fatal":
		return FatalLevel, nil
	default:
		return InfoLevel, fmt.Errorf("log: unknown level %q", s)
	}
}

// ApplyConfig builds a Logger from a Config.
func ApplyConfig(cfg Config) (Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var formatter Formatter
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		formatter = &JSONFormatter{}
	case "text":
		formatter = &TextFormatter{}
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}

	var output Output
	switch strings.ToLower(cfg.Output) {
	case "", "console":
		output = NewConsoleOutput()
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("log: output %q requires filePath", cfg.Output)
		}
		output = NewFileOutput(cfg.FilePath)
	case "null":
		output = NullOutput{}
	default:
		return nil, fmt.Errorf("log: unknown output %q", cfg.Output)
	}

	return NewLogger(
		WithLevel(level),
		WithFormatter(formatter),
		WithOutput(output),
	), nil
}

// writerAdapter lets a Logger back a *stdlog.Logger.
type writerAdapter struct {
	l     Logger
	level Level
}

func (w writerAdapter) Write(p []byte) (int, error) {
	msg := strings.TrimRight(string(p), "\n")
	switch w.level {
	case DebugLevel:
		w.l.Debug(msg)
	case WarnLevel:
		w.l.Warn(msg)
	case ErrorLevel, FatalLevel:
		w.l.Error(msg)
	default:
		w.l.Info(msg)
	}
	return len(p), nil
}

// ToStdLogger wraps a Logger as a standard library *log.Logger at a fixed level.
func ToStdLogger(l Logger, level Level) *stdlog.Logger {
	return stdlog.New(writerAdapter{l: l, level: level}, "", 0)
}

// RedirectStdLog points the global standard library logger at l.
func RedirectStdLog(l Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(writerAdapter{l: l, level: InfoLevel})
}
