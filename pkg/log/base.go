package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// logAttrs routes a leveled message through the slog bridge.
func (l *BaseLogger) logAttrs(level Level, msg string, attrs []slog.Attr) {
	l.slogLogger.LogAttrs(context.Background(), toSlogLevel(level), msg, attrs...)
}

func (l *BaseLogger) Debug(msg string, fields ...Field) {
	l.logAttrs(DebugLevel, msg, attrsFromFieldSlice(fields))
}

func (l *BaseLogger) Info(msg string, fields ...Field) {
	l.logAttrs(InfoLevel, msg, attrsFromFieldSlice(fields))
}

func (l *BaseLogger) Warn(msg string, fields ...Field) {
	l.logAttrs(WarnLevel, msg, attrsFromFieldSlice(fields))
}

func (l *BaseLogger) Error(msg string, fields ...Field) {
	l.logAttrs(ErrorLevel, msg, attrsFromFieldSlice(fields))
}

func (l *BaseLogger) Fatal(msg string, fields ...Field) {
	l.logAttrs(FatalLevel, msg, attrsFromFieldSlice(fields))
	os.Exit(1)
}

func (l *BaseLogger) Debugf(msg string, args ...interface{}) {
	l.logAttrs(DebugLevel, fmt.Sprintf(msg, args...), nil)
}

func (l *BaseLogger) Infof(msg string, args ...interface{}) {
	l.logAttrs(InfoLevel, fmt.Sprintf(msg, args...), nil)
}

func (l *BaseLogger) Warnf(msg string, args ...interface{}) {
	l.logAttrs(WarnLevel, fmt.Sprintf(msg, args...), nil)
}

func (l *BaseLogger) Errorf(msg string, args ...interface{}) {
	l.logAttrs(ErrorLevel, fmt.Sprintf(msg, args...), nil)
}

func (l *BaseLogger) Fatalf(msg string, args ...interface{}) {
	l.logAttrs(FatalLevel, fmt.Sprintf(msg, args...), nil)
	os.Exit(1)
}

// clone copies the logger with fields merged in, rebuilding the slog bridge so
// the copy carries its own base attributes.
func (l *BaseLogger) clone(extra Fields) *BaseLogger {
	merged := make(Fields, len(l.fields)+len(extra))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	nl := &BaseLogger{
		level:     l.level,
		fields:    merged,
		formatter: l.formatter,
		outputs:   l.outputs,
	}
	h := newBridgeHandler(nl).WithAttrs(attrsFromMap(merged))
	nl.slogLogger = slog.New(h)
	return nl
}

func (l *BaseLogger) WithField(key string, value interface{}) Logger {
	return l.clone(Fields{key: value})
}

func (l *BaseLogger) WithFields(fields Fields) Logger {
	return l.clone(fields)
}

func (l *BaseLogger) WithError(err error) Logger {
	if err == nil {
		return l
	}
	return l.clone(Fields{"error": err.Error()})
}

func (l *BaseLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	extra := make(Fields, len(fields))
	for _, f := range fields {
		extra[f.Key] = f.Value
	}
	return l.clone(extra)
}

func (l *BaseLogger) WithContext(ctx context.Context) Logger {
	extra := ContextExtractor(ctx)
	if len(extra) == 0 {
		return l
	}
	return l.clone(extra)
}

func (l *BaseLogger) WithComponent(component string) Logger {
	return l.clone(Fields{ComponentKey: component})
}

func (l *BaseLogger) SetLevel(level Level) { l.level = level }

func (l *BaseLogger) GetLevel() Level { return l.level }
