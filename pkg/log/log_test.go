package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newBufferLogger(level Level, formatter Formatter) (Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	l := NewLogger(
		WithLevel(level),
		WithFormatter(formatter),
		WithOutput(&WriterOutput{W: &buf}),
	)
	return l, &buf
}

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(WarnLevel, &TextFormatter{DisableTimestamp: true})

	l.Debug("dropped")
	l.Info("dropped too")
	l.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Fatalf("below-level entries leaked: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Fatalf("warn entry missing: %q", out)
	}
}

func TestJSONFormatterFields(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel, &JSONFormatter{DisableCaller: true})

	l.Info("batch done", Str("ledger", "default"), Int("processed", 7))

	var data map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid JSON output %q: %v", buf.String(), err)
	}
	if data["msg"] != "batch done" || data["level"] != "INFO" {
		t.Fatalf("unexpected envelope: %v", data)
	}
	if data["ledger"] != "default" {
		t.Fatalf("missing field: %v", data)
	}
	if data["processed"] != float64(7) {
		t.Fatalf("missing int field: %v", data)
	}
}

func TestWithCarriesBaseFields(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel, &JSONFormatter{DisableCaller: true})

	child := l.With(Component("processor"), Str("ledger", "billing"))
	child.Info("run")

	var data map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &data); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if data[ComponentKey] != "processor" || data["ledger"] != "billing" {
		t.Fatalf("base fields not carried: %v", data)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":        InfoLevel,
		"debug":   DebugLevel,
		"WARN":    WarnLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestApplyConfigRejectsUnknownFormat(t *testing.T) {
	if _, err := ApplyConfig(Config{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if _, err := ApplyConfig(Config{Output: "file"}); err == nil {
		t.Fatal("expected error for file output without path")
	}
}
