package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// JSONFormatter renders entries as single-line JSON objects.
type JSONFormatter struct {
	// PrettyPrint indents output; intended for local debugging only.
	PrettyPrint bool
	// DisableCaller drops the caller file:line from the output.
	DisableCaller bool
}

// Format implements Formatter.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	data := make(map[string]interface{}, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		data[k] = v
	}
	data["ts"] = entry.Timestamp.Format(timestampLayout)
	data["level"] = entry.Level.String()
	data["msg"] = entry.Message
	if entry.Caller != "" && !f.DisableCaller {
		data["caller"] = entry.Caller
	}
	if entry.Error != nil {
		data["error"] = entry.Error.Error()
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if f.PrettyPrint {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TextFormatter renders entries as "ts LEVEL msg key=value ..." lines.
type TextFormatter struct {
	// DisableTimestamp drops the leading timestamp.
	DisableTimestamp bool
}

// Format implements Formatter.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer
	if !f.DisableTimestamp {
		buf.WriteString(entry.Timestamp.Format(timestampLayout))
		buf.WriteByte(' ')
	}
	fmt.Fprintf(&buf, "%-5s %s", entry.Level.String(), entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&buf, " %s=%v", k, entry.Fields[k])
		}
	}
	if entry.Error != nil {
		fmt.Fprintf(&buf, " error=%q", entry.Error.Error())
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
