// Package jsonutil prints values and daemon replies as colored JSON on the terminal.
package jsonutil

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/fatih/color"
	"github.com/fatih/structs"
	"github.com/hokaccha/go-prettyjson"
)

func newFormatter(indent int, newline string) *prettyjson.Formatter {
	f := prettyjson.NewFormatter()
	f.Indent = indent
	f.Newline = newline
	// Follows fatih/color, which turns colors off when stdout is not a terminal.
	f.DisabledColor = color.NoColor
	return f
}

// MarshalCompactPretty writes one "Field: value" line per exported field of struct v, sorted by field name.
func MarshalCompactPretty(v any) ([]byte, error) {
	f := newFormatter(0, "")
	var buf bytes.Buffer
	fields := make(map[string]any)
	var names []string
	for _, field := range structs.Fields(v) {
		if !field.IsExported() {
			continue
		}
		fields[field.Name()] = field.Value()
		names = append(names, field.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		b, err := f.Marshal(fields[name])
		if err != nil {
			return nil, err
		}
		buf.WriteString(name)
		buf.WriteString(": ")
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Pretty indents a raw JSON document.
func Pretty(raw json.RawMessage) ([]byte, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return newFormatter(2, "\n").Marshal(v)
}
