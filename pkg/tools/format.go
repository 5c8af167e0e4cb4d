package tools

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TruncatedSuffix marks shortened output.
const TruncatedSuffix = "\n... (truncated)"

// JSON renders v as indented JSON. &, < and > are kept as is.
func JSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return Errorf("formatting result: %v", err)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// Errorf formats an error result.
func Errorf(format string, args ...any) string {
	return "Error: " + fmt.Sprintf(format, args...)
}

// Error formats err as an error result.
func Error(err error) string {
	return "Error: " + err.Error()
}

// IsError reports whether a result string is an error.
func IsError(text string) bool {
	return strings.HasPrefix(text, "Error:") || strings.HasPrefix(text, "❌")
}

// Table renders a markdown table. Pipes in cells are escaped.
func Table(headers []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(headers, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(headers)) + "\n")
	for _, row := range rows {
		cells := make([]string, len(headers))
		for i := range headers {
			if i < len(row) {
				cells[i] = strings.ReplaceAll(strings.ReplaceAll(row[i], "|", `\|`), "\n", " ")
			}
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// SplitCSV splits a comma-separated list, dropping blanks.
func SplitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Default returns v, or def when v is zero.
func Default(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

// Truncate shortens s to n runes and appends TruncatedSuffix.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + TruncatedSuffix
}

// Get walks nested maps in a decoded JSON value.
func Get(v any, keys ...string) any {
	for _, k := range keys {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[k]
	}
	return v
}

// Str renders a decoded JSON scalar as a string. nil becomes "".
func Str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return fmt.Sprint(v)
}

// Int converts a decoded JSON number to int. Non-numbers give 0.
func Int(v any) int {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		f, _ := t.Float64()
		return int(f)
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	case string:
		i, _ := strconv.Atoi(t)
		return i
	}
	return 0
}

// Float converts a decoded JSON number to float64.
func Float(v any) float64 {
	switch t := v.(type) {
	case json.Number:
		f, _ := t.Float64()
		return f
	case float64:
		return t
	case int:
		return float64(t)
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	}
	return 0
}

// List returns v as a slice, or nil.
func List(v any) []any {
	l, _ := v.([]any)
	return l
}

// Pick copies the named keys of a decoded object, skipping absent ones.
func Pick(v any, keys ...string) map[string]any {
	m, _ := v.(map[string]any)
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if val, ok := m[k]; ok {
			out[k] = val
		}
	}
	return out
}
