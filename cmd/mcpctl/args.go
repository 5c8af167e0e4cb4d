package main

import (
	"encoding/json"
	"fmt"
	"strings"
)

// parseArgs turns command line arguments into tool arguments. A single
// argument starting with "{" is read as a JSON object; otherwise each
// argument is key=value, with the value decoded as JSON when it parses
// and kept as a string when it does not.
func parseArgs(args []string) (map[string]any, error) {
	out := map[string]any{}
	if len(args) == 1 && strings.HasPrefix(strings.TrimSpace(args[0]), "{") {
		if err := json.Unmarshal([]byte(args[0]), &out); err != nil {
			return nil, fmt.Errorf("invalid JSON arguments: %w", err)
		}
		return out, nil
	}
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", arg)
		}
		var v any
		if err := json.Unmarshal([]byte(value), &v); err != nil {
			v = value
		}
		out[key] = v
	}
	return out, nil
}
