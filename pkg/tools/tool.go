package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Handler runs a tool with raw JSON arguments and returns the result text.
type Handler func(ctx context.Context, args json.RawMessage) string

// Annotations are behavioural hints surfaced to MCP clients.
type Annotations struct {
	ReadOnly    bool
	Destructive bool
	Idempotent  bool
	OpenWorld   bool
}

// Common annotation sets.
var (
	ReadOnly    = Annotations{ReadOnly: true, Idempotent: true, OpenWorld: true}
	Mutating    = Annotations{OpenWorld: true}
	Destructive = Annotations{Destructive: true, OpenWorld: true}
)

// Tool is one callable function.
type Tool struct {
	Name        string
	Title       string
	Description string
	InputSchema *jsonschema.Schema
	Annotations Annotations
	Handler     Handler
}

// New builds a Tool whose schema is inferred from In. Arguments are decoded
// into In before fn runs; malformed arguments never reach fn.
func New[In any](name, title, description string, ann Annotations, fn func(context.Context, In) string) Tool {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		panic(fmt.Sprintf("tool %s: inferring input schema: %v", name, err))
	}
	return Tool{
		Name:        name,
		Title:       title,
		Description: strings.TrimSpace(description),
		InputSchema: schema,
		Annotations: ann,
		Handler: func(ctx context.Context, args json.RawMessage) string {
			var in In
			if len(bytes.TrimSpace(args)) > 0 && !bytes.Equal(bytes.TrimSpace(args), []byte("null")) {
				dec := json.NewDecoder(bytes.NewReader(args))
				dec.UseNumber()
				if err := dec.Decode(&in); err != nil {
					return Errorf("invalid arguments: %v", err)
				}
			}
			return fn(ctx, in)
		},
	}
}

// Call runs the tool with args encoded as JSON. Intended for tests and the
// CLI.
func (t Tool) Call(ctx context.Context, args any) string {
	raw, err := json.Marshal(args)
	if err != nil {
		return Errorf("invalid arguments: %v", err)
	}
	return t.Handler(ctx, raw)
}
