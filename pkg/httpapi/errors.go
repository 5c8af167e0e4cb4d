package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 4096

// APIError is a vendor response with status >= 400.
type APIError struct {
	Vendor    string
	Status    int
	Code      string
	Message   string
	RequestID string
	// Text is the full descriptive message produced by the error parser.
	Text string
}

func (e *APIError) Error() string {
	if e.Text != "" {
		return e.Text
	}
	return fmt.Sprintf("%s API error (%d): %s", e.Vendor, e.Status, e.Message)
}

// RateLimitError is returned when 429 persists after all retries.
type RateLimitError struct {
	Vendor     string
	RetryAfter int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Rate limited by %s API. Retry after %ds.", e.Vendor, e.RetryAfter)
}

// ConnectionError wraps a transport-level failure.
type ConnectionError struct {
	Vendor string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection error: %v", e.Vendor, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ErrorParser turns an error response body into an APIError.
type ErrorParser func(vendor string, status int, body []byte) *APIError

// readErrorBody reads at most maxErrorBody bytes of an error response.
func readErrorBody(resp *http.Response) []byte {
	if resp.Body == nil {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return data
}

// DefaultErrorParser extracts a message from common JSON error shapes
// ({"message"}, {"error": "..."}, {"error": {"message"}}, {"errors": [...]})
// and falls back to the raw body.
func DefaultErrorParser(vendor string, status int, body []byte) *APIError {
	e := &APIError{Vendor: vendor, Status: status}

	var generic map[string]any
	if err := json.Unmarshal(body, &generic); err == nil {
		e.Message = firstString(generic, "message", "Message", "error_description", "detail", "title")
		switch v := generic["error"].(type) {
		case string:
			if e.Message == "" {
				e.Message = v
			} else {
				e.Code = v
			}
		case map[string]any:
			if e.Message == "" {
				e.Message = firstString(v, "message", "Message")
			}
			e.Code = firstString(v, "code", "Code")
		}
		if e.Message == "" {
			if errs, ok := generic["errors"].([]any); ok && len(errs) > 0 {
				e.Message = describe(errs[0])
			}
		}
		e.RequestID = firstString(generic, "request_id", "requestId")
	}
	if e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

// DigitalOceanErrorParser formats DigitalOcean's {"id","message","request_id"}
// error body.
func DigitalOceanErrorParser(vendor string, status int, body []byte) *APIError {
	var data struct {
		ID        string `json:"id"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return DefaultErrorParser(vendor, status, body)
	}
	if data.ID == "" {
		data.ID = "unknown_error"
	}
	if data.Message == "" {
		data.Message = strings.TrimSpace(string(body))
	}

	text := fmt.Sprintf("%s API error (%d, %s): %s", vendor, status, data.ID, data.Message)
	if data.RequestID != "" {
		text += " [request_id: " + data.RequestID + "]"
	}
	return &APIError{
		Vendor:    vendor,
		Status:    status,
		Code:      data.ID,
		Message:   data.Message,
		RequestID: data.RequestID,
		Text:      text,
	}
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func describe(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s := firstString(t, "message", "Message", "detail"); s != "" {
			return s
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
	return strings.TrimSuffix(buf.String(), "\n")
}
