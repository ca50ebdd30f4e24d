package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Response is a snapshot of one HTTP exchange. It is scoped to a single
// probe call and never shared.
type Response struct {
	URL        string
	StatusCode int // 0 when the request never completed
	Header     http.Header
	Body       []byte
	JSON       map[string]any // nil when the body is not a JSON object
	Duration   time.Duration
	Err        error
}

// RawHeaders renders the status line and header block the way it appeared
// on the wire, one "Key: value" per line.
func (r *Response) RawHeaders() string {
	if r.StatusCode == 0 {
		return ""
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP %d\r\n", r.StatusCode)
	_ = r.Header.Write(&buf)
	return buf.String()
}

// String returns the string at the given JSON object path, or "" when any
// segment is missing or the leaf is not a string.
func (r *Response) String(path ...string) string {
	s, _ := lookup(r.JSON, path).(string)
	return s
}

// Bool returns the boolean at path and whether it was present as a boolean.
func (r *Response) Bool(path ...string) (value, ok bool) {
	value, ok = lookup(r.JSON, path).(bool)
	return value, ok
}

// Message is shorthand for the top-level "message" field.
func (r *Response) Message() string {
	return r.String("message")
}

func lookup(obj map[string]any, path []string) any {
	var cur any = obj
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}

func decodeObject(data []byte) map[string]any {
	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil
	}
	return obj
}
