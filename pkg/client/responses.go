package client

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Response is a decoded JSON response body. The client does not impose a
// schema; the accessors below cover the fields the helper relies on.
type Response map[string]any

// Data returns the "data" object when the API wraps its payload, or r.
func (r Response) Data() Response {
	if d, ok := r["data"].(map[string]any); ok {
		return Response(d)
	}
	return r
}

// Items returns the entries of a listing response: the "data" array, or
// the first of "list", "items", "models" or "workflows" inside the data
// object. Entries that are not objects are skipped.
func (r Response) Items() []Response {
	raw, ok := r["data"].([]any)
	if !ok {
		data := r.Data()
		for _, k := range []string{"list", "items", "models", "workflows"} {
			if raw, ok = data[k].([]any); ok {
				break
			}
		}
	}

	items := make([]Response, 0, len(raw))
	for _, v := range raw {
		if m, ok := v.(map[string]any); ok {
			items = append(items, Response(m))
		}
	}
	return items
}

// String returns the value at key formatted as a string, or "".
func (r Response) String(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// lookup returns the first non-empty value among keys, checking r and then
// its data object.
func (r Response) lookup(keys ...string) string {
	for _, src := range []Response{r, r.Data()} {
		for _, k := range keys {
			if v := src.String(k); v != "" {
				return v
			}
		}
	}
	return ""
}

// TaskID returns the task identifier of a generation response.
func (r Response) TaskID() string {
	return r.lookup("task_id", "taskId", "generateUuid")
}

// Status returns the task status, lower-cased.
func (r Response) Status() string {
	return strings.ToLower(r.lookup("status"))
}

// Message returns the service message, if any.
func (r Response) Message() string {
	return r.lookup("message", "msg")
}

// ImageURL returns the first generated image URL, if any.
func (r Response) ImageURL() string {
	for _, src := range []Response{r, r.Data()} {
		if res, ok := src["result"].(map[string]any); ok {
			if u := Response(res).String("image_url"); u != "" {
				return u
			}
		}
		if u := src.String("image_url"); u != "" {
			return u
		}
	}
	return ""
}

// CreatedAt returns the creation time reported by the service, or the zero
// time when absent or unparseable.
func (r Response) CreatedAt() time.Time {
	return parseTimestamp(r.lookup("created_at", "createdAt"))
}

// Terminal reports whether Status is a final task state.
func (r Response) Terminal() bool {
	switch r.Status() {
	case "success", "succeeded", "completed", "failed", "error":
		return true
	default:
		return false
	}
}

// Failed reports whether Status is a failed final state.
func (r Response) Failed() bool {
	switch r.Status() {
	case "failed", "error":
		return true
	default:
		return false
	}
}
