// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RequestIDHeader carries a per-request ULID so client and service logs can be correlated.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds how much of an error response body is read.
const maxErrorBody = 4 << 10

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRequestID returns a new ULID string. Safe for concurrent use.
func NewRequestID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ErrorMessage extracts a human-readable message from a non-2xx response.
// It understands {"detail": "..."} (FastAPI), {"message": "..."} and
// {"error": "..."} bodies, falls back to the trimmed body text, and finally
// to the HTTP status text. The body is consumed but not closed.
func ErrorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if msg := messageFromBody(data); msg != "" {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}

func messageFromBody(data []byte) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err == nil {
		for _, key := range []string{"detail", "message", "error"} {
			raw, ok := obj[key]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
			// FastAPI validation errors carry a list under "detail".
			var items []struct {
				Msg string `json:"msg"`
			}
			if err := json.Unmarshal(raw, &items); err == nil && len(items) > 0 {
				msgs := make([]string, 0, len(items))
				for _, it := range items {
					if it.Msg != "" {
						msgs = append(msgs, it.Msg)
					}
				}
				if len(msgs) > 0 {
					return strings.Join(msgs, "; ")
				}
			}
		}
		return ""
	}
	return strings.TrimSpace(string(data))
}
