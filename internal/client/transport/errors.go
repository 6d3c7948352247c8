package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrNetwork matches every *NetworkError.
	ErrNetwork = errors.New("network error")
	// ErrMalformedResponse matches every *MalformedResponseError.
	ErrMalformedResponse = errors.New("malformed response")
)

// fallbackDetail is used when an error response carries no usable detail.
const fallbackDetail = "An unexpected error occurred"

// NetworkError is a failure below HTTP: DNS, refused connection, TLS,
// timeout, cancellation or a body that could not be read.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// HTTPError is a non-2xx response. Detail is the backend's message, or a
// synthesized one when the body had none.
type HTTPError struct {
	Status int
	Detail string
}

func (e *HTTPError) Error() string { return e.Detail }

// MalformedResponseError is a 2xx JSON response whose body did not decode.
type MalformedResponseError struct {
	Status int
	Err    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response (status %d): %v", e.Status, e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var herr *HTTPError
	if errors.As(err, &herr) {
		return herr.Status
	}
	return 0
}

// newHTTPError builds an HTTPError from an error body. FastAPI sends either
// {"detail": "..."} or {"detail": [{"loc": [...], "msg": "..."}]}.
func newHTTPError(status int, body []byte) *HTTPError {
	return &HTTPError{Status: status, Detail: parseDetail(status, body)}
}

func parseDetail(status int, body []byte) string {
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Detail) == 0 {
		return synthesizeDetail(status)
	}

	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil {
		if s == "" {
			return synthesizeDetail(status)
		}
		return s
	}

	var items []struct {
		Loc []any  `json:"loc"`
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(env.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg == "" {
				continue
			}
			if field := locField(it.Loc); field != "" {
				msgs = append(msgs, field+": "+it.Msg)
			} else {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return synthesizeDetail(status)
}

// locField returns the last element of a FastAPI error location, which is
// the offending field name.
func locField(loc []any) string {
	if len(loc) == 0 {
		return ""
	}
	if s, ok := loc[len(loc)-1].(string); ok && s != "body" {
		return s
	}
	return ""
}

func synthesizeDetail(status int) string {
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("%s (%d %s)", fallbackDetail, status, text)
	}
	return fmt.Sprintf("%s (%d)", fallbackDetail, status)
}
