package apierrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Base error types
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
	ErrTransport    = errors.New("transport failure")
	ErrServer       = errors.New("server error")
)

// Kind is the category of a failed API call
type Kind string

const (
	KindTransport    Kind = "transport"
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindServer       Kind = "server"
)

// APIError describes a failed call to the scanner backend.
type APIError struct {
	Kind       Kind
	Op         string // e.g. "get_scan", "analyze"
	StatusCode int
	Detail     string // message decoded from the response body
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Detail
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s failed (%d): %s", e.Op, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, msg)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is interface
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrServer:
		return e.Kind == KindServer
	}
	return false
}

// Retryable reports whether repeating the same request may succeed.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindTransport:
		return true
	case KindServer:
		return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusRequestTimeout
	}
	return false
}

// UserFacing reports whether the error should be shown as an inline, retryable alert
// rather than tearing down the session or rendering an empty state.
func (e *APIError) UserFacing() bool {
	return e.Kind == KindTransport || e.Kind == KindValidation || e.Kind == KindServer
}

func NewTransportError(op string, err error) *APIError {
	return &APIError{Kind: KindTransport, Op: op, Err: err}
}

// FromResponse classifies a non-2xx response and decodes the backend detail message.
func FromResponse(op string, status int, body []byte) *APIError {
	e := &APIError{Op: op, StatusCode: status, Detail: decodeDetail(body)}
	switch {
	case status == http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case status == http.StatusNotFound:
		e.Kind = KindNotFound
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
	default:
		e.Kind = KindServer
	}
	return e
}

func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

type validationItem struct {
	Loc []interface{} `json:"loc"`
	Msg string        `json:"msg"`
}

// maxRawDetail bounds, in bytes, how much of a non-JSON body lands in Detail.
const maxRawDetail = 200

// cutDetail shortens s to at most n bytes without splitting a rune.
func cutDetail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// decodeDetail understands {"detail": "..."}, {"detail": [{"loc":..., "msg":...}]}
// and {"message": "..."} bodies; anything else is returned trimmed.
func decodeDetail(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}

	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return cutDetail(trimmed, maxRawDetail)
	}

	if len(envelope.Detail) > 0 {
		var s string
		if err := json.Unmarshal(envelope.Detail, &s); err == nil {
			return s
		}
		var items []validationItem
		if err := json.Unmarshal(envelope.Detail, &items); err == nil && len(items) > 0 {
			parts := make([]string, 0, len(items))
			for _, it := range items {
				field := ""
				if n := len(it.Loc); n > 0 {
					field = fmt.Sprintf("%v", it.Loc[n-1])
				}
				if field != "" {
					parts = append(parts, field+": "+it.Msg)
				} else {
					parts = append(parts, it.Msg)
				}
			}
			return strings.Join(parts, "; ")
		}
	}
	return envelope.Message
}
