package gateway

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind classifies a failed backend call.
type Kind string

const (
	// KindNetwork means no response was received (DNS, refused, timeout,
	// cancelled context).
	KindNetwork Kind = "network"
	// KindHTTP means the backend answered with a non-2xx status.
	KindHTTP Kind = "http"
	// KindParse means the body could not be decoded as expected.
	KindParse Kind = "parse"
	// KindApplication means the backend answered {success: false}.
	KindApplication Kind = "application"
	// KindAuthRequired means the backend rejected the session (401/403).
	KindAuthRequired Kind = "auth_required"
)

// Error is the failure half of a Result. It implements error so callers
// can hand it to errors.As and to logs.
type Error struct {
	Kind     Kind   `json:"kind"`
	Status   int    `json:"status,omitempty"`
	Message  string `json:"message"`
	Endpoint string `json:"endpoint"`
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("gateway: %s %s (%d): %s", e.Endpoint, e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("gateway: %s %s: %s", e.Endpoint, e.Kind, e.Message)
}

// Result is the uniform outcome of a backend call: either OK with Data, or
// a failure described by Kind, Status and Message.
type Result[T any] struct {
	OK       bool
	Data     T
	Kind     Kind
	Status   int
	Message  string
	Endpoint string
	Duration time.Duration
}

// Err returns the failure as an *Error, or nil when the call succeeded.
func (r Result[T]) Err() error {
	if r.OK {
		return nil
	}
	return &Error{Kind: r.Kind, Status: r.Status, Message: r.Message, Endpoint: r.Endpoint}
}

// Outcome is the metrics label for r.
func (r Result[T]) Outcome() string {
	if r.OK {
		return "ok"
	}
	return string(r.Kind)
}

func fail[T any](endpoint string, kind Kind, status int, msg string) Result[T] {
	return Result[T]{Kind: kind, Status: status, Message: msg, Endpoint: endpoint}
}

// decode converts a raw result into a typed one. A payload that does not
// fit T becomes a KindParse failure.
func decode[T any](raw Result[json.RawMessage]) Result[T] {
	out := Result[T]{
		OK:       raw.OK,
		Kind:     raw.Kind,
		Status:   raw.Status,
		Message:  raw.Message,
		Endpoint: raw.Endpoint,
		Duration: raw.Duration,
	}
	if !raw.OK || len(raw.Data) == 0 {
		return out
	}
	if err := json.Unmarshal(raw.Data, &out.Data); err != nil {
		out.OK = false
		out.Kind = KindParse
		out.Message = fmt.Sprintf("decode %s payload: %v", raw.Endpoint, err)
	}
	return out
}

// decodeList accepts either a bare JSON array or an object holding the
// array under key.
func decodeList[T any](raw Result[json.RawMessage], key string) Result[[]T] {
	out := Result[[]T]{
		OK:       raw.OK,
		Kind:     raw.Kind,
		Status:   raw.Status,
		Message:  raw.Message,
		Endpoint: raw.Endpoint,
		Duration: raw.Duration,
	}
	if !raw.OK {
		return out
	}
	out.Data = []T{}
	if len(raw.Data) == 0 || string(raw.Data) == "null" {
		return out
	}

	var list []T
	if err := json.Unmarshal(raw.Data, &list); err == nil {
		if list != nil {
			out.Data = list
		}
		return out
	}

	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw.Data, &wrapped); err == nil {
		if inner, ok := wrapped[key]; ok {
			if err := json.Unmarshal(inner, &list); err == nil {
				if list != nil {
					out.Data = list
				}
				return out
			}
		}
	}

	out.OK = false
	out.Kind = KindParse
	out.Message = fmt.Sprintf("decode %s payload: expected %s list", raw.Endpoint, key)
	return out
}
