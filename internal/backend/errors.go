package backend

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a backend failure. The set is closed: every failure an
// adapter or the pipeline can surface maps to exactly one of these.
type Kind string

const (
	KindConnection          Kind = "connection_error"
	KindContentFiltered     Kind = "content_filtered"
	KindEmptyResponse       Kind = "empty_response"
	KindProtocol            Kind = "protocol_error"
	KindFallbackUnavailable Kind = "fallback_unavailable"
)

// Error is a classified backend failure. Status and Body are set for
// KindProtocol and KindContentFiltered; Err carries the underlying
// transport error for KindConnection.
type Error struct {
	Kind    Kind
	Backend string
	Message string
	Status  int
	Body    string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindProtocol, KindContentFiltered:
		return fmt.Sprintf("%s: %s (status %d): %s", e.Backend, e.Message, e.Status, e.Body)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Backend, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Backend, e.Message)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, or "" if err is not a
// backend error.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}

// Classifier decides whether a non-200 response body indicates
// content-policy filtering rather than a plain protocol failure.
type Classifier func(status int, body string) bool

// DefaultClassifier matches the proxy's behavior: any error body
// containing "filtered" (case-insensitive) is treated as content
// filtering. Brittle, but compatible; swap in a stricter Classifier if
// the backend grows a structured error code.
func DefaultClassifier(status int, body string) bool {
	return strings.Contains(strings.ToLower(body), "filtered")
}

// ClassifyStatus maps a non-200 response to a classified error using cl
// (nil means DefaultClassifier).
func ClassifyStatus(name string, cl Classifier, status int, body string) *Error {
	if cl == nil {
		cl = DefaultClassifier
	}
	if cl(status, body) {
		return &Error{
			Kind:    KindContentFiltered,
			Backend: name,
			Message: "content filtered",
			Status:  status,
			Body:    body,
		}
	}
	return &Error{
		Kind:    KindProtocol,
		Backend: name,
		Message: "api error",
		Status:  status,
		Body:    body,
	}
}
