// Copyright 2025 The Velox Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors of the exchange engine.
var (
	// ErrHeadersAlreadyWritten reports a header or cookie mutation after
	// the response headers were flushed to the transport.
	ErrHeadersAlreadyWritten = errors.New("web: headers already written")

	// ErrBodyAlreadySelected reports a second view selection on a request
	// body.
	ErrBodyAlreadySelected = errors.New("web: body view already selected")

	// ErrConnectionClosed reports transport-level termination mid
	// exchange.
	ErrConnectionClosed = errors.New("web: connection closed")
)

// Error is a web-level fault carrying the HTTP status it maps to and
// optional response headers attached during error recovery.
// Its HTTPStatus method reports that status.
type Error struct {
	Status  int
	Message string
	Headers map[string]string
	Cause   error
}

// Error implements error.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

// HTTPStatus returns the status the error maps to.
func (e *Error) HTTPStatus() int { return e.Status }

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Cause }

// NewBadRequest reports an invalid decoded request.
func NewBadRequest(format string, args ...any) *Error {
	return &Error{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

// NewNotFound reports a missing web resource.
func NewNotFound(target string) *Error {
	return &Error{Status: http.StatusNotFound, Message: "no resource at " + target}
}

// NewMethodNotAllowed reports a known target with an unsupported method;
// the permitted methods travel in the Allow header.
func NewMethodNotAllowed(allowed ...string) *Error {
	return &Error{
		Status:  http.StatusMethodNotAllowed,
		Message: "method not allowed",
		Headers: map[string]string{"allow": strings.Join(allowed, ", ")},
	}
}

// NewServiceUnavailable reports a temporarily unavailable service with a
// Retry-After hint.
func NewServiceUnavailable(retryAfter time.Duration) *Error {
	return &Error{
		Status:  http.StatusServiceUnavailable,
		Message: "service unavailable",
		Headers: map[string]string{"retry-after": strconv.Itoa(int(retryAfter / time.Second))},
	}
}

// NewPayloadTooLarge reports a request body over the configured limit.
func NewPayloadTooLarge(limit int64) *Error {
	return &Error{Status: http.StatusRequestEntityTooLarge,
		Message: fmt.Sprintf("payload exceeds %d bytes", limit)}
}

// NewInternalServerError wraps an unclassified failure.
func NewInternalServerError(cause error) *Error {
	return &Error{Status: http.StatusInternalServerError, Message: "internal server error", Cause: cause}
}

// NewRequestTimeout reports a per-request deadline exceeded.
func NewRequestTimeout(timeout time.Duration) *Error {
	return &Error{
		Status:  http.StatusRequestTimeout,
		Message: fmt.Sprintf("Exceeded timeout %dms", timeout.Milliseconds()),
	}
}

// StatusOf resolves the HTTP status an error maps to: a web Error's own
// status, or 500 for anything unclassified.
func StatusOf(err error) int {
	var we *Error
	if errors.As(err, &we) {
		return we.Status
	}
	return http.StatusInternalServerError
}
