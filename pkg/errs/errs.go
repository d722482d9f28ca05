// Copyright 2025 Kadir Pekel
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

// Package errs defines the single error taxonomy used across the lookup
// pipeline. Components wrap underlying causes with fmt.Errorf("...: %w", ...)
// the way pkg/ratelimit and pkg/registry do; the HTTP/SSE layer maps Kind to
// a status code or SSE error event.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an Error for transport mapping and logging.
type Kind string

const (
	NotFound            Kind = "not_found"
	RateLimited         Kind = "rate_limited"
	ProviderError       Kind = "provider_error"
	UpstreamUnavailable Kind = "upstream_unavailable"
	LLMError            Kind = "llm_error"
	Timeout             Kind = "timeout"
	DeadlineExceeded    Kind = "deadline_exceeded"
	Cancelled           Kind = "cancelled"
	StorageError        Kind = "storage_error"
	CorruptedCache      Kind = "corrupted_cache"
	Internal            Kind = "internal"
)

// Error is the single typed error used across lexserve.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs an Error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap attaches Kind and Op to an existing error.
func Wrap(kind Kind, op string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Message: err.Error(), Cause: err}
}

// KindOf extracts the Kind from err, defaulting to Internal if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
