// Copyright 2025 ZapBlob Authors
// SPDX-License-Identifier: Apache-2.0

package blobclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies client errors into the retry-relevant categories.
type ErrorCode int

const (
	ErrCodeNone ErrorCode = iota

	// ErrCodeTransient covers rate limiting and server errors (429, 5xx) and
	// network failures. Safe to retry with backoff.
	ErrCodeTransient

	// ErrCodePreconditionFailed means an ifGenerationMatch condition did not
	// hold (412). Never retried: a retry could mask a concurrent-write conflict.
	ErrCodePreconditionFailed

	// ErrCodeNotFound means the object or bucket does not exist (404).
	ErrCodeNotFound

	// ErrCodePermanent covers the remaining 4xx responses (bad request,
	// permission denied). The operation is aborted, no retry.
	ErrCodePermanent

	// ErrCodePropagationTimeout means a poll for an eventually-consistent
	// field did not observe it within its deadline.
	ErrCodePropagationTimeout

	// ErrCodeValidation is a client-side argument error; the request was
	// never sent.
	ErrCodeValidation

	// ErrCodeInternal is a client-side invariant violation, such as rewrite
	// progress going backwards.
	ErrCodeInternal
)

// Error is the error type returned by all Client operations.
type Error struct {
	Code       ErrorCode
	StatusCode int // HTTP status, 0 for client-side errors
	Op         string
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (http %d)", e.Op, e.Message, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status to an ErrorCode.
func classifyStatus(status int) ErrorCode {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrCodeTransient
	case status >= 500:
		return ErrCodeTransient
	case status == http.StatusPreconditionFailed:
		return ErrCodePreconditionFailed
	case status == http.StatusNotFound:
		return ErrCodeNotFound
	default:
		return ErrCodePermanent
	}
}

// Error constructors

func newValidationError(op, msg string) *Error {
	return &Error{Code: ErrCodeValidation, Op: op, Message: msg}
}

func newTransportError(op string, err error) *Error {
	return &Error{Code: ErrCodeTransient, Op: op, Message: "request failed", Err: err}
}

func newInternalError(op, msg string) *Error {
	return &Error{Code: ErrCodeInternal, Op: op, Message: msg}
}

func errCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrCodeNone
}

// IsTransient checks if an error is retryable with backoff.
func IsTransient(err error) bool {
	return errCode(err) == ErrCodeTransient
}

// IsPreconditionFailed checks if an error is a generation-match conflict.
func IsPreconditionFailed(err error) bool {
	return errCode(err) == ErrCodePreconditionFailed
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	return errCode(err) == ErrCodeNotFound
}

// IsPropagationTimeout checks if an error is a propagation poll timeout.
func IsPropagationTimeout(err error) bool {
	return errCode(err) == ErrCodePropagationTimeout
}
