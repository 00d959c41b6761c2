// Copyright 2025 ZapBlob Authors
// SPDX-License-Identifier: Apache-2.0

package context

import (
	"context"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request ID to the service, so one logical
// operation can be correlated across client logs and server logs even when a
// step is retried.
const RequestIDHeader = "X-Zap-Request-Id"

type RequestID struct{}

// WithUUID returns a context carrying a request ID, minting one when the
// context has none. The ID is stable across retries of the same operation.
func WithUUID(c context.Context) (context.Context, string) {
	if id := c.Value(RequestID{}); id != nil {
		return c, id.(string)
	}
	newID := uuid.New().String()
	c = context.WithValue(c, RequestID{}, newID)
	return c, newID
}

// FromUUID attaches an externally supplied request ID.
func FromUUID(c context.Context, reqID string) context.Context {
	return context.WithValue(c, RequestID{}, reqID)
}
