// Copyright 2025 ZapBlob Authors
// SPDX-License-Identifier: Apache-2.0

package blobclient

import (
	"context"
	"time"

	"github.com/LeeDigitalWorks/zapblob/pkg/logger"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds the retry loop applied to transient failures.
// Operations wrapped by it are idempotent at the semantic level: reads,
// conditional writes, metadata patches, and rewrite steps.
type RetryPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// MaxElapsedTime caps the whole retry loop. Zero means no cap.
	MaxElapsedTime time.Duration
	// MaxAttempts is the total number of tries including the first.
	// Zero means unlimited within MaxElapsedTime.
	MaxAttempts uint64
}

// DefaultRetryPolicy matches the service's published rate-limit guidance.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 250 * time.Millisecond,
		MaxInterval:     8 * time.Second,
		Multiplier:      2.0,
		MaxElapsedTime:  60 * time.Second,
		MaxAttempts:     10,
	}
}

func (p RetryPolicy) newBackOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	if p.Multiplier > 0 {
		eb.Multiplier = p.Multiplier
	}
	eb.MaxElapsedTime = p.MaxElapsedTime

	var bo backoff.BackOff = eb
	if p.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(bo, p.MaxAttempts-1)
	}
	return backoff.WithContext(bo, ctx)
}

// retryTransient runs fn, retrying while it fails with a transient error.
// Any other failure aborts the loop and is surfaced unchanged, so a
// precondition conflict is never masked by a retry.
func retryTransient(ctx context.Context, policy RetryPolicy, op string, fn func() error) error {
	wrapped := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, next time.Duration) {
		retriesTotal.WithLabelValues(op).Inc()
		logger.Ctx(ctx).Debug().
			Err(err).
			Str("op", op).
			Dur("backoff", next).
			Msg("retrying transient failure")
	}

	return backoff.RetryNotify(wrapped, policy.newBackOff(ctx), notify)
}
