// Copyright 2025 ZapBlob Authors
// SPDX-License-Identifier: Apache-2.0

package blobclient

import (
	"context"
	"time"

	"github.com/LeeDigitalWorks/zapblob/pkg/types"
)

// Bucket configuration changes are acknowledged synchronously but take
// effect on object writes asynchronously. Code that uploads right after
// patching the default key either waits out DefaultPropagationWait or polls
// the uploaded object's metadata until the key field appears.

// DefaultPropagationWait is the service's documented upper bound for a
// bucket config change to reach all object writers.
const DefaultPropagationWait = 12 * time.Second

// PollConfig bounds a propagation poll.
type PollConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval: time.Second,
		Timeout:  90 * time.Second,
	}
}

// PollUntil repeatedly invokes fetch until ready reports true for its result
// or the timeout elapses. A not-found error and a not-ready result both count
// as not-yet-propagated, not as failure; any other fetch error aborts the
// poll. On timeout the returned error has code ErrCodePropagationTimeout.
func PollUntil[T any](ctx context.Context, cfg PollConfig, op string, fetch func(context.Context) (T, error), ready func(T) bool) (T, error) {
	var zero T
	if cfg.Interval == 0 {
		cfg.Interval = DefaultPollConfig().Interval
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultPollConfig().Timeout
	}

	pollCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	timeout := func() *Error {
		return &Error{
			Code:    ErrCodePropagationTimeout,
			Op:      op,
			Message: "condition not observed within " + cfg.Timeout.String(),
			Err:     pollCtx.Err(),
		}
	}

	for {
		v, err := fetch(pollCtx)
		switch {
		case err == nil && ready(v):
			return v, nil
		case err != nil && !IsNotFound(err):
			// The deadline can expire while a fetch is in flight; that
			// surfaces as a transport error from the fetch, not as the
			// timer below. Report it as a timeout unless the caller's own
			// context is what ended the poll.
			if pollCtx.Err() != nil && ctx.Err() == nil {
				return zero, timeout()
			}
			return zero, err
		}
		propagationPollsTotal.Inc()

		select {
		case <-pollCtx.Done():
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, timeout()
		case <-time.After(cfg.Interval):
		}
	}
}

// AwaitConfigPropagation blocks for the fixed post-patch propagation window.
func (c *Client) AwaitConfigPropagation(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(DefaultPropagationWait):
		return nil
	}
}

// AwaitObjectKMSKeyName polls bucket/name's metadata until its kmsKeyName
// field is populated. Absence is treated as not-yet-propagated, not as error.
func (c *Client) AwaitObjectKMSKeyName(ctx context.Context, bucket, name string, cfg PollConfig) (*types.ObjectInfo, error) {
	return PollUntil(ctx, cfg, "blobclient.AwaitObjectKMSKeyName",
		func(ctx context.Context) (*types.ObjectInfo, error) {
			return c.GetObjectMetadata(ctx, bucket, name)
		},
		func(info *types.ObjectInfo) bool {
			return info.HasKMSKey()
		},
	)
}

// AwaitBucketDefaultKey polls the bucket until its default key reads as want.
// An empty want waits for the default to be cleared.
func (c *Client) AwaitBucketDefaultKey(ctx context.Context, bucket, want string, cfg PollConfig) (*types.BucketInfo, error) {
	return PollUntil(ctx, cfg, "blobclient.AwaitBucketDefaultKey",
		func(ctx context.Context) (*types.BucketInfo, error) {
			return c.GetBucket(ctx, bucket)
		},
		func(info *types.BucketInfo) bool {
			return info.DefaultKMSKeyName == want
		},
	)
}
