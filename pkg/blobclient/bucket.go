// Copyright 2025 ZapBlob Authors
// SPDX-License-Identifier: Apache-2.0

package blobclient

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/LeeDigitalWorks/zapblob/pkg/types"
)

// GetBucket reads the bucket's current configuration.
func (c *Client) GetBucket(ctx context.Context, bucket string) (*types.BucketInfo, error) {
	const op = "blobclient.GetBucket"

	var info types.BucketInfo
	err := c.doJSON(ctx, &call{
		op:     op,
		method: http.MethodGet,
		path:   bucketPath(bucket),
	}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// PatchBucketDefaultKey sets the bucket's default customer-managed key, or
// clears it when keyName is nil. The patch is acknowledged once the bucket
// record is updated; object writes may not observe the new default
// immediately (see AwaitObjectKMSKeyName).
func (c *Client) PatchBucketDefaultKey(ctx context.Context, bucket string, keyName *string) (*types.BucketInfo, error) {
	const op = "blobclient.PatchBucketDefaultKey"

	body, err := json.Marshal(map[string]*string{"defaultKmsKeyName": keyName})
	if err != nil {
		return nil, newValidationError(op, err.Error())
	}

	h := http.Header{}
	h.Set("Content-Type", "application/json")

	var info types.BucketInfo
	err = c.doJSON(ctx, &call{
		op:     op,
		method: http.MethodPatch,
		path:   bucketPath(bucket),
		header: h,
		body:   body,
	}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}
