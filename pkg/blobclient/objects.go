// Copyright 2025 ZapBlob Authors
// SPDX-License-Identifier: Apache-2.0

package blobclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/LeeDigitalWorks/zapblob/pkg/types"

	"github.com/minio/crc64nvme"
)

// UploadOptions carries the optional parameters of UploadObject.
type UploadOptions struct {
	// CustomerKey encrypts the object with a customer-supplied key.
	// Mutually exclusive with KMSKeyName.
	CustomerKey *CustomerKey

	// KMSKeyName encrypts the object with a customer-managed key, overriding
	// any bucket default.
	KMSKeyName string

	// IfGenerationMatch makes the write conditional on the object's current
	// generation. The value is forwarded as-is; the service evaluates it at
	// execution time and fails the write with a precondition error on
	// mismatch. Use 0 to require that the object does not exist yet.
	IfGenerationMatch *int64
}

// DownloadOptions carries the optional parameters of DownloadObject.
type DownloadOptions struct {
	// CustomerKey must repeat the key the object was uploaded with when the
	// object is CSEK-encrypted.
	CustomerKey *CustomerKey

	// Generation pins the read to a specific object version. Zero reads the
	// latest.
	Generation int64
}

// DeleteOptions carries the optional parameters of DeleteObject.
type DeleteOptions struct {
	IfGenerationMatch *int64
}

func contentChecksum(data []byte) string {
	h := crc64nvme.New()
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}

// UploadObject writes data as bucket/name and returns the new version's
// metadata. See UploadOptions for key selection and preconditions.
func (c *Client) UploadObject(ctx context.Context, bucket, name string, data []byte, opts *UploadOptions) (*types.ObjectInfo, error) {
	const op = "blobclient.UploadObject"
	if opts == nil {
		opts = &UploadOptions{}
	}

	q := url.Values{}
	h := http.Header{}
	if err := applyUploadKey(op, h, q, opts.CustomerKey, opts.KMSKeyName); err != nil {
		return nil, err
	}
	if opts.IfGenerationMatch != nil {
		q.Set("ifGenerationMatch", strconv.FormatInt(*opts.IfGenerationMatch, 10))
	}
	h.Set(headerContentChecksum, contentChecksum(data))
	h.Set("Content-Type", "application/octet-stream")

	var info types.ObjectInfo
	err := c.doJSON(ctx, &call{
		op:     op,
		method: http.MethodPost,
		path:   objectPath(bucket, name),
		query:  q,
		header: h,
		body:   data,
	}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// GetObjectMetadata reads the current metadata of bucket/name.
func (c *Client) GetObjectMetadata(ctx context.Context, bucket, name string) (*types.ObjectInfo, error) {
	const op = "blobclient.GetObjectMetadata"

	var info types.ObjectInfo
	err := c.doJSON(ctx, &call{
		op:     op,
		method: http.MethodGet,
		path:   objectPath(bucket, name),
	}, &info)
	if err != nil {
		return nil, err
	}
	return &info, nil
}

// DownloadObject reads the content of bucket/name.
func (c *Client) DownloadObject(ctx context.Context, bucket, name string, opts *DownloadOptions) ([]byte, error) {
	const op = "blobclient.DownloadObject"
	if opts == nil {
		opts = &DownloadOptions{}
	}

	q := url.Values{}
	q.Set("alt", "media")
	if opts.Generation != 0 {
		q.Set("generation", strconv.FormatInt(opts.Generation, 10))
	}
	h := http.Header{}
	if opts.CustomerKey != nil {
		opts.CustomerKey.apply(h)
	}

	return c.doRaw(ctx, &call{
		op:     op,
		method: http.MethodGet,
		path:   objectPath(bucket, name),
		query:  q,
		header: h,
	})
}

// ListOptions carries the optional parameters of ListObjects.
type ListOptions struct {
	// Prefix restricts the listing to object names starting with it.
	Prefix string
}

type listResponse struct {
	Items []*types.ObjectInfo `json:"items"`
}

// ListObjects returns the metadata of the bucket's current object versions,
// ordered by name. The entries carry the same encryption metadata as
// GetObjectMetadata, so a listing can confirm which key a write ended up
// under without a per-object read.
func (c *Client) ListObjects(ctx context.Context, bucket string, opts *ListOptions) ([]*types.ObjectInfo, error) {
	const op = "blobclient.ListObjects"
	if opts == nil {
		opts = &ListOptions{}
	}

	q := url.Values{}
	if opts.Prefix != "" {
		q.Set("prefix", opts.Prefix)
	}

	var resp listResponse
	err := c.doJSON(ctx, &call{
		op:     op,
		method: http.MethodGet,
		path:   bucketPath(bucket) + "/o",
		query:  q,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// DeleteObject removes bucket/name. Deleting a missing object returns a
// not-found error; callers that want idempotent cleanup check IsNotFound.
func (c *Client) DeleteObject(ctx context.Context, bucket, name string, opts *DeleteOptions) error {
	const op = "blobclient.DeleteObject"
	if opts == nil {
		opts = &DeleteOptions{}
	}

	q := url.Values{}
	if opts.IfGenerationMatch != nil {
		q.Set("ifGenerationMatch", strconv.FormatInt(*opts.IfGenerationMatch, 10))
	}

	return c.doJSON(ctx, &call{
		op:     op,
		method: http.MethodDelete,
		path:   objectPath(bucket, name),
		query:  q,
	}, nil)
}
