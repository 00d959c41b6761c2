// Copyright 2025 ZapBlob Authors
// SPDX-License-Identifier: Apache-2.0

package blobclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/LeeDigitalWorks/zapblob/pkg/logger"
	"github.com/LeeDigitalWorks/zapblob/pkg/types"
)

// RewriteSpec names the source and destination of a server-side rewrite.
// The same spec is passed unchanged to every step of one operation.
type RewriteSpec struct {
	SourceBucket string
	SourceName   string

	// SourceGeneration pins the rewrite to a specific source version.
	// Zero uses the latest.
	SourceGeneration int64

	// SourceCustomerKey must repeat the source object's CSEK when the source
	// is CSEK-encrypted. A source encrypted with a managed key needs nothing;
	// its existing key is reused transparently by the service.
	SourceCustomerKey *CustomerKey

	DestBucket string
	DestName   string

	// DestKMSKeyName re-encrypts the destination under a customer-managed
	// key. A version suffix carried over from existing object metadata is
	// stripped before sending. Mutually exclusive with DestCustomerKey.
	DestKMSKeyName string

	// DestCustomerKey re-encrypts the destination under a customer-supplied
	// key.
	DestCustomerKey *CustomerKey

	// IfGenerationMatch makes the destination write conditional on its
	// current generation.
	IfGenerationMatch *int64

	// MaxBytesPerCall caps the bytes rewritten by a single step. Zero lets
	// the service choose. The service may impose smaller chunks regardless,
	// e.g. when re-encrypting across storage locations.
	MaxBytesPerCall int64
}

func (s *RewriteSpec) validate(op string) error {
	if s.SourceBucket == "" || s.SourceName == "" {
		return newValidationError(op, "source bucket and name are required")
	}
	if s.DestBucket == "" || s.DestName == "" {
		return newValidationError(op, "destination bucket and name are required")
	}
	if s.DestCustomerKey != nil && s.DestKMSKeyName != "" {
		return newValidationError(op, "DestCustomerKey and DestKMSKeyName are mutually exclusive")
	}
	return nil
}

// RewriteStepResult is the outcome of one rewrite step.
type RewriteStepResult struct {
	// Token resumes the operation on the next step. Empty means the
	// operation is complete.
	Token string

	// BytesRewritten is the cumulative progress across all steps of the
	// operation. Non-decreasing; equals TotalBytes exactly at completion.
	BytesRewritten int64
	TotalBytes     int64

	Done bool

	// Resource is the destination object's metadata, set on the final step.
	Resource *types.ObjectInfo
}

// rewriteResponse is the service's wire format for a rewrite step.
type rewriteResponse struct {
	RewriteToken        string            `json:"rewriteToken,omitempty"`
	TotalBytesRewritten int64             `json:"totalBytesRewritten"`
	ObjectSize          int64             `json:"objectSize"`
	Done                bool              `json:"done"`
	Resource            *types.ObjectInfo `json:"resource,omitempty"`
}

// RewriteStep advances a rewrite operation by one service call. The first
// step passes an empty token; each later step passes the token returned by
// the previous one. The token is opaque and is forwarded unmodified.
//
// Transient failures are retried internally; the retried request carries the
// same token, so a step is idempotent and never loses progress already
// acknowledged by a prior step.
func (c *Client) RewriteStep(ctx context.Context, spec *RewriteSpec, token string) (*RewriteStepResult, error) {
	const op = "blobclient.RewriteStep"
	if err := spec.validate(op); err != nil {
		return nil, err
	}

	q := url.Values{}
	h := http.Header{}
	if token != "" {
		q.Set("rewriteToken", token)
	}
	if spec.SourceGeneration != 0 {
		q.Set("sourceGeneration", strconv.FormatInt(spec.SourceGeneration, 10))
	}
	if spec.DestKMSKeyName != "" {
		q.Set("destinationKmsKeyName", StripKeyVersion(spec.DestKMSKeyName))
	}
	if spec.IfGenerationMatch != nil {
		q.Set("ifGenerationMatch", strconv.FormatInt(*spec.IfGenerationMatch, 10))
	}
	if spec.MaxBytesPerCall != 0 {
		q.Set("maxBytesRewrittenPerCall", strconv.FormatInt(spec.MaxBytesPerCall, 10))
	}
	if spec.SourceCustomerKey != nil {
		spec.SourceCustomerKey.applySource(h)
	}
	if spec.DestCustomerKey != nil {
		spec.DestCustomerKey.apply(h)
	}

	path := objectPath(spec.SourceBucket, spec.SourceName) +
		"/rewriteTo" + objectPath(spec.DestBucket, spec.DestName)

	var resp rewriteResponse
	err := c.doJSON(ctx, &call{
		op:     op,
		method: http.MethodPost,
		path:   path,
		query:  q,
		header: h,
	}, &resp)
	if err != nil {
		return nil, err
	}
	rewriteStepsTotal.Inc()

	// Completion is defined by token absence.
	return &RewriteStepResult{
		Token:          resp.RewriteToken,
		BytesRewritten: resp.TotalBytesRewritten,
		TotalBytes:     resp.ObjectSize,
		Done:           resp.RewriteToken == "",
		Resource:       resp.Resource,
	}, nil
}

// Rewrite drives a rewrite operation to completion and returns the
// destination object's metadata. Progress invariants are checked across
// steps: BytesRewritten never decreases and equals TotalBytes at the end.
//
// Re-running a completed rewrite against an existing destination is safe;
// the destination is overwritten, not duplicated.
func (c *Client) Rewrite(ctx context.Context, spec *RewriteSpec) (*types.ObjectInfo, error) {
	const op = "blobclient.Rewrite"

	var token string
	var prev int64 = -1
	for {
		res, err := c.RewriteStep(ctx, spec, token)
		if err != nil {
			return nil, err
		}
		if res.BytesRewritten < prev {
			return nil, newInternalError(op, "rewrite progress went backwards")
		}
		prev = res.BytesRewritten

		logger.Ctx(ctx).Debug().
			Str("source", spec.SourceBucket+"/"+spec.SourceName).
			Str("dest", spec.DestBucket+"/"+spec.DestName).
			Int64("rewritten", res.BytesRewritten).
			Int64("total", res.TotalBytes).
			Bool("done", res.Done).
			Msg("rewrite step")

		if res.Done {
			if res.BytesRewritten != res.TotalBytes {
				return nil, newInternalError(op, "rewrite completed with partial progress")
			}
			return res.Resource, nil
		}
		token = res.Token
	}
}
