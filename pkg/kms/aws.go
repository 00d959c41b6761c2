// Copyright 2025 ZapBlob Authors
// SPDX-License-Identifier: Apache-2.0

package kms

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/kms/types"
)

// AWSProvider implements the Provider interface for AWS KMS
type AWSProvider struct {
	client *kms.Client
	config AWSConfig
}

// NewAWSProvider creates a new AWS KMS provider
func NewAWSProvider(ctx context.Context, cfg AWSConfig) (*AWSProvider, error) {
	var opts []func(*config.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	// Use explicit credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID,
				cfg.SecretAccessKey,
				"",
			),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var kmsOpts []func(*kms.Options)

	// Custom endpoint (for LocalStack/testing)
	if cfg.Endpoint != "" {
		kmsOpts = append(kmsOpts, func(o *kms.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &AWSProvider{
		client: kms.NewFromConfig(awsCfg, kmsOpts...),
		config: cfg,
	}, nil
}

// Name returns the provider name
func (p *AWSProvider) Name() string {
	return "aws"
}

// DescribeKey returns metadata about a key
func (p *AWSProvider) DescribeKey(ctx context.Context, keyID string) (*KeyMetadata, error) {
	output, err := p.client.DescribeKey(ctx, &kms.DescribeKeyInput{
		KeyId: aws.String(keyID),
	})
	if err != nil {
		var notFound *types.NotFoundException
		if errors.As(err, &notFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("AWS KMS describe key failed: %w", err)
	}

	meta := output.KeyMetadata
	km := &KeyMetadata{
		KeyID:        aws.ToString(meta.KeyId),
		ARN:          aws.ToString(meta.Arn),
		CreationDate: aws.ToTime(meta.CreationDate),
		Provider:     "aws",
	}

	switch meta.KeyState {
	case types.KeyStateEnabled:
		km.KeyState = KeyStateEnabled
	case types.KeyStateDisabled:
		km.KeyState = KeyStateDisabled
	case types.KeyStatePendingDeletion:
		km.KeyState = KeyStatePendingDeletion
	default:
		km.KeyState = KeyStateDisabled
	}

	return km, nil
}

// Close releases resources (no-op for AWS)
func (p *AWSProvider) Close() error {
	return nil
}

var _ Provider = (*AWSProvider)(nil)
