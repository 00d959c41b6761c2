// Copyright 2025 ZapBlob Authors
// SPDX-License-Identifier: Apache-2.0

// Package kms verifies customer-managed keys against the external Key
// Management Service before they are referenced in upload or rewrite
// requests. The blobclient core never validates key names itself; this
// package is an optional pre-flight used by tooling.
//
// Supported KMS providers:
// - AWS KMS
// - HashiCorp Vault Transit
package kms

import (
	"context"
	"errors"
	"time"
)

// Provider errors
var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrKeyDisabled     = errors.New("key is disabled")
	ErrInvalidKeyState = errors.New("invalid key state")
)

// KeyState represents the state of a KMS key
type KeyState string

const (
	KeyStateEnabled         KeyState = "Enabled"
	KeyStateDisabled        KeyState = "Disabled"
	KeyStatePendingDeletion KeyState = "PendingDeletion"
)

// KeyMetadata holds metadata about a KMS key
type KeyMetadata struct {
	KeyID        string
	ARN          string // Provider-specific ARN or identifier
	Alias        string // Human-readable alias
	CreationDate time.Time
	KeyState     KeyState
	Provider     string // aws, vault
}

// Provider defines the interface for KMS key lookup
type Provider interface {
	// Name returns the provider name (aws, vault)
	Name() string

	// DescribeKey returns metadata about a key
	DescribeKey(ctx context.Context, keyID string) (*KeyMetadata, error)

	// Close releases any resources held by the provider
	Close() error
}

// Config holds common configuration for KMS providers
type Config struct {
	// Provider type: aws, vault
	Provider string `json:"provider"`

	// AWS KMS configuration
	AWS *AWSConfig `json:"aws,omitempty"`

	// HashiCorp Vault configuration
	Vault *VaultConfig `json:"vault,omitempty"`
}

// AWSConfig holds AWS KMS configuration
type AWSConfig struct {
	Region          string `json:"region"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	Endpoint        string `json:"endpoint,omitempty"` // For LocalStack/testing
}

// VaultConfig holds HashiCorp Vault Transit configuration
type VaultConfig struct {
	Address     string `json:"address"`               // Vault server address
	Token       string `json:"token,omitempty"`       // Vault token (or use VAULT_TOKEN env)
	MountPath   string `json:"mount_path,omitempty"`  // Transit mount path (default: transit)
	Namespace   string `json:"namespace,omitempty"`   // Vault namespace (enterprise)
	TLSCACert   string `json:"tls_ca_cert,omitempty"` // CA cert for TLS verification
	TLSInsecure bool   `json:"tls_insecure,omitempty"`
}

// NewProvider creates a new KMS provider based on configuration
func NewProvider(ctx context.Context, cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "aws":
		if cfg.AWS == nil {
			return nil, errors.New("AWS KMS configuration required")
		}
		return NewAWSProvider(ctx, *cfg.AWS)
	case "vault":
		if cfg.Vault == nil {
			return nil, errors.New("vault configuration required")
		}
		return NewVaultProvider(ctx, *cfg.Vault)
	default:
		return nil, errors.New("unsupported KMS provider: " + cfg.Provider)
	}
}

// VerifyKey checks that the key exists and is usable for encryption.
// A key in any state other than Enabled fails verification.
func VerifyKey(ctx context.Context, p Provider, keyID string) error {
	meta, err := p.DescribeKey(ctx, keyID)
	if err != nil {
		return err
	}
	switch meta.KeyState {
	case KeyStateEnabled:
		return nil
	case KeyStateDisabled:
		return ErrKeyDisabled
	case KeyStatePendingDeletion:
		return ErrInvalidKeyState
	default:
		return ErrInvalidKeyState
	}
}
