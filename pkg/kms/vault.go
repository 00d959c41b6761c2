// Copyright 2025 ZapBlob Authors
// SPDX-License-Identifier: Apache-2.0

package kms

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"time"

	vault "github.com/hashicorp/vault/api"
)

// VaultProvider implements the Provider interface for HashiCorp Vault Transit
type VaultProvider struct {
	client    *vault.Client
	config    VaultConfig
	mountPath string
}

// NewVaultProvider creates a new Vault Transit provider
func NewVaultProvider(ctx context.Context, cfg VaultConfig) (*VaultProvider, error) {
	if cfg.MountPath == "" {
		cfg.MountPath = "transit"
	}

	vaultCfg := vault.DefaultConfig()
	vaultCfg.Address = cfg.Address

	if cfg.TLSInsecure {
		vaultCfg.HttpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	} else if cfg.TLSCACert != "" {
		if err := vaultCfg.ConfigureTLS(&vault.TLSConfig{
			CACert: cfg.TLSCACert,
		}); err != nil {
			return nil, fmt.Errorf("failed to configure Vault TLS: %w", err)
		}
	}

	client, err := vault.NewClient(vaultCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	// Set token (from config or environment)
	token := cfg.Token
	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}
	if token != "" {
		client.SetToken(token)
	}

	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	// Verify connection
	if _, err := client.Sys().HealthWithContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to Vault: %w", err)
	}

	return &VaultProvider{
		client:    client,
		config:    cfg,
		mountPath: cfg.MountPath,
	}, nil
}

// Name returns the provider name
func (p *VaultProvider) Name() string {
	return "vault"
}

// transitPath returns the full path for a transit operation
func (p *VaultProvider) transitPath(op, keyName string) string {
	return fmt.Sprintf("%s/%s/%s", p.mountPath, op, keyName)
}

// DescribeKey returns metadata about a Vault Transit key
func (p *VaultProvider) DescribeKey(ctx context.Context, keyID string) (*KeyMetadata, error) {
	secret, err := p.client.Logical().ReadWithContext(ctx, p.transitPath("keys", keyID))
	if err != nil {
		return nil, fmt.Errorf("Vault Transit describe key failed: %w", err)
	}
	if secret == nil {
		return nil, ErrKeyNotFound
	}

	km := &KeyMetadata{
		KeyID:    keyID,
		ARN:      fmt.Sprintf("vault:%s/keys/%s", p.mountPath, keyID),
		Provider: "vault",
		KeyState: KeyStateEnabled, // Vault keys are enabled by default
	}

	if name, ok := secret.Data["name"].(string); ok {
		km.Alias = name
	}

	if deletable, ok := secret.Data["deletion_allowed"].(bool); ok && deletable {
		km.KeyState = KeyStatePendingDeletion
	}

	// Vault doesn't expose a creation date for transit keys
	km.CreationDate = time.Now()

	return km, nil
}

// Close releases resources (no-op for Vault)
func (p *VaultProvider) Close() error {
	return nil
}

var _ Provider = (*VaultProvider)(nil)
