// Copyright 2025 ZapBlob Authors
// SPDX-License-Identifier: Apache-2.0

package blobclient

import (
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"

	sha256 "github.com/minio/sha256-simd"
)

// Request headers for customer-supplied keys. The raw key is sent per
// request and never stored by the service; only the SHA-256 fingerprint
// appears in object metadata.
const (
	headerEncryptionAlgorithm = "X-Zap-Encryption-Algorithm"
	headerEncryptionKey       = "X-Zap-Encryption-Key"
	headerEncryptionKeySHA256 = "X-Zap-Encryption-Key-Sha256"

	headerSourceEncryptionAlgorithm = "X-Zap-Copy-Source-Encryption-Algorithm"
	headerSourceEncryptionKey       = "X-Zap-Copy-Source-Encryption-Key"
	headerSourceEncryptionKeySHA256 = "X-Zap-Copy-Source-Encryption-Key-Sha256"

	headerContentChecksum = "X-Zap-Content-Crc64nvme"

	csekAlgorithm = "AES256"
)

// keyVersionSegment separates a key resource name from its version suffix in
// the kmsKeyName field returned by the service.
const keyVersionSegment = "/cryptoKeyVersions/"

// CustomerKey is a customer-supplied 32-byte encryption key (CSEK).
type CustomerKey struct {
	raw    []byte
	sha256 string
}

// NewCustomerKey creates a CustomerKey from 32 raw key bytes.
func NewCustomerKey(raw []byte) (*CustomerKey, error) {
	if len(raw) != 32 {
		return nil, newValidationError("blobclient.NewCustomerKey", "key must be exactly 32 bytes")
	}
	sum := sha256.Sum256(raw)
	key := &CustomerKey{
		raw:    append([]byte(nil), raw...),
		sha256: base64.StdEncoding.EncodeToString(sum[:]),
	}
	return key, nil
}

// SHA256 returns the base64 SHA-256 fingerprint of the key, as reported in
// object metadata.
func (k *CustomerKey) SHA256() string {
	return k.sha256
}

// apply sets the CSEK request headers for the operation's target object.
func (k *CustomerKey) apply(h http.Header) {
	h.Set(headerEncryptionAlgorithm, csekAlgorithm)
	h.Set(headerEncryptionKey, base64.StdEncoding.EncodeToString(k.raw))
	h.Set(headerEncryptionKeySHA256, k.sha256)
}

// applySource sets the CSEK request headers for a rewrite's source object.
func (k *CustomerKey) applySource(h http.Header) {
	h.Set(headerSourceEncryptionAlgorithm, csekAlgorithm)
	h.Set(headerSourceEncryptionKey, base64.StdEncoding.EncodeToString(k.raw))
	h.Set(headerSourceEncryptionKeySHA256, k.sha256)
}

// applyUploadKey annotates the request with the effective key for an upload.
// An explicit key (CSEK or CMEK) is sent as-is; with neither set, no
// annotation is sent and the service applies the bucket default, if any.
// The two explicit forms are never merged.
func applyUploadKey(op string, h http.Header, q url.Values, csek *CustomerKey, kmsKeyName string) error {
	if csek != nil && kmsKeyName != "" {
		return newValidationError(op, "CustomerKey and KMSKeyName are mutually exclusive")
	}
	if csek != nil {
		csek.apply(h)
		return nil
	}
	if kmsKeyName != "" {
		q.Set("kmsKeyName", kmsKeyName)
	}
	return nil
}

// StripKeyVersion removes the version suffix from a key resource name.
// A destination key carried over from existing object metadata may include
// the version; the service rejects versioned names on write requests.
func StripKeyVersion(kmsKeyName string) string {
	if i := strings.Index(kmsKeyName, keyVersionSegment); i >= 0 {
		return kmsKeyName[:i]
	}
	return kmsKeyName
}

// KeyPrefixMatches reports whether an object's kmsKeyName refers to the given
// key resource name. The service appends the key version in effect at write
// time, so equality comparison is wrong; only the exact name or the name
// followed by a version suffix matches. A sibling key whose resource name
// merely extends want (gcs-test vs gcs-test-alternate) does not.
func KeyPrefixMatches(kmsKeyName, want string) bool {
	if want == "" {
		return false
	}
	return kmsKeyName == want || strings.HasPrefix(kmsKeyName, want+keyVersionSegment)
}
