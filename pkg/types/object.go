package types

import "github.com/google/uuid"

// ObjectInfo is the metadata record the service keeps for each object version.
type ObjectInfo struct {
	ID     uuid.UUID `json:"id"`
	Bucket string    `json:"bucket"`
	Name   string    `json:"name"`

	// Generation is assigned by the service on each successful write and
	// increases monotonically per object name.
	Generation     int64 `json:"generation"`
	Metageneration int64 `json:"metageneration"`

	Size      int64  `json:"size"`
	ETag      string `json:"etag"`
	CreatedAt int64  `json:"created_at"` // Unix timestamp
	UpdatedAt int64  `json:"updated_at"`

	// Checksum is the CRC64-NVME of the object content, hex encoded.
	Checksum string `json:"checksum,omitempty"`

	// Encryption metadata. At most one of the following is set.
	// KMSKeyName is the customer-managed key resource name; the service may
	// append a key version suffix, so callers compare by prefix.
	KMSKeyName string `json:"kmsKeyName,omitempty"`
	// CustomerKeySHA256 is the base64 SHA-256 of the customer-supplied key.
	// The key itself is never stored.
	CustomerKeySHA256 string `json:"customerKeySha256,omitempty"`
}

// HasKMSKey reports whether the object is encrypted with a customer-managed key.
func (o *ObjectInfo) HasKMSKey() bool {
	return o.KMSKeyName != ""
}

// HasCustomerKey reports whether the object is encrypted with a
// customer-supplied key.
func (o *ObjectInfo) HasCustomerKey() bool {
	return o.CustomerKeySHA256 != ""
}

// BucketInfo is the metadata record for a bucket.
type BucketInfo struct {
	Name           string `json:"name"`
	Metageneration int64  `json:"metageneration"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`

	// DefaultKMSKeyName, when set, is applied by the service to uploads that
	// carry no explicit key. Changes propagate asynchronously to object writes.
	DefaultKMSKeyName string `json:"defaultKmsKeyName,omitempty"`
}
