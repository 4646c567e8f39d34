package mutation

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// MarshalBatch serialises a Batch to JSON.
func MarshalBatch(b *Batch) ([]byte, error) {
	return json.Marshal(b)
}

// UnmarshalBatch deserialises a Batch from JSON.
func UnmarshalBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// HashHTML returns the SHA-256 hex digest of raw HTML bytes. Used to
// detect no-op document resets.
func HashHTML(html []byte) string {
	h := sha256.Sum256(html)
	return fmt.Sprintf("%x", h)
}
