// Package artifact stores serialized summaries under content-derived keys.
package artifact

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"horse.fit/safeagree/internal/fingerprint"
)

var (
	// ErrNotFound means no object exists under the key.
	ErrNotFound = errors.New("artifact not found")
	// ErrExists means the key is already taken. Objects are write-once.
	ErrExists = errors.New("artifact already exists")
)

const (
	keyPrefix = "policy_summary_"
	keySuffix = ".json"
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key        string
	Size       int64
	ModifiedAt time.Time
}

// KeyFor derives the storage key of the summary for a fingerprint.
func KeyFor(fp fingerprint.Fingerprint) string {
	return keyPrefix + fp.Hex() + keySuffix
}

// FingerprintOf recovers the fingerprint encoded in a key produced by KeyFor.
func FingerprintOf(key string) (fingerprint.Fingerprint, error) {
	if !strings.HasPrefix(key, keyPrefix) || !strings.HasSuffix(key, keySuffix) {
		return 0, fmt.Errorf("key %q is not a summary key", key)
	}
	return fingerprint.Parse(strings.TrimSuffix(strings.TrimPrefix(key, keyPrefix), keySuffix))
}

// ValidateKey rejects keys that could escape a flat namespace.
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return fmt.Errorf("artifact key is required")
	case strings.HasPrefix(key, "."):
		return fmt.Errorf("artifact key %q must not start with a dot", key)
	case strings.ContainsAny(key, `/\`):
		return fmt.Errorf("artifact key %q must not contain path separators", key)
	}
	return nil
}
