// Package fingerprint derives the content address used to deduplicate
// normalized documents.
package fingerprint

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
)

// Algorithm names the hash function. Changing it invalidates every stored key.
const Algorithm = "fnv1a-64"

// Fingerprint is the 64-bit FNV-1a digest of canonical text.
type Fingerprint uint64

// Of hashes the UTF-8 bytes of text.
func Of(text string) Fingerprint {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	return Fingerprint(h.Sum64())
}

// Hex renders the fingerprint as 16 zero-padded lowercase hex digits.
func (f Fingerprint) Hex() string {
	return fmt.Sprintf("%016x", uint64(f))
}

func (f Fingerprint) String() string {
	return f.Hex()
}

// Parse reverses Hex.
func Parse(raw string) (Fingerprint, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	if len(value) != 16 {
		return 0, fmt.Errorf("fingerprint %q: want 16 hex digits", raw)
	}
	parsed, err := strconv.ParseUint(value, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("fingerprint %q: %w", raw, err)
	}
	return Fingerprint(parsed), nil
}

func (f Fingerprint) MarshalText() ([]byte, error) {
	return []byte(f.Hex()), nil
}

func (f *Fingerprint) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}
