package domain

import (
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"strings"

	"go.einride.tech/aip/resourcename"
)

// tokenResourcePattern is the canonical resource name shape for tokens.
const tokenResourcePattern = "collections/{collection}/tokens/{token}"

// DeriveTokenAddress computes the globally unique address for a token as a
// pure function of its creator, collection, and display name. Callers can
// recompute addresses offline without querying the registry.
//
// Each field is length-prefixed before hashing so no two distinct tuples can
// collide by concatenation. The first 16 digest bytes are base32-encoded
// without padding, lowercase: a 26-character URL-safe address.
func DeriveTokenAddress(creator, collection, name string) string {
	h := sha256.New()
	for _, field := range []string{creator, collection, name} {
		var prefix [8]byte
		binary.BigEndian.PutUint64(prefix[:], uint64(len(field)))
		h.Write(prefix[:])
		h.Write([]byte(field))
	}
	digest := h.Sum(nil)

	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(digest[:16])
	return strings.ToLower(encoded)
}

// TokenResourceName formats the canonical resource name for a token.
func TokenResourceName(collection, token string) string {
	return resourcename.Sprint(tokenResourcePattern, collection, token)
}

// ParseTokenResourceName extracts the collection and token segments from a
// canonical token resource name.
func ParseTokenResourceName(name string) (collection, token string, err error) {
	if err := resourcename.Sscan(name, tokenResourcePattern, &collection, &token); err != nil {
		return "", "", err
	}
	return collection, token, nil
}
