// Package objectkey maps (owner, display name) pairs to object store keys.
package objectkey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidKey is returned by Parse for keys outside the owner/name scheme.
var ErrInvalidKey = errors.New("invalid object key")

// Build returns the object key "{owner_id}/{name}".
func Build(ownerID int64, name string) string {
	return strconv.FormatInt(ownerID, 10) + "/" + name
}

// Prefix returns the key prefix shared by every object of ownerID.
func Prefix(ownerID int64) string {
	return strconv.FormatInt(ownerID, 10) + "/"
}

// Parse splits a key produced by Build back into owner id and name.
// The name may itself contain slashes.
func Parse(key string) (int64, string, error) {
	owner, name, ok := strings.Cut(key, "/")
	if !ok || owner == "" || name == "" {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	ownerID, err := strconv.ParseInt(owner, 10, 64)
	if err != nil || ownerID < 0 {
		return 0, "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return ownerID, name, nil
}
