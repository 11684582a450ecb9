// Package id generates identifiers for ephemeral objects such as audit jobs
// and event stream clients. Catalog rows use database-assigned integer ids.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// alphabet is used for short ids that end up in logs and URLs.
const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// Generate returns prefix-<nanoid>, e.g. "audit-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// Short returns prefix-<n lowercase alphanumerics>.
func Short(prefix string, n int) (string, error) {
	id, err := gonanoid.Generate(alphabet, n)
	if err != nil {
		return "", fmt.Errorf("generate short id: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics on failure.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
