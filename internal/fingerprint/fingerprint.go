// Package fingerprint derives deterministic cache keys from issue identities.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Veraticus/compliance-intelligence/internal/common"
)

// Normalize lower-cases s, trims it and collapses internal whitespace runs
// to a single space.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Compute returns the hex SHA-256 fingerprint of the normalized
// (category, title, description) triple.
func Compute(category, title, description string) (string, error) {
	c, t, d := Normalize(category), Normalize(title), Normalize(description)

	switch {
	case c == "":
		return "", fmt.Errorf("%w: empty category", common.ErrInvalidFingerprintInput)
	case t == "":
		return "", fmt.Errorf("%w: empty title", common.ErrInvalidFingerprintInput)
	case d == "":
		return "", fmt.Errorf("%w: empty description", common.ErrInvalidFingerprintInput)
	}

	// Each field is length-prefixed so no field content can shift a boundary.
	h := sha256.New()
	for _, field := range []string{c, t, d} {
		fmt.Fprintf(h, "%d:%s", len(field), field)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Valid reports whether fp looks like a value produced by Compute.
func Valid(fp string) bool {
	if len(fp) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(fp)
	return err == nil
}
