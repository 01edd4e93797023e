package utils

import (
	"crypto/sha256"
	"fmt"
)

// HashString returns the hex sha256 of its input. Cache keys are built from
// it so that equivalent queries share an entry regardless of how the caller
// ordered its parameters.
func HashString(input string) string {
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash)
}
