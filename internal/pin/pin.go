// Package pin hashes and verifies escrow release PINs.
//
// PINs are stored only as bcrypt hashes (unique salt per hash). Verification
// runs in time independent of where a mismatch occurs, so a caller cannot
// learn anything about the stored PIN from response timing. Plaintext PINs
// must never be persisted or logged.
package pin

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const hashCost = bcrypt.DefaultCost

func Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), hashCost)
	if err != nil {
		return "", fmt.Errorf("pin.Hash: %w", err)
	}
	return string(hash), nil
}

func Verify(plain, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plain)) == nil
}
