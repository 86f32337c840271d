// Package token mints the ack tokens that identify message leases.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

const ackTokenBytes = 16

// NewAckToken generates a fresh 32-character lowercase hex token carrying
// 128 bits of randomness. Tokens are globally unique for all practical
// purposes; the queue additionally enforces uniqueness with a unique sparse
// index on the ack field.
func NewAckToken() string {
	b := make([]byte, ackTokenBytes)
	_, err := rand.Read(b)
	if err != nil {
		// this should never happen
		panic(fmt.Errorf("failed to generate ack token: %w", err))
	}
	return hex.EncodeToString(b)
}
