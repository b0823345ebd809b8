package gateway

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// ValidSignature reports whether sig matches the digest Midtrans attaches
// to notifications: SHA-512 over order_id + status_code + gross_amount +
// server key, with the amount and status code exactly as sent on the wire.
func ValidSignature(orderID, statusCode, grossAmount, serverKey, sig string) bool {
	if sig == "" {
		return false
	}
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(sig)) == 1
}
