package midtrans

import (
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"strings"
)

// SignatureKey is hex(SHA-512(order_id + status_code + gross_amount + server_key)).
func SignatureKey(orderID, statusCode, grossAmount, serverKey string) string {
	h := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(h[:])
}

// VerifySignature compares case-sensitively. The caller decides what to do when
// inputs are missing; this only checks a complete set.
func VerifySignature(orderID, statusCode, grossAmount, serverKey, signature string) error {
	if strings.TrimSpace(signature) == "" {
		return fmt.Errorf("signature required")
	}
	if SignatureKey(orderID, statusCode, grossAmount, serverKey) != signature {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}
