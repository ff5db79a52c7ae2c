// Package primepag integrates with the PrimePag PIX provider: outbound charge
// creation and status queries, and verification of inbound webhook
// notifications.
package primepag

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
)

// Signature computes the MAC PrimePag attaches to a payment notification:
// lowercase hex MD5 of "payment.<reference>.<idempotent>.<value_cents>.<secret>".
func Signature(referenceCode, idempotentID string, valueCents int64, secret string) string {
	payload := "payment." + referenceCode + "." + idempotentID + "." + strconv.FormatInt(valueCents, 10) + "." + secret
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// VerifySignature reports whether got matches the expected MAC. The
// comparison is case-insensitive on the hex digits and constant-time.
func VerifySignature(referenceCode, idempotentID string, valueCents int64, secret, got string) bool {
	if secret == "" || got == "" {
		return false
	}
	want := Signature(referenceCode, idempotentID, valueCents, secret)
	return subtle.ConstantTimeCompare([]byte(want), []byte(strings.ToLower(strings.TrimSpace(got)))) == 1
}
