package audit

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint derives a short identifier for a key value so audit
// entries can reference keys without storing the credential itself.
func Fingerprint(value string) string {
	hash := sha256.Sum256([]byte(value))
	return hex.EncodeToString(hash[:8])
}
