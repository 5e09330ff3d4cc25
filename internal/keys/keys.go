package keys

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// NameKey produces the canonical form of a display name used for name
// claims: trimmed, lower-cased, inner whitespace collapsed to underscores.
func NameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), "_"))
}

// Signature hashes the JSON encoding of v. Maps encode with sorted keys, so
// equal payloads always produce the same signature.
func Signature(v interface{}) string {
	var b []byte
	switch vv := v.(type) {
	case []byte:
		b = vv
	case string:
		b = []byte(vv)
	default:
		var err error
		b, err = json.Marshal(v)
		if err != nil {
			return ""
		}
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:16])
}

// EventKey is the dedup key of one emission: battle, kind and payload signature.
func EventKey(battleID, kind, signature string) string {
	return battleID + "|" + kind + "|" + signature
}
