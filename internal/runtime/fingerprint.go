package runtime

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Fingerprint computes the SHA-256 digest that binds an idempotency key to
// one specific intent: the entity name, the command name, and the canonical
// JSON encoding of the input. encoding/json writes map keys in sorted order,
// so two payloads with the same fields always produce the same digest
// regardless of request-body key order.
func Fingerprint(entity, command string, input map[string]any) (string, error) {
	canonical, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("runtime: fingerprint input: %w", err)
	}
	h := sha256.New()
	h.Write([]byte(entity))
	h.Write([]byte{0})
	h.Write([]byte(command))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}
