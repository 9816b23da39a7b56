package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key hashes the request identity. Fields are NUL separated so that
// ("ab", "c") and ("a", "bc") never collide.
func Key(taskID, shape, schemaName, mode, prompt string) string {
	h := sha256.New()
	for i, part := range []string{taskID, shape, schemaName, mode, prompt} {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}
