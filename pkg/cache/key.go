package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerationKey holds the current cache generation.
const GenerationKey = "export:generation"

// Key identifies one cached export.
type Key struct {
	// Generation is the value of GenerationKey when the key was resolved.
	Generation int64

	// StatusQuery is the order filter the export listed with.
	StatusQuery string

	// DeliveryDate is the target delivery date of the picking list.
	DeliveryDate string
}

// String generates the Redis key.
// Format: export:v{generation}:{sha256(status query)}:{delivery date}
//
// Example:
//
//	export:v3:5f1c...9a:Thu Dec 24 2020
func (k Key) String() string {
	sum := sha256.Sum256([]byte(k.StatusQuery))
	return fmt.Sprintf("export:v%d:%s:%s", k.Generation, hex.EncodeToString(sum[:]), k.DeliveryDate)
}
