package testutil

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// FixedIDs derives target handle IDs from a name, so a scenario run twice
// logs the same IDs. The nth ID is the SHA-1 UUID of "name/n".
type FixedIDs struct {
	mu   sync.Mutex
	name string
	n    int
}

// NewFixedIDs creates a generator for name. An empty name uses "default".
func NewFixedIDs(name string) *FixedIDs {
	if name == "" {
		name = "default"
	}
	return &FixedIDs{name: name}
}

// Next returns the next ID in the sequence.
func (f *FixedIDs) Next() uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d", f.name, f.n)))
}
