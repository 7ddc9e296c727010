package common

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewULID returns a lexicographically sortable id. IDs generated by one
// process are strictly increasing, even within the same millisecond.
func NewULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	// only fails when the monotonic entropy overflows within one millisecond
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
