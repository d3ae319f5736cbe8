package managed

import (
	"sync"
	"time"

	"github.com/flowline-data/ingest-go/ingesterr"
)

// entry is the PerTableBackoffState value from §3: {resetAt, category}. An
// entry whose resetAt has passed is logically absent.
type entry struct {
	resetAt  time.Time
	category ingesterr.Category
}

// backoffMap is the per-table backoff map from §3/§5, keyed by
// "database-table" and protected by a single mutex — contention is
// expected to be low (one write per streaming failure).
type backoffMap struct {
	mu      sync.Mutex
	entries map[string]entry
}

func newBackoffMap() *backoffMap {
	return &backoffMap{entries: make(map[string]entry)}
}

func key(db, table string) string { return db + "-" + table }

// get returns the active entry for (db, table), or ok=false when absent
// or expired.
func (b *backoffMap) get(db, table string) (entry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, found := b.entries[key(db, table)]
	if !found || !time.Now().Before(e.resetAt) {
		return entry{}, false
	}
	return e, true
}

func (b *backoffMap) set(db, table string, category ingesterr.Category, resetAt time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[key(db, table)] = entry{resetAt: resetAt, category: category}
}

func (b *backoffMap) clear(db, table string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, key(db, table))
}
