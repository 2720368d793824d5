package discovery

import (
	"errors"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightninglabs/neutrino/cache"
	"github.com/lightninglabs/neutrino/cache/lru"
)

// DefaultRejectCacheSize is the default number of rejected messages we
// remember.
const DefaultRejectCacheSize = 5000

// cachedReject is the value stored in the reject cache.
type cachedReject struct {
	reason RejectReason
}

// Size returns the "size" of an entry. We return 1 as we just want to limit
// the total number of entries rather than do accurate size accounting.
func (c *cachedReject) Size() (uint64, error) {
	return 1, nil
}

// rejectCache remembers messages that failed authentication, keyed by the
// hash of their raw encoding, so replays of the same bytes are dropped without
// verifying their signatures again.
type rejectCache struct {
	cache *lru.Cache[chainhash.Hash, *cachedReject]
}

// newRejectCache creates a reject cache that holds up to capacity entries. A
// zero capacity disables the cache.
func newRejectCache(capacity uint64) *rejectCache {
	if capacity == 0 {
		return &rejectCache{}
	}

	return &rejectCache{
		cache: lru.NewCache[chainhash.Hash, *cachedReject](capacity),
	}
}

// lookup returns the reason a message was rejected before, if it was.
func (r *rejectCache) lookup(hash chainhash.Hash) (RejectReason, bool) {
	if r.cache == nil {
		return 0, false
	}

	entry, err := r.cache.Get(hash)
	switch {
	case errors.Is(err, cache.ErrElementNotFound):
		return 0, false

	case err != nil:
		log.Warnf("Unable to query reject cache: %v", err)
		return 0, false
	}

	return entry.reason, true
}

// insert records a rejected message.
func (r *rejectCache) insert(hash chainhash.Hash, reason RejectReason) {
	if r.cache == nil {
		return
	}

	_, err := r.cache.Put(hash, &cachedReject{reason: reason})
	if err != nil {
		log.Warnf("Unable to add to reject cache: %v", err)
	}
}

// len returns the number of cached entries.
func (r *rejectCache) len() int {
	if r.cache == nil {
		return 0
	}

	return r.cache.Len()
}
