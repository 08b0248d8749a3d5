package critic

import (
	"sync"

	"github.com/zeebo/blake3"

	"hdrp/internal/nli"
)

// defaultCacheSize bounds the number of cached NLI scores per verifier.
const defaultCacheSize = 10000

type cacheKey [32]byte

// scoreCache memoises NLI scores with FIFO eviction. The same premise and
// hypothesis pair recurs whenever a claim is re-checked against the same
// task, so even a simple policy saves most round trips.
type scoreCache struct {
	mu       sync.Mutex
	entries  map[cacheKey]nli.Relation
	fifo     []cacheKey
	capacity int

	hits   int
	misses int
}

func newScoreCache(capacity int) *scoreCache {
	if capacity <= 0 {
		capacity = defaultCacheSize
	}
	return &scoreCache{
		entries:  make(map[cacheKey]nli.Relation, capacity),
		capacity: capacity,
	}
}

func makeKey(premise, hypothesis, variant string) cacheKey {
	h := blake3.New()
	h.WriteString(premise)
	h.Write([]byte{0})
	h.WriteString(hypothesis)
	h.Write([]byte{0})
	h.WriteString(variant)
	var key cacheKey
	copy(key[:], h.Sum(nil))
	return key
}

func (c *scoreCache) get(premise, hypothesis, variant string) (nli.Relation, bool) {
	key := makeKey(premise, hypothesis, variant)
	c.mu.Lock()
	defer c.mu.Unlock()
	rel, ok := c.entries[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return rel, ok
}

func (c *scoreCache) put(premise, hypothesis, variant string, rel nli.Relation) {
	key := makeKey(premise, hypothesis, variant)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		return
	}
	if len(c.fifo) >= c.capacity {
		oldest := c.fifo[0]
		c.fifo = c.fifo[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = rel
	c.fifo = append(c.fifo, key)
}

// stats returns hit and miss counters plus the hit rate.
func (c *scoreCache) stats() (hits, misses int, rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return c.hits, c.misses, rate
}
