// Package cache holds the process-wide, size-bounded question snapshot cache.
//
// Entries are evicted least-recently-used once the configured bound is
// exceeded. Absence is always a safe state: a miss forces a fresh read from
// storage. Removal (not replacement) on write keeps the cache from ever
// serving a value older than the last completed write.
package cache

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/adammasjid/ProjectTest/internal/domain"
	"github.com/adammasjid/ProjectTest/internal/metrics"
)

// QuestionCache maps question IDs to their last-known snapshot.
//
// Beyond Get/Set/Remove it tracks a per-ID generation that is bumped on
// every Remove. Readers that populate the cache after a storage fetch
// bracket the fetch with BeginPopulate/EndPopulate so that a write landing
// in between discards the now-stale population instead of caching it.
// Generation entries exist only while a population is in flight, so the
// bookkeeping maps stay as bounded as the LRU itself.
type QuestionCache struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[int, *domain.Question]
	gens     map[int]uint64
	inflight map[int]int
}

// New creates a cache bounded to maxEntries snapshots.
func New(maxEntries int) (*QuestionCache, error) {
	c := &QuestionCache{
		gens:     make(map[int]uint64),
		inflight: make(map[int]int),
	}

	lru, err := simplelru.NewLRU[int, *domain.Question](maxEntries, func(int, *domain.Question) {
		metrics.CacheEvictionsTotal.Inc()
	})
	if err != nil {
		return nil, err
	}

	c.lru = lru
	return c, nil
}

// Get returns the cached snapshot for questionID, marking it recently used.
func (c *QuestionCache) Get(questionID int) (*domain.Question, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	question, ok := c.lru.Get(questionID)
	if ok {
		metrics.CacheHitsTotal.Inc()
	} else {
		metrics.CacheMissesTotal.Inc()
	}
	return question, ok
}

// Set inserts or replaces the entry keyed by the snapshot's question ID,
// evicting least-recently-used entries if the bound is exceeded.
func (c *QuestionCache) Set(question *domain.Question) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(question.ID, question)
}

// Remove deletes the entry if present and invalidates in-flight populations
// for the same ID. Removing an absent ID is a no-op.
func (c *QuestionCache) Remove(questionID int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(questionID)
	// Only an in-flight population can observe the generation, so there
	// is nothing to invalidate when none is registered.
	if c.inflight[questionID] > 0 {
		c.gens[questionID]++
	}
}

// BeginPopulate registers an in-flight population for questionID and
// returns the generation to pass to EndPopulate after the storage fetch.
func (c *QuestionCache) BeginPopulate(questionID int) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[questionID]++
	return c.gens[questionID]
}

// EndPopulate finishes the population registered by BeginPopulate. The
// snapshot is stored only if it is non-nil and no Remove happened for the
// ID since gen was captured; pass nil when the fetch failed. Returns
// whether the entry was stored.
func (c *QuestionCache) EndPopulate(questionID int, gen uint64, question *domain.Question) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.gens[questionID] == gen

	c.inflight[questionID]--
	if c.inflight[questionID] <= 0 {
		delete(c.inflight, questionID)
		delete(c.gens, questionID)
	}

	if question == nil {
		return false
	}
	if !current {
		metrics.CacheStalePopulationsTotal.Inc()
		return false
	}

	c.lru.Add(questionID, question)
	return true
}

// Len returns the number of cached snapshots.
func (c *QuestionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
