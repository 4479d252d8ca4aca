package cache

import (
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adammasjid/ProjectTest/internal/domain"
)

func question(id int) *domain.Question {
	return &domain.Question{ID: id, Title: "question " + strconv.Itoa(id)}
}

func TestQuestionCache_ReadYourWrite(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	q := question(1)
	c.Set(q)

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Same(t, q, got)
}

func TestQuestionCache_GetAfterRemoveIsAbsent(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	c.Set(question(1))
	c.Remove(1)

	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestQuestionCache_RemoveAbsentIsNoop(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	c.Remove(42)
	c.Remove(42)

	_, ok := c.Get(42)
	assert.False(t, ok)
}

func TestQuestionCache_SetReplacesEntry(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	c.Set(&domain.Question{ID: 1, Title: "old"})
	c.Set(&domain.Question{ID: 1, Title: "new"})

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, 1, c.Len())
}

func TestQuestionCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New(3)
	require.NoError(t, err)

	c.Set(question(1))
	c.Set(question(2))
	c.Set(question(3))

	// Touch 1 so 2 becomes the least recently used entry.
	_, ok := c.Get(1)
	require.True(t, ok)

	c.Set(question(4))

	assert.Equal(t, 3, c.Len())
	_, ok = c.Get(2)
	assert.False(t, ok, "least recently used entry should have been evicted")
	for _, id := range []int{1, 3, 4} {
		_, ok := c.Get(id)
		assert.True(t, ok, "entry %d should survive", id)
	}
}

func TestQuestionCache_NeverExceedsBound(t *testing.T) {
	c, err := New(5)
	require.NoError(t, err)

	for id := range 100 {
		c.Set(question(id))
		assert.LessOrEqual(t, c.Len(), 5)
	}
}

func TestQuestionCache_PopulateStoresFetchedSnapshot(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	gen := c.BeginPopulate(1)
	require.True(t, c.EndPopulate(1, gen, question(1)))

	_, ok := c.Get(1)
	assert.True(t, ok)
}

func TestQuestionCache_PopulateDiscardedWhenInvalidatedMidFlight(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	// A read registers its population, then a write invalidates before the
	// read gets around to storing.
	gen := c.BeginPopulate(1)
	c.Remove(1)

	assert.False(t, c.EndPopulate(1, gen, question(1)))
	_, ok := c.Get(1)
	assert.False(t, ok, "stale population must not land in the cache")
}

func TestQuestionCache_FailedPopulateStoresNothing(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	gen := c.BeginPopulate(1)
	assert.False(t, c.EndPopulate(1, gen, nil))

	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestQuestionCache_GenerationBookkeepingStaysBounded(t *testing.T) {
	c, err := New(10)
	require.NoError(t, err)

	// Removes with no population in flight must not accumulate state.
	for id := range 1000 {
		c.Remove(id)
	}

	// A full populate cycle, including one invalidated mid-flight, must
	// clean up after itself.
	gen := c.BeginPopulate(1)
	c.EndPopulate(1, gen, question(1))
	gen = c.BeginPopulate(2)
	c.Remove(2)
	c.EndPopulate(2, gen, question(2))

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Empty(t, c.gens)
	assert.Empty(t, c.inflight)
}

func TestQuestionCache_ConcurrentAccess(t *testing.T) {
	c, err := New(32)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for worker := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 500 {
				id := (worker*500 + i) % 64
				c.Set(question(id))
				c.Get(id)
				if i%7 == 0 {
					c.Remove(id)
				}
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Len(), 32)
}
