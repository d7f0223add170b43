package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-quality-etl/internal/domain"
)

func newAllocator() *domain.ColorAllocator {
	return domain.NewColorAllocator(domain.DefaultPalette(), nil)
}

func TestStore_GetOrCreate_GeneratesID(t *testing.T) {
	store := NewStore(10, time.Minute, newAllocator, nil)

	for _, id := range []string{"", "not-a-uuid"} {
		sess, created := store.GetOrCreate(id)
		require.True(t, created)
		_, err := uuid.Parse(sess.ID)
		require.NoError(t, err)
		assert.NotEqual(t, id, sess.ID)
	}
	assert.Equal(t, 2, store.Len())
}

func TestStore_GetOrCreate_ReturnsExisting(t *testing.T) {
	store := NewStore(10, time.Minute, newAllocator, nil)

	first, created := store.GetOrCreate("")
	require.True(t, created)

	again, created := store.GetOrCreate(first.ID)
	assert.False(t, created)
	assert.Same(t, first, again)

	got, ok := store.Get(first.ID)
	require.True(t, ok)
	assert.Same(t, first, got)
}

func TestStore_GetOrCreate_UnknownValidID(t *testing.T) {
	store := NewStore(10, time.Minute, newAllocator, nil)
	id := uuid.NewString()

	sess, created := store.GetOrCreate(id)
	assert.True(t, created)
	assert.Equal(t, id, sess.ID)
}

func TestStore_ColorsAreStablePerSession(t *testing.T) {
	store := NewStore(10, time.Minute, newAllocator, nil)
	a, _ := store.GetOrCreate("")
	b, _ := store.GetOrCreate("")

	var colorA1, colorA2, colorB string
	require.NoError(t, a.Do(func(c *domain.ColorAllocator) error {
		c.Assign("AQI")
		colorA1 = c.Assign("PM2.5")
		return nil
	}))
	require.NoError(t, b.Do(func(c *domain.ColorAllocator) error {
		colorB = c.Assign("PM2.5")
		return nil
	}))
	require.NoError(t, a.Do(func(c *domain.ColorAllocator) error {
		colorA2 = c.Assign("PM2.5")
		return nil
	}))

	assert.Equal(t, colorA1, colorA2)
	assert.Equal(t, "#ff7f0e", colorA1)
	assert.Equal(t, "#1f77b4", colorB)
}

func TestStore_Expiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewStore(10, 30*time.Minute, newAllocator, clock)

	sess, _ := store.GetOrCreate("")

	clock.Advance(20 * time.Minute)
	_, ok := store.Get(sess.ID)
	require.True(t, ok, "use within the TTL keeps the session alive")

	clock.Advance(20 * time.Minute)
	_, ok = store.Get(sess.ID)
	require.True(t, ok, "expiry slides on access")

	clock.Advance(31 * time.Minute)
	_, ok = store.Get(sess.ID)
	assert.False(t, ok)

	restarted, created := store.GetOrCreate(sess.ID)
	assert.True(t, created)
	assert.NotSame(t, sess, restarted)
}

func TestStore_LRUEviction(t *testing.T) {
	store := NewStore(2, time.Hour, newAllocator, nil)

	a, _ := store.GetOrCreate("")
	b, _ := store.GetOrCreate("")
	_, ok := store.Get(a.ID)
	require.True(t, ok)
	store.GetOrCreate("")

	_, ok = store.Get(b.ID)
	assert.False(t, ok, "least recently used session is evicted")
	_, ok = store.Get(a.ID)
	assert.True(t, ok)
}

func TestStore_Delete(t *testing.T) {
	store := NewStore(10, time.Minute, newAllocator, nil)
	sess, _ := store.GetOrCreate("")

	store.Delete(sess.ID)
	_, ok := store.Get(sess.ID)
	assert.False(t, ok)
}

func TestSession_DoSerialises(t *testing.T) {
	store := NewStore(10, time.Minute, newAllocator, nil)
	sess, _ := store.GetOrCreate("")

	types := []string{"AQI", "PM2.5", "PM10", "SO2", "NO2", "O3", "CO", "AQI", "PM2.5"}
	var wg sync.WaitGroup
	for _, typ := range types {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = sess.Do(func(c *domain.ColorAllocator) error {
				c.Assign(typ)
				return nil
			})
		}()
	}
	wg.Wait()

	require.NoError(t, sess.Do(func(c *domain.ColorAllocator) error {
		assigned := c.Assignments()
		assert.Len(t, assigned, 7)
		seen := make(map[string]bool)
		for _, color := range assigned {
			assert.False(t, seen[color], "palette colours are distinct")
			seen[color] = true
		}
		return nil
	}))
}
