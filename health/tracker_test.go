package health

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTracker_TripsAfterThreshold(t *testing.T) {
	tests := []struct {
		name      string
		sequence  []bool // true = success
		available bool
	}{
		{name: "unknown provider is available", sequence: nil, available: true},
		{name: "two failures stay available", sequence: []bool{false, false}, available: true},
		{name: "three failures trip", sequence: []bool{false, false, false}, available: false},
		{name: "success breaks the run", sequence: []bool{false, false, true, false, false}, available: true},
		{name: "run after success trips", sequence: []bool{false, true, false, false, false}, available: false},
		{name: "success after trip does not happen without reset", sequence: []bool{false, false, false, false}, available: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := NewTracker("search", Options{})
			for _, ok := range tt.sequence {
				if ok {
					tr.RecordSuccess("themealdb")
				} else {
					tr.RecordFailure("themealdb")
				}
			}
			assert.Equal(t, tt.available, tr.IsAvailable("themealdb"))
		})
	}
}

func TestTracker_StaysTrippedWithoutCooldown(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	tr := NewTracker("search", Options{Now: clock.Now})

	for range 3 {
		tr.RecordFailure("spoonacular")
	}
	require.False(t, tr.IsAvailable("spoonacular"))

	clock.Advance(24 * time.Hour)
	assert.False(t, tr.IsAvailable("spoonacular"))

	require.NoError(t, tr.Reset("spoonacular"))
	assert.True(t, tr.IsAvailable("spoonacular"))
	assert.Equal(t, 0, tr.Status("spoonacular").ConsecutiveFailures)
}

func TestTracker_CooldownProbe(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	tr := NewTracker("nutrition", Options{Cooldown: time.Minute, Now: clock.Now})

	for range 3 {
		tr.RecordFailure("usda")
	}
	require.False(t, tr.IsAvailable("usda"))

	clock.Advance(61 * time.Second)
	assert.True(t, tr.IsAvailable("usda"), "first caller after cooldown probes")
	assert.False(t, tr.IsAvailable("usda"), "second caller waits for the probe")

	tr.RecordFailure("usda")
	clock.Advance(30 * time.Second)
	assert.False(t, tr.IsAvailable("usda"), "failed probe restarts the cooldown")

	clock.Advance(31 * time.Second)
	require.True(t, tr.IsAvailable("usda"))
	tr.RecordSuccess("usda")
	st := tr.Status("usda")
	assert.True(t, st.Available)
	assert.Equal(t, 0, st.ConsecutiveFailures)
	assert.Equal(t, clock.now, st.LastSuccess)
}

func TestTracker_OnTripFiresOnce(t *testing.T) {
	var trips []Status
	tr := NewTracker("search", Options{OnTrip: func(s Status) { trips = append(trips, s) }})

	for range 5 {
		tr.RecordFailure("tavily")
	}

	require.Len(t, trips, 1)
	assert.Equal(t, "tavily", trips[0].Provider)
	assert.Equal(t, "search", trips[0].Category)
	assert.Equal(t, 3, trips[0].ConsecutiveFailures)
	assert.False(t, trips[0].Available)
}

func TestTracker_CategoriesAreIndependent(t *testing.T) {
	search := NewTracker("search", Options{})
	nutrition := NewTracker("nutrition", Options{})

	for range 3 {
		search.RecordFailure("shared")
	}

	assert.False(t, search.IsAvailable("shared"))
	assert.True(t, nutrition.IsAvailable("shared"))
}

func TestTracker_ConcurrentFailuresAreNotLost(t *testing.T) {
	tr := NewTracker("search", Options{FailureThreshold: 1000})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 10 {
				tr.RecordFailure("themealdb")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 500, tr.Status("themealdb").ConsecutiveFailures)
	assert.True(t, tr.IsAvailable("themealdb"))
}

func TestTracker_Snapshot(t *testing.T) {
	tr := NewTracker("search", Options{})
	tr.Track("themealdb", "spoonacular")
	tr.RecordFailure("tavily")

	snap := tr.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "spoonacular", snap[0].Provider)
	assert.Equal(t, "tavily", snap[1].Provider)
	assert.Equal(t, 1, snap[1].ConsecutiveFailures)
	assert.Equal(t, "themealdb", snap[2].Provider)
}

func TestTracker_ResetUnknownProvider(t *testing.T) {
	tr := NewTracker("search", Options{})
	tr.Track("themealdb")

	for _, name := range []string{"bogus1", "bogus2", "../etc"} {
		assert.ErrorIs(t, tr.Reset(name), ErrUnknownProvider)
	}
	snap := tr.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "themealdb", snap[0].Provider)
	assert.NoError(t, tr.Reset("themealdb"))
}
