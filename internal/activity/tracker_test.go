package activity

import (
	"fmt"
	"testing"
	"time"

	"pressadmin/internal/clock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Record(t *testing.T) {
	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	clk := clock.NewMockClock(start)
	tracker := NewTracker(clk, nil, 10)

	rec := tracker.Record("markdown", ActionPluginRegistered, "registered at startup", map[string]interface{}{"version": "1.0.0"})
	assert.Equal(t, start, rec.Timestamp)
	assert.False(t, rec.IsFailure())

	clk.Advance(time.Minute)
	tracker.Record("seo", ActionPluginRejected, "missing dependencies: markdown", nil)

	recent := tracker.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "seo", recent[0].Subject, "newest first")
	assert.True(t, recent[0].IsFailure())
	assert.Equal(t, start.Add(time.Minute), recent[0].Timestamp)
	assert.Equal(t, "markdown", recent[1].Subject)

	last, ok := tracker.Last("markdown")
	require.True(t, ok)
	assert.Equal(t, "1.0.0", last.Details["version"])

	_, ok = tracker.Last("unknown")
	assert.False(t, ok)
}

func TestTracker_Capacity(t *testing.T) {
	tracker := NewTracker(clock.NewMockClock(time.Now()), nil, 3)

	for i := 0; i < 5; i++ {
		tracker.Record(fmt.Sprintf("p%d", i), ActionThemeActivated, "", nil)
	}

	assert.Equal(t, 3, tracker.Len())
	recent := tracker.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "p4", recent[0].Subject)
	assert.Equal(t, "p3", recent[1].Subject)

	all := tracker.Recent(100)
	assert.Equal(t, "p2", all[2].Subject)
}

func TestTracker_DefaultCapacity(t *testing.T) {
	tracker := NewTracker(nil, nil, 0)
	assert.Equal(t, DefaultCapacity, tracker.capacity)
	assert.Empty(t, tracker.Recent(5))
}
