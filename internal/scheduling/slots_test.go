package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, min int) time.Time {
	return time.Date(2025, time.June, 2, hour, min, 0, 0, time.UTC)
}

func TestPartitionBlockExactFit(t *testing.T) {
	slots := PartitionBlock(at(9, 0), at(10, 0), 20*time.Minute)

	require.Len(t, slots, 3)
	for i, s := range slots {
		assert.Equal(t, 20*time.Minute, s.End.Sub(s.Start), "slot %d", i)
		assert.Equal(t, 20*time.Minute, s.Duration)
	}
	assert.Equal(t, at(9, 0), slots[0].Start)
	assert.Equal(t, at(9, 40), slots[2].Start)
	assert.Equal(t, at(10, 0), slots[2].End)
}

func TestPartitionBlockDropsRemainder(t *testing.T) {
	// 50 minutes of block, 20 minute slots: two slots, 10 minutes dropped.
	slots := PartitionBlock(at(9, 0), at(9, 50), 20*time.Minute)

	require.Len(t, slots, 2)
	assert.Equal(t, at(9, 40), slots[1].End)
}

func TestPartitionBlockAdjacency(t *testing.T) {
	slots := PartitionBlock(at(8, 0), at(12, 0), 15*time.Minute)

	require.Len(t, slots, 16)
	for i := 1; i < len(slots); i++ {
		assert.True(t, slots[i-1].End.Equal(slots[i].Start), "slots %d and %d must be back to back", i-1, i)
	}
}

func TestPartitionBlockTooShort(t *testing.T) {
	assert.Empty(t, PartitionBlock(at(9, 0), at(9, 10), 20*time.Minute))
	assert.Empty(t, PartitionBlock(at(9, 0), at(9, 0), 20*time.Minute))
}

func TestPartitionBlockIsPure(t *testing.T) {
	a := PartitionBlock(at(9, 0), at(11, 0), 30*time.Minute)
	b := PartitionBlock(at(9, 0), at(11, 0), 30*time.Minute)
	assert.Equal(t, a, b)
}

func TestOverlapsHalfOpen(t *testing.T) {
	// Touching boundary is not overlap.
	assert.False(t, Overlaps(at(10, 20), at(10, 40), at(10, 0), at(10, 20)))
	assert.False(t, Overlaps(at(10, 0), at(10, 20), at(10, 20), at(10, 40)))

	// Partial overlap is.
	assert.True(t, Overlaps(at(10, 10), at(10, 30), at(10, 0), at(10, 20)))

	// Containment is.
	assert.True(t, Overlaps(at(10, 0), at(11, 0), at(10, 15), at(10, 30)))
}

func TestFilterConflicts(t *testing.T) {
	slots := PartitionBlock(at(10, 0), at(11, 0), 20*time.Minute)
	busy := []Interval{{Start: at(10, 0), End: at(10, 20)}}

	free := FilterConflicts(slots, busy)

	require.Len(t, free, 2)
	assert.Equal(t, at(10, 20), free[0].Start)
	assert.Equal(t, at(10, 40), free[1].Start)
}

func TestFilterConflictsStraddlingBusyWindow(t *testing.T) {
	slots := PartitionBlock(at(10, 0), at(11, 0), 20*time.Minute)
	// Busy window [10:10, 10:30) crosses two slots.
	busy := []Interval{{Start: at(10, 10), End: at(10, 30)}}

	free := FilterConflicts(slots, busy)

	require.Len(t, free, 1)
	assert.Equal(t, at(10, 40), free[0].Start)
}

func TestFilterConflictsNoBusy(t *testing.T) {
	slots := PartitionBlock(at(10, 0), at(11, 0), 20*time.Minute)
	assert.Equal(t, slots, FilterConflicts(slots, nil))
}
