package drive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlotTableAllocateLowestFree(t *testing.T) {
	var t1 slotTable
	s0, ok := t1.allocate()
	require.True(t, ok)
	require.Equal(t, 0, s0)

	s1, ok := t1.allocate()
	require.True(t, ok)
	require.Equal(t, 1, s1)

	t1.release(s0)
	s2, ok := t1.allocate()
	require.True(t, ok)
	require.Equal(t, 0, s2, "release must make the lowest slot available again")
}

func TestSlotTableExhaustion(t *testing.T) {
	var t1 slotTable
	for i := 0; i < DriveMax; i++ {
		_, ok := t1.allocate()
		require.True(t, ok)
	}
	_, ok := t1.allocate()
	require.False(t, ok, "allocate must fail once DriveMax slots are in use")
	require.Equal(t, DriveMax, t1.count())
}

func TestSlotTableReleaseOutOfRangeIsNoop(t *testing.T) {
	var t1 slotTable
	t1.release(-1)
	t1.release(DriveMax)
	require.Equal(t, 0, t1.count())
}
