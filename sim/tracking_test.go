package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackingTable_RecordAndLookup(t *testing.T) {
	// GIVEN a table for cores 3 and 4
	table := NewTrackingTable(3, []int{2, 1})

	// WHEN core 4 tile 0 records a transfer
	table.Record(4, 0, 17, 120)

	// THEN lookups use global core ids
	id, ok := table.Lookup(4, 0)
	assert.True(t, ok)
	assert.Equal(t, TrackingID(17), id)
	pushed, ok := table.PushedInTime(4, 0)
	assert.True(t, ok)
	assert.Equal(t, int64(120), pushed)
	assert.Equal(t, 1, table.Len())

	// AND unrecorded or unknown entries report absence
	_, ok = table.Lookup(3, 1)
	assert.False(t, ok)
	_, ok = table.Lookup(0, 0)
	assert.False(t, ok)
	_, ok = table.PushedInTime(4, 5)
	assert.False(t, ok)
}

func TestTrackingTable_WriteOnce(t *testing.T) {
	table := NewTrackingTable(0, []int{1})
	table.Record(0, 0, 1, 0)

	assert.PanicsWithValue(t,
		"TrackingTable: entry (0,0) written twice",
		func() { table.Record(0, 0, 2, 0) })
}

func TestTrackingTable_SealedIsReadOnly(t *testing.T) {
	table := NewTrackingTable(0, []int{2})
	table.Record(0, 0, 1, 0)
	table.Seal()

	assert.True(t, table.Sealed())
	assert.PanicsWithValue(t,
		"TrackingTable: record (0,1) after delivery barrier",
		func() { table.Record(0, 1, 2, 0) })
	id, ok := table.Lookup(0, 0)
	assert.True(t, ok)
	assert.Equal(t, TrackingID(1), id)
}

func TestTrackingTable_OutOfRangePanics(t *testing.T) {
	table := NewTrackingTable(1, []int{1})
	assert.PanicsWithValue(t,
		"TrackingTable: entry (0,0) out of range",
		func() { table.Record(0, 0, 1, 0) })
}
