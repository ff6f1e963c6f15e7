package sim

import "fmt"

type trackingEntry struct {
	id       TrackingID
	pushedIn int64
	set      bool
}

// TrackingTable correlates posted NoC transfers with the tile that posted
// them. One table belongs to one layer's scheduling run: it is written during
// the priming pass, sealed at the delivery barrier and read during the
// actual pass.
//
// Storage is dense: one slice per core, indexed by tile.
type TrackingTable struct {
	firstCore int
	entries   [][]trackingEntry
	sealed    bool
	count     int
}

// NewTrackingTable sizes a table for cores firstCore, firstCore+1, ... with
// the given tile counts.
func NewTrackingTable(firstCore int, tilesPerCore []int) *TrackingTable {
	entries := make([][]trackingEntry, len(tilesPerCore))
	for i, tiles := range tilesPerCore {
		entries[i] = make([]trackingEntry, tiles)
	}
	return &TrackingTable{firstCore: firstCore, entries: entries}
}

func (t *TrackingTable) entry(core, tile int) *trackingEntry {
	i := core - t.firstCore
	if i < 0 || i >= len(t.entries) || tile < 0 || tile >= len(t.entries[i]) {
		return nil
	}
	return &t.entries[i][tile]
}

// Record stores the tracking id and post time for (core, tile).
// Panics if the table is sealed or the entry was already written.
func (t *TrackingTable) Record(core, tile int, id TrackingID, pushedIn int64) {
	if t.sealed {
		panic(fmt.Sprintf("TrackingTable: record (%d,%d) after delivery barrier", core, tile))
	}
	e := t.entry(core, tile)
	if e == nil {
		panic(fmt.Sprintf("TrackingTable: entry (%d,%d) out of range", core, tile))
	}
	if e.set {
		panic(fmt.Sprintf("TrackingTable: entry (%d,%d) written twice", core, tile))
	}
	*e = trackingEntry{id: id, pushedIn: pushedIn, set: true}
	t.count++
}

// Lookup returns the tracking id posted by (core, tile), if any.
func (t *TrackingTable) Lookup(core, tile int) (TrackingID, bool) {
	e := t.entry(core, tile)
	if e == nil {
		return 0, false
	}
	return e.id, e.set
}

// PushedInTime returns the local time at which (core, tile) posted its transfer.
// It is diagnostic: the actual pass logs it next to the replay time, and
// timing never depends on it.
func (t *TrackingTable) PushedInTime(core, tile int) (int64, bool) {
	e := t.entry(core, tile)
	if e == nil {
		return 0, false
	}
	return e.pushedIn, e.set
}

// Seal makes the table read-only.
func (t *TrackingTable) Seal() { t.sealed = true }

// Sealed reports whether the delivery barrier has passed.
func (t *TrackingTable) Sealed() bool { return t.sealed }

// Len returns the number of recorded transfers.
func (t *TrackingTable) Len() int { return t.count }
