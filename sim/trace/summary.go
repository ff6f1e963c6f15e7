package trace

import "github.com/inference-sim/nocsim/sim"

// KindSummary aggregates one trace file.
type KindSummary struct {
	Rows       int
	Accesses   int64
	FirstCycle int64
	LastCycle  int64
}

// Summary aggregates a core's traces by kind.
type Summary struct {
	ByKind map[Kind]KindSummary
}

// Summarize computes per-kind row and access counts. Idle lanes are not
// counted. Safe for empty traces (returns an empty map).
func Summarize(t sim.MemoryTraces) *Summary {
	s := &Summary{ByKind: make(map[Kind]KindSummary)}
	for _, kind := range Kinds {
		rows := Rows(t, kind)
		if len(rows) == 0 {
			continue
		}
		ks := KindSummary{Rows: len(rows), FirstCycle: rows[0].Cycle, LastCycle: rows[0].Cycle}
		for _, r := range rows {
			for _, addr := range r.Addrs {
				if addr != sim.NoAccess {
					ks.Accesses++
				}
			}
			ks.FirstCycle = min(ks.FirstCycle, r.Cycle)
			ks.LastCycle = max(ks.LastCycle, r.Cycle)
		}
		s.ByKind[kind] = ks
	}
	return s
}
