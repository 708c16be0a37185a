// SPDX-License-Identifier: MIT

package ledger

import (
	"github.com/katalvlaran/plansynth/refdata"
	"github.com/katalvlaran/plansynth/timebin"
)

// Key names the three resources a single edge traversal consumes.
type Key struct {
	Trip          refdata.TripID
	CategoryIndex int
	Bin           timebin.TimeBin
	Mode          refdata.Mode
}

// Level returns the level-pool coordinate of k.
func (k Key) Level() LevelKey { return LevelKey{CategoryIndex: k.CategoryIndex, Bin: k.Bin} }

// LevelKey addresses one (category, bin) cell of the level pool.
type LevelKey struct {
	CategoryIndex int
	Bin           timebin.TimeBin
}

// Snapshot is the remaining capacity of the resources named by a Key,
// read under one shared lock.
type Snapshot struct {
	Trip  int64
	Level int64
	Mode  int64
}

// Usage is the aggregated demand of a path on each pool.
type Usage struct {
	Trips  map[refdata.TripID]int64
	Levels map[LevelKey]int64
	Modes  map[refdata.Mode]int64
}

// NewUsage returns an empty Usage ready for Add.
func NewUsage() Usage {
	return Usage{
		Trips:  make(map[refdata.TripID]int64),
		Levels: make(map[LevelKey]int64),
		Modes:  make(map[refdata.Mode]int64),
	}
}

// UsageOf aggregates one unit per key.
func UsageOf(keys ...Key) Usage {
	u := NewUsage()
	for _, k := range keys {
		u.Add(k)
	}

	return u
}

// Add records one unit on each resource of k.
func (u Usage) Add(k Key) {
	u.Trips[k.Trip]++
	u.Levels[k.Level()]++
	u.Modes[k.Mode]++
}

// Empty reports whether u demands nothing.
func (u Usage) Empty() bool {
	return len(u.Trips) == 0 && len(u.Levels) == 0 && len(u.Modes) == 0
}
