// SPDX-License-Identifier: MIT

package commit

import (
	"strings"

	"github.com/katalvlaran/plansynth/refdata"
	"github.com/katalvlaran/plansynth/stategraph"
	"github.com/katalvlaran/plansynth/timebin"
)

// Stop is one activity of a plan.
type Stop struct {
	District refdata.DistrictID
	Purpose  refdata.Purpose
	Bin      timebin.TimeBin
}

// Leg is the trip taken from one stop to the next.
type Leg struct {
	Edge stategraph.EdgeID
	Trip refdata.TripID
	Mode refdata.Mode
}

// Plan is an accepted daily activity chain. len(Legs) == len(Stops)-1.
// Plans are immutable once extracted.
type Plan struct {
	Stops []Stop
	Legs  []Leg
}

// Len returns the number of stops.
func (p Plan) Len() int { return len(p.Stops) }

// Bins returns the plan's span in bins from the first to the last stop.
func (p Plan) Bins() int {
	n := 0
	for i := 1; i < len(p.Stops); i++ {
		n += p.Stops[i].Bin.Sub(p.Stops[i-1].Bin)
	}

	return n
}

// Tuple is one row of the plan output: a stop and the trip leaving it.
// The final stop carries refdata.NoTrip.
type Tuple struct {
	District refdata.DistrictID
	Purpose  refdata.Purpose
	Bin      timebin.TimeBin
	Trip     refdata.TripID
	Mode     refdata.Mode
}

// Tuples flattens p into its output rows.
func (p Plan) Tuples() []Tuple {
	out := make([]Tuple, len(p.Stops))
	for i, s := range p.Stops {
		out[i] = Tuple{District: s.District, Purpose: s.Purpose, Bin: s.Bin, Trip: refdata.NoTrip}
		if i < len(p.Legs) {
			out[i].Trip = p.Legs[i].Trip
			out[i].Mode = p.Legs[i].Mode
		}
	}

	return out
}

func (p Plan) String() string {
	var b strings.Builder
	for i, s := range p.Stops {
		if i > 0 {
			b.WriteString(" -[")
			b.WriteString(p.Legs[i-1].Mode.String())
			b.WriteString("]-> ")
		}
		b.WriteString(stategraph.Node{District: s.District, Purpose: s.Purpose, Bin: s.Bin}.String())
	}

	return b.String()
}
