package journey

// label is one Pareto-optimal state at a stop: arriving at arrival unix
// seconds having used legs transit legs. Labels chain backwards through prev
// for path reconstruction; edge describes how the stop was reached and is nil
// only on the origin label.
type label struct {
	arrival int64
	legs    int
	prev    *label
	edge    *edge
}

// edge is the move that produced a label: either a ride on a trip or a
// walking transfer.
type edge struct {
	walk        bool
	fromStop    string
	toStop      string
	routeId     string
	vehicleId   string
	boardTime   int64
	alightTime  int64
	walkSeconds int64
	walkMeters  float64
}

// paretoSet is the set of labels at one stop. Invariant: no label in the set
// dominates another.
type paretoSet []*label

// dominated reports whether a candidate (arrival, legs) is dominated by any
// label in the set: some existing label is no worse on both axes and strictly
// better on at least one.
func (p paretoSet) dominated(arrival int64, legs int) bool {
	for _, existing := range p {
		if existing.arrival <= arrival && existing.legs <= legs &&
			(existing.arrival < arrival || existing.legs < legs) {
			return true
		}
	}
	return false
}

// insert adds newLabel, removing any existing labels it strictly dominates.
// Dominated labels stay reachable through prev chains of labels inserted
// before them.
func (p paretoSet) insert(newLabel *label) paretoSet {
	kept := p[:0:0]
	for _, existing := range p {
		if newLabel.arrival <= existing.arrival && newLabel.legs <= existing.legs &&
			(newLabel.arrival < existing.arrival || newLabel.legs < existing.legs) {
			continue
		}
		kept = append(kept, existing)
	}
	return append(kept, newLabel)
}

// bestWithLegs returns the label with the minimum arrival among labels with
// exactly legs transit legs, or nil when none exists.
func (p paretoSet) bestWithLegs(legs int) *label {
	var best *label
	for _, existing := range p {
		if existing.legs != legs {
			continue
		}
		if best == nil || existing.arrival < best.arrival {
			best = existing
		}
	}
	return best
}
