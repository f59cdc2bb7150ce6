package journey

import (
	"testing"
)

func TestParetoSetDominated(t *testing.T) {
	set := paretoSet{
		{arrival: 100, legs: 2},
		{arrival: 200, legs: 1},
	}

	tests := []struct {
		name    string
		arrival int64
		legs    int
		want    bool
	}{
		{"later with more legs", 150, 3, true},
		{"later with equal legs", 300, 1, true},
		{"equal on both axes", 100, 2, false},
		{"earlier with more legs", 50, 3, false},
		{"later with fewer legs", 300, 0, false},
		{"strictly better than all", 50, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := set.dominated(tt.arrival, tt.legs); got != tt.want {
				t.Errorf("dominated(%d, %d) = %v, want %v", tt.arrival, tt.legs, got, tt.want)
			}
		})
	}
}

func TestParetoSetInsertRemovesStrictlyDominated(t *testing.T) {
	set := paretoSet{
		{arrival: 100, legs: 2},
		{arrival: 200, legs: 1},
		{arrival: 300, legs: 0},
	}

	set = set.insert(&label{arrival: 150, legs: 1})

	if len(set) != 3 {
		t.Fatalf("expected 3 labels after insert, got %d", len(set))
	}
	// the (200, 1) label is strictly dominated by (150, 1) and must be gone
	for _, existing := range set {
		if existing.arrival == 200 && existing.legs == 1 {
			t.Errorf("strictly dominated label (200, 1) was not removed")
		}
	}
	if set.dominated(200, 1) != true {
		t.Errorf("expected (200, 1) to now be dominated")
	}
}

func TestParetoSetInsertKeepsIncomparable(t *testing.T) {
	set := paretoSet{}
	set = set.insert(&label{arrival: 100, legs: 2})
	set = set.insert(&label{arrival: 200, legs: 1})
	set = set.insert(&label{arrival: 300, legs: 0})

	if len(set) != 3 {
		t.Errorf("expected all incomparable labels kept, got %d", len(set))
	}
}

func TestParetoSetBestWithLegs(t *testing.T) {
	set := paretoSet{
		{arrival: 300, legs: 1},
		{arrival: 200, legs: 1},
		{arrival: 100, legs: 2},
	}

	best := set.bestWithLegs(1)
	if best == nil || best.arrival != 200 {
		t.Errorf("bestWithLegs(1) = %+v, want arrival 200", best)
	}
	if set.bestWithLegs(3) != nil {
		t.Errorf("bestWithLegs(3) should be nil when no label has 3 legs")
	}
}
