package safe

import (
	"testing"

	"github.com/robert-malhotra/burst2safe/internal/burst"
)

func TestGroupRecords(t *testing.T) {
	records := fixtureRecords(t, false)
	// Add a VH twin of the first burst and feed the set out of order.
	vh := *records[0]
	vh.Polarization = burst.PolVH
	shuffled := []*burst.Record{records[1], &vh, records[0]}

	groups := GroupRecords(shuffled)
	if len(groups) != 2 {
		t.Fatalf("Expected 2 groups, got %d", len(groups))
	}

	vvGroup := groups[GroupKey{Swath: "IW2", Polarization: burst.PolVV}]
	if vvGroup == nil || len(vvGroup.Records) != 2 {
		t.Fatal("Expected 2 bursts in the VV group")
	}
	// Sorted by start time regardless of input order.
	if vvGroup.Records[0].ID != 136231 || vvGroup.Records[1].ID != 136232 {
		t.Errorf("Group not sorted: IDs %d, %d", vvGroup.Records[0].ID, vvGroup.Records[1].ID)
	}

	keys := SortedKeys(groups)
	want := []GroupKey{
		{Swath: "IW2", Polarization: burst.PolVH},
		{Swath: "IW2", Polarization: burst.PolVV},
	}
	for i, key := range keys {
		if key != want[i] {
			t.Errorf("Key %d: expected %v, got %v", i, want[i], key)
		}
	}
}

func TestGroupWindow(t *testing.T) {
	group := fixtureGroup(t, false)
	start, stop := group.Window()
	if !start.Equal(fixtureT0) {
		t.Errorf("Expected start %s, got %s", fixtureT0, start)
	}
	if got := stop.Sub(start).Seconds(); got != 3.5 {
		t.Errorf("Expected 3.5s window, got %gs", got)
	}
}

func TestComputeLayoutConsecutive(t *testing.T) {
	group := fixtureGroup(t, false)
	layout := group.ComputeLayout()

	if layout.StartLine != 0 {
		t.Errorf("Expected start line 0, got %d", layout.StartLine)
	}
	if layout.LinesPerBurst != 4 || layout.TotalLines != 8 {
		t.Errorf("Unexpected dimensions: %d lines per burst, %d total", layout.LinesPerBurst, layout.TotalLines)
	}
	if layout.Offsets[0] != 0 || layout.Offsets[1] != 4 {
		t.Errorf("Unexpected offsets %v", layout.Offsets)
	}
	if layout.Trims[0] != 0 || layout.Trims[1] != 0 {
		t.Errorf("Unexpected trims %v", layout.Trims)
	}
}

func TestComputeLayoutMidSliceStart(t *testing.T) {
	// A group starting at burst index 3 of its SLC starts 12 lines in.
	group := fixtureGroup(t, false)
	group.Records[0].Index = 3
	group.Records[1].Index = 4

	layout := group.ComputeLayout()
	if layout.StartLine != 12 {
		t.Errorf("Expected start line 12, got %d", layout.StartLine)
	}
	if layout.Offsets[1] != 4 || layout.TotalLines != 8 {
		t.Errorf("Unexpected placement: offsets %v, total %d", layout.Offsets, layout.TotalLines)
	}
}

func TestComputeLayoutRepeatedIndex(t *testing.T) {
	// Bursts of consecutive SLC slices restart their index; the second
	// burst's lines are already covered and must be fully trimmed.
	group := fixtureGroup(t, false)
	group.Records[1].Index = 0

	layout := group.ComputeLayout()
	if layout.Offsets[1] != 0 {
		t.Errorf("Expected offset 0, got %d", layout.Offsets[1])
	}
	if layout.Trims[1] != 4 {
		t.Errorf("Expected trim 4, got %d", layout.Trims[1])
	}
	if layout.TotalLines != 4 {
		t.Errorf("Expected 4 total lines, got %d", layout.TotalLines)
	}
}

func TestSLCInputs(t *testing.T) {
	group := fixtureGroup(t, false)
	records, lengths, err := group.SLCInputs()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// Both bursts come from the same SLC and share annotation trees.
	if len(records) != 1 {
		t.Fatalf("Expected 1 distinct SLC, got %d", len(records))
	}
	if lengths[0] != 8 {
		t.Errorf("Expected SLC length 8, got %d", lengths[0])
	}

	group.Records[1].Documents = nil
	group.Records[1].SLCGranule = "other"
	if _, _, err := group.SLCInputs(); err == nil {
		t.Error("Expected error for a record without annotation documents")
	}
}
