package search

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

// fakeBackend records queries and replies from a canned script.
type fakeBackend struct {
	calls   []Params
	results [][]*Result
	err     error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Search(_ context.Context, params Params) ([]*Result, error) {
	f.calls = append(f.calls, params)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) == 0 {
		return nil, nil
	}
	page := f.results[0]
	f.results = f.results[1:]
	return page, nil
}

func fakeResult(id int64, swath, pol string) *Result {
	return &Result{
		Granule:         fmt.Sprintf("S1_%06d_%s_20240101T000000_%s_ABCD-BURST", id, swath, pol),
		SLCGranule:      "S1A_IW_SLC__1SDV_20240101T000000_20240101T000030_051001_0629E5_ABCD",
		FullBurstID:     fmt.Sprintf("104_%06d_%s", id, swath),
		RelativeBurstID: id,
		Swath:           swath,
		Polarization:    pol,
		AbsoluteOrbit:   51001,
		FlightDirection: "ASCENDING",
		DataURL:         "https://example.com/data.tiff",
		MetadataURL:     "https://example.com/meta.xml",
	}
}

func TestFindGranules(t *testing.T) {
	backend := &fakeBackend{results: [][]*Result{{
		fakeResult(136231, "IW2", "VV"),
		fakeResult(136232, "IW2", "VV"),
	}}}
	searcher := NewSearcher(backend)

	granules := []string{
		fakeResult(136231, "IW2", "VV").Granule,
		fakeResult(136232, "IW2", "VV").Granule,
	}
	results, err := searcher.FindGranules(context.Background(), granules)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 results, got %d", len(results))
	}
	if got := backend.calls[0].ProductList; len(got) != 2 {
		t.Errorf("Unexpected product list %v", got)
	}
}

func TestFindGranulesMissing(t *testing.T) {
	backend := &fakeBackend{results: [][]*Result{{fakeResult(136231, "IW2", "VV")}}}
	searcher := NewSearcher(backend)

	_, err := searcher.FindGranules(context.Background(), []string{
		fakeResult(136231, "IW2", "VV").Granule,
		"S1_000001_IW1_20240101T000000_VV_FFFF-BURST",
	})
	if err == nil {
		t.Fatal("Expected error for a missing granule")
	}
	if !strings.Contains(err.Error(), "S1_000001_IW1") {
		t.Errorf("Expected the missing granule in the error, got %v", err)
	}
}

func TestFindGroup(t *testing.T) {
	backend := &fakeBackend{results: [][]*Result{{
		fakeResult(136231, "IW2", "VV"),
		fakeResult(136232, "IW2", "VV"),
		fakeResult(136231, "IW2", "VH"),
	}}}
	searcher := NewSearcher(backend)

	results, err := searcher.FindGroup(context.Background(), GroupQuery{
		Orbit:  51001,
		Extent: [4]float64{20, 10, 21, 11},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// Polarizations default to VV, so the VH hit is dropped.
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}

	params := backend.calls[0]
	if params.AbsoluteOrbit != 51001 {
		t.Errorf("Unexpected orbit %d", params.AbsoluteOrbit)
	}
	if params.BeamMode != "IW" {
		t.Errorf("Expected the mode to default to IW, got %q", params.BeamMode)
	}
	if !strings.HasPrefix(params.IntersectsWith, "POLYGON((") {
		t.Errorf("Expected a WKT polygon, got %q", params.IntersectsWith)
	}
}

func TestFindGroupPadsUndersizedGroups(t *testing.T) {
	seed := fakeResult(136231, "IW2", "VV")
	padded := []*Result{
		fakeResult(136230, "IW2", "VV"),
		seed,
		fakeResult(136232, "IW2", "VV"),
	}
	backend := &fakeBackend{results: [][]*Result{{seed}, padded}}
	searcher := NewSearcher(backend)

	results, err := searcher.FindGroup(context.Background(), GroupQuery{
		Orbit:     51001,
		Extent:    [4]float64{20, 10, 21, 11},
		MinBursts: 3,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Expected 3 results, got %d", len(results))
	}

	// The padding query widens the ID range symmetrically around the hit.
	ids := backend.calls[1].FullBurstIDs
	want := []string{"104_136230_IW2", "104_136231_IW2", "104_136232_IW2"}
	if len(ids) != len(want) {
		t.Fatalf("Expected %d IDs, got %v", len(want), ids)
	}
	for i, id := range ids {
		if id != want[i] {
			t.Errorf("ID %d: expected %s, got %s", i, want[i], id)
		}
	}
	if backend.calls[1].AbsoluteOrbit != 51001 {
		t.Errorf("Unexpected padding orbit %d", backend.calls[1].AbsoluteOrbit)
	}
}

func TestFindGroupPadShortByOne(t *testing.T) {
	// An even widening target cannot split evenly; the range extends one
	// extra burst forward.
	seed := fakeResult(136231, "IW2", "VV")
	backend := &fakeBackend{results: [][]*Result{{seed}, {
		fakeResult(136230, "IW2", "VV"),
		seed,
		fakeResult(136232, "IW2", "VV"),
		fakeResult(136233, "IW2", "VV"),
	}}}
	searcher := NewSearcher(backend)

	_, err := searcher.FindGroup(context.Background(), GroupQuery{
		Orbit:     51001,
		Extent:    [4]float64{20, 10, 21, 11},
		MinBursts: 4,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	ids := backend.calls[1].FullBurstIDs
	if len(ids) != 4 || ids[0] != "104_136230_IW2" || ids[3] != "104_136233_IW2" {
		t.Errorf("Unexpected padded ID range %v", ids)
	}
}

func TestFindGroupNoHits(t *testing.T) {
	backend := &fakeBackend{}
	searcher := NewSearcher(backend)

	_, err := searcher.FindGroup(context.Background(), GroupQuery{
		Orbit:  51001,
		Extent: [4]float64{20, 10, 21, 11},
	})
	if err == nil || !strings.Contains(err.Error(), "no bursts found") {
		t.Errorf("Expected a no-bursts error, got %v", err)
	}
}

func TestFindGroupRelativeOrbit(t *testing.T) {
	// Two acquisitions of the same relative orbit produce one group each.
	pass1 := fakeResult(136231, "IW2", "VV")
	pass2 := fakeResult(136231, "IW2", "VV")
	pass2.AbsoluteOrbit = 51176
	backend := &fakeBackend{results: [][]*Result{{pass1, pass2}}}
	searcher := NewSearcher(backend)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	results, err := searcher.FindGroup(context.Background(), GroupQuery{
		Orbit:            104,
		UseRelativeOrbit: true,
		Start:            &start,
		End:              &end,
		Extent:           [4]float64{20, 10, 21, 11},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected one result per acquisition, got %d", len(results))
	}
	if backend.calls[0].RelativeOrbit != 104 || backend.calls[0].AbsoluteOrbit != 0 {
		t.Errorf("Unexpected orbit params %+v", backend.calls[0])
	}
}

func TestValidateQuery(t *testing.T) {
	base := func() GroupQuery {
		return GroupQuery{Orbit: 51001, Extent: [4]float64{20, 10, 21, 11}}
	}

	query := base()
	if err := validateQuery(&query); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(query.Polarizations) != 1 || query.Polarizations[0] != "VV" {
		t.Errorf("Expected the polarization to default to VV, got %v", query.Polarizations)
	}
	if query.Mode != "IW" {
		t.Errorf("Expected the mode to default to IW, got %s", query.Mode)
	}

	query = base()
	query.Polarizations = []string{"XX"}
	if err := validateQuery(&query); err == nil {
		t.Error("Expected error for invalid polarization")
	}

	query = base()
	query.Mode = "SM"
	if err := validateQuery(&query); err == nil {
		t.Error("Expected error for invalid mode")
	}

	query = base()
	query.Swaths = []string{"EW1"}
	if err := validateQuery(&query); err == nil {
		t.Error("Expected error for a swath outside the mode")
	}

	query = base()
	query.UseRelativeOrbit = true
	if err := validateQuery(&query); err == nil {
		t.Error("Expected error for relative orbit without a date window")
	}
}
