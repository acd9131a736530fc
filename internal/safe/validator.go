package safe

import (
	"fmt"
	"sort"
	"time"

	"github.com/robert-malhotra/burst2safe/internal/burst"
	"github.com/robert-malhotra/burst2safe/pkg/geojson"
)

// FootprintTolerance is the maximum per-coordinate disagreement, in degrees,
// allowed between the footprint unions of different polarizations.
const FootprintTolerance = 0.1

// contiguityGapFactor bounds the gap between consecutive bursts: the next
// burst must start within this many beam cycles of the previous stop.
const contiguityGapFactor = 2.0

// CheckEligibility verifies that a candidate set of bursts can legally form
// one product. Rules are evaluated in a fixed order and the first violation
// is returned as a classified EligibilityError. The check is pure: the input
// set is not modified.
//
// A valid burst group must:
//   - Have the same acquisition mode
//   - Be from the same absolute orbit
//   - Be contiguous in time and space
//   - Have the same footprint for all included polarizations
func CheckEligibility(records []*burst.Record) error {
	if len(records) == 0 {
		return &EligibilityError{Rule: RuleSameMode, Details: "no bursts provided"}
	}

	if err := checkSameMode(records); err != nil {
		return err
	}
	if err := checkSameOrbit(records); err != nil {
		return err
	}

	groups := GroupRecords(records)
	keys := SortedKeys(groups)
	for _, key := range keys {
		if err := checkSubgroup(groups[key]); err != nil {
			return err
		}
	}

	if err := checkCrossPolarization(groups, keys); err != nil {
		return err
	}
	return checkSwathOverlap(groups, keys)
}

func checkSameMode(records []*burst.Record) error {
	mode := records[0].Mode
	for _, record := range records[1:] {
		if record.Mode != mode {
			return &EligibilityError{
				Rule:    RuleSameMode,
				Bursts:  []string{records[0].Granule, record.Granule},
				Details: fmt.Sprintf("found modes %s and %s", mode, record.Mode),
			}
		}
	}
	return nil
}

func checkSameOrbit(records []*burst.Record) error {
	orbit := records[0].AbsoluteOrbit
	for _, record := range records[1:] {
		if record.AbsoluteOrbit != orbit {
			return &EligibilityError{
				Rule:    RuleSameOrbit,
				Bursts:  []string{records[0].Granule, record.Granule},
				Details: fmt.Sprintf("found absolute orbits %d and %d", orbit, record.AbsoluteOrbit),
			}
		}
	}
	return nil
}

// checkSubgroup validates one (swath, polarization) group: no duplicate
// granules, consecutive burst IDs, and temporal contiguity between
// consecutive members.
func checkSubgroup(group *Group) error {
	seen := make(map[string]bool)
	for _, record := range group.Records {
		if seen[record.Granule] {
			return &EligibilityError{
				Rule:    RuleDuplicateGranule,
				Bursts:  []string{record.Granule},
				Details: fmt.Sprintf("duplicate granule %s", record.Granule),
			}
		}
		seen[record.Granule] = true
	}

	ids := make([]int64, len(group.Records))
	for i, record := range group.Records {
		ids[i] = record.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i := 1; i < len(ids); i++ {
		if ids[i] != ids[i-1]+1 {
			return &EligibilityError{
				Rule:    RuleConsecutiveBursts,
				Bursts:  granules(group.Records),
				Details: fmt.Sprintf("burst IDs for %s %s are not consecutive: %v", group.Swath, group.Polarization, ids),
			}
		}
	}

	maxGap := maxContiguityGap(group.Records[0].Mode)
	for i := 1; i < len(group.Records); i++ {
		prev, next := group.Records[i-1], group.Records[i]
		gap := next.Timing.Start.Sub(prev.Timing.Stop)
		if gap > maxGap {
			return &EligibilityError{
				Rule:   RuleContiguousTiming,
				Bursts: []string{prev.Granule, next.Granule},
				Details: fmt.Sprintf("gap of %s between bursts %s and %s exceeds %s",
					gap, prev.Granule, next.Granule, maxGap),
			}
		}
	}
	return nil
}

func maxContiguityGap(mode burst.Mode) time.Duration {
	return time.Duration(contiguityGapFactor * float64(burst.BeamCycleTime(mode)))
}

// checkCrossPolarization verifies that every polarization covers the same
// burst ID range per swath and that the footprint unions agree within
// tolerance.
func checkCrossPolarization(groups map[GroupKey]*Group, keys []GroupKey) error {
	ranges := make(map[burst.Swath]map[burst.Polarization][2]int64)
	unions := make(map[burst.Polarization]*geojson.Geometry)

	for _, key := range keys {
		group := groups[key]
		low, high := group.Records[0].ID, group.Records[0].ID
		var footprints []*geojson.Geometry
		for _, record := range group.Records {
			if record.ID < low {
				low = record.ID
			}
			if record.ID > high {
				high = record.ID
			}
			if record.Footprint != nil {
				footprints = append(footprints, record.Footprint)
			}
		}
		if ranges[key.Swath] == nil {
			ranges[key.Swath] = make(map[burst.Polarization][2]int64)
		}
		ranges[key.Swath][key.Polarization] = [2]int64{low, high}

		if len(footprints) > 0 {
			union, err := geojson.Union(footprints...)
			if err != nil {
				return fmt.Errorf("failed to compute footprint union for %s %s: %w", key.Swath, key.Polarization, err)
			}
			if unions[key.Polarization] == nil {
				unions[key.Polarization], err = geojson.Union(union)
				if err != nil {
					return err
				}
			} else {
				unions[key.Polarization], err = geojson.Union(unions[key.Polarization], union)
				if err != nil {
					return err
				}
			}
		}
	}

	for swath, byPol := range ranges {
		var reference *[2]int64
		var refPol burst.Polarization
		for _, pol := range sortedPols(byPol) {
			r := byPol[pol]
			if reference == nil {
				reference, refPol = &r, pol
				continue
			}
			if r != *reference {
				return &EligibilityError{
					Rule: RuleCrossPolFootprint,
					Details: fmt.Sprintf("polarization groups in swath %s cover different burst ranges: %s=%v, %s=%v",
						swath, refPol, *reference, pol, r),
				}
			}
		}
	}

	var refUnion *geojson.Geometry
	var refPol burst.Polarization
	for _, pol := range sortedUnionPols(unions) {
		union := unions[pol]
		if refUnion == nil {
			refUnion, refPol = union, pol
			continue
		}
		equal, err := geojson.EqualWithin(refUnion, union, FootprintTolerance)
		if err != nil {
			return fmt.Errorf("failed to compare footprint unions: %w", err)
		}
		if !equal {
			return &EligibilityError{
				Rule: RuleCrossPolFootprint,
				Details: fmt.Sprintf("footprint union of polarization %s disagrees with %s beyond %g degrees",
					pol, refPol, FootprintTolerance),
			}
		}
	}
	return nil
}

// checkSwathOverlap verifies that adjacent swaths cover overlapping burst ID
// ranges (off-by-one at most), so the product is spatially continuous in
// range as well as azimuth.
func checkSwathOverlap(groups map[GroupKey]*Group, keys []GroupKey) error {
	swaths := make([]burst.Swath, 0)
	seen := make(map[burst.Swath]bool)
	for _, key := range keys {
		if !seen[key.Swath] {
			seen[key.Swath] = true
			swaths = append(swaths, key.Swath)
		}
	}
	if len(swaths) < 2 {
		return nil
	}

	// Compare using the first polarization present in every swath.
	pol := keys[0].Polarization
	rangeFor := func(swath burst.Swath) ([2]int64, bool) {
		group, ok := groups[GroupKey{Swath: swath, Polarization: pol}]
		if !ok {
			return [2]int64{}, false
		}
		low, high := group.Records[0].ID, group.Records[0].ID
		for _, record := range group.Records {
			if record.ID < low {
				low = record.ID
			}
			if record.ID > high {
				high = record.ID
			}
		}
		return [2]int64{low, high}, true
	}

	for i := 0; i < len(swaths)-1; i++ {
		a, okA := rangeFor(swaths[i])
		b, okB := rangeFor(swaths[i+1])
		if !okA || !okB {
			continue
		}
		if abs64(a[0]-b[0]) > 1 || abs64(a[1]-b[1]) > 1 {
			return &EligibilityError{
				Rule: RuleSwathOverlap,
				Details: fmt.Sprintf("products from swaths %s and %s do not overlap (ID ranges %v and %v)",
					swaths[i], swaths[i+1], a, b),
			}
		}
	}
	return nil
}

func granules(records []*burst.Record) []string {
	names := make([]string, len(records))
	for i, record := range records {
		names[i] = record.Granule
	}
	return names
}

func sortedPols(byPol map[burst.Polarization][2]int64) []burst.Polarization {
	pols := make([]burst.Polarization, 0, len(byPol))
	for pol := range byPol {
		pols = append(pols, pol)
	}
	sort.Slice(pols, func(i, j int) bool { return pols[i] < pols[j] })
	return pols
}

func sortedUnionPols(unions map[burst.Polarization]*geojson.Geometry) []burst.Polarization {
	pols := make([]burst.Polarization, 0, len(unions))
	for pol := range unions {
		pols = append(pols, pol)
	}
	sort.Slice(pols, func(i, j int) bool { return pols[i] < pols[j] })
	return pols
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
