// Package search locates Sentinel-1 burst products in the ASF catalog,
// either by granule name or by orbit and geographic extent.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/robert-malhotra/burst2safe/internal/burst"
	"github.com/robert-malhotra/burst2safe/pkg/geojson"
)

// Backend is a catalog capable of answering burst queries.
type Backend interface {
	Name() string
	Search(ctx context.Context, params Params) ([]*Result, error)
}

// GroupQuery describes an extent-based burst search.
type GroupQuery struct {
	// Orbit is the absolute orbit number, or the relative orbit number
	// when UseRelativeOrbit is set.
	Orbit int
	// Extent is the lon/lat bounding box (minLon, minLat, maxLon, maxLat)
	// the bursts must intersect.
	Extent [4]float64
	// Polarizations defaults to VV.
	Polarizations []string
	// Swaths limits the result to specific subswaths; empty means all.
	Swaths []string
	// Mode is the acquisition mode, IW or EW.
	Mode string
	// MinBursts is the smallest acceptable group size per (swath,
	// polarization); undersized groups are padded with neighboring bursts.
	MinBursts int

	// UseRelativeOrbit switches Orbit to the relative orbit number, which
	// requires the date window below.
	UseRelativeOrbit bool
	Start            *time.Time
	End              *time.Time
}

// Searcher runs burst queries against a catalog backend.
type Searcher struct {
	backend Backend
	logger  *slog.Logger
}

// NewSearcher creates a Searcher on the given backend.
func NewSearcher(backend Backend) *Searcher {
	return &Searcher{backend: backend, logger: slog.Default()}
}

// WithLogger sets the logger used during searches.
func (s *Searcher) WithLogger(logger *slog.Logger) *Searcher {
	s.logger = logger
	return s
}

// FindGranules looks up burst products by granule name. Every requested
// granule must be found.
func (s *Searcher) FindGranules(ctx context.Context, granules []string) ([]*Result, error) {
	results, err := s.backend.Search(ctx, Params{ProductList: granules})
	if err != nil {
		return nil, fmt.Errorf("%s granule search: %w", s.backend.Name(), err)
	}

	found := make(map[string]bool, len(results))
	for _, result := range results {
		found[result.Granule] = true
	}
	var missing []string
	for _, granule := range granules {
		if !found[granule] {
			missing = append(missing, granule)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("failed to find granule(s) %s; check search parameters on Vertex",
			strings.Join(missing, ", "))
	}
	return results, nil
}

// FindGroup runs an extent-based search and splits the hits into (swath,
// polarization) groups, padding each to MinBursts with neighboring bursts
// from the same orbit.
func (s *Searcher) FindGroup(ctx context.Context, query GroupQuery) ([]*Result, error) {
	if err := validateQuery(&query); err != nil {
		return nil, err
	}

	footprint, err := geojson.NewPolygonFromBBox(query.Extent[:])
	if err != nil {
		return nil, fmt.Errorf("search extent: %w", err)
	}
	wkt, err := geojson.ToWKT(footprint)
	if err != nil {
		return nil, fmt.Errorf("search extent: %w", err)
	}

	params := Params{
		IntersectsWith: wkt,
		BeamMode:       query.Mode,
	}
	if query.UseRelativeOrbit {
		params.RelativeOrbit = query.Orbit
		params.Start = query.Start
		params.End = query.End
	} else {
		params.AbsoluteOrbit = query.Orbit
	}

	hits, err := s.backend.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%s group search: %w", s.backend.Name(), err)
	}
	s.logger.Info("group search", "backend", s.backend.Name(), "hits", len(hits))

	orbits := []int{0}
	if query.UseRelativeOrbit {
		seen := map[int]bool{}
		orbits = orbits[:0]
		for _, hit := range hits {
			if !seen[hit.AbsoluteOrbit] {
				seen[hit.AbsoluteOrbit] = true
				orbits = append(orbits, hit.AbsoluteOrbit)
			}
		}
		slices.Sort(orbits)
	}

	swaths := query.Swaths
	if len(swaths) == 0 {
		swaths = []string{""}
	}

	var final []*Result
	for _, orbit := range orbits {
		for _, pol := range query.Polarizations {
			for _, swath := range swaths {
				group, err := s.burstGroup(ctx, hits, pol, swath, orbit, query.MinBursts)
				if err != nil {
					return nil, err
				}
				final = append(final, group...)
			}
		}
	}
	return final, nil
}

// burstGroup extracts one (polarization, swath, orbit) subset, querying the
// catalog for surrounding bursts when the subset is under MinBursts.
func (s *Searcher) burstGroup(ctx context.Context, hits []*Result, pol, swath string, orbit, minBursts int) ([]*Result, error) {
	var desc []string
	subset := hits
	if orbit > 0 {
		subset = filterBy(subset, func(r *Result) bool { return r.AbsoluteOrbit == orbit })
		desc = append(desc, fmt.Sprintf("orbit %d", orbit))
	}
	if swath != "" {
		subset = filterBy(subset, func(r *Result) bool { return r.Swath == swath })
		desc = append(desc, "swath "+swath)
	}
	subset = filterBy(subset, func(r *Result) bool { return r.Polarization == pol })
	desc = append(desc, "polarization "+pol)
	what := strings.Join(desc, ", ")

	if len(subset) == 0 {
		return nil, fmt.Errorf("no bursts found for %s; check search parameters on Vertex", what)
	}

	if len(subset) < minBursts {
		padded, err := s.addSurroundingBursts(ctx, subset, minBursts)
		if err != nil {
			return nil, fmt.Errorf("padding group for %s: %w", what, err)
		}
		subset = padded
	}
	if len(subset) < minBursts {
		return nil, fmt.Errorf("less than %d bursts found for %s; check search parameters on Vertex", minBursts, what)
	}
	return subset, nil
}

// addSurroundingBursts widens the group symmetrically along the relative
// burst ID axis until it holds minBursts bursts, then fetches the extra IDs
// from the catalog.
func (s *Searcher) addSurroundingBursts(ctx context.Context, group []*Result, minBursts int) ([]*Result, error) {
	minID, maxID := group[0].RelativeBurstID, group[0].RelativeBurstID
	for _, r := range group[1:] {
		minID = min(minID, r.RelativeBurstID)
		maxID = max(maxID, r.RelativeBurstID)
	}

	parts := strings.Split(group[0].FullBurstID, "_")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed fullBurstID %q", group[0].FullBurstID)
	}
	relativeOrbit, swath := parts[0], parts[2]

	extra := int64(minBursts-int(maxID-minID+1)) / 2
	minID -= extra
	maxID += extra
	if maxID-minID+1 != int64(minBursts) {
		maxID++
	}

	ids := make([]string, 0, maxID-minID+1)
	for id := minID; id <= maxID; id++ {
		ids = append(ids, fmt.Sprintf("%s_%06d_%s", relativeOrbit, id, swath))
	}

	s.logger.Info("padding burst group",
		"full_burst_ids", len(ids), "have", len(group), "want", minBursts)

	results, err := s.backend.Search(ctx, Params{
		FullBurstIDs:  ids,
		AbsoluteOrbit: group[0].AbsoluteOrbit,
		Polarization:  []string{group[0].Polarization},
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func validateQuery(query *GroupQuery) error {
	if len(query.Polarizations) == 0 {
		query.Polarizations = []string{"VV"}
	}
	for _, pol := range query.Polarizations {
		if !burst.Polarization(pol).Valid() {
			return fmt.Errorf("invalid polarization %q", pol)
		}
	}

	mode := burst.Mode(query.Mode)
	if query.Mode == "" {
		mode = burst.ModeIW
		query.Mode = string(mode)
	}
	if !mode.Valid() {
		return fmt.Errorf("invalid mode %q: must be IW or EW", query.Mode)
	}

	valid := mode.Swaths()
	for _, swath := range query.Swaths {
		if !slices.Contains(valid, burst.Swath(swath)) {
			return fmt.Errorf("invalid swath %q for mode %s", swath, mode)
		}
	}

	if query.UseRelativeOrbit && (query.Start == nil || query.End == nil) {
		return fmt.Errorf("relative orbit search requires start and end dates")
	}
	return nil
}

func filterBy(results []*Result, keep func(*Result) bool) []*Result {
	out := make([]*Result, 0, len(results))
	for _, r := range results {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}
