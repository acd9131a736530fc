package search

import (
	"net/url"
	"strconv"
	"strings"
	"time"
)

// burstDataset is the ASF dataset name for Sentinel-1 burst products.
const burstDataset = "SLC-BURST"

// Params represents a burst search query. Zero-valued fields are omitted
// from the request.
type Params struct {
	// ProductList requests specific burst granules by fileID.
	ProductList []string
	// FullBurstIDs requests bursts by relativeOrbit_burstID_swath key.
	FullBurstIDs []string

	// IntersectsWith is a WKT geometry the burst footprints must cross.
	IntersectsWith string

	BeamMode      string
	Polarization  []string
	AbsoluteOrbit int
	RelativeOrbit int

	Start *time.Time
	End   *time.Time
}

// ToQueryString converts Params to a URL query string.
func (p *Params) ToQueryString() string {
	return p.ToURLValues().Encode()
}

// ToURLValues converts Params to url.Values for query string building.
func (p *Params) ToURLValues() url.Values {
	values := url.Values{}
	values.Set("dataset", burstDataset)

	if len(p.ProductList) > 0 {
		values.Set("product_list", strings.Join(p.ProductList, ","))
	}
	if len(p.FullBurstIDs) > 0 {
		values.Set("fullBurstID", strings.Join(p.FullBurstIDs, ","))
	}
	if p.IntersectsWith != "" {
		values.Set("intersectsWith", p.IntersectsWith)
	}
	if p.BeamMode != "" {
		values.Set("beamMode", p.BeamMode)
	}
	for _, pol := range p.Polarization {
		values.Add("polarization", pol)
	}
	if p.AbsoluteOrbit > 0 {
		values.Set("absoluteOrbit", strconv.Itoa(p.AbsoluteOrbit))
	}
	if p.RelativeOrbit > 0 {
		values.Set("relativeOrbit", strconv.Itoa(p.RelativeOrbit))
	}
	if p.Start != nil {
		values.Set("start", formatSearchTime(p.Start))
	}
	if p.End != nil {
		values.Set("end", formatSearchTime(p.End))
	}

	values.Set("output", "geojson")
	return values
}

// formatSearchTime formats a time.Time for ASF API queries.
// ASF expects ISO 8601 format: YYYY-MM-DDTHH:MM:SSZ.
func formatSearchTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05Z")
}
