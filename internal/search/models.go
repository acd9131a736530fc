package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robert-malhotra/burst2safe/pkg/geojson"
)

// Result is one burst product hit, carrying everything needed to download
// and identify the burst.
type Result struct {
	// Granule is the burst product fileID, e.g.
	// S1_136231_IW2_20200604T022312_VV_7C85-BURST.
	Granule string
	// SLCGranule is the parent SLC scene name.
	SLCGranule string
	// FullBurstID is relativeOrbit_relativeBurstID_swath.
	FullBurstID string
	// RelativeBurstID is the ESA burst ID within the relative orbit.
	RelativeBurstID int64
	// BurstIndex is the burst's position within its source SLC swath.
	BurstIndex int
	Swath      string
	// Polarization is VV, VH, HV, or HH.
	Polarization    string
	AbsoluteOrbit   int
	FlightDirection string

	// DataURL locates the burst raster extract; MetadataURL the combined
	// XML metadata of the parent SLC.
	DataURL     string
	MetadataURL string

	Footprint *geojson.Geometry
}

// RelativeOrbit derives the relative orbit number from the full burst ID.
func (r *Result) RelativeOrbit() (int, error) {
	parts := strings.Split(r.FullBurstID, "_")
	if len(parts) != 3 {
		return 0, fmt.Errorf("malformed fullBurstID %q", r.FullBurstID)
	}
	return strconv.Atoi(parts[0])
}

// asfResponse mirrors the geojson output of the ASF search endpoint,
// reduced to the burst fields this tool consumes.
type asfResponse struct {
	Features []asfFeature `json:"features"`
}

type asfFeature struct {
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties asfProperties     `json:"properties"`
}

type asfProperties struct {
	FileID          string    `json:"fileID"`
	SceneName       string    `json:"sceneName"`
	URL             string    `json:"url"`
	AdditionalUrls  []string  `json:"additionalUrls"`
	Polarization    string    `json:"polarization"`
	Orbit           int       `json:"orbit"`
	FlightDirection string    `json:"flightDirection"`
	Burst           *asfBurst `json:"burst"`
}

type asfBurst struct {
	AbsoluteBurstID int64  `json:"absoluteBurstID"`
	RelativeBurstID int64  `json:"relativeBurstID"`
	FullBurstID     string `json:"fullBurstID"`
	BurstIndex      int    `json:"burstIndex"`
	Subswath        string `json:"subswath"`
	SamplesPerBurst int    `json:"samplesPerBurst"`
	AzimuthTime     string `json:"azimuthTime"`
	AzimuthAnxTime  string `json:"azimuthAnxTime"`
}

// toResult converts an ASF feature to a Result. Features without a burst
// block are not burst products and are rejected.
func (f *asfFeature) toResult() (*Result, error) {
	props := f.Properties
	if props.Burst == nil {
		return nil, fmt.Errorf("granule %s is not a burst product", props.FileID)
	}
	if props.URL == "" {
		return nil, fmt.Errorf("granule %s has no data url", props.FileID)
	}
	metadataURL := ""
	for _, u := range props.AdditionalUrls {
		if strings.HasSuffix(u, ".xml") {
			metadataURL = u
			break
		}
	}
	if metadataURL == "" {
		return nil, fmt.Errorf("granule %s has no metadata url", props.FileID)
	}

	// The SLC scene is the stem of the metadata file name.
	slcGranule := strings.TrimSuffix(pathBase(metadataURL), ".xml")

	return &Result{
		Granule:         props.FileID,
		SLCGranule:      slcGranule,
		FullBurstID:     props.Burst.FullBurstID,
		RelativeBurstID: props.Burst.RelativeBurstID,
		BurstIndex:      props.Burst.BurstIndex,
		Swath:           props.Burst.Subswath,
		Polarization:    props.Polarization,
		AbsoluteOrbit:   props.Orbit,
		FlightDirection: props.FlightDirection,
		DataURL:         props.URL,
		MetadataURL:     metadataURL,
		Footprint:       f.Geometry,
	}, nil
}

func pathBase(u string) string {
	if i := strings.LastIndexByte(u, '/'); i >= 0 {
		return u[i+1:]
	}
	return u
}
