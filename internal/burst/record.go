// Package burst defines the in-memory representation of a single Sentinel-1
// burst product: identity, orbit and timing metadata, footprint, annotation
// documents, and the raster tile. Records are produced by the loader and are
// immutable once handed to the merge engine.
package burst

import (
	"fmt"
	"time"

	"github.com/robert-malhotra/burst2safe/pkg/geojson"
	"github.com/robert-malhotra/burst2safe/pkg/xmltree"
)

// Mode is a Sentinel-1 wide-swath acquisition mode.
type Mode string

const (
	ModeIW Mode = "IW"
	ModeEW Mode = "EW"
)

// Swaths returns the sub-swath names valid for the mode.
func (m Mode) Swaths() []Swath {
	switch m {
	case ModeIW:
		return []Swath{"IW1", "IW2", "IW3"}
	case ModeEW:
		return []Swath{"EW1", "EW2", "EW3", "EW4", "EW5"}
	}
	return nil
}

// Valid reports whether the mode is one of the supported wide-swath modes.
func (m Mode) Valid() bool {
	return m == ModeIW || m == ModeEW
}

// Polarization is a transmit/receive antenna configuration.
type Polarization string

const (
	PolVV Polarization = "VV"
	PolVH Polarization = "VH"
	PolHV Polarization = "HV"
	PolHH Polarization = "HH"
)

// Valid reports whether the polarization is one of the four combinations.
func (p Polarization) Valid() bool {
	switch p {
	case PolVV, PolVH, PolHV, PolHH:
		return true
	}
	return false
}

// Swath is a sub-swath name such as IW2 or EW4.
type Swath string

// Mode returns the acquisition mode the swath belongs to.
func (s Swath) Mode() Mode {
	if len(s) < 2 {
		return ""
	}
	return Mode(s[:2])
}

// DocType identifies one of the per-burst annotation document types.
type DocType string

const (
	DocProduct     DocType = "product"
	DocCalibration DocType = "calibration"
	DocNoise       DocType = "noise"
	DocRFI         DocType = "rfi"
)

// DocTypes lists the annotation document types in output order. RFI is only
// present for IPF versions >= 3.40.
var DocTypes = []DocType{DocProduct, DocCalibration, DocNoise, DocRFI}

// Timing holds the azimuth time extent of a burst.
type Timing struct {
	Start time.Time
	Stop  time.Time
	// Lines is the azimuth line span of the burst raster.
	Lines int
}

// Validate checks the timing invariants.
func (t Timing) Validate() error {
	if !t.Start.Before(t.Stop) {
		return fmt.Errorf("start time %s is not before stop time %s", t.Start, t.Stop)
	}
	if t.Lines <= 0 {
		return fmt.Errorf("azimuth line span must be positive, got %d", t.Lines)
	}
	return nil
}

// Raster is a burst's complex sample tile with per-line validity bounds.
// A bound of -1 marks a fully invalid line.
type Raster struct {
	Rows    int
	Cols    int
	Samples []complex64 // row-major, len == Rows*Cols

	FirstValid []int // per-line first valid sample index
	LastValid  []int // per-line last valid sample index (inclusive)
}

// At returns the sample at (row, col).
func (r *Raster) At(row, col int) complex64 {
	return r.Samples[row*r.Cols+col]
}

// Validate checks the raster's structural invariants against the given
// azimuth line span.
func (r *Raster) Validate(lines int) error {
	if r.Rows != lines {
		return fmt.Errorf("raster has %d lines, timing declares %d", r.Rows, lines)
	}
	if len(r.Samples) != r.Rows*r.Cols {
		return fmt.Errorf("raster has %d samples, expected %d", len(r.Samples), r.Rows*r.Cols)
	}
	if len(r.FirstValid) != r.Rows || len(r.LastValid) != r.Rows {
		return fmt.Errorf("validity bounds cover %d/%d lines, expected %d",
			len(r.FirstValid), len(r.LastValid), r.Rows)
	}
	return nil
}

// Record is one fully materialized input burst.
type Record struct {
	// Granule is the burst granule name (the catalog fileID).
	Granule string
	// SLCGranule is the parent SLC scene the burst was extracted from.
	SLCGranule string

	// ID is the ESA burst ID, stable for a physical burst across
	// acquisitions of the same relative orbit.
	ID int64
	// Index is the zero-based position of the burst within its source SLC
	// swath.
	Index int

	Swath        Swath
	Polarization Polarization
	Mode         Mode

	AbsoluteOrbit int
	RelativeOrbit int
	Direction     string

	Timing    Timing
	Footprint *geojson.Geometry

	// Documents maps each annotation document type to the field tree of the
	// source SLC (covering all bursts of the swath, not just this one).
	// Bursts from the same SLC share pointers to the same trees.
	Documents map[DocType]*xmltree.Element
	// Manifest is the source SLC manifest, used as the template for
	// carried-over metadata sections and for the IPF version.
	Manifest *xmltree.Element
	// SLC is the parsed combined metadata file the record was loaded from.
	// It carries annotations for every swath of the source scene, which
	// include-all-annotations mode reads for swaths without selected bursts.
	SLC *Metadata

	Raster *Raster

	DataURL      string
	MetadataURL  string
	DataPath     string
	MetadataPath string
}

// Validate checks the record's internal invariants.
func (r *Record) Validate() error {
	if !r.Mode.Valid() {
		return fmt.Errorf("burst %s: invalid mode %q", r.Granule, r.Mode)
	}
	if !r.Polarization.Valid() {
		return fmt.Errorf("burst %s: invalid polarization %q", r.Granule, r.Polarization)
	}
	if r.Swath.Mode() != r.Mode {
		return fmt.Errorf("burst %s: swath %s does not belong to mode %s", r.Granule, r.Swath, r.Mode)
	}
	if err := r.Timing.Validate(); err != nil {
		return fmt.Errorf("burst %s: %w", r.Granule, err)
	}
	if r.Raster != nil {
		if err := r.Raster.Validate(r.Timing.Lines); err != nil {
			return fmt.Errorf("burst %s: %w", r.Granule, err)
		}
	}
	return nil
}

// Document returns the annotation tree of the given type, or nil.
func (r *Record) Document(doc DocType) *xmltree.Element {
	if r.Documents == nil {
		return nil
	}
	return r.Documents[doc]
}

// IPFVersion extracts the processing facility software version from the
// source manifest (e.g. "3.71").
func (r *Record) IPFVersion() (string, error) {
	if r.Manifest == nil {
		return "", fmt.Errorf("burst %s: no manifest attached", r.Granule)
	}
	for _, software := range r.Manifest.Descendants("software") {
		if software.Attr("name") == "Sentinel-1 IPF" {
			return software.Attr("version"), nil
		}
	}
	return "", fmt.Errorf("burst %s: manifest has no Sentinel-1 IPF software entry", r.Granule)
}

// ParseIPFVersion splits an IPF version string into major and minor parts.
func ParseIPFVersion(version string) (major, minor int, err error) {
	if _, err := fmt.Sscanf(version, "%d.%d", &major, &minor); err != nil {
		return 0, 0, fmt.Errorf("invalid IPF version %q: %w", version, err)
	}
	return major, minor, nil
}
