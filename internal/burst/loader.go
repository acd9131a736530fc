package burst

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/robert-malhotra/burst2safe/pkg/xmltree"
)

// Metadata wraps one ASF combined metadata file: the source SLC manifest plus
// the per-swath, per-polarization annotation documents.
type Metadata struct {
	root *xmltree.Element
}

// ParseMetadata reads an ASF combined metadata document.
func ParseMetadata(r io.Reader) (*Metadata, error) {
	root, err := xmltree.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &Metadata{root: root}, nil
}

// ParseMetadataFile reads an ASF combined metadata XML file.
func ParseMetadataFile(path string) (*Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata file: %w", err)
	}
	defer f.Close()

	meta, err := ParseMetadata(f)
	if err != nil {
		return nil, fmt.Errorf("metadata file %s: %w", path, err)
	}
	return meta, nil
}

// Manifest returns the embedded source SLC manifest (the XFDU root).
func (m *Metadata) Manifest() (*xmltree.Element, error) {
	manifest := m.root.Find("manifest/XFDU")
	if manifest == nil {
		return nil, fmt.Errorf("combined metadata has no manifest/XFDU element")
	}
	return manifest, nil
}

// Document returns the annotation tree of the given type for one swath and
// polarization, or nil if the combined file does not carry it (RFI is absent
// for older processor versions).
func (m *Metadata) Document(doc DocType, swath Swath, pol Polarization) *xmltree.Element {
	meta := m.root.Find("metadata")
	if meta == nil {
		return nil
	}
	for _, candidate := range meta.Children {
		if candidate.Name != string(doc) {
			continue
		}
		if Swath(candidate.FindText("swath")) != swath {
			continue
		}
		if Polarization(candidate.FindText("polarisation")) != pol {
			continue
		}
		return candidate.Find("content")
	}
	return nil
}

// SwathsPresent lists the (swath, polarization) pairs carrying a product
// annotation in the combined file. Used by include-all-annotations mode.
func (m *Metadata) SwathsPresent() [][2]string {
	meta := m.root.Find("metadata")
	if meta == nil {
		return nil
	}
	var pairs [][2]string
	for _, candidate := range meta.Children {
		if candidate.Name != string(DocProduct) {
			continue
		}
		pairs = append(pairs, [2]string{candidate.FindText("swath"), candidate.FindText("polarisation")})
	}
	return pairs
}

// Reference holds the identity of a burst to load, as returned by the
// catalog search.
type Reference struct {
	Granule       string
	SLCGranule    string
	Swath         Swath
	Polarization  Polarization
	ID            int64
	Index         int
	Direction     string
	AbsoluteOrbit int
	RelativeOrbit int

	DataURL      string
	MetadataURL  string
	DataPath     string
	MetadataPath string
}

// Load materializes a Record from the reference's downloaded metadata and
// raster files, deriving timing and shape from the product annotation the
// way the vendor annotation defines them (azimuthTime of the burst entry,
// linesPerBurst, samplesPerBurst, azimuthTimeInterval).
func Load(ref Reference) (*Record, error) {
	meta, err := ParseMetadataFile(ref.MetadataPath)
	if err != nil {
		return nil, err
	}

	manifest, err := meta.Manifest()
	if err != nil {
		return nil, fmt.Errorf("burst %s: %w", ref.Granule, err)
	}

	documents := make(map[DocType]*xmltree.Element)
	for _, doc := range DocTypes {
		tree := meta.Document(doc, ref.Swath, ref.Polarization)
		if tree == nil {
			if doc == DocRFI {
				continue // only present for IPF >= 3.40
			}
			return nil, fmt.Errorf("burst %s: combined metadata is missing the %s document for %s %s",
				ref.Granule, doc, ref.Swath, ref.Polarization)
		}
		documents[doc] = tree
	}

	timing, err := deriveTiming(documents[DocProduct], ref.Index)
	if err != nil {
		return nil, fmt.Errorf("burst %s: %w", ref.Granule, err)
	}

	record := &Record{
		Granule:       ref.Granule,
		SLCGranule:    ref.SLCGranule,
		ID:            ref.ID,
		Index:         ref.Index,
		Swath:         ref.Swath,
		Polarization:  ref.Polarization,
		Mode:          ref.Swath.Mode(),
		AbsoluteOrbit: ref.AbsoluteOrbit,
		RelativeOrbit: ref.RelativeOrbit,
		Direction:     ref.Direction,
		Timing:        timing,
		Documents:     documents,
		Manifest:      manifest,
		SLC:           meta,
		DataURL:       ref.DataURL,
		MetadataURL:   ref.MetadataURL,
		DataPath:      ref.DataPath,
		MetadataPath:  ref.MetadataPath,
	}

	if ref.DataPath != "" {
		raster, err := ReadRasterFile(ref.DataPath, timing.Lines, mustSamplesPerBurst(documents[DocProduct]))
		if err != nil {
			return nil, fmt.Errorf("burst %s: %w", ref.Granule, err)
		}
		record.Raster = raster
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}
	return record, nil
}

// deriveTiming reads the burst's azimuth window from the product annotation.
// Start is the burst entry's azimuthTime; stop is start plus
// (lines-1) * azimuthTimeInterval, since adjacent bursts overlap in time.
func deriveTiming(product *xmltree.Element, index int) (Timing, error) {
	lines, err := product.FindInt("swathTiming/linesPerBurst")
	if err != nil {
		return Timing{}, err
	}

	bursts := product.FindAll("swathTiming/burstList/burst")
	if index < 0 || index >= len(bursts) {
		return Timing{}, fmt.Errorf("burst index %d out of range, annotation has %d bursts", index, len(bursts))
	}

	start, err := time.Parse(timeLayout, bursts[index].FindText("azimuthTime"))
	if err != nil {
		return Timing{}, fmt.Errorf("invalid burst azimuthTime: %w", err)
	}

	interval := product.FirstDescendant("azimuthTimeInterval")
	if interval == nil {
		return Timing{}, fmt.Errorf("product annotation has no azimuthTimeInterval")
	}
	seconds, err := interval.AsFloat()
	if err != nil {
		return Timing{}, err
	}

	stop := start.Add(time.Duration(float64(lines-1) * seconds * float64(time.Second)))
	return Timing{Start: start, Stop: stop, Lines: lines}, nil
}

func mustSamplesPerBurst(product *xmltree.Element) int {
	samples, err := product.FindInt("swathTiming/samplesPerBurst")
	if err != nil {
		return 0
	}
	return samples
}

// timeLayout is the vendor annotation timestamp format (ISO 8601 with
// microseconds, no zone designator).
const timeLayout = "2006-01-02T15:04:05.000000"

// FormatTime renders a time in the vendor annotation format.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime parses a vendor annotation timestamp.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid annotation timestamp %q: %w", s, err)
	}
	return t, nil
}

// ReadRasterFile reads a burst raster tile stored as interleaved little-
// endian int16 real/imaginary pairs (the sample layout of the vendor CInt16
// rasters). Per-line validity bounds are derived from the leading and
// trailing zero-filled regions of each line.
func ReadRasterFile(path string, rows, cols int) (*Raster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read raster file: %w", err)
	}
	if len(data) != rows*cols*4 {
		return nil, fmt.Errorf("raster file %s has %d bytes, expected %d (%dx%d CInt16)",
			path, len(data), rows*cols*4, rows, cols)
	}

	raster := &Raster{
		Rows:       rows,
		Cols:       cols,
		Samples:    make([]complex64, rows*cols),
		FirstValid: make([]int, rows),
		LastValid:  make([]int, rows),
	}
	for i := range raster.Samples {
		re := int16(binary.LittleEndian.Uint16(data[i*4:]))
		im := int16(binary.LittleEndian.Uint16(data[i*4+2:]))
		raster.Samples[i] = complex(float32(re), float32(im))
	}
	for row := 0; row < rows; row++ {
		raster.FirstValid[row], raster.LastValid[row] = validBounds(raster, row)
	}
	return raster, nil
}

func validBounds(r *Raster, row int) (first, last int) {
	first, last = -1, -1
	for col := 0; col < r.Cols; col++ {
		if r.At(row, col) != 0 {
			first = col
			break
		}
	}
	if first == -1 {
		return -1, -1
	}
	for col := r.Cols - 1; col >= first; col-- {
		if r.At(row, col) != 0 {
			last = col
			break
		}
	}
	return first, last
}

// Mean and standard deviation of the valid (nonzero) samples of a raster,
// computed separately for the real and imaginary parts, matching the product
// annotation's image statistics definition.
func RasterStats(samples []complex64) (mean, std complex64) {
	var sumRe, sumIm float64
	var n int
	for _, s := range samples {
		if s == 0 {
			continue
		}
		sumRe += float64(real(s))
		sumIm += float64(imag(s))
		n++
	}
	if n == 0 {
		return 0, 0
	}
	meanRe := sumRe / float64(n)
	meanIm := sumIm / float64(n)

	var varRe, varIm float64
	for _, s := range samples {
		if s == 0 {
			continue
		}
		varRe += (float64(real(s)) - meanRe) * (float64(real(s)) - meanRe)
		varIm += (float64(imag(s)) - meanIm) * (float64(imag(s)) - meanIm)
	}
	return complex(float32(meanRe), float32(meanIm)),
		complex(float32(math.Sqrt(varRe/float64(n))), float32(math.Sqrt(varIm/float64(n))))
}
