package safe

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/robert-malhotra/burst2safe/internal/burst"
)

// Measurement is the stitched raster of one (swath, polarization) group.
type Measurement struct {
	Swath       burst.Swath
	Pol         burst.Polarization
	ImageNumber int
	Rows        int
	Cols        int
	Samples     []complex64
	GCPs        []GeoPoint

	Mean   complex64
	StdDev complex64
}

// StitchMeasurement places the group's burst rasters onto the merged line
// axis. Overlapping lines are written once, by the earliest burst; samples
// outside a line's valid extent are zeroed. The result's height is
// cross-checked against the merged annotation's numberOfLines.
func StitchMeasurement(group *Group, product *ProductDoc, imageNumber int) (*Measurement, error) {
	layout := group.ComputeLayout()
	cols := group.Records[0].Raster.Cols
	rows := layout.TotalLines

	annotated, err := product.Root.FindInt("imageAnnotation/imageInformation/numberOfLines")
	if err != nil {
		return nil, &SchemaError{Doc: burst.DocProduct, Field: "imageAnnotation/imageInformation/numberOfLines", Burst: group.Records[0].Granule}
	}
	if annotated != rows {
		return nil, &InternalConsistencyError{
			Check:   "stitched raster height",
			Details: fmt.Sprintf("layout yields %d lines, merged annotation records %d", rows, annotated),
		}
	}

	samples := make([]complex64, rows*cols)
	for i, record := range group.Records {
		raster := record.Raster
		if raster == nil {
			return nil, &SchemaError{Doc: burst.DocProduct, Field: "measurement", Burst: record.Granule}
		}
		if raster.Cols != cols {
			return nil, &EligibilityError{
				Rule:    RuleConsecutiveBursts,
				Bursts:  []string{group.Records[0].Granule, record.Granule},
				Details: fmt.Sprintf("range width %d does not match group width %d", raster.Cols, cols),
			}
		}
		if err := raster.Validate(layout.LinesPerBurst); err != nil {
			return nil, fmt.Errorf("burst %s raster: %w", record.Granule, err)
		}

		for row := layout.Trims[i]; row < raster.Rows; row++ {
			dst := layout.Offsets[i] + row
			first, last := raster.FirstValid[row], raster.LastValid[row]
			if first < 0 {
				continue
			}
			copy(samples[dst*cols+first:dst*cols+last+1], raster.Samples[row*cols+first:row*cols+last+1])
		}
	}

	mean, std := burst.RasterStats(samples)
	return &Measurement{
		Swath:       group.Swath,
		Pol:         group.Polarization,
		ImageNumber: imageNumber,
		Rows:        rows,
		Cols:        cols,
		Samples:     samples,
		GCPs:        product.GCPs,
		Mean:        mean,
		StdDev:      std,
	}, nil
}

// Bytes encodes the raster as the interleaved little-endian int16 real and
// imaginary stream the measurement file carries.
func (m *Measurement) Bytes() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, len(m.Samples)*4))
	for _, sample := range m.Samples {
		re, err := toInt16(real(sample))
		if err != nil {
			return nil, err
		}
		im, err := toInt16(imag(sample))
		if err != nil {
			return nil, err
		}
		if err := binary.Write(buf, binary.LittleEndian, [2]int16{re, im}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// MD5 returns the checksum and size recorded for the measurement file in
// the manifest's data object section.
func (m *Measurement) MD5() (string, int64, error) {
	data, err := m.Bytes()
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("%x", md5.Sum(data)), int64(len(data)), nil
}

// BBox returns the lon/lat bounding box of the measurement's geolocation
// grid as (minLon, minLat, maxLon, maxLat).
func (m *Measurement) BBox() ([4]float64, error) {
	if len(m.GCPs) == 0 {
		return [4]float64{}, fmt.Errorf("measurement has no geolocation grid points")
	}
	box := [4]float64{m.GCPs[0].Lon, m.GCPs[0].Lat, m.GCPs[0].Lon, m.GCPs[0].Lat}
	for _, gcp := range m.GCPs[1:] {
		box[0] = math.Min(box[0], gcp.Lon)
		box[1] = math.Min(box[1], gcp.Lat)
		box[2] = math.Max(box[2], gcp.Lon)
		box[3] = math.Max(box[3], gcp.Lat)
	}
	return box, nil
}

func toInt16(v float32) (int16, error) {
	if v > math.MaxInt16 || v < math.MinInt16 {
		return 0, fmt.Errorf("sample component %g overflows int16", v)
	}
	return int16(v), nil
}
