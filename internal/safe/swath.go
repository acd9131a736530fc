package safe

import (
	"fmt"
	"strings"
	"time"

	"github.com/robert-malhotra/burst2safe/internal/burst"
	"github.com/robert-malhotra/burst2safe/pkg/geojson"
)

// SwathAssembly holds the assembled artifacts of one (swath, polarization)
// group: the annotation documents, the stitched measurement, and the
// group's footprint.
type SwathAssembly struct {
	Group       *Group
	ImageNumber int
	Name        string

	Product     *ProductDoc
	Calibration *Annotation
	Noise       *Annotation
	RFI         *Annotation
	Measurement *Measurement

	Footprint *geojson.Geometry
}

// AssembleSwath builds all products of one group. Groups loaded without
// raster data produce no measurement; their annotations keep the image
// statistics fields unresolved.
func AssembleSwath(group *Group, safeName string, imageNumber int) (*SwathAssembly, error) {
	version, err := group.Records[0].IPFVersion()
	if err != nil {
		return nil, fmt.Errorf("group %s/%s: %w", group.Swath, group.Polarization, err)
	}
	major, minor, err := burst.ParseIPFVersion(version)
	if err != nil {
		return nil, fmt.Errorf("group %s/%s: %w", group.Swath, group.Polarization, err)
	}

	product, err := AssembleProduct(group, imageNumber)
	if err != nil {
		return nil, err
	}
	calibration, err := AssembleCalibration(group, imageNumber)
	if err != nil {
		return nil, err
	}
	noise, err := AssembleNoise(group, imageNumber, major, minor)
	if err != nil {
		return nil, err
	}

	sw := &SwathAssembly{
		Group:       group,
		ImageNumber: imageNumber,
		Product:     product,
		Calibration: calibration,
		Noise:       noise,
	}

	if SupportsRFI(major, minor) {
		rfi, err := AssembleRFI(group, imageNumber)
		if err != nil {
			return nil, err
		}
		sw.RFI = rfi
	}

	if group.Records[0].Raster != nil {
		measurement, err := StitchMeasurement(group, product, imageNumber)
		if err != nil {
			return nil, err
		}
		if err := product.UpdateStatistics(measurement.Mean, measurement.StdDev); err != nil {
			return nil, err
		}
		sw.Measurement = measurement
	}

	points := make([][]float64, 0, len(product.GCPs))
	for _, gcp := range product.GCPs {
		points = append(points, []float64{gcp.Lon, gcp.Lat})
	}
	footprint, err := geojson.NewPolygonFromPoints(points)
	if err != nil {
		return nil, fmt.Errorf("group %s/%s footprint: %w", group.Swath, group.Polarization, err)
	}
	sw.Footprint = footprint

	sw.Name, err = swathName(group, safeName, imageNumber)
	if err != nil {
		return nil, err
	}
	return sw, nil
}

// AssembleBlankSwath builds an annotation-only entry for a swath of the
// source scene that carries no selected bursts, from the product annotation
// embedded in the combined metadata. The document keeps the swath-wide
// fields of the source annotation but empties the burst and geolocation
// grid lists; no calibration, noise, or measurement is produced.
func AssembleBlankSwath(meta *burst.Metadata, swath burst.Swath, pol burst.Polarization, safeName string, imageNumber int) (*SwathAssembly, error) {
	source := meta.Document(burst.DocProduct, swath, pol)
	if source == nil {
		return nil, &SchemaError{Doc: burst.DocProduct, Field: "content", Burst: fmt.Sprintf("%s/%s", swath, pol)}
	}
	root := source.Copy()
	root.Name = "product"

	if err := setText(root, "adsHeader/imageNumber", fmt.Sprintf("%03d", imageNumber)); err != nil {
		return nil, &SchemaError{Doc: burst.DocProduct, Field: "adsHeader/imageNumber", Burst: fmt.Sprintf("%s/%s", swath, pol)}
	}
	for _, path := range []string{"swathTiming/burstList", "geolocationGrid/geolocationGridPointList"} {
		list := root.Find(path)
		if list == nil {
			return nil, &SchemaError{Doc: burst.DocProduct, Field: path, Burst: fmt.Sprintf("%s/%s", swath, pol)}
		}
		list.Children = nil
		list.SetCount()
	}

	start, err := burst.ParseTime(root.FindText("adsHeader/startTime"))
	if err != nil {
		return nil, fmt.Errorf("blank swath %s/%s: %w", swath, pol, err)
	}
	stop, err := burst.ParseTime(root.FindText("adsHeader/stopTime"))
	if err != nil {
		return nil, fmt.Errorf("blank swath %s/%s: %w", swath, pol, err)
	}
	name, err := constituentName(swath, pol, start, stop, safeName, imageNumber)
	if err != nil {
		return nil, err
	}

	return &SwathAssembly{
		ImageNumber: imageNumber,
		Name:        name,
		Product: &ProductDoc{
			Annotation: &Annotation{
				Type:        burst.DocProduct,
				Swath:       swath,
				Pol:         pol,
				ImageNumber: imageNumber,
				Root:        root,
			},
		},
	}, nil
}

// Annotations returns the swath's annotation documents in manifest order.
// Blank swaths carry only the product annotation.
func (sw *SwathAssembly) Annotations() []*Annotation {
	anns := []*Annotation{sw.Product.Annotation}
	if sw.Noise != nil {
		anns = append(anns, sw.Noise)
	}
	if sw.Calibration != nil {
		anns = append(anns, sw.Calibration)
	}
	if sw.RFI != nil {
		anns = append(anns, sw.RFI)
	}
	return anns
}

// Unresolved collects the unresolved-field diagnostics of all documents.
func (sw *SwathAssembly) Unresolved() []UnresolvedField {
	var all []UnresolvedField
	for _, ann := range sw.Annotations() {
		all = append(all, ann.Unresolved...)
	}
	return all
}

// swathName builds the constituent file stem, e.g.
// s1a-iw2-slc-vv-20240101t000000-20240101t000030-051001-062abc-001,
// reusing the platform, orbit, and data-take fields of the SAFE name.
func swathName(group *Group, safeName string, imageNumber int) (string, error) {
	start, stop := group.Window()
	return constituentName(group.Swath, group.Polarization, start, stop, safeName, imageNumber)
}

func constituentName(swath burst.Swath, pol burst.Polarization, start, stop time.Time, safeName string, imageNumber int) (string, error) {
	parts := strings.Split(strings.ToLower(safeName), "_")
	if len(parts) != 10 {
		return "", &InternalConsistencyError{
			Check:   "SAFE name",
			Details: fmt.Sprintf("name %q has %d underscore fields, want 10", safeName, len(parts)),
		}
	}
	platform, orbit, dataTake := parts[0], parts[7], parts[8]

	return fmt.Sprintf("%s-%s-slc-%s-%s-%s-%s-%s-%03d",
		platform,
		strings.ToLower(string(swath)),
		strings.ToLower(string(pol)),
		strings.ToLower(start.Format(compactTimeLayout)),
		strings.ToLower(stop.Format(compactTimeLayout)),
		orbit,
		dataTake,
		imageNumber,
	), nil
}

const compactTimeLayout = "20060102T150405"
