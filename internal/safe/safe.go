package safe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/robert-malhotra/burst2safe/internal/burst"
	"github.com/robert-malhotra/burst2safe/pkg/geojson"
	"github.com/robert-malhotra/burst2safe/pkg/xmltree"
)

// placeholderID fills the unique-identifier field of the SAFE name until
// the manifest checksum is known.
const placeholderID = "0000"

// Options configure product assembly.
type Options struct {
	// MinBursts is the smallest acceptable group size per (swath,
	// polarization).
	MinBursts int
	// AllAnnotations also emits product annotations for the swaths of the
	// source scenes that carry no selected bursts. Swaths with selected
	// bursts keep their full annotation set and measurement.
	AllAnnotations bool
}

// Product is a fully assembled SAFE archive in memory, ready for the
// writer.
type Product struct {
	// Name is the final archive directory name, unique identifier
	// included.
	Name string
	// Swaths holds the per-group assemblies in image number order.
	Swaths []*SwathAssembly
	// Manifest is the serialized manifest.safe content.
	Manifest []byte
	// PreviewKML is the serialized map-overlay KML content.
	PreviewKML []byte
	// Identifier is the manifest checksum embedded in Name.
	Identifier string
	// SupportsRFI reports whether the archive carries RFI annotations.
	SupportsRFI bool
}

// Assembler turns a validated set of burst records into a SAFE product.
type Assembler struct {
	opts   Options
	logger *slog.Logger
}

// NewAssembler creates an Assembler with the given options.
func NewAssembler(opts Options) *Assembler {
	if opts.MinBursts < 1 {
		opts.MinBursts = 1
	}
	return &Assembler{opts: opts, logger: slog.Default()}
}

// WithLogger sets the logger used during assembly.
func (a *Assembler) WithLogger(logger *slog.Logger) *Assembler {
	a.logger = logger
	return a
}

// Assemble validates the records, merges each (swath, polarization) group,
// and builds the archive manifest and identity. Groups smaller than
// MinBursts or failing per-group merges are skipped and reported; the call
// fails only when no group can be assembled, or on an internal consistency
// failure.
func (a *Assembler) Assemble(ctx context.Context, records []*burst.Record) (*Product, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no burst records to assemble")
	}
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return nil, fmt.Errorf("burst %s: %w", record.Granule, err)
		}
	}
	if err := CheckEligibility(records); err != nil {
		return nil, err
	}

	groups := GroupRecords(records)
	keys := SortedKeys(groups)

	// Image numbers are fixed before dispatch so output naming does not
	// depend on completion order.
	type slot struct {
		key         GroupKey
		imageNumber int
	}
	slots := make([]slot, 0, len(keys))
	imageNumber := 0
	var skipped []error
	for _, key := range keys {
		group := groups[key]
		if len(group.Records) < a.opts.MinBursts {
			skipped = append(skipped, &GroupTooSmallError{
				Swath:        group.Swath,
				Polarization: group.Polarization,
				Count:        len(group.Records),
				Minimum:      a.opts.MinBursts,
			})
			a.logger.Warn("skipping undersized group",
				"swath", group.Swath, "polarization", group.Polarization,
				"bursts", len(group.Records), "minimum", a.opts.MinBursts)
			continue
		}
		imageNumber++
		slots = append(slots, slot{key: key, imageNumber: imageNumber})
	}
	if len(slots) == 0 {
		return nil, errors.Join(skipped...)
	}

	safeName, err := archiveName(records, placeholderID)
	if err != nil {
		return nil, err
	}

	assemblies := make([]*SwathAssembly, len(slots))
	eg, _ := errgroup.WithContext(ctx)
	for i, s := range slots {
		eg.Go(func() error {
			group := groups[s.key]
			started := time.Now()
			sw, err := AssembleSwath(group, safeName, s.imageNumber)
			if err != nil {
				return fmt.Errorf("group %s/%s: %w", group.Swath, group.Polarization, err)
			}
			assemblies[i] = sw
			a.logger.Info("assembled swath",
				"swath", group.Swath, "polarization", group.Polarization,
				"bursts", len(group.Records), "image", s.imageNumber,
				"unresolved_fields", len(sw.Unresolved()),
				"duration", time.Since(started))
			return nil
		})
	}
	// A failed group invalidates the cross-group footprint and image
	// numbering, so assembly stops rather than emitting a partial set.
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	if a.opts.AllAnnotations {
		blanks, err := a.assembleBlankSwaths(records, groups, safeName, imageNumber)
		if err != nil {
			return nil, err
		}
		assemblies = append(assemblies, blanks...)
	}

	footprints := make([]*geojson.Geometry, 0, len(assemblies))
	for _, sw := range assemblies {
		if sw.Footprint == nil {
			continue
		}
		footprints = append(footprints, sw.Footprint)
	}
	footprint, err := geojson.Union(footprints...)
	if err != nil {
		return nil, fmt.Errorf("archive footprint: %w", err)
	}

	manifest, err := a.buildManifest(assemblies, footprint)
	if err != nil {
		return nil, err
	}
	kmlRoot, err := BuildPreviewKML(footprint)
	if err != nil {
		return nil, err
	}
	kmlBytes, err := xmltree.Marshal(kmlRoot)
	if err != nil {
		return nil, err
	}

	identifier := ProductIdentifier(manifest)
	finalName, err := archiveName(records, identifier)
	if err != nil {
		return nil, err
	}

	product := &Product{
		Name:        finalName,
		Swaths:      assemblies,
		Manifest:    manifest,
		PreviewKML:  kmlBytes,
		Identifier:  identifier,
		SupportsRFI: assemblies[0].RFI != nil,
	}
	a.logger.Info("assembled product", "name", product.Name, "swaths", len(assemblies), "skipped_groups", len(skipped))
	return product, nil
}

// assembleBlankSwaths builds annotation-only entries for the (swath,
// polarization) pairs of the source scenes that have no burst records at
// all, resuming image numbering after the last assembled group. Pairs whose
// group was merely skipped keep no entry. The source scene of each blank
// annotation is picked by granule name so output does not depend on input
// order.
func (a *Assembler) assembleBlankSwaths(records []*burst.Record, groups map[GroupKey]*Group, safeName string, lastImage int) ([]*SwathAssembly, error) {
	type source struct {
		granule string
		meta    *burst.Metadata
	}
	sources := make(map[GroupKey]source)
	for _, record := range records {
		if record.SLC == nil {
			continue
		}
		for _, pair := range record.SLC.SwathsPresent() {
			key := GroupKey{Swath: burst.Swath(pair[0]), Polarization: burst.Polarization(pair[1])}
			if _, ok := groups[key]; ok {
				continue
			}
			if best, ok := sources[key]; ok && best.granule <= record.SLCGranule {
				continue
			}
			sources[key] = source{granule: record.SLCGranule, meta: record.SLC}
		}
	}
	if len(sources) == 0 {
		return nil, nil
	}

	keys := make([]GroupKey, 0, len(sources))
	for key := range sources {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Swath != keys[j].Swath {
			return keys[i].Swath < keys[j].Swath
		}
		return keys[i].Polarization < keys[j].Polarization
	})

	blanks := make([]*SwathAssembly, 0, len(keys))
	imageNumber := lastImage
	for _, key := range keys {
		imageNumber++
		sw, err := AssembleBlankSwath(sources[key].meta, key.Swath, key.Polarization, safeName, imageNumber)
		if err != nil {
			return nil, err
		}
		a.logger.Info("added annotation-only swath",
			"swath", key.Swath, "polarization", key.Polarization,
			"source", sources[key].granule, "image", imageNumber)
		blanks = append(blanks, sw)
	}
	return blanks, nil
}

func (a *Assembler) buildManifest(assemblies []*SwathAssembly, footprint *geojson.Geometry) ([]byte, error) {
	var mc ManifestComponents
	for _, sw := range assemblies {
		if err := mc.AddAnnotation(sw.Product.Annotation, ProductPath(sw.Name)); err != nil {
			return nil, err
		}
		if sw.Noise != nil {
			if err := mc.AddAnnotation(sw.Noise, NoisePath(sw.Name)); err != nil {
				return nil, err
			}
		}
		if sw.Calibration != nil {
			if err := mc.AddAnnotation(sw.Calibration, CalibrationPath(sw.Name)); err != nil {
				return nil, err
			}
		}
		if sw.RFI != nil {
			if err := mc.AddAnnotation(sw.RFI, RFIPath(sw.Name)); err != nil {
				return nil, err
			}
		}
		if sw.Measurement != nil {
			if err := mc.AddMeasurement(sw.Measurement, MeasurementPath(sw.Name)); err != nil {
				return nil, err
			}
		}
	}

	template := assemblies[0].Group.Records[0].Manifest
	if template == nil {
		return nil, &SchemaError{Doc: burst.DocProduct, Field: "manifest", Burst: assemblies[0].Group.Records[0].Granule}
	}
	root, err := BuildManifest(&mc, footprint, template)
	if err != nil {
		return nil, err
	}
	return xmltree.Marshal(root)
}

// Archive-relative paths of the constituent files.
func ProductPath(name string) string     { return "annotation/" + name + ".xml" }
func NoisePath(name string) string       { return "annotation/calibration/noise-" + name + ".xml" }
func CalibrationPath(name string) string { return "annotation/calibration/calibration-" + name + ".xml" }
func RFIPath(name string) string         { return "annotation/rfi/rfi-" + name + ".xml" }
func MeasurementPath(name string) string { return "measurement/" + name + ".dat" }

// archiveName builds the SAFE directory name from the record set:
// platform, beam mode and product type from the source SLC granule, the
// record time window, orbit, data take, and the unique identifier.
func archiveName(records []*burst.Record, uniqueID string) (string, error) {
	slcParts := strings.Split(records[0].SLCGranule, "_")
	if len(slcParts) < 9 {
		return "", &SchemaError{Doc: burst.DocProduct, Field: "slc granule name", Burst: records[0].Granule}
	}
	platform, beamMode, productType := slcParts[0], slcParts[1], slcParts[2]
	dataTake := slcParts[len(slcParts)-2]

	minStart := records[0].Timing.Start
	maxStop := records[0].Timing.Stop
	for _, record := range records[1:] {
		if record.Timing.Start.Before(minStart) {
			minStart = record.Timing.Start
		}
		if record.Timing.Stop.After(maxStop) {
			maxStop = record.Timing.Stop
		}
	}

	return fmt.Sprintf("%s_%s_%s__1SS%c_%s_%s_%06d_%s_%s.SAFE",
		platform, beamMode, productType,
		records[0].Polarization[0],
		minStart.Format(compactTimeLayout),
		maxStop.Format(compactTimeLayout),
		records[0].AbsoluteOrbit,
		dataTake,
		uniqueID,
	), nil
}
