package safe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robert-malhotra/burst2safe/internal/burst"
	"github.com/robert-malhotra/burst2safe/pkg/xmltree"
)

// GeoPoint is one geolocation grid point of the assembled product, in
// image coordinates.
type GeoPoint struct {
	Lon   float64
	Lat   float64
	Hgt   float64
	Line  int
	Pixel int
}

// ProductDoc is the assembled product annotation plus the geolocation grid
// extracted from it, which downstream consumers (footprints, the manifest
// frame set) need in numeric form.
type ProductDoc struct {
	*Annotation
	GCPs []GeoPoint

	linesPerBurst int
	totalLines    int
}

// AssembleProduct merges the product annotations of a group into the
// composite's product document, walking productSchema for the field order
// and the merge strategy of every output field. The image statistics fields
// are left blank until UpdateStatistics is called with the stitched
// raster's statistics.
func AssembleProduct(group *Group, imageNumber int) (*ProductDoc, error) {
	a, err := newAssembly(burst.DocProduct, group, imageNumber)
	if err != nil {
		return nil, err
	}

	root := xmltree.New("product")
	sections := make(map[string]*xmltree.Element)
	for _, rule := range productSchema {
		field, err := a.buildField(rule)
		if err != nil {
			return nil, err
		}
		section, _, nested := strings.Cut(rule.Path, "/")
		if !nested {
			root.Append(field)
			continue
		}
		parent := sections[section]
		if parent == nil {
			parent = xmltree.New(section)
			sections[section] = parent
			root.Append(parent)
		}
		parent.Append(field)
	}

	gcps, err := a.extractGridPoints(root)
	if err != nil {
		return nil, err
	}

	return &ProductDoc{
		Annotation:    a.finish(root),
		GCPs:          gcps,
		linesPerBurst: a.layout.LinesPerBurst,
		totalLines:    a.layout.TotalLines,
	}, nil
}

// buildField dispatches one schema rule to its strategy implementation.
func (a *assembly) buildField(rule fieldRule) (*xmltree.Element, error) {
	switch rule.Category {
	case Include:
		return a.include(rule.Path)
	case Concatenate:
		return a.concatField(rule.Path)
	case Merge:
		return a.mergeField(rule.Path)
	}
	return nil, &InternalConsistencyError{
		Check:   "product schema",
		Details: fmt.Sprintf("field %s has unknown category %s", rule.Path, rule.Category),
	}
}

// concatField picks the list variant for a Concatenate field. Most lists
// are merged under the group window filter; the exceptions are keyed by
// list name, like the window buffers.
func (a *assembly) concatField(path string) (*xmltree.Element, error) {
	switch lastPathComponent(path) {
	case "qualityDataList":
		return a.plainConcat(path)
	case "replicaInformationList":
		return a.unfilteredList(path)
	case "geolocationGridPointList":
		bounds := [2]int{0, a.layout.TotalLines}
		return a.boundedList(path, &bounds)
	default:
		return a.list(path)
	}
}

// mergeField builds a Merge field with its dedicated recomputation rule.
func (a *assembly) mergeField(path string) (*xmltree.Element, error) {
	switch path {
	case "adsHeader":
		return a.header()
	case "generalAnnotation/productInformation":
		return a.productInformation()
	case "imageAnnotation/imageInformation":
		return a.imageInformation()
	case "imageAnnotation/processingInformation":
		return a.processingInformation()
	case "swathTiming":
		return a.swathTiming()
	case "coordinateConversion":
		return emptyListSection("coordinateConversion", "coordinateConversionList"), nil
	case "swathMerging":
		return emptyListSection("swathMerging", "swathMergeList"), nil
	}
	return nil, &InternalConsistencyError{
		Check:   "product schema",
		Details: fmt.Sprintf("no merge rule for field %s", path),
	}
}

// LinesPerBurst reports the burst tile height recorded in the annotation.
func (p *ProductDoc) LinesPerBurst() int { return p.linesPerBurst }

// TotalLines reports the composite image height recorded in the annotation.
func (p *ProductDoc) TotalLines() int { return p.totalLines }

// UpdateStatistics fills the imageStatistics fields with the stitched
// raster's complex mean and standard deviation.
func (p *ProductDoc) UpdateStatistics(mean, std complex64) error {
	base := "imageAnnotation/imageInformation/imageStatistics/outputData"
	values := map[string]string{
		base + "Mean/re":   fmt.Sprintf("%.6e", real(mean)),
		base + "Mean/im":   fmt.Sprintf("%.6e", imag(mean)),
		base + "StdDev/re": fmt.Sprintf("%.6e", real(std)),
		base + "StdDev/im": fmt.Sprintf("%.6e", imag(std)),
	}
	for path, text := range values {
		if err := setText(p.Root, path, text); err != nil {
			return fmt.Errorf("updating image statistics: %w", err)
		}
	}
	return nil
}

// plainConcat concatenates a list's entries across inputs in input order,
// with no window filter. Quality data entries are per-downlink, not
// per-line.
func (a *assembly) plainConcat(path string) (*xmltree.Element, error) {
	merged := xmltree.New(lastPathComponent(path))
	for _, input := range a.inputs {
		source := input.Find(path)
		if source == nil {
			return nil, &SchemaError{Doc: a.docType, Field: path, Burst: a.group.Records[0].Granule}
		}
		for _, entry := range source.Children {
			merged.Append(entry.Copy())
		}
	}
	merged.SetCount()
	return merged, nil
}

// productInformation is the earliest input's block with the platform
// heading recomputed as the mean across the SLC inputs.
func (a *assembly) productInformation() (*xmltree.Element, error) {
	info, err := a.include("generalAnnotation/productInformation")
	if err != nil {
		return nil, err
	}
	heading, err := meanOfInputs(a.inputs, "generalAnnotation/productInformation/platformHeading", "%.14e")
	if err != nil {
		return nil, a.schemaErr("generalAnnotation/productInformation/platformHeading", err)
	}
	if err := setText(info, "platformHeading", heading); err != nil {
		return nil, a.schemaErr("generalAnnotation/productInformation/platformHeading", err)
	}
	return info, nil
}

// unfilteredList deduplicates a list's entries across inputs without the
// window filter. Replica entries are untimed relative to the slice window.
func (a *assembly) unfilteredList(path string) (*xmltree.Element, error) {
	elems := make([]*xmltree.Element, 0, len(a.inputs))
	for _, input := range a.inputs {
		elem := input.Find(path)
		if elem == nil {
			return nil, &SchemaError{Doc: a.docType, Field: path, Burst: a.group.Records[0].Granule}
		}
		elems = append(elems, elem)
	}
	seq, err := newSequence(elems, a.layout.StartLine, a.slcLengths)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", a.docType, path, err)
	}
	items, err := seq.uniqueItems()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", a.docType, path, err)
	}
	merged := xmltree.New(seq.name)
	for _, item := range items {
		merged.Append(item)
	}
	merged.SetCount()
	return merged, nil
}

func (a *assembly) imageInformation() (*xmltree.Element, error) {
	info, err := a.include("imageAnnotation/imageInformation")
	if err != nil {
		return nil, err
	}
	edits := map[string]string{
		"productFirstLineUtcTime": burst.FormatTime(a.start),
		"productLastLineUtcTime":  burst.FormatTime(a.stop),
		"productComposition":      "Assembled",
		"sliceNumber":             "0",
		"numberOfLines":           strconv.Itoa(a.layout.TotalLines),
	}
	for path, text := range edits {
		if err := setText(info, path, text); err != nil {
			return nil, a.schemaErr("imageAnnotation/imageInformation/"+path, err)
		}
	}

	sliceList := info.Find("sliceList")
	if sliceList == nil {
		return nil, a.schemaErr("imageAnnotation/imageInformation/sliceList", nil)
	}
	sliceList.Children = nil
	sliceList.SetCount()

	spacing, err := meanOfInputs(a.inputs, "imageAnnotation/imageInformation/azimuthPixelSpacing", "%.6e")
	if err != nil {
		return nil, a.schemaErr("imageAnnotation/imageInformation/azimuthPixelSpacing", err)
	}
	if err := setText(info, "azimuthPixelSpacing", spacing); err != nil {
		return nil, a.schemaErr("imageAnnotation/imageInformation/azimuthPixelSpacing", err)
	}

	// Statistics of the stitched raster are not known yet; blank them and
	// record the gap so the caller knows to fill it in.
	for _, path := range []string{
		"imageStatistics/outputDataMean/re",
		"imageStatistics/outputDataMean/im",
		"imageStatistics/outputDataStdDev/re",
		"imageStatistics/outputDataStdDev/im",
	} {
		if err := setText(info, path, noResolutionText); err != nil {
			return nil, a.schemaErr("imageAnnotation/imageInformation/"+path, err)
		}
		a.unresolved = append(a.unresolved, UnresolvedField{Doc: a.docType, Field: "imageAnnotation/imageInformation/" + path})
	}
	return info, nil
}

func (a *assembly) processingInformation() (*xmltree.Element, error) {
	processing, err := a.include("imageAnnotation/processingInformation")
	if err != nil {
		return nil, err
	}
	mergedDims, err := a.list("imageAnnotation/processingInformation/inputDimensionsList")
	if err != nil {
		return nil, err
	}
	dims := processing.Find("inputDimensionsList")
	if dims == nil {
		return nil, a.schemaErr("imageAnnotation/processingInformation/inputDimensionsList", nil)
	}
	*dims = *mergedDims
	return processing, nil
}

func (a *assembly) swathTiming() (*xmltree.Element, error) {
	burstList, err := a.list("swathTiming/burstList")
	if err != nil {
		return nil, err
	}

	// The window buffer extends forward as well as backward, which can pull
	// in the burst following the slice; drop it.
	if len(burstList.Children) > len(a.group.Records) {
		burstList.Remove(burstList.Children[len(burstList.Children)-1])
		burstList.SetCount()
	}
	if len(burstList.Children) != len(a.group.Records) {
		return nil, &InternalConsistencyError{
			Check: "burstList length",
			Details: fmt.Sprintf("merged burstList holds %d entries for %d bursts",
				len(burstList.Children), len(a.group.Records)),
		}
	}

	// Byte offsets refer to positions in a TIFF container this assembly
	// does not reproduce.
	for _, entry := range burstList.Children {
		offset := entry.Find("byteOffset")
		if offset == nil {
			return nil, a.schemaErr("swathTiming/burstList/burst/byteOffset", nil)
		}
		offset.SetText(noResolutionText)
	}
	a.unresolved = append(a.unresolved, UnresolvedField{Doc: a.docType, Field: "swathTiming/burstList/burst/byteOffset"})

	section := xmltree.New("swathTiming")
	lines, err := a.include("swathTiming/linesPerBurst")
	if err != nil {
		return nil, err
	}
	samples, err := a.include("swathTiming/samplesPerBurst")
	if err != nil {
		return nil, err
	}
	section.Append(lines)
	section.Append(samples)
	section.Append(burstList)
	return section, nil
}

// extractGridPoints reads the merged geolocation grid back out of the
// assembled document in numeric form.
func (a *assembly) extractGridPoints(root *xmltree.Element) ([]GeoPoint, error) {
	gridList := root.Find("geolocationGrid/geolocationGridPointList")
	if gridList == nil {
		return nil, a.schemaErr("geolocationGrid/geolocationGridPointList", nil)
	}

	gcps := make([]GeoPoint, 0, len(gridList.Children))
	for _, point := range gridList.Children {
		lon, err := point.FindFloat("longitude")
		if err != nil {
			return nil, a.schemaErr("geolocationGridPoint/longitude", err)
		}
		lat, err := point.FindFloat("latitude")
		if err != nil {
			return nil, a.schemaErr("geolocationGridPoint/latitude", err)
		}
		hgt, err := point.FindFloat("height")
		if err != nil {
			return nil, a.schemaErr("geolocationGridPoint/height", err)
		}
		line, err := point.FindInt("line")
		if err != nil {
			return nil, a.schemaErr("geolocationGridPoint/line", err)
		}
		pixel, err := point.FindInt("pixel")
		if err != nil {
			return nil, a.schemaErr("geolocationGridPoint/pixel", err)
		}
		gcps = append(gcps, GeoPoint{Lon: lon, Lat: lat, Hgt: hgt, Line: line, Pixel: pixel})
	}
	return gcps, nil
}

func emptyListSection(sectionName, listName string) *xmltree.Element {
	section := xmltree.New(sectionName)
	list := xmltree.New(listName)
	list.SetCount()
	section.Append(list)
	return section
}

func lastPathComponent(path string) string {
	parts := strings.Split(path, "/")
	return parts[len(parts)-1]
}
