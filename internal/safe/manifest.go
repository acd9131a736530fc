package safe

import (
	"fmt"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/robert-malhotra/burst2safe/internal/burst"
	"github.com/robert-malhotra/burst2safe/pkg/geojson"
	"github.com/robert-malhotra/burst2safe/pkg/xmltree"
)

// Namespace declarations carried by the manifest root, matching the vendor
// SAFE layout.
var manifestNamespaces = [][2]string{
	{"xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance"},
	{"xmlns:gml", "http://www.opengis.net/gml"},
	{"xmlns:xfdu", "urn:ccsds:schema:xfdu:1"},
	{"xmlns:safe", "http://www.esa.int/safe/sentinel-1.0"},
	{"xmlns:s1", "http://www.esa.int/safe/sentinel-1.0/sentinel-1"},
	{"xmlns:s1sar", "http://www.esa.int/safe/sentinel-1.0/sentinel-1/sar"},
	{"xmlns:s1sarl1", "http://www.esa.int/safe/sentinel-1.0/sentinel-1/sar/level-1"},
	{"xmlns:s1sarl2", "http://www.esa.int/safe/sentinel-1.0/sentinel-1/sar/level-2"},
	{"xmlns:gx", "http://www.google.com/kml/ext/2.2"},
}

const manifestVersion = "esa/safe/sentinel-1.0/sentinel-1/sar/level-1/slc/standard/iwdp"

// Template metadata objects preserved from the source manifest; everything
// else describes the source slice and would be wrong for the composite.
var templateMetadataIDs = []string{
	"processing",
	"platform",
	"measurementOrbitReference",
	"generalProductInformation",
	"acquisitionPeriod",
	"measurementFrameSet",
}

// ManifestComponents accumulates the per-file manifest entries of the
// product as its documents and measurements are assembled.
type ManifestComponents struct {
	ContentUnits    []*xmltree.Element
	MetadataObjects []*xmltree.Element
	DataObjects     []*xmltree.Element
}

// AddAnnotation registers an assembled annotation document under its SAFE
// archive path.
func (mc *ManifestComponents) AddAnnotation(ann *Annotation, relPath string) error {
	md5sum, size, err := ann.MD5()
	if err != nil {
		return fmt.Errorf("annotation %s: %w", relPath, err)
	}
	repID := fmt.Sprintf("s1Level1%sSchema", titleCase(string(ann.Type)))
	simpleName := simpleNameFor(relPath)
	if ann.Type == burst.DocProduct {
		simpleName = "product" + simpleName
	}
	mc.ContentUnits = append(mc.ContentUnits, contentUnit(simpleName, "Metadata Unit", repID))
	mc.MetadataObjects = append(mc.MetadataObjects, metadataObject(simpleName))
	mc.DataObjects = append(mc.DataObjects, dataObject(simpleName, relPath, repID, "text/xml", size, md5sum))
	return nil
}

// AddMeasurement registers a stitched measurement file under its SAFE
// archive path.
func (mc *ManifestComponents) AddMeasurement(m *Measurement, relPath string) error {
	md5sum, size, err := m.MD5()
	if err != nil {
		return fmt.Errorf("measurement %s: %w", relPath, err)
	}
	const repID = "s1Level1MeasurementSchema"
	simpleName := simpleNameFor(relPath)
	mc.ContentUnits = append(mc.ContentUnits, contentUnit(simpleName, "Measurement Data Unit", repID))
	mc.DataObjects = append(mc.DataObjects, dataObject(simpleName, relPath, repID, "application/octet-stream", size, md5sum))
	return nil
}

// BuildManifest assembles the manifest.safe document: the information
// package map over the content units, the metadata section combining the
// per-file metadata objects with the preserved template objects, and the
// data object section. The template's frame coordinates are replaced with
// the composite footprint.
func BuildManifest(mc *ManifestComponents, footprint *geojson.Geometry, template *xmltree.Element) (*xmltree.Element, error) {
	root := xmltree.New("xfdu:XFDU")
	for _, ns := range manifestNamespaces {
		root.SetAttr(ns[0], ns[1])
	}
	root.SetAttr("version", manifestVersion)

	packageMap := xmltree.New("xfdu:informationPackageMap")
	parentUnit := xmltree.New("xfdu:contentUnit")
	parentUnit.SetAttr("unitType", "SAFE Archive Information Package")
	parentUnit.SetAttr("textInfo", "Sentinel-1 IW Level-1 SLC Product")
	parentUnit.SetAttr("dmdID", "acquisitionPeriod platform generalProductInformation measurementOrbitReference measurementFrameSet")
	parentUnit.SetAttr("pdiID", "processing")
	for _, unit := range mc.ContentUnits {
		parentUnit.Append(unit)
	}
	packageMap.Append(parentUnit)
	root.Append(packageMap)

	metadataSection := xmltree.New("metadataSection")
	for _, object := range mc.MetadataObjects {
		metadataSection.Append(object)
	}
	templateSection := template.Find("metadataSection")
	if templateSection == nil {
		return nil, &SchemaError{Doc: burst.DocProduct, Field: "manifest/metadataSection", Burst: "template"}
	}
	for _, object := range templateSection.Children {
		if slices.Contains(templateMetadataIDs, object.Attr("ID")) {
			metadataSection.Append(object.Copy())
		}
	}
	coordinates := metadataSection.FirstDescendant("coordinates")
	if coordinates == nil {
		return nil, &SchemaError{Doc: burst.DocProduct, Field: "manifest/measurementFrameSet/coordinates", Burst: "template"}
	}
	text, err := footprintString(footprint, false)
	if err != nil {
		return nil, err
	}
	coordinates.SetText(text)
	root.Append(metadataSection)

	dataSection := xmltree.New("dataObjectSection")
	for _, object := range mc.DataObjects {
		dataSection.Append(object)
	}
	root.Append(dataSection)
	return root, nil
}

// BuildPreviewKML renders the map overlay KML pointing at the quick-look
// image location, with the composite footprint as the overlay quad.
func BuildPreviewKML(footprint *geojson.Geometry) (*xmltree.Element, error) {
	root := xmltree.New("kml")
	for _, ns := range manifestNamespaces {
		root.SetAttr(ns[0], ns[1])
	}

	document := xmltree.New("Document")
	document.Append(xmltree.NewWithText("name", "Sentinel-1 Map Overlay"))

	folder := xmltree.New("Folder")
	folder.Append(xmltree.NewWithText("name", "Sentinel-1 Scene Overlay"))

	overlay := xmltree.New("GroundOverlay")
	overlay.Append(xmltree.NewWithText("name", "Sentinel-1 Image Overlay"))
	icon := xmltree.New("Icon")
	icon.Append(xmltree.NewWithText("href", "quick-look.png"))
	overlay.Append(icon)

	quad := xmltree.New("gx:LatLonQuad")
	text, err := footprintString(footprint, true)
	if err != nil {
		return nil, err
	}
	quad.Append(xmltree.NewWithText("coordinates", text))
	overlay.Append(quad)

	folder.Append(overlay)
	document.Append(folder)
	root.Append(document)
	return root, nil
}

// footprintString renders the footprint's four corners in the vendor frame
// order, "lat,lon" pairs for the manifest and "lon,lat" for KML.
func footprintString(footprint *geojson.Geometry, lonFirst bool) (string, error) {
	ring, err := footprint.Exterior()
	if err != nil {
		return "", fmt.Errorf("footprint: %w", err)
	}
	if len(ring) < 4 {
		return "", fmt.Errorf("footprint ring has %d points, need at least 4", len(ring))
	}
	// Corner order matches descending-pass frame sets: far corners first.
	order := []int{2, 3, 0, 1}
	pairs := make([]string, 0, len(order))
	for _, idx := range order {
		lon, lat := round6(ring[idx][0]), round6(ring[idx][1])
		if lonFirst {
			pairs = append(pairs, lon+","+lat)
		} else {
			pairs = append(pairs, lat+","+lon)
		}
	}
	return strings.Join(pairs, " "), nil
}

func contentUnit(simpleName, unitType, repID string) *xmltree.Element {
	unit := xmltree.New("xfdu:contentUnit")
	unit.SetAttr("unitType", unitType)
	unit.SetAttr("repID", repID)
	pointer := xmltree.New("dataObjectPointer")
	pointer.SetAttr("dataObjectID", simpleName)
	unit.Append(pointer)
	return unit
}

func metadataObject(simpleName string) *xmltree.Element {
	object := xmltree.New("metadataObject")
	object.SetAttr("ID", simpleName+"Annotation")
	object.SetAttr("classification", "DESCRIPTION")
	object.SetAttr("category", "DMD")
	pointer := xmltree.New("dataObjectPointer")
	pointer.SetAttr("dataObjectID", simpleName)
	object.Append(pointer)
	return object
}

func dataObject(simpleName, relPath, repID, mimeType string, size int64, md5sum string) *xmltree.Element {
	object := xmltree.New("dataObject")
	object.SetAttr("ID", simpleName)
	object.SetAttr("repID", repID)
	stream := xmltree.New("byteStream")
	stream.SetAttr("mimeType", mimeType)
	stream.SetAttr("size", strconv.FormatInt(size, 10))
	location := xmltree.New("fileLocation")
	location.SetAttr("locatorType", "URL")
	location.SetAttr("href", "./"+relPath)
	checksum := xmltree.NewWithText("checksum", md5sum)
	checksum.SetAttr("checksumName", "MD5")
	stream.Append(location)
	stream.Append(checksum)
	object.Append(stream)
	return object
}

// simpleNameFor derives a manifest object ID from an archive-relative path:
// the base name without extension or dashes.
func simpleNameFor(relPath string) string {
	base := path.Base(relPath)
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.ReplaceAll(base, "-", "")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

func round6(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
