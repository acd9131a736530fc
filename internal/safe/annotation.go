package safe

import (
	"crypto/md5"
	"fmt"
	"time"

	"github.com/robert-malhotra/burst2safe/internal/burst"
	"github.com/robert-malhotra/burst2safe/pkg/xmltree"
)

// Annotation is one assembled metadata document of the composite product,
// ready to be serialized into the SAFE archive.
type Annotation struct {
	Type        burst.DocType
	Swath       burst.Swath
	Pol         burst.Polarization
	ImageNumber int
	Root        *xmltree.Element

	// Unresolved lists the Merge fields no rule could recompute; their
	// elements carry the unresolved sentinel in Root.
	Unresolved []UnresolvedField
}

// Bytes serializes the annotation document.
func (a *Annotation) Bytes() ([]byte, error) {
	return xmltree.Marshal(a.Root)
}

// MD5 returns the checksum and size recorded for this document in the
// manifest's data object section.
func (a *Annotation) MD5() (string, int64, error) {
	data, err := a.Bytes()
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("%x", md5.Sum(data)), int64(len(data)), nil
}

// assembly carries the per-group state every document assembler needs: the
// deduplicated source documents in group order, the line layout of the
// composite, and the group time window.
type assembly struct {
	docType     burst.DocType
	group       *Group
	imageNumber int

	inputs     []*xmltree.Element
	slcLengths []int
	layout     Layout

	start time.Time
	stop  time.Time

	unresolved []UnresolvedField
}

func newAssembly(docType burst.DocType, group *Group, imageNumber int) (*assembly, error) {
	slcRecords, slcLengths, err := group.SLCInputs()
	if err != nil {
		return nil, err
	}
	inputs := make([]*xmltree.Element, 0, len(slcRecords))
	for _, record := range slcRecords {
		doc := record.Document(docType)
		if doc == nil {
			return nil, &SchemaError{Doc: docType, Field: "content", Burst: record.Granule}
		}
		inputs = append(inputs, doc)
	}
	layout := group.ComputeLayout()
	start, stop := group.Window()
	return &assembly{
		docType:     docType,
		group:       group,
		imageNumber: imageNumber,
		inputs:      inputs,
		slcLengths:  slcLengths,
		layout:      layout,
		start:       start,
		stop:        stop,
	}, nil
}

// list builds the merged form of a list-valued field with the field's
// declared window buffer.
func (a *assembly) list(path string) (*xmltree.Element, error) {
	return a.boundedList(path, nil)
}

// boundedList is list with an optional line-coordinate clamp, used for lists
// indexed by image line rather than by time alone.
func (a *assembly) boundedList(path string, lineBounds *[2]int) (*xmltree.Element, error) {
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
	merged, err := seq.filtered(a.start, a.stop, listBuffer(seq.name), lineBounds)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", a.docType, path, err)
	}
	return merged, nil
}

// include copies a field verbatim from the earliest input.
func (a *assembly) include(path string) (*xmltree.Element, error) {
	elem := includeField(a.inputs[0], path)
	if elem == nil {
		return nil, &SchemaError{Doc: a.docType, Field: path, Burst: a.group.Records[0].Granule}
	}
	return elem, nil
}

// header rewrites the earliest input's adsHeader for the composite: the
// group window replaces the burst sensing times and the image number is
// reassigned.
func (a *assembly) header() (*xmltree.Element, error) {
	header, err := a.include("adsHeader")
	if err != nil {
		return nil, err
	}
	if err := setText(header, "startTime", burst.FormatTime(a.start)); err != nil {
		return nil, a.schemaErr("adsHeader/startTime", err)
	}
	if err := setText(header, "stopTime", burst.FormatTime(a.stop)); err != nil {
		return nil, a.schemaErr("adsHeader/stopTime", err)
	}
	if err := setText(header, "imageNumber", fmt.Sprintf("%03d", a.imageNumber)); err != nil {
		return nil, a.schemaErr("adsHeader/imageNumber", err)
	}
	return header, nil
}

func (a *assembly) schemaErr(field string, err error) error {
	return &SchemaError{Doc: a.docType, Field: field, Burst: a.group.Records[0].Granule}
}

// finish wraps the assembled root into the Annotation result.
func (a *assembly) finish(root *xmltree.Element) *Annotation {
	return &Annotation{
		Type:        a.docType,
		Swath:       a.group.Swath,
		Pol:         a.group.Polarization,
		ImageNumber: a.imageNumber,
		Root:        root,
		Unresolved:  a.unresolved,
	}
}

func setText(root *xmltree.Element, path, text string) error {
	elem := root.Find(path)
	if elem == nil {
		return fmt.Errorf("missing element %s", path)
	}
	elem.SetText(text)
	return nil
}
