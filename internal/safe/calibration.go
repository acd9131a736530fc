package safe

import (
	"github.com/robert-malhotra/burst2safe/internal/burst"
	"github.com/robert-malhotra/burst2safe/pkg/xmltree"
)

// AssembleCalibration merges the calibration annotations of a group: the
// calibration information is taken from the earliest input and the vector
// list is concatenated on the merged line axis.
func AssembleCalibration(group *Group, imageNumber int) (*Annotation, error) {
	a, err := newAssembly(burst.DocCalibration, group, imageNumber)
	if err != nil {
		return nil, err
	}

	header, err := a.header()
	if err != nil {
		return nil, err
	}
	info, err := a.include("calibrationInformation")
	if err != nil {
		return nil, err
	}
	vectors, err := a.list("calibrationVectorList")
	if err != nil {
		return nil, err
	}

	root := xmltree.New("calibration")
	root.Append(header)
	root.Append(info)
	root.Append(vectors)
	return a.finish(root), nil
}
