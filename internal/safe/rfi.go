package safe

import (
	"github.com/robert-malhotra/burst2safe/internal/burst"
	"github.com/robert-malhotra/burst2safe/pkg/xmltree"
)

// rfiMinMajor/rfiMinMinor gate the RFI annotation: the processor only
// emits it from IPF 3.40 onwards.
const (
	rfiMinMajor = 3
	rfiMinMinor = 40
)

// SupportsRFI reports whether the given IPF version produces RFI
// annotations.
func SupportsRFI(major, minor int) bool {
	if major != rfiMinMajor {
		return major > rfiMinMajor
	}
	return minor >= rfiMinMinor
}

// AssembleRFI merges the radio frequency interference annotations of a
// group. Callers must gate on SupportsRFI; older products carry no RFI
// document at all.
func AssembleRFI(group *Group, imageNumber int) (*Annotation, error) {
	a, err := newAssembly(burst.DocRFI, group, imageNumber)
	if err != nil {
		return nil, err
	}

	header, err := a.header()
	if err != nil {
		return nil, err
	}
	mitigation, err := a.include("rfiMitigationApplied")
	if err != nil {
		return nil, err
	}
	noiseReports, err := a.list("rfiDetectionFromNoiseReportList")
	if err != nil {
		return nil, err
	}
	burstReports, err := a.list("rfiBurstReportList")
	if err != nil {
		return nil, err
	}

	root := xmltree.New("rfi")
	root.Append(header)
	root.Append(mitigation)
	root.Append(noiseReports)
	root.Append(burstReports)
	return a.finish(root), nil
}
