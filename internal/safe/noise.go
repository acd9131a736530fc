package safe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robert-malhotra/burst2safe/internal/burst"
	"github.com/robert-malhotra/burst2safe/pkg/xmltree"
)

// Two-part noise annotations (separate range and azimuth vector lists)
// replaced the single noiseVectorList in IPF 2.90.
const (
	splitNoiseMajor = 2
	splitNoiseMinor = 90
)

// HasSplitNoiseVectors reports whether the given IPF version writes
// separate range and azimuth noise vector lists.
func HasSplitNoiseVectors(major, minor int) bool {
	if major != splitNoiseMajor {
		return major > splitNoiseMajor
	}
	return minor >= splitNoiseMinor
}

// AssembleNoise merges the noise annotations of a group. Range vectors are
// line-indexed entries merged like any other list; azimuth vectors span
// line ranges and are instead subset per vector to the composite's extent.
func AssembleNoise(group *Group, imageNumber int, ipfMajor, ipfMinor int) (*Annotation, error) {
	a, err := newAssembly(burst.DocNoise, group, imageNumber)
	if err != nil {
		return nil, err
	}

	header, err := a.header()
	if err != nil {
		return nil, err
	}
	root := xmltree.New("noise")
	root.Append(header)

	if HasSplitNoiseVectors(ipfMajor, ipfMinor) {
		rangeVectors, err := a.list("noiseRangeVectorList")
		if err != nil {
			return nil, err
		}
		azimuthVectors, err := a.azimuthVectorList()
		if err != nil {
			return nil, err
		}
		root.Append(rangeVectors)
		root.Append(azimuthVectors)
	} else {
		vectors, err := a.list("noiseVectorList")
		if err != nil {
			return nil, err
		}
		root.Append(vectors)
	}
	return a.finish(root), nil
}

// azimuthVectorList rebuilds noiseAzimuthVectorList for the composite. Each
// vector carries parallel space-separated line and LUT arrays covering its
// source SLC; both are shifted onto the composite line axis and cut down to
// the samples bracketing [0, totalLines).
func (a *assembly) azimuthVectorList() (*xmltree.Element, error) {
	merged := xmltree.New("noiseAzimuthVectorList")
	stopLine := a.layout.StartLine + a.layout.TotalLines

	for i, input := range a.inputs {
		source := input.Find("noiseAzimuthVectorList")
		if source == nil {
			return nil, &SchemaError{Doc: a.docType, Field: "noiseAzimuthVectorList", Burst: a.group.Records[0].Granule}
		}
		slcOffset := 0
		for _, length := range a.slcLengths[:i] {
			slcOffset += length
		}
		lineOffset := slcOffset - a.layout.StartLine

		for _, vector := range source.Children {
			updated, err := subsetAzimuthVector(vector, lineOffset, stopLine-a.layout.StartLine-1)
			if err != nil {
				return nil, fmt.Errorf("%s noiseAzimuthVector: %w", a.docType, err)
			}
			merged.Append(updated)
		}
	}
	merged.SetCount()
	return merged, nil
}

func subsetAzimuthVector(vector *xmltree.Element, lineOffset, lastLine int) (*xmltree.Element, error) {
	updated := vector.Copy()

	lineElem := updated.Find("line")
	if lineElem == nil {
		return nil, fmt.Errorf("vector has no line array")
	}
	lines, err := parseIntArray(lineElem.Text)
	if err != nil {
		return nil, fmt.Errorf("line array: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("vector line array is empty")
	}
	for i := range lines {
		lines[i] += lineOffset
	}

	first, last := bracketIndexes(lines, 0, lastLine)
	count := last - first + 1

	if err := setText(updated, "firstAzimuthLine", strconv.Itoa(lines[first])); err != nil {
		return nil, err
	}
	if err := setText(updated, "lastAzimuthLine", strconv.Itoa(lines[last])); err != nil {
		return nil, err
	}

	lineElem.SetText(formatIntArray(lines[first : last+1]))
	lineElem.SetAttr("count", strconv.Itoa(count))

	lut := updated.Find("noiseAzimuthLut")
	if lut == nil {
		return nil, fmt.Errorf("vector has no noiseAzimuthLut")
	}
	samples := strings.Fields(lut.Text)
	if len(samples) != len(lines) {
		return nil, fmt.Errorf("noiseAzimuthLut holds %d samples for %d lines", len(samples), len(lines))
	}
	lut.SetText(strings.Join(samples[first:last+1], " "))
	lut.SetAttr("count", strconv.Itoa(count))
	return updated, nil
}

// bracketIndexes returns the index range of lines covering [firstLine,
// lastLine]: from the largest sample at or below firstLine to the smallest
// sample at or above lastLine, falling back to the array ends.
func bracketIndexes(lines []int, firstLine, lastLine int) (first, last int) {
	first, last = 0, len(lines)-1

	bestBelow := -1
	for i, line := range lines {
		if line <= firstLine && (bestBelow == -1 || line > lines[bestBelow]) {
			bestBelow = i
		}
	}
	if bestBelow != -1 {
		first = bestBelow
	}

	bestAbove := -1
	for i, line := range lines {
		if line >= lastLine && (bestAbove == -1 || line < lines[bestAbove]) {
			bestAbove = i
		}
	}
	if bestAbove != -1 {
		last = bestAbove
	}
	return first, last
}

func parseIntArray(text string) ([]int, error) {
	fields := strings.Fields(text)
	values := make([]int, 0, len(fields))
	for _, field := range fields {
		value, err := strconv.Atoi(field)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func formatIntArray(values []int) string {
	var sb strings.Builder
	for i, value := range values {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(value))
	}
	return sb.String()
}
