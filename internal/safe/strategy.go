package safe

import (
	"fmt"
	"strconv"
	"time"

	"github.com/robert-malhotra/burst2safe/internal/burst"
	"github.com/robert-malhotra/burst2safe/pkg/xmltree"
)

// Category is a field-level merge strategy, as declared by the product
// specification for each annotation field.
type Category int

const (
	// Include takes the value from the chronologically earliest record,
	// verbatim.
	Include Category = iota
	// Concatenate re-indexes each record's list entries onto the group's
	// global line/time axis and joins them in time order, dropping overlap
	// duplicates in favor of the earlier burst.
	Concatenate
	// Merge recomputes a derived value from the whole group using a
	// field-specific rule, or resolves to the unresolved sentinel when no
	// rule is defined.
	Merge
)

func (c Category) String() string {
	switch c {
	case Include:
		return "include"
	case Concatenate:
		return "concatenate"
	case Merge:
		return "merge"
	}
	return "unknown"
}

// sequence merges one list-valued annotation field across the ordered SLC
// inputs of a group: the Concatenate strategy.
type sequence struct {
	inputs     []*xmltree.Element
	startLine  int
	slcLengths []int

	name      string
	itemName  string
	timeField string
	hasLine   bool
}

// newSequence inspects the list elements (one per source SLC, group order)
// and determines the entry coordinate: azimuthTime, time, or the replica
// list's nested reference time. Every input must hold a single entry type.
func newSequence(inputs []*xmltree.Element, startLine int, slcLengths []int) (*sequence, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no list inputs provided")
	}
	for _, input := range inputs {
		if input == nil {
			return nil, fmt.Errorf("nil list input")
		}
	}

	s := &sequence{
		inputs:     inputs,
		startLine:  startLine,
		slcLengths: slcLengths,
		name:       inputs[0].Name,
	}

	var firstItem *xmltree.Element
	for _, input := range inputs {
		for _, item := range input.Children {
			if s.itemName == "" {
				s.itemName = item.Name
				firstItem = item
			} else if item.Name != s.itemName {
				return nil, fmt.Errorf("list %s mixes entry types %s and %s", s.name, s.itemName, item.Name)
			}
		}
	}
	if firstItem == nil {
		// All inputs empty: nothing to merge, coordinate type irrelevant.
		return s, nil
	}

	switch {
	case s.name == "replicaInformationList":
		s.timeField = "referenceReplica/azimuthTime"
	case firstItem.FirstDescendant("azimuthTime") != nil:
		s.timeField = "azimuthTime"
	case firstItem.FirstDescendant("time") != nil:
		s.timeField = "time"
	default:
		return nil, fmt.Errorf("list %s has no time coordinate field", s.name)
	}
	s.hasLine = firstItem.Find("line") != nil
	return s, nil
}

func (s *sequence) itemTime(item *xmltree.Element) (time.Time, error) {
	coord := item.Find(s.timeField)
	if coord == nil {
		return time.Time{}, fmt.Errorf("entry of list %s has no %s field", s.name, s.timeField)
	}
	return burst.ParseTime(coord.Text)
}

// uniqueItems returns deep copies of all entries across the inputs with
// overlap duplicates removed: an entry of a later input is kept only if its
// coordinate is strictly after the last entry kept so far (the earlier
// burst wins the overlap region). Line coordinates of later inputs are
// shifted onto the concatenated SLC axis.
func (s *sequence) uniqueItems() ([]*xmltree.Element, error) {
	if s.itemName == "" {
		return nil, nil
	}

	first := s.inputs[0].Children
	if len(first) == 0 {
		return nil, fmt.Errorf("list %s of the first input is empty", s.name)
	}
	lastTime, err := s.itemTime(first[len(first)-1])
	if err != nil {
		return nil, err
	}

	uniques := make([]*xmltree.Element, 0, len(first))
	for _, item := range first {
		uniques = append(uniques, item.Copy())
	}

	for i, input := range s.inputs[1:] {
		// Line numbers restart per SLC; shift by the preceding SLCs' spans.
		lineOffset := 0
		for _, length := range s.slcLengths[:i+1] {
			lineOffset += length
		}

		maxKept := lastTime
		for _, item := range input.Children {
			itemTime, err := s.itemTime(item)
			if err != nil {
				return nil, err
			}
			if !itemTime.After(lastTime) {
				continue
			}
			kept := item.Copy()
			if s.hasLine {
				line, err := kept.Find("line").AsInt()
				if err != nil {
					return nil, fmt.Errorf("list %s: %w", s.name, err)
				}
				kept.Find("line").SetText(strconv.Itoa(line + lineOffset))
			}
			uniques = append(uniques, kept)
			if itemTime.After(maxKept) {
				maxKept = itemTime
			}
		}
		lastTime = maxKept
	}
	return uniques, nil
}

// filtered builds the merged list element: unique entries restricted to the
// group's time window (with a per-field buffer), line coordinates rebased to
// the group start line, and optionally clamped to line bounds.
func (s *sequence) filtered(start, stop time.Time, buffer time.Duration, lineBounds *[2]int) (*xmltree.Element, error) {
	items, err := s.uniqueItems()
	if err != nil {
		return nil, err
	}

	minBound := start.Add(-buffer)
	maxBound := stop.Add(buffer)

	merged := xmltree.New(s.name)
	for _, item := range items {
		itemTime, err := s.itemTime(item)
		if err != nil {
			return nil, err
		}
		if !itemTime.After(minBound) || !itemTime.Before(maxBound) {
			continue
		}

		if s.hasLine {
			lineElem := item.Find("line")
			line, err := lineElem.AsInt()
			if err != nil {
				return nil, fmt.Errorf("list %s: %w", s.name, err)
			}
			line -= s.startLine
			if lineBounds != nil && (line < lineBounds[0] || line > lineBounds[1]) {
				continue
			}
			lineElem.SetText(strconv.Itoa(line))
		} else if lineBounds != nil {
			return nil, fmt.Errorf("line bounds cannot be applied to list %s without line coordinates", s.name)
		}

		merged.Append(item)
	}
	merged.SetCount()
	return merged, nil
}

// includeField implements the Include strategy: a deep copy of the field
// from the chronologically earliest input.
func includeField(earliest *xmltree.Element, path string) *xmltree.Element {
	found := earliest.Find(path)
	if found == nil {
		return nil
	}
	return found.Copy()
}

// meanOfInputs implements the numeric Merge rules: the arithmetic mean of a
// scalar field across the group's SLC inputs, formatted with the vendor
// annotation's precision for that field.
func meanOfInputs(inputs []*xmltree.Element, path, format string) (string, error) {
	if len(inputs) == 0 {
		return "", fmt.Errorf("no inputs to average")
	}
	var sum float64
	for _, input := range inputs {
		value, err := input.FindFloat(path)
		if err != nil {
			return "", err
		}
		sum += value
	}
	return fmt.Sprintf(format, sum/float64(len(inputs))), nil
}
