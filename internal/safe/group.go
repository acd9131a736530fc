package safe

import (
	"sort"
	"time"

	"github.com/robert-malhotra/burst2safe/internal/burst"
)

// Group is an ordered sequence of bursts sharing one (swath, polarization),
// sorted ascending by start time with ties broken by burst ID.
type Group struct {
	Swath        burst.Swath
	Polarization burst.Polarization
	Records      []*burst.Record
}

// GroupKey identifies a group within a grouped set.
type GroupKey struct {
	Swath        burst.Swath
	Polarization burst.Polarization
}

// GroupRecords partitions records by (swath, polarization) and sorts each
// group. Deterministic for any input ordering; every record lands in exactly
// one group.
func GroupRecords(records []*burst.Record) map[GroupKey]*Group {
	groups := make(map[GroupKey]*Group)
	for _, record := range records {
		key := GroupKey{Swath: record.Swath, Polarization: record.Polarization}
		group, ok := groups[key]
		if !ok {
			group = &Group{Swath: record.Swath, Polarization: record.Polarization}
			groups[key] = group
		}
		group.Records = append(group.Records, record)
	}
	for _, group := range groups {
		sortRecords(group.Records)
	}
	return groups
}

// SortedKeys returns the group keys in canonical (swath, polarization)
// order, which fixes image numbering independent of map iteration.
func SortedKeys(groups map[GroupKey]*Group) []GroupKey {
	keys := make([]GroupKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Swath != keys[j].Swath {
			return keys[i].Swath < keys[j].Swath
		}
		return keys[i].Polarization < keys[j].Polarization
	})
	return keys
}

func sortRecords(records []*burst.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].Timing.Start.Equal(records[j].Timing.Start) {
			return records[i].Timing.Start.Before(records[j].Timing.Start)
		}
		return records[i].ID < records[j].ID
	})
}

// Window returns the group's overall azimuth time extent.
func (g *Group) Window() (start, stop time.Time) {
	start, stop = g.Records[0].Timing.Start, g.Records[0].Timing.Stop
	for _, record := range g.Records[1:] {
		if record.Timing.Start.Before(start) {
			start = record.Timing.Start
		}
		if record.Timing.Stop.After(stop) {
			stop = record.Timing.Stop
		}
	}
	return start, stop
}

// Layout fixes where each burst of a group lands on the merged line axis.
type Layout struct {
	// StartLine is the offset of the group's first line within the source
	// SLC line numbering (burst index times lines per burst).
	StartLine int
	// Offsets holds each member's placement offset on the merged axis.
	Offsets []int
	// Trims holds the per-member count of leading lines already covered by
	// the previous member (earliest burst wins on overlap).
	Trims []int
	// TotalLines is the merged axis length: sum of spans minus total trim.
	TotalLines int
	// LinesPerBurst is the uniform azimuth line span of the members.
	LinesPerBurst int
}

// ComputeLayout derives the merged line axis from the members' burst indices
// within their source SLCs. Consecutive indices tile the axis exactly; a
// repeated or regressing index yields a trim so each physical line is
// written once.
func (g *Group) ComputeLayout() Layout {
	lines := g.Records[0].Timing.Lines
	first := g.Records[0].Index

	layout := Layout{
		StartLine:     first * lines,
		Offsets:       make([]int, len(g.Records)),
		Trims:         make([]int, len(g.Records)),
		LinesPerBurst: lines,
	}

	end := 0 // first line not yet covered, group-relative
	for i, record := range g.Records {
		offset := (record.Index - first) * lines
		if offset < 0 {
			offset = 0
		}
		trim := 0
		if end > offset {
			trim = end - offset
			if trim > lines {
				trim = lines
			}
		}
		layout.Offsets[i] = offset
		layout.Trims[i] = trim
		if offset+lines > end {
			end = offset + lines
		}
	}
	layout.TotalLines = end
	return layout
}

// SLCInputs returns, in group order, one representative record per distinct
// source SLC together with the total line length of each SLC's swath
// (bursts times lines per burst, from the product annotation). Bursts from
// the same SLC share annotation documents, so merge inputs are deduplicated
// at the SLC level.
func (g *Group) SLCInputs() (records []*burst.Record, slcLengths []int, err error) {
	seen := make(map[string]bool)
	for _, record := range g.Records {
		if seen[record.SLCGranule] {
			continue
		}
		seen[record.SLCGranule] = true

		product := record.Document(burst.DocProduct)
		if product == nil {
			return nil, nil, &SchemaError{Doc: burst.DocProduct, Field: "content", Burst: record.Granule}
		}
		burstList := product.Find("swathTiming/burstList")
		if burstList == nil {
			return nil, nil, &SchemaError{Doc: burst.DocProduct, Field: "swathTiming/burstList", Burst: record.Granule}
		}
		linesPerBurst, err := product.FindInt("swathTiming/linesPerBurst")
		if err != nil {
			return nil, nil, &SchemaError{Doc: burst.DocProduct, Field: "swathTiming/linesPerBurst", Burst: record.Granule}
		}

		records = append(records, record)
		slcLengths = append(slcLengths, burstList.Count()*linesPerBurst)
	}
	return records, slcLengths, nil
}
