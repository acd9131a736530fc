package safe

import (
	"testing"

	"github.com/robert-malhotra/burst2safe/internal/burst"
)

func TestHasSplitNoiseVectors(t *testing.T) {
	cases := []struct {
		major, minor int
		want         bool
	}{
		{2, 90, true},
		{2, 91, true},
		{3, 0, true},
		{2, 89, false},
		{1, 99, false},
	}
	for _, tc := range cases {
		if got := HasSplitNoiseVectors(tc.major, tc.minor); got != tc.want {
			t.Errorf("HasSplitNoiseVectors(%d, %d): expected %v, got %v", tc.major, tc.minor, tc.want, got)
		}
	}
}

func TestAssembleNoiseSplitVectors(t *testing.T) {
	noise, err := AssembleNoise(fixtureGroup(t, false), 1, 3, 71)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	root := noise.Root
	if root.Name != "noise" {
		t.Fatalf("Unexpected root %s", root.Name)
	}

	rangeList := root.Find("noiseRangeVectorList")
	if rangeList == nil || rangeList.Attr("count") != "1" {
		t.Fatal("Expected one noise range vector")
	}

	azimuthList := root.Find("noiseAzimuthVectorList")
	if azimuthList == nil || azimuthList.Attr("count") != "1" {
		t.Fatal("Expected one noise azimuth vector")
	}
	vector := azimuthList.Children[0]
	// The fixture group covers the whole SLC swath, so the vector survives
	// unshifted and uncut.
	if got := vector.FindText("firstAzimuthLine"); got != "0" {
		t.Errorf("Unexpected firstAzimuthLine %s", got)
	}
	if got := vector.FindText("lastAzimuthLine"); got != "7" {
		t.Errorf("Unexpected lastAzimuthLine %s", got)
	}
	if got := vector.FindText("line"); got != "0 3 7" {
		t.Errorf("Unexpected line array %q", got)
	}
	if got := vector.FindText("noiseAzimuthLut"); got != "1.0 1.1 1.2" {
		t.Errorf("Unexpected LUT %q", got)
	}
}

func TestAssembleNoiseLegacyVectors(t *testing.T) {
	group := fixtureGroup(t, false)
	group.Records[0].Documents[burst.DocNoise] = mustParseXML(t, `<noise>
		<adsHeader>
			<startTime>2024-01-01T00:00:00.000000</startTime>
			<stopTime>2024-01-01T00:00:01.500000</stopTime>
			<imageNumber>004</imageNumber>
		</adsHeader>
		<noiseVectorList count="2">
			<noiseVector><azimuthTime>2024-01-01T00:00:00.000000</azimuthTime><line>0</line></noiseVector>
			<noiseVector><azimuthTime>2024-01-01T00:00:02.000000</azimuthTime><line>4</line></noiseVector>
		</noiseVectorList>
	</noise>`)

	noise, err := AssembleNoise(group, 1, 2, 40)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	vectors := noise.Root.Find("noiseVectorList")
	if vectors == nil || vectors.Attr("count") != "2" {
		t.Fatal("Expected the single-part noise vector list")
	}
	if noise.Root.Find("noiseAzimuthVectorList") != nil {
		t.Error("Legacy products carry no azimuth noise vectors")
	}
}

func TestSubsetAzimuthVector(t *testing.T) {
	vector := mustParseXML(t, `<noiseAzimuthVector>
		<firstAzimuthLine>0</firstAzimuthLine>
		<lastAzimuthLine>12</lastAzimuthLine>
		<line count="4">0 4 8 12</line>
		<noiseAzimuthLut count="4">1.0 1.1 1.2 1.3</noiseAzimuthLut>
	</noiseAzimuthVector>`)

	// Shifting by -4 puts the first sample before the composite; the subset
	// keeps the samples bracketing [0, 5].
	updated, err := subsetAzimuthVector(vector, -4, 5)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := updated.FindText("line"); got != "0 4 8" {
		t.Errorf("Unexpected line array %q", got)
	}
	if got := updated.FindText("noiseAzimuthLut"); got != "1.1 1.2 1.3" {
		t.Errorf("Unexpected LUT %q", got)
	}
	if got := updated.FindText("firstAzimuthLine"); got != "0" {
		t.Errorf("Unexpected firstAzimuthLine %s", got)
	}
	if got := updated.FindText("lastAzimuthLine"); got != "8" {
		t.Errorf("Unexpected lastAzimuthLine %s", got)
	}
	if got := updated.Find("line").Attr("count"); got != "3" {
		t.Errorf("Unexpected count %s", got)
	}

	// The source vector is untouched.
	if got := vector.FindText("line"); got != "0 4 8 12" {
		t.Errorf("Source vector was modified: %q", got)
	}
}

func TestSubsetAzimuthVectorMismatchedLut(t *testing.T) {
	vector := mustParseXML(t, `<noiseAzimuthVector>
		<firstAzimuthLine>0</firstAzimuthLine>
		<lastAzimuthLine>8</lastAzimuthLine>
		<line count="3">0 4 8</line>
		<noiseAzimuthLut count="2">1.0 1.1</noiseAzimuthLut>
	</noiseAzimuthVector>`)
	if _, err := subsetAzimuthVector(vector, 0, 8); err == nil {
		t.Error("Expected error for LUT shorter than the line array")
	}
}

func TestBracketIndexes(t *testing.T) {
	lines := []int{0, 4, 8, 12}

	first, last := bracketIndexes(lines, 0, 12)
	if first != 0 || last != 3 {
		t.Errorf("Expected [0, 3], got [%d, %d]", first, last)
	}

	first, last = bracketIndexes(lines, 5, 7)
	if first != 1 || last != 2 {
		t.Errorf("Expected [1, 2], got [%d, %d]", first, last)
	}

	// Targets outside the sampled range fall back to the array ends.
	first, last = bracketIndexes(lines, -10, 100)
	if first != 0 || last != 3 {
		t.Errorf("Expected [0, 3], got [%d, %d]", first, last)
	}
}
