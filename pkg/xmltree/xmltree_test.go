package xmltree

import (
	"strings"
	"testing"
)

const sampleDoc = `<?xml version="1.0" encoding="UTF-8"?>
<product>
  <adsHeader>
    <missionId>S1A</missionId>
    <imageNumber>004</imageNumber>
  </adsHeader>
  <swathTiming>
    <linesPerBurst>1503</linesPerBurst>
    <burstList count="2">
      <burst>
        <azimuthTime>2024-01-01T00:00:00.000000</azimuthTime>
      </burst>
      <burst>
        <azimuthTime>2024-01-01T00:00:02.758273</azimuthTime>
      </burst>
    </burstList>
  </swathTiming>
</product>`

func TestParseString_Find(t *testing.T) {
	root, err := ParseString(sampleDoc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if root.Name != "product" {
		t.Errorf("Expected root name product, got %s", root.Name)
	}
	if got := root.FindText("adsHeader/missionId"); got != "S1A" {
		t.Errorf("Expected missionId S1A, got %q", got)
	}
	if root.Find("adsHeader/doesNotExist") != nil {
		t.Error("Expected nil for missing path")
	}

	lines, err := root.FindInt("swathTiming/linesPerBurst")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if lines != 1503 {
		t.Errorf("Expected 1503 lines, got %d", lines)
	}
}

func TestFindAll(t *testing.T) {
	root, err := ParseString(sampleDoc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	bursts := root.FindAll("swathTiming/burstList/burst")
	if len(bursts) != 2 {
		t.Fatalf("Expected 2 bursts, got %d", len(bursts))
	}
	if got := bursts[1].FindText("azimuthTime"); got != "2024-01-01T00:00:02.758273" {
		t.Errorf("Unexpected second azimuthTime %q", got)
	}
}

func TestDescendants(t *testing.T) {
	root, err := ParseString(sampleDoc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	times := root.Descendants("azimuthTime")
	if len(times) != 2 {
		t.Errorf("Expected 2 azimuthTime descendants, got %d", len(times))
	}
	first := root.FirstDescendant("azimuthTime")
	if first == nil || first.Text != "2024-01-01T00:00:00.000000" {
		t.Errorf("Unexpected first descendant: %+v", first)
	}
	if root.FirstDescendant("nope") != nil {
		t.Error("Expected nil for missing descendant")
	}
}

func TestCopyIsDeep(t *testing.T) {
	root, err := ParseString(sampleDoc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	dup := root.Copy()
	dup.Find("adsHeader/missionId").SetText("S1B")
	if got := root.FindText("adsHeader/missionId"); got != "S1A" {
		t.Errorf("Copy mutated the original: %q", got)
	}

	list := root.Find("swathTiming/burstList")
	dupList := dup.Find("swathTiming/burstList")
	if dupList.Attr("count") != list.Attr("count") {
		t.Error("Copy did not carry attributes")
	}
}

func TestRemoveAndSetCount(t *testing.T) {
	root, err := ParseString(sampleDoc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	list := root.Find("swathTiming/burstList")
	if !list.Remove(list.Children[1]) {
		t.Fatal("Expected Remove to report success")
	}
	list.SetCount()
	if list.Attr("count") != "1" {
		t.Errorf("Expected count 1, got %q", list.Attr("count"))
	}
	if list.Remove(New("burst")) {
		t.Error("Expected Remove of a foreign element to fail")
	}
}

func TestSetAttrReplaces(t *testing.T) {
	e := New("list")
	e.SetAttr("count", "1")
	e.SetAttr("count", "2")
	if len(e.Attrs) != 1 || e.Attr("count") != "2" {
		t.Errorf("Unexpected attrs: %+v", e.Attrs)
	}
}

func TestMarshalLayout(t *testing.T) {
	root := New("noise")
	header := New("adsHeader")
	header.Append(NewWithText("missionId", "S1A"))
	root.Append(header)
	empty := New("noiseVectorList")
	empty.SetCount()
	root.Append(empty)

	data, err := Marshal(root)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	want := `<?xml version="1.0" encoding="UTF-8"?>
<noise>
  <adsHeader>
    <missionId>S1A</missionId>
  </adsHeader>
  <noiseVectorList count="0"/>
</noise>
`
	if string(data) != want {
		t.Errorf("Unexpected output:\n%s", data)
	}
}

func TestMarshalEscapesText(t *testing.T) {
	root := New("doc")
	root.Append(NewWithText("value", `a<b&"c"`))
	data, err := Marshal(root)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "a&lt;b&amp;") {
		t.Errorf("Text was not escaped:\n%s", data)
	}
}

func TestParseRoundTripNamespaces(t *testing.T) {
	doc := `<xfdu:XFDU xmlns:xfdu="urn:ccsds:schema:xfdu:1" version="test">
  <metadataSection>
    <metadataObject ID="platform"/>
  </metadataSection>
</xfdu:XFDU>`
	root, err := ParseString(doc)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	// Prefixes are stripped on input; lookups go by local name.
	if root.Find("metadataSection") == nil {
		t.Fatal("Expected metadataSection child")
	}
	if got := root.Find("metadataSection/metadataObject").Attr("ID"); got != "platform" {
		t.Errorf("Expected ID platform, got %q", got)
	}
	if got := root.Attr("version"); got != "test" {
		t.Errorf("Expected version attribute, got %q", got)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := ParseString(""); err == nil {
		t.Error("Expected error for empty document")
	}
	if _, err := ParseString("<unclosed>"); err == nil {
		t.Error("Expected error for malformed document")
	}
}

func TestFindFloat(t *testing.T) {
	root, err := ParseString(`<a><b> 1.25 </b><c>nope</c></a>`)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	v, err := root.FindFloat("b")
	if err != nil || v != 1.25 {
		t.Errorf("Expected 1.25, got %v (%v)", v, err)
	}
	if _, err := root.FindFloat("c"); err == nil {
		t.Error("Expected error for non-numeric text")
	}
	if _, err := root.FindFloat("missing"); err == nil {
		t.Error("Expected error for missing element")
	}
}
