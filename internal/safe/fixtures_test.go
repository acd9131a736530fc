package safe

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/robert-malhotra/burst2safe/internal/burst"
	"github.com/robert-malhotra/burst2safe/pkg/geojson"
	"github.com/robert-malhotra/burst2safe/pkg/xmltree"
)

// Shared fixture: two consecutive IW2 VV bursts from the same source SLC,
// 4 lines by 3 samples each, half-second azimuth sampling. The composite
// spans 8 lines from 00:00:00 to 00:00:03.5.
var (
	fixtureT0    = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fixtureSLC   = "S1A_IW_SLC__1SDV_20240101T000000_20240101T000030_051001_0629E5_ABCD"
	fixtureStamp = [...]string{
		"2024-01-01T00:00:00.000000", // burst 1 start
		"2024-01-01T00:00:02.000000", // burst 2 start
		"2024-01-01T00:00:03.500000", // composite stop
	}
)

const fixtureProductXML = `<product>
  <adsHeader>
    <missionId>S1A</missionId>
    <productType>SLC</productType>
    <polarisation>VV</polarisation>
    <mode>IW</mode>
    <swath>IW2</swath>
    <startTime>2024-01-01T00:00:00.000000</startTime>
    <stopTime>2024-01-01T00:00:01.500000</stopTime>
    <absoluteOrbitNumber>51001</absoluteOrbitNumber>
    <missionDataTakeId>403941</missionDataTakeId>
    <imageNumber>004</imageNumber>
  </adsHeader>
  <qualityInformation>
    <productQualityIndex>1.0</productQualityIndex>
    <qualityDataList count="1">
      <qualityData>
        <azimuthTime>2024-01-01T00:00:00.000000</azimuthTime>
        <downlinkQuality>nominal</downlinkQuality>
      </qualityData>
    </qualityDataList>
  </qualityInformation>
  <generalAnnotation>
    <productInformation>
      <pass>ASCENDING</pass>
      <platformHeading>-12.000000</platformHeading>
      <rangeSamplingRate>6.434523e+07</rangeSamplingRate>
    </productInformation>
    <downlinkInformationList count="1">
      <downlinkInformation>
        <azimuthTime>2024-01-01T00:00:00.000000</azimuthTime>
      </downlinkInformation>
    </downlinkInformationList>
    <orbitList count="2">
      <orbit><time>2024-01-01T00:00:00.000000</time></orbit>
      <orbit><time>2024-01-01T00:00:10.000000</time></orbit>
    </orbitList>
    <attitudeList count="1">
      <attitude><time>2024-01-01T00:00:00.000000</time></attitude>
    </attitudeList>
    <rawDataAnalysisList count="1">
      <rawDataAnalysis><azimuthTime>2024-01-01T00:00:00.000000</azimuthTime></rawDataAnalysis>
    </rawDataAnalysisList>
    <replicaInformationList count="1">
      <replicaInformation>
        <referenceReplica>
          <azimuthTime>2024-01-01T00:00:00.000000</azimuthTime>
        </referenceReplica>
      </replicaInformation>
    </replicaInformationList>
    <noiseList count="1">
      <noise><azimuthTime>2024-01-01T00:00:00.000000</azimuthTime></noise>
    </noiseList>
    <terrainHeightList count="1">
      <terrainHeight><azimuthTime>2024-01-01T00:00:00.000000</azimuthTime></terrainHeight>
    </terrainHeightList>
    <azimuthFmRateList count="1">
      <azimuthFmRate><azimuthTime>2024-01-01T00:00:00.000000</azimuthTime></azimuthFmRate>
    </azimuthFmRateList>
  </generalAnnotation>
  <imageAnnotation>
    <imageInformation>
      <productFirstLineUtcTime>2024-01-01T00:00:00.000000</productFirstLineUtcTime>
      <productLastLineUtcTime>2024-01-01T00:00:03.500000</productLastLineUtcTime>
      <ascendingNodeTime>2023-12-31T23:10:00.000000</ascendingNodeTime>
      <azimuthTimeInterval>0.5</azimuthTimeInterval>
      <azimuthPixelSpacing>1.390000e+01</azimuthPixelSpacing>
      <numberOfLines>8</numberOfLines>
      <numberOfSamples>3</numberOfSamples>
      <productComposition>Slice</productComposition>
      <sliceNumber>4</sliceNumber>
      <sliceList count="2">
        <slice><sliceNumber>3</sliceNumber></slice>
        <slice><sliceNumber>4</sliceNumber></slice>
      </sliceList>
      <imageStatistics>
        <outputDataMean><re>1.0</re><im>2.0</im></outputDataMean>
        <outputDataStdDev><re>3.0</re><im>4.0</im></outputDataStdDev>
      </imageStatistics>
    </imageInformation>
    <processingInformation>
      <inputDimensionsList count="1">
        <inputDimensions>
          <azimuthTime>2024-01-01T00:00:00.000000</azimuthTime>
          <numberOfInputLines>8</numberOfInputLines>
        </inputDimensions>
      </inputDimensionsList>
    </processingInformation>
  </imageAnnotation>
  <dopplerCentroid>
    <dcEstimateList count="1">
      <dcEstimate><azimuthTime>2024-01-01T00:00:00.000000</azimuthTime></dcEstimate>
    </dcEstimateList>
  </dopplerCentroid>
  <antennaPattern>
    <antennaPatternList count="1">
      <antennaPattern><azimuthTime>2024-01-01T00:00:00.000000</azimuthTime></antennaPattern>
    </antennaPatternList>
  </antennaPattern>
  <swathTiming>
    <linesPerBurst>4</linesPerBurst>
    <samplesPerBurst>3</samplesPerBurst>
    <burstList count="2">
      <burst>
        <azimuthTime>2024-01-01T00:00:00.000000</azimuthTime>
        <byteOffset>1234</byteOffset>
      </burst>
      <burst>
        <azimuthTime>2024-01-01T00:00:02.000000</azimuthTime>
        <byteOffset>5678</byteOffset>
      </burst>
    </burstList>
  </swathTiming>
  <geolocationGrid>
    <geolocationGridPointList count="3">
      <geolocationGridPoint>
        <azimuthTime>2024-01-01T00:00:00.000000</azimuthTime>
        <line>0</line><pixel>0</pixel>
        <latitude>10.0</latitude><longitude>20.0</longitude><height>100.0</height>
      </geolocationGridPoint>
      <geolocationGridPoint>
        <azimuthTime>2024-01-01T00:00:02.000000</azimuthTime>
        <line>4</line><pixel>0</pixel>
        <latitude>10.5</latitude><longitude>20.5</longitude><height>110.0</height>
      </geolocationGridPoint>
      <geolocationGridPoint>
        <azimuthTime>2024-01-01T00:00:03.500000</azimuthTime>
        <line>8</line><pixel>2</pixel>
        <latitude>11.0</latitude><longitude>21.0</longitude><height>120.0</height>
      </geolocationGridPoint>
    </geolocationGridPointList>
  </geolocationGrid>
  <coordinateConversion><coordinateConversionList count="0"/></coordinateConversion>
  <swathMerging><swathMergeList count="0"/></swathMerging>
</product>`

const fixtureCalibrationXML = `<calibration>
  <adsHeader>
    <missionId>S1A</missionId>
    <swath>IW2</swath>
    <startTime>2024-01-01T00:00:00.000000</startTime>
    <stopTime>2024-01-01T00:00:01.500000</stopTime>
    <imageNumber>004</imageNumber>
  </adsHeader>
  <calibrationInformation>
    <absoluteCalibrationConstant>1.000000e+00</absoluteCalibrationConstant>
  </calibrationInformation>
  <calibrationVectorList count="2">
    <calibrationVector>
      <azimuthTime>2024-01-01T00:00:00.000000</azimuthTime>
      <line>0</line>
    </calibrationVector>
    <calibrationVector>
      <azimuthTime>2024-01-01T00:00:02.000000</azimuthTime>
      <line>4</line>
    </calibrationVector>
  </calibrationVectorList>
</calibration>`

const fixtureNoiseXML = `<noise>
  <adsHeader>
    <missionId>S1A</missionId>
    <swath>IW2</swath>
    <startTime>2024-01-01T00:00:00.000000</startTime>
    <stopTime>2024-01-01T00:00:01.500000</stopTime>
    <imageNumber>004</imageNumber>
  </adsHeader>
  <noiseRangeVectorList count="1">
    <noiseRangeVector>
      <azimuthTime>2024-01-01T00:00:00.000000</azimuthTime>
      <line>0</line>
      <pixel count="2">0 2</pixel>
      <noiseRangeLut count="2">1.0 2.0</noiseRangeLut>
    </noiseRangeVector>
  </noiseRangeVectorList>
  <noiseAzimuthVectorList count="1">
    <noiseAzimuthVector>
      <swath>IW2</swath>
      <firstAzimuthLine>0</firstAzimuthLine>
      <firstRangeSample>0</firstRangeSample>
      <lastAzimuthLine>7</lastAzimuthLine>
      <lastRangeSample>2</lastRangeSample>
      <line count="3">0 3 7</line>
      <noiseAzimuthLut count="3">1.0 1.1 1.2</noiseAzimuthLut>
    </noiseAzimuthVector>
  </noiseAzimuthVectorList>
</noise>`

const fixtureRFIXML = `<rfi>
  <adsHeader>
    <missionId>S1A</missionId>
    <swath>IW2</swath>
    <startTime>2024-01-01T00:00:00.000000</startTime>
    <stopTime>2024-01-01T00:00:01.500000</stopTime>
    <imageNumber>004</imageNumber>
  </adsHeader>
  <rfiMitigationApplied>BasedOnNoiseMeas</rfiMitigationApplied>
  <rfiDetectionFromNoiseReportList count="1">
    <rfiDetectionFromNoiseReport>
      <azimuthTime>2024-01-01T00:00:00.000000</azimuthTime>
    </rfiDetectionFromNoiseReport>
  </rfiDetectionFromNoiseReportList>
  <rfiBurstReportList count="1">
    <rfiBurstReport>
      <azimuthTime>2024-01-01T00:00:00.000000</azimuthTime>
    </rfiBurstReport>
  </rfiBurstReportList>
</rfi>`

const fixtureManifestXML = `<XFDU version="esa/safe/sentinel-1.0/sentinel-1/sar/level-1/slc/standard/iwdp">
  <metadataSection>
    <metadataObject ID="processing">
      <metadataWrap><xmlData>
        <processing>
          <facility>
            <software name="Sentinel-1 IPF" version="3.71"/>
          </facility>
        </processing>
      </xmlData></metadataWrap>
    </metadataObject>
    <metadataObject ID="platform"/>
    <metadataObject ID="measurementOrbitReference"/>
    <metadataObject ID="generalProductInformation"/>
    <metadataObject ID="acquisitionPeriod"/>
    <metadataObject ID="measurementFrameSet">
      <metadataWrap><xmlData>
        <frameSet><frame><footPrint>
          <coordinates>0.0,0.0 0.0,0.0 0.0,0.0 0.0,0.0</coordinates>
        </footPrint></frame></frameSet>
      </xmlData></metadataWrap>
    </metadataObject>
    <metadataObject ID="s1Level1ProductSchema"/>
  </metadataSection>
</XFDU>`

// fixtureSLCMetadata wraps the product fixture into the combined metadata
// shape served by the catalog. The scene carries product annotations for
// IW2 VV (the swath with selected bursts) and IW1 VV (no selected bursts).
func fixtureSLCMetadata(t *testing.T) *burst.Metadata {
	t.Helper()

	content := strings.Replace(fixtureProductXML, "<product>", "<content>", 1)
	content = strings.Replace(content, "</product>", "</content>", 1)
	combined := `<burst>
  <metadata>
    <manifest>` + fixtureManifestXML + `</manifest>
    <product>
      <swath>IW2</swath>
      <polarisation>VV</polarisation>
      ` + content + `
    </product>
    <product>
      <swath>IW1</swath>
      <polarisation>VV</polarisation>
      ` + content + `
    </product>
  </metadata>
</burst>`

	meta, err := burst.ParseMetadata(strings.NewReader(combined))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return meta
}

func mustParseXML(t *testing.T, s string) *xmltree.Element {
	t.Helper()
	root, err := xmltree.ParseString(s)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return root
}

// fixtureRaster builds a 4x3 tile from literal rows, deriving the per-line
// validity bounds from the zero fill.
func fixtureRaster(rows [][3]complex64) *burst.Raster {
	raster := &burst.Raster{
		Rows:       len(rows),
		Cols:       3,
		Samples:    make([]complex64, 0, len(rows)*3),
		FirstValid: make([]int, len(rows)),
		LastValid:  make([]int, len(rows)),
	}
	for i, row := range rows {
		raster.Samples = append(raster.Samples, row[:]...)
		first, last := -1, -1
		for col, sample := range row {
			if sample != 0 {
				if first == -1 {
					first = col
				}
				last = col
			}
		}
		raster.FirstValid[i] = first
		raster.LastValid[i] = last
	}
	return raster
}

func uniformRaster(value complex64) *burst.Raster {
	return fixtureRaster([][3]complex64{
		{value, value, value},
		{value, value, value},
		{value, value, value},
		{value, value, value},
	})
}

// fixtureRecords builds the two-burst group with shared annotation trees,
// optionally carrying rasters.
func fixtureRecords(t *testing.T, withRasters bool) []*burst.Record {
	t.Helper()

	documents := map[burst.DocType]*xmltree.Element{
		burst.DocProduct:     mustParseXML(t, fixtureProductXML),
		burst.DocCalibration: mustParseXML(t, fixtureCalibrationXML),
		burst.DocNoise:       mustParseXML(t, fixtureNoiseXML),
		burst.DocRFI:         mustParseXML(t, fixtureRFIXML),
	}
	manifest := mustParseXML(t, fixtureManifestXML)

	footprint, err := geojson.NewPolygonFromBBox([]float64{20, 10, 21, 11})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	records := make([]*burst.Record, 2)
	for i := range records {
		start := fixtureT0.Add(time.Duration(i) * 2 * time.Second)
		records[i] = &burst.Record{
			Granule:       fmt.Sprintf("S1_%d_IW2_20240101T000000_VV_ABCD-BURST", 136231+i),
			SLCGranule:    fixtureSLC,
			ID:            int64(136231 + i),
			Index:         i,
			Swath:         "IW2",
			Polarization:  burst.PolVV,
			Mode:          burst.ModeIW,
			AbsoluteOrbit: 51001,
			RelativeOrbit: 104,
			Direction:     "ASCENDING",
			Timing: burst.Timing{
				Start: start,
				Stop:  start.Add(1500 * time.Millisecond),
				Lines: 4,
			},
			Footprint: footprint,
			Documents: documents,
			Manifest:  manifest,
		}
	}
	if withRasters {
		records[0].Raster = uniformRaster(complex(1, 1))
		records[1].Raster = fixtureRaster([][3]complex64{
			{0, complex(2, 0), 0},
			{complex(3, -1), complex(3, -1), complex(3, -1)},
			{0, 0, 0},
			{complex(4, 2), complex(4, 2), 0},
		})
	}
	return records
}

func fixtureGroup(t *testing.T, withRasters bool) *Group {
	t.Helper()
	groups := GroupRecords(fixtureRecords(t, withRasters))
	group, ok := groups[GroupKey{Swath: "IW2", Polarization: burst.PolVV}]
	if !ok {
		t.Fatal("Expected IW2 VV group in fixture")
	}
	return group
}
