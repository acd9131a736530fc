package safe

import "time"

// listBuffers widens the group time window when filtering merged lists.
// The general annotation lists carry long-period state vectors and must keep
// entries well outside the slice; the burst list must be cut tightly so no
// neighbouring burst survives the filter.
const (
	defaultBuffer    = 3 * time.Second
	stateBuffer      = 500 * time.Second
	burstListBuffer  = 100 * time.Millisecond
	noResolutionText = ""
)

// productSchema declares the merge strategy of every field of the product
// annotation, in document order. AssembleProduct walks this table; fields
// absent from it are dropped from the assembled annotation.
var productSchema = []fieldRule{
	{"adsHeader", Merge},
	{"qualityInformation/productQualityIndex", Include},
	{"qualityInformation/qualityDataList", Concatenate},
	{"generalAnnotation/productInformation", Merge},
	{"generalAnnotation/downlinkInformationList", Concatenate},
	{"generalAnnotation/orbitList", Concatenate},
	{"generalAnnotation/attitudeList", Concatenate},
	{"generalAnnotation/rawDataAnalysisList", Concatenate},
	{"generalAnnotation/replicaInformationList", Concatenate},
	{"generalAnnotation/noiseList", Concatenate},
	{"generalAnnotation/terrainHeightList", Concatenate},
	{"generalAnnotation/azimuthFmRateList", Concatenate},
	{"imageAnnotation/imageInformation", Merge},
	{"imageAnnotation/processingInformation", Merge},
	{"dopplerCentroid/dcEstimateList", Concatenate},
	{"antennaPattern/antennaPatternList", Concatenate},
	{"swathTiming", Merge},
	{"geolocationGrid/geolocationGridPointList", Concatenate},
	{"coordinateConversion", Merge},
	{"swathMerging", Merge},
}

type fieldRule struct {
	Path     string
	Category Category
}

// listBuffer returns the window buffer for a merged list field.
func listBuffer(listName string) time.Duration {
	switch listName {
	case "downlinkInformationList", "orbitList", "attitudeList",
		"rawDataAnalysisList", "replicaInformationList", "noiseList",
		"terrainHeightList", "azimuthFmRateList":
		return stateBuffer
	case "burstList":
		return burstListBuffer
	default:
		return defaultBuffer
	}
}
