package domain

import "strings"

// ImageType represents the accepted instrument photo formats.
type ImageType string

const (
	ImageTypeJPG ImageType = "jpg"
	ImageTypePNG ImageType = "png"
)

// AllowedContentTypes maps MIME content types to ImageType.
var AllowedContentTypes = map[string]ImageType{
	"image/jpeg": ImageTypeJPG,
	"image/jpg":  ImageTypeJPG,
	"image/png":  ImageTypePNG,
}

// AllowedExtensions maps file extensions (without dot) to their MIME content type.
var AllowedExtensions = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// Confidence is the oracle's self-reported extraction confidence.
type Confidence string

const (
	ConfidenceHigh    Confidence = "high"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceLow     Confidence = "low"
	ConfidenceUnknown Confidence = "unknown"
)

// ParseConfidence maps free text to a Confidence, defaulting to unknown.
func ParseConfidence(s string) Confidence {
	switch Confidence(strings.ToLower(strings.TrimSpace(s))) {
	case ConfidenceHigh:
		return ConfidenceHigh
	case ConfidenceMedium:
		return ConfidenceMedium
	case ConfidenceLow:
		return ConfidenceLow
	default:
		return ConfidenceUnknown
	}
}

// Rank orders confidences from weakest (0) to strongest (3).
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// Format is the record layout of a capture, decided once at decode time.
type Format string

const (
	FormatTabular Format = "tabular"
	FormatPlate   Format = "plate"
)

// RecordKind discriminates the Record union.
type RecordKind string

const (
	KindPlateWell  RecordKind = "plate_well"
	KindTableRow   RecordKind = "table_row"
	KindDynamicRow RecordKind = "dynamic_row"
)

// Canonical record keys and the header labels used in exports.
const (
	KeySampleNumber  = "sample_number"
	KeyConcentration = "concentration"
	KeyA260A280      = "a260_a280"
	KeyA260A230      = "a260_a230"
	KeyWell          = "well"
	KeyValue         = "value"
	KeyQuality       = "quality"

	ColumnQuality   = "Quality Assessment"
	ColumnAssayType = "Assay Type"

	// LabelMixed marks a merged capture whose inputs disagree on the instrument.
	LabelMixed = "Mixed"
)

// Key aliases, in lookup priority order.
var (
	SampleNumberKeys  = []string{KeySampleNumber, "#", "Sample Number", "sample_id"}
	ConcentrationKeys = []string{"ng/uL", "Concentration (ng/uL)", KeyConcentration, "Concentration"}
	A260A280Keys      = []string{"A260/A280", KeyA260A280, "260/280"}
	A260A230Keys      = []string{"A260/A230", KeyA260A230, "260/230"}
	QualityKeys       = []string{ColumnQuality, KeyQuality}
)
