package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labdigitizer/internal/domain"
	"labdigitizer/internal/parser"
)

func TestBuildExtractionPrompt(t *testing.T) {
	p := parser.BuildExtractionPrompt()

	assert.Contains(t, p, `"is_plate_format"`)
	assert.Contains(t, p, `{"error": "no_data"}`)
}

func TestBuildReconcilePrompt(t *testing.T) {
	captures := []*domain.Capture{
		{Instrument: "Nanodrop", Commentary: "blurry", Records: []domain.Record{
			&domain.DynamicRow{Fields: domain.NewFields(
				domain.Field{Key: domain.KeySampleNumber, Value: domain.Number("1")},
				domain.Field{Key: domain.KeyConcentration, Value: domain.Number("24.30")},
			)},
		}},
		{Records: []domain.Record{&domain.PlateWell{Well: "A1", Value: domain.Null()}}},
	}

	p, err := parser.BuildReconcilePrompt(captures)
	require.NoError(t, err)

	assert.Contains(t, p, "from 2 images")
	assert.Contains(t, p, `"sample_number": 1`)
	assert.Contains(t, p, `"concentration": 24.30`)
	assert.Contains(t, p, `"instrument": "Unknown"`)
	assert.Contains(t, p, `"well": "A1"`)
	assert.Contains(t, p, `"value": null`)
}
