package parser

import (
	"encoding/json"
	"fmt"

	"labdigitizer/internal/domain"
)

// BuildExtractionPrompt returns the universal prompt sent with every instrument photo.
func BuildExtractionPrompt() string {
	return `Extract ALL data from this lab instrument image.

For standard tables (Nanodrop, UV-Vis, plate readers in list mode, etc.):
- Extract the exact column headers and every row.
- Use ASCII-safe units: "ng/uL" instead of "ng/μL", "deg" instead of "°".

For 96-well plates:
- Extract well positions (A1, B2, ...) and their values.
- Provide them in long form: [{"well": "A1", "value": X}, ...]

Return JSON:
{
  "instrument": "detected instrument type",
  "confidence": "high|medium|low",
  "is_plate_format": true/false,
  "columns": ["headers"] (table format only),
  "records": [{"col1": "val1", ...}] or [{"well": "A1", "value": X}],
  "commentary": "any relevant observations"
}

If the image holds no tabular data at all, return {"error": "no_data"}.
Extract all visible data precisely. Keep numbers as numbers and keep scientific notation if shown (e.g. 1.23E+04).
Do not correct or recompute any value. Use ASCII-safe characters only in column headers and units.`
}

// reconcileImage is one capture as presented to the reconciliation prompt.
type reconcileImage struct {
	ImageNumber int             `json:"image_number"`
	Instrument  string          `json:"instrument"`
	Commentary  string          `json:"commentary"`
	Records     []domain.Record `json:"records"`
}

// BuildReconcilePrompt returns the advisory merge prompt for several captures of
// the same measurement session.
func BuildReconcilePrompt(captures []*domain.Capture) (string, error) {
	input := struct {
		Images []reconcileImage `json:"images"`
	}{}
	for i, c := range captures {
		instrument := c.Instrument
		if instrument == "" {
			instrument = "Unknown"
		}
		input.Images = append(input.Images, reconcileImage{
			ImageNumber: i + 1,
			Instrument:  instrument,
			Commentary:  c.Commentary,
			Records:     c.Records,
		})
	}
	data, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling reconcile input: %w", err)
	}

	return fmt.Sprintf(`CRITICAL: respond with ONLY valid JSON. No explanations, no markdown, no conversational text.

Task: merge lab instrument results from %d images of the same measurement session into a single result.

Input data: %s

Rules:
1. Combine all records, sorted by sample_number (or well).
2. For duplicate sample_numbers choose the most reliable reading: avoid negative values, prefer good ratios.
3. Never invent records or values that are not present in the input.
4. Determine the overall instrument.
5. Include brief commentary about conflicts and quality.

RESPOND WITH ONLY THIS JSON STRUCTURE:
{
  "instrument": "Nanodrop",
  "commentary": "Processed %d images with N samples. Brief quality assessment.",
  "records": [
    {"sample_number": 1, "concentration": 87.3, "a260_a280": 1.94, "a260_a230": 2.07}
  ]
}`, len(captures), string(data), len(captures)), nil
}
