package service

import (
	"fmt"
	"strings"

	"labdigitizer/internal/domain"
)

const platePreviewWells = 5

func resultLabel(res *Result) string {
	if label := strings.TrimSpace(res.Label()); label != "" {
		return label
	}
	return "Unknown"
}

// processedImages counts the images that produced a capture.
func processedImages(res *Result) int {
	return res.Images - len(res.Failures)
}

// ResultSubject is the subject line of a result reply.
func ResultSubject(res *Result) string {
	return fmt.Sprintf("Lab Data Results - %s (%d samples, %d images)",
		resultLabel(res), res.Samples(), processedImages(res))
}

// ResultBody is the plain-text summary of a result reply.
func ResultBody(res *Result, exportExt string, imagesAttached bool) string {
	var b strings.Builder
	if res.Capture.IsPlate() {
		writePlateBody(&b, res)
	} else {
		writeStandardBody(&b, res)
	}

	b.WriteString("\n\n")
	fmt.Fprintf(&b, "The detailed results are attached as a %s file", strings.ToUpper(exportExt))
	if imagesAttached {
		b.WriteString(", along with your original image(s) for reference")
	}
	b.WriteString(".\n")
	if len(res.Failures) > 0 {
		fmt.Fprintf(&b, "\n%d image(s) could not be read:\n", len(res.Failures))
		for _, f := range res.Failures {
			fmt.Fprintf(&b, "    %s: %v\n", f.Image, f.Err)
		}
	}
	b.WriteString("\n--\nLab Data Digitization Service\n")
	return b.String()
}

func writeStandardBody(b *strings.Builder, res *Result) {
	commentary := res.Capture.Commentary
	if commentary == "" {
		commentary = "No additional analysis provided."
	}
	fmt.Fprintf(b, `Your lab data has been digitized successfully!

Instrument Type: %s
Images Processed: %d
Samples Extracted: %d

ANALYSIS SUMMARY:
%s

SAMPLE RESULTS:
`, resultLabel(res), processedImages(res), res.Samples(), commentary)

	for i, r := range res.Capture.Records {
		b.WriteString("    " + sampleLine(i+1, r) + "\n")
	}
}

func sampleLine(n int, r domain.Record) string {
	id := fmt.Sprintf("Sample %d", n)
	if v, ok := r.Identifier(); ok {
		id = v.String()
	}

	f := domain.RowFields(r)
	if f == nil {
		return id
	}
	conc, ok := f.Lookup(domain.ConcentrationKeys)
	if !ok || conc.IsNull() {
		return id + ": N/A"
	}
	if x, ok := conc.Measurement(); ok && conc.IsNumber() && x < 0 {
		return fmt.Sprintf("%s: INVALID (negative value: %s)", id, conc.String())
	}
	r280, ok280 := f.Lookup(domain.A260A280Keys)
	r230, ok230 := f.Lookup(domain.A260A230Keys)
	if ok280 && ok230 && !r280.IsNull() && !r230.IsNull() {
		return fmt.Sprintf("%s: %s ng/uL (260/280: %s, 260/230: %s)", id, conc.String(), r280.String(), r230.String())
	}
	return fmt.Sprintf("%s: %s", id, conc.String())
}

func writePlateBody(b *strings.Builder, res *Result) {
	n := res.Samples()
	fmt.Fprintf(b, `Your lab data has been digitized successfully!

Instrument Type: %s
Format: 96-well plate
Samples extracted: %d of 96 wells

The detailed results cover the complete 96-well plate. Wells not extracted are marked as "not extracted" for manual review.

Data Preview (first %d wells):
`, resultLabel(res), n, platePreviewWells)

	for i, r := range res.Capture.Records {
		if i == platePreviewWells {
			break
		}
		w, ok := r.(*domain.PlateWell)
		if !ok {
			continue
		}
		value := w.Value.String()
		if w.Value.IsNull() {
			value = "N/A"
		}
		fmt.Fprintf(b, "    %s: %s\n", w.Well, value)
	}
	if n > platePreviewWells {
		fmt.Fprintf(b, "    ... and %d more wells (see attachment for complete data)\n", n-platePreviewWells)
	}
}
