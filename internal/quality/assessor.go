// Package quality derives a human-readable quality annotation for nucleic-acid
// measurements from concentration and absorbance purity ratios.
package quality

import (
	"strings"

	"labdigitizer/internal/domain"
)

// Canonical thresholds. Concentration is in ng/uL.
const (
	LowConcentration = 5.0

	Ratio280Low  = 1.6
	Ratio280High = 2.2

	Ratio230Low  = 1.8
	Ratio230High = 2.4
)

// Issue messages.
const (
	MsgNegativeConcentration = "Invalid negative concentration"
	MsgZeroConcentration     = "Zero concentration"
	MsgLowConcentration      = "Very low concentration (<5 ng/uL)"
	MsgMissingConcentration  = "Concentration unavailable"

	MsgProteinContamination = "Possible protein contamination (low 260/280)"
	MsgHigh280              = "Possible degradation or RNA contamination (high 260/280)"
	MsgMissing280           = "260/280 ratio missing"

	MsgOrganicContamination = "Possible organic contamination (low 260/230)"
	MsgHigh230              = "Unusually high 260/230"
	MsgMissing230           = "260/230 ratio missing"

	Good = "Good quality"

	separator = " ; "
)

// Issues evaluates each measurement independently and returns the issue list.
// A nil pointer means the reading is missing.
func Issues(concentration, ratio280, ratio230 *float64) []string {
	var issues []string

	switch {
	case concentration == nil:
		issues = append(issues, MsgMissingConcentration)
	case *concentration < 0:
		issues = append(issues, MsgNegativeConcentration)
	case *concentration == 0:
		issues = append(issues, MsgZeroConcentration)
	case *concentration < LowConcentration:
		issues = append(issues, MsgLowConcentration)
	}

	switch {
	case ratio280 == nil:
		issues = append(issues, MsgMissing280)
	case *ratio280 < Ratio280Low:
		issues = append(issues, MsgProteinContamination)
	case *ratio280 > Ratio280High:
		issues = append(issues, MsgHigh280)
	}

	switch {
	case ratio230 == nil:
		issues = append(issues, MsgMissing230)
	case *ratio230 < Ratio230Low:
		issues = append(issues, MsgOrganicContamination)
	case *ratio230 > Ratio230High:
		issues = append(issues, MsgHigh230)
	}

	return issues
}

// Assess joins Issues into the annotation text, "Good quality" when there are none.
func Assess(concentration, ratio280, ratio230 *float64) string {
	issues := Issues(concentration, ratio280, ratio230)
	if len(issues) == 0 {
		return Good
	}
	return strings.Join(issues, separator)
}

// AssessRecord scores one row. ok is false for plate wells and for rows that do
// not follow the nucleic-acid schema.
func AssessRecord(r domain.Record) (annotation string, ok bool) {
	if !domain.IsNucleicAcidRow(r) {
		return "", false
	}
	f := domain.RowFields(r)
	return Assess(
		measurement(f, domain.ConcentrationKeys),
		measurement(f, domain.A260A280Keys),
		measurement(f, domain.A260A230Keys),
	), true
}

// Annotate writes the "Quality Assessment" field on every nucleic-acid row of
// c, replacing any earlier annotation. Re-running it yields the same result.
// It returns the number of rows annotated.
func Annotate(c *domain.Capture) int {
	if c == nil || c.IsPlate() {
		return 0
	}
	n := 0
	for _, r := range c.Records {
		annotation, ok := AssessRecord(r)
		if !ok {
			continue
		}
		f := domain.RowFields(r)
		f.Delete(domain.KeyQuality)
		f.Set(domain.ColumnQuality, domain.String(annotation))
		n++
	}
	return n
}

func measurement(f *domain.Fields, aliases []string) *float64 {
	v, ok := f.Lookup(aliases)
	if !ok {
		return nil
	}
	x, ok := v.Measurement()
	if !ok {
		return nil
	}
	return &x
}
