package merge

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"labdigitizer/internal/domain"
)

// Deterministic merges captures without any external help. Records are grouped
// by identifier; within a group a positive concentration beats a non-positive
// one, otherwise the larger concentration wins and ties keep the first-seen
// record. Missing concentration counts as zero. Survivors are sorted by
// identifier; records without an identifier follow in first-seen order.
func Deterministic(captures []*domain.Capture) *domain.Capture {
	out := &domain.Capture{
		Instrument: mergedLabel(captures),
		Confidence: weakestConfidence(captures),
		Format:     mergedFormat(captures),
		Commentary: mergedCommentary(captures),
	}
	if !out.IsPlate() {
		out.Columns = mergedColumns(captures)
	}

	var (
		order     []string
		best      = map[string]domain.Record{}
		ids       = map[string]domain.Value{}
		anonymous []domain.Record
	)
	for _, c := range captures {
		for _, r := range c.Records {
			rec := convert(r, out)
			id, ok := rec.Identifier()
			if !ok {
				anonymous = append(anonymous, rec)
				continue
			}
			k := identifierKey(id)
			existing, seen := best[k]
			if !seen {
				best[k] = rec
				ids[k] = id
				order = append(order, k)
				continue
			}
			if prefer(rec, existing) {
				best[k] = rec
			}
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return CompareIdentifiers(ids[order[i]], ids[order[j]]) < 0
	})

	out.Records = make([]domain.Record, 0, len(order)+len(anonymous))
	for _, k := range order {
		out.Records = append(out.Records, best[k])
	}
	out.Records = append(out.Records, anonymous...)
	return out
}

// prefer reports whether current should replace existing.
func prefer(current, existing domain.Record) bool {
	cur, ex := reading(current), reading(existing)
	switch {
	case cur > 0 && ex <= 0:
		return true
	case ex > 0 && cur <= 0:
		return false
	default:
		return cur > ex
	}
}

func reading(r domain.Record) float64 {
	v, ok := domain.Concentration(r)
	if !ok {
		return 0
	}
	f, ok := v.Measurement()
	if !ok {
		return 0
	}
	return f
}

// convert copies r into the record type the merged capture's layout requires.
func convert(r domain.Record, into *domain.Capture) domain.Record {
	if into.IsPlate() {
		return r.Clone()
	}
	var fields domain.Fields
	switch t := r.(type) {
	case *domain.PlateWell:
		fields = domain.NewFields(
			domain.Field{Key: domain.KeyWell, Value: domain.String(t.Well)},
			domain.Field{Key: domain.KeyValue, Value: t.Value},
		)
	default:
		fields = domain.RowFields(r).Clone()
	}
	if into.HasColumns() {
		return &domain.TableRow{Fields: fields}
	}
	return &domain.DynamicRow{Fields: fields}
}

func mergedFormat(captures []*domain.Capture) domain.Format {
	if len(captures) == 0 {
		return domain.FormatTabular
	}
	for _, c := range captures {
		if !c.IsPlate() {
			return domain.FormatTabular
		}
	}
	return domain.FormatPlate
}

// mergedColumns is the first-seen union of the inputs' columns, kept only when
// every tabular input carries columns; otherwise rows keep their own keys.
func mergedColumns(captures []*domain.Capture) []string {
	var cols []string
	seen := map[string]bool{}
	for _, c := range captures {
		if c.IsPlate() {
			continue
		}
		if !c.HasColumns() {
			return nil
		}
		for _, col := range c.Columns {
			if !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
	}
	return cols
}

func mergedLabel(captures []*domain.Capture) string {
	var labels []string
	seen := map[string]bool{}
	for _, c := range captures {
		l := strings.TrimSpace(c.Instrument)
		if l == "" || strings.EqualFold(l, "unknown") || seen[l] {
			continue
		}
		seen[l] = true
		labels = append(labels, l)
	}
	switch len(labels) {
	case 0:
		return ""
	case 1:
		return labels[0]
	default:
		return domain.LabelMixed
	}
}

func weakestConfidence(captures []*domain.Capture) domain.Confidence {
	if len(captures) == 0 {
		return domain.ConfidenceUnknown
	}
	weakest := captures[0].Confidence
	for _, c := range captures[1:] {
		if c.Confidence.Rank() < weakest.Rank() {
			weakest = c.Confidence
		}
	}
	if weakest == "" {
		return domain.ConfidenceUnknown
	}
	return weakest
}

func mergedCommentary(captures []*domain.Capture) string {
	head := fmt.Sprintf("Processed %d images.", len(captures))
	var notes []string
	for _, c := range captures {
		if s := strings.TrimSpace(c.Commentary); s != "" {
			notes = append(notes, s)
		}
	}
	if len(notes) == 0 {
		return head
	}
	return head + " " + strings.Join(notes, " | ")
}

// identifierKey folds equivalent identifiers together: 1, "1" and "1.0" group,
// as do "a1" and "A1".
func identifierKey(v domain.Value) string {
	if f, ok := numericID(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strings.ToUpper(strings.TrimSpace(v.String()))
}

// CompareIdentifiers orders identifiers: numbers numerically and before text,
// well names by row letter then column number, other text lexically.
func CompareIdentifiers(a, b domain.Value) int {
	af, aNum := numericID(a)
	bf, bNum := numericID(b)
	switch {
	case aNum && bNum:
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case aNum:
		return -1
	case bNum:
		return 1
	}

	as, bs := strings.ToUpper(strings.TrimSpace(a.String())), strings.ToUpper(strings.TrimSpace(b.String()))
	aRow, aCol, aWell := ParseWell(as)
	bRow, bCol, bWell := ParseWell(bs)
	if aWell && bWell {
		if aRow != bRow {
			if aRow < bRow {
				return -1
			}
			return 1
		}
		return aCol - bCol
	}
	return strings.Compare(as, bs)
}

func numericID(v domain.Value) (float64, bool) {
	if v.IsNull() {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseWell splits a plate position such as "B12" into row letter and column.
// Only rows A-H and columns 1-12 are valid.
func ParseWell(s string) (row byte, col int, ok bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 || len(s) > 3 {
		return 0, 0, false
	}
	row = s[0]
	if row < 'A' || row > 'H' {
		return 0, 0, false
	}
	col, err := strconv.Atoi(s[1:])
	if err != nil || col < 1 || col > 12 {
		return 0, 0, false
	}
	return row, col, true
}
