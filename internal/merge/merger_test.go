package merge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"labdigitizer/internal/config"
	"labdigitizer/internal/domain"
	"labdigitizer/internal/merge"
	"labdigitizer/internal/port"
	"labdigitizer/mocks"
)

func sample(id, conc, r280, r230 string) domain.Record {
	return &domain.DynamicRow{Fields: domain.NewFields(
		domain.Field{Key: domain.KeySampleNumber, Value: domain.Number(id)},
		domain.Field{Key: domain.KeyConcentration, Value: domain.Number(conc)},
		domain.Field{Key: domain.KeyA260A280, Value: domain.Number(r280)},
		domain.Field{Key: domain.KeyA260A230, Value: domain.Number(r230)},
	)}
}

func tabular(instrument string, records ...domain.Record) *domain.Capture {
	return &domain.Capture{
		Instrument: instrument,
		Confidence: domain.ConfidenceHigh,
		Format:     domain.FormatTabular,
		Records:    records,
	}
}

func well(name, value string) domain.Record {
	return &domain.PlateWell{Well: name, Value: domain.Number(value)}
}

// rows projects records onto comparable field lists.
func rows(c *domain.Capture) [][]domain.Field {
	out := make([][]domain.Field, 0, len(c.Records))
	for _, r := range c.Records {
		var fields []domain.Field
		for _, k := range r.Keys() {
			v, _ := r.Get(k)
			fields = append(fields, domain.Field{Key: k, Value: v})
		}
		out = append(out, fields)
	}
	return out
}

func deterministicMerger() *merge.Merger {
	return merge.NewMerger(nil, config.MergeConfig{}, nil)
}

func TestMerge_SingleCaptureReturnedUnchanged(t *testing.T) {
	c := tabular("Nanodrop", sample("2", "10", "1.9", "2.0"), sample("1", "12", "1.8", "2.1"))

	got := deterministicMerger().Merge(context.Background(), []*domain.Capture{c})

	assert.Same(t, c, got)
}

func TestMerge_NoCaptures(t *testing.T) {
	got := deterministicMerger().Merge(context.Background(), nil)

	require.NotNil(t, got)
	assert.False(t, got.IsPlate())
	assert.Empty(t, got.Records)
}

func TestMerge_SelfMergeIsIdempotent(t *testing.T) {
	a := tabular("Nanodrop", sample("1", "24.3", "1.93", "1.58"), sample("2", "50.1", "1.88", "2.01"))

	single := deterministicMerger().Merge(context.Background(), []*domain.Capture{a})
	double := deterministicMerger().Merge(context.Background(), []*domain.Capture{a, a})

	if diff := cmp.Diff(rows(single), rows(double)); diff != "" {
		t.Errorf("merging a capture with itself changed records (-single +double):\n%s", diff)
	}
}

func TestMerge_PositiveConcentrationWins(t *testing.T) {
	good := sample("1", "24.3", "1.93", "1.58")
	bad := sample("1", "-2.1", "2.85", "-2.55")

	for _, order := range [][]domain.Record{{good, bad}, {bad, good}} {
		got := merge.Deterministic([]*domain.Capture{tabular("Nanodrop", order[0]), tabular("Nanodrop", order[1])})

		require.Len(t, got.Records, 1)
		conc, _ := domain.Concentration(got.Records[0])
		assert.Equal(t, "24.3", conc.String())
		r280, _ := got.Records[0].Get(domain.KeyA260A280)
		assert.Equal(t, "1.93", r280.String())
	}
}

func TestMerge_LargerConcentrationWins(t *testing.T) {
	got := merge.Deterministic([]*domain.Capture{
		tabular("", sample("3", "10.5", "1.9", "2.0")),
		tabular("", sample("3", "11.0", "1.7", "1.9")),
	})

	require.Len(t, got.Records, 1)
	conc, _ := domain.Concentration(got.Records[0])
	assert.Equal(t, "11.0", conc.String())
}

func TestMerge_TieKeepsFirstSeen(t *testing.T) {
	first := sample("4", "30", "1.80", "2.00")
	second := sample("4", "30", "1.99", "2.20")

	got := merge.Deterministic([]*domain.Capture{tabular("", first), tabular("", second)})

	require.Len(t, got.Records, 1)
	r280, _ := got.Records[0].Get(domain.KeyA260A280)
	assert.Equal(t, "1.80", r280.String())
}

func TestMerge_MissingConcentrationLosesToPositive(t *testing.T) {
	missing := &domain.DynamicRow{Fields: domain.NewFields(
		domain.Field{Key: domain.KeySampleNumber, Value: domain.Number("5")},
		domain.Field{Key: domain.KeyConcentration, Value: domain.Null()},
	)}

	got := merge.Deterministic([]*domain.Capture{tabular("", missing), tabular("", sample("5", "0.4", "1.9", "2.0"))})

	require.Len(t, got.Records, 1)
	conc, _ := domain.Concentration(got.Records[0])
	assert.Equal(t, "0.4", conc.String())
}

func TestMerge_SortsIdentifiersNumerically(t *testing.T) {
	got := merge.Deterministic([]*domain.Capture{
		tabular("", sample("10", "1", "1.9", "2.0"), sample("2", "1", "1.9", "2.0")),
		tabular("", sample("1", "1", "1.9", "2.0"), sample("2", "3", "1.9", "2.0")),
	})

	var ids []string
	for _, r := range got.Records {
		id, _ := r.Identifier()
		ids = append(ids, id.String())
	}
	assert.Equal(t, []string{"1", "2", "10"}, ids)
}

func TestMerge_UnidentifiedRecordsFollowSorted(t *testing.T) {
	anon := &domain.DynamicRow{Fields: domain.NewFields(domain.Field{Key: "note", Value: domain.String("smudged")})}

	got := merge.Deterministic([]*domain.Capture{
		tabular("", anon, sample("2", "1", "1.9", "2.0")),
		tabular("", sample("1", "1", "1.9", "2.0")),
	})

	require.Len(t, got.Records, 3)
	_, ok := got.Records[2].Identifier()
	assert.False(t, ok)
}

func TestMerge_Metadata(t *testing.T) {
	a := tabular("Nanodrop", sample("1", "1", "1.9", "2.0"))
	a.Commentary = "first screen"
	b := tabular("Nanodrop", sample("2", "1", "1.9", "2.0"))
	b.Confidence = domain.ConfidenceLow
	c := tabular("", sample("3", "1", "1.9", "2.0"))

	got := merge.Deterministic([]*domain.Capture{a, b, c})

	assert.Equal(t, "Nanodrop", got.Instrument)
	assert.Equal(t, domain.ConfidenceLow, got.Confidence)
	assert.Equal(t, "Processed 3 images. first screen", got.Commentary)

	b.Instrument = "Qubit"
	assert.Equal(t, domain.LabelMixed, merge.Deterministic([]*domain.Capture{a, b}).Instrument)
}

func TestMerge_PlateStaysPlateOnlyWhenAllPlate(t *testing.T) {
	p1 := &domain.Capture{Format: domain.FormatPlate, Records: []domain.Record{well("B1", "0.5"), well("A2", "0.3")}}
	p2 := &domain.Capture{Format: domain.FormatPlate, Records: []domain.Record{well("A1", "0.4"), well("a2", "0.6")}}

	got := merge.Deterministic([]*domain.Capture{p1, p2})
	require.True(t, got.IsPlate())
	var wells []string
	for _, r := range got.Records {
		wells = append(wells, r.(*domain.PlateWell).Well)
	}
	assert.Equal(t, []string{"A1", "A2", "B1"}, wells)
	assert.Equal(t, "0.6", got.Records[1].(*domain.PlateWell).Value.String())

	mixed := merge.Deterministic([]*domain.Capture{p1, tabular("", sample("1", "1", "1.9", "2.0"))})
	assert.False(t, mixed.IsPlate())
	for _, r := range mixed.Records {
		assert.Equal(t, domain.KindDynamicRow, r.Kind())
	}
}

func TestMerge_ColumnsUnion(t *testing.T) {
	a := &domain.Capture{Format: domain.FormatTabular, Columns: []string{"#", "ng/uL"}, Records: []domain.Record{
		&domain.TableRow{Fields: domain.NewFields(domain.Field{Key: "#", Value: domain.Number("1")}, domain.Field{Key: "ng/uL", Value: domain.Number("5")})},
	}}
	b := &domain.Capture{Format: domain.FormatTabular, Columns: []string{"#", "A260/A280"}, Records: []domain.Record{
		&domain.TableRow{Fields: domain.NewFields(domain.Field{Key: "#", Value: domain.Number("2")}, domain.Field{Key: "A260/A280", Value: domain.Number("1.9")})},
	}}

	got := merge.Deterministic([]*domain.Capture{a, b})

	assert.Equal(t, []string{"#", "ng/uL", "A260/A280"}, got.Columns)
	require.Len(t, got.Records, 2)
	assert.Equal(t, domain.KindTableRow, got.Records[0].Kind())
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	a := tabular("", sample("1", "5", "1.9", "2.0"))
	b := tabular("", sample("1", "7", "1.9", "2.0"))

	got := merge.Deterministic([]*domain.Capture{a, b})
	domain.RowFields(got.Records[0]).Set(domain.ColumnQuality, domain.String("x"))

	assert.False(t, domain.RowFields(b.Records[0]).Has(domain.ColumnQuality))
}

func TestCompareIdentifiers(t *testing.T) {
	tests := []struct {
		a, b domain.Value
		want int
	}{
		{domain.Number("2"), domain.Number("10"), -1},
		{domain.String("10"), domain.Number("9"), 1},
		{domain.Number("3"), domain.String("A1"), -1},
		{domain.String("A12"), domain.String("B1"), -1},
		{domain.String("A2"), domain.String("A10"), -1},
		{domain.String("blank"), domain.String("ctrl"), -1},
		{domain.Number("1"), domain.String("1.0"), 0},
		{domain.Number("5"), domain.String("NaN"), -1},
		{domain.String("Inf"), domain.Number("5"), 1},
		{domain.String("Inf"), domain.String("NaN"), -1},
		{domain.String("NaN"), domain.String("NaN"), 0},
	}
	for _, tt := range tests {
		got := merge.CompareIdentifiers(tt.a, tt.b)
		switch {
		case tt.want < 0:
			assert.Negative(t, got, "%s vs %s", tt.a, tt.b)
		case tt.want > 0:
			assert.Positive(t, got, "%s vs %s", tt.a, tt.b)
		default:
			assert.Zero(t, got, "%s vs %s", tt.a, tt.b)
		}
	}
}

func TestParseWell(t *testing.T) {
	row, col, ok := merge.ParseWell("h12")
	assert.True(t, ok)
	assert.Equal(t, byte('H'), row)
	assert.Equal(t, 12, col)

	for _, bad := range []string{"I1", "A0", "A13", "A", "12", ""} {
		_, _, ok := merge.ParseWell(bad)
		assert.False(t, ok, bad)
	}
}

// --- assisted path ---

func assistedMerger(oracle port.Oracle) *merge.Merger {
	return merge.NewMerger(oracle, config.MergeConfig{Assisted: true, TimeoutSecs: 5}, nil)
}

func twoCaptures() []*domain.Capture {
	return []*domain.Capture{
		tabular("Nanodrop", sample("1", "24.3", "1.93", "1.58"), sample("2", "12", "1.9", "2.0")),
		tabular("Nanodrop", sample("1", "-2.1", "2.85", "-2.55"), sample("3", "40", "1.8", "2.1")),
	}
}

func oracleReturns(text string) *mocks.MockOracle {
	o := new(mocks.MockOracle)
	o.On("Complete", mock.Anything, mock.Anything).Return(&port.OracleResponse{Text: text, ModelUsed: "test"}, nil)
	return o
}

func TestMerge_AssistedAccepted(t *testing.T) {
	o := oracleReturns("Here you go:\n```json\n" + `{"instrument":"NanoDrop One","commentary":"kept positive reading","records":[` +
		`{"sample_number":3,"concentration":40,"a260_a280":1.8,"a260_a230":2.1},` +
		`{"sample_number":1,"concentration":24.3,"a260_a280":1.93,"a260_a230":1.58},` +
		`{"sample_number":2,"concentration":12,"a260_a280":1.9,"a260_a230":2.0}]}` + "\n```")

	got := assistedMerger(o).Merge(context.Background(), twoCaptures())

	assert.Equal(t, "NanoDrop One", got.Instrument)
	assert.Equal(t, "kept positive reading", got.Commentary)
	require.Len(t, got.Records, 3)
	id, _ := got.Records[0].Identifier()
	assert.Equal(t, "1", id.String())
	o.AssertExpectations(t)
}

func TestMerge_AssistedRejected(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"not json", "I could not merge these."},
		{"empty records", `{"instrument":"Nanodrop","records":[]}`},
		{"duplicate identifier", `{"records":[{"sample_number":1,"concentration":1},{"sample_number":1,"concentration":2},{"sample_number":2},{"sample_number":3}]}`},
		{"dropped identifier", `{"records":[{"sample_number":1,"concentration":24.3},{"sample_number":2,"concentration":12}]}`},
		{"invented identifier", `{"records":[{"sample_number":1},{"sample_number":2},{"sample_number":3},{"sample_number":99}]}`},
		{"changed layout", `{"is_plate_format":true,"records":[{"well":"A1","value":1}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := assistedMerger(oracleReturns(tt.text)).Merge(context.Background(), twoCaptures())
			want := merge.Deterministic(twoCaptures())

			if diff := cmp.Diff(rows(want), rows(got)); diff != "" {
				t.Errorf("expected deterministic result (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMerge_AssistedOracleError(t *testing.T) {
	o := new(mocks.MockOracle)
	o.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("service unavailable"))

	got := assistedMerger(o).Merge(context.Background(), twoCaptures())

	require.Len(t, got.Records, 3)
	conc, _ := domain.Concentration(got.Records[0])
	assert.Equal(t, "24.3", conc.String())
}

func TestMerge_AssistedPanicRecovered(t *testing.T) {
	o := new(mocks.MockOracle)
	o.On("Complete", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("boom") }).
		Return(nil, nil)

	var got *domain.Capture
	assert.NotPanics(t, func() {
		got = assistedMerger(o).Merge(context.Background(), twoCaptures())
	})
	assert.Len(t, got.Records, 3)
}

func TestMerge_AssistedCallHasDeadline(t *testing.T) {
	o := new(mocks.MockOracle)
	o.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			_, ok := ctx.Deadline()
			assert.True(t, ok)
		}).
		Return(nil, context.DeadlineExceeded)

	got := assistedMerger(o).Merge(context.Background(), twoCaptures())

	assert.Len(t, got.Records, 3)
	o.AssertExpectations(t)
}

func TestMerge_AssistedDisabledSkipsOracle(t *testing.T) {
	o := new(mocks.MockOracle)

	merge.NewMerger(o, config.MergeConfig{Assisted: false}, nil).Merge(context.Background(), twoCaptures())

	o.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestMerge_AssistedSkippedForUnidentifiedRows(t *testing.T) {
	blank := &domain.DynamicRow{Fields: domain.NewFields(
		domain.Field{Key: "Sample", Value: domain.String("Blank")},
		domain.Field{Key: domain.KeyConcentration, Value: domain.Number("0.1")},
	)}
	inputs := []*domain.Capture{
		tabular("Nanodrop", sample("1", "24.3", "1.93", "1.58"), blank),
		tabular("Nanodrop", sample("2", "12", "1.9", "2.0")),
	}
	o := oracleReturns(`{"records":[{"sample_number":1,"concentration":24.3},{"sample_number":2,"concentration":12}]}`)

	got := assistedMerger(o).Merge(context.Background(), inputs)

	require.Len(t, got.Records, 3)
	_, ok := got.Records[2].Identifier()
	assert.False(t, ok)
	o.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestValidate_RejectsUnidentifiedInputs(t *testing.T) {
	blank := &domain.DynamicRow{Fields: domain.NewFields(domain.Field{Key: "Sample", Value: domain.String("Blank")})}
	inputs := []*domain.Capture{
		tabular("", sample("1", "1", "1.9", "2.0"), blank),
		tabular("", sample("2", "1", "1.9", "2.0")),
	}
	merged := tabular("", sample("1", "1", "1.9", "2.0"), sample("2", "1", "1.9", "2.0"))

	assert.Error(t, merge.Validate(merged, inputs))
	assert.NoError(t, merge.Validate(merged, []*domain.Capture{inputs[1], tabular("", sample("1", "1", "1.9", "2.0"))}))
}

func TestMerge_NonFiniteIdentifiersAreText(t *testing.T) {
	got := merge.Deterministic([]*domain.Capture{
		tabular("", sample("NaN", "1", "1.9", "2.0"), sample("2", "1", "1.9", "2.0")),
		tabular("", sample("NaN", "3", "1.9", "2.0"), sample("1", "1", "1.9", "2.0")),
	})

	require.Len(t, got.Records, 3)
	var ids []string
	for _, r := range got.Records {
		id, _ := r.Identifier()
		ids = append(ids, id.String())
	}
	assert.Equal(t, []string{"1", "2", "NaN"}, ids)
	conc, _ := domain.Concentration(got.Records[2])
	assert.Equal(t, "3", conc.String())
}
