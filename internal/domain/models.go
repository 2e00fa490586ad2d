package domain

// Capture is the structured result of extracting one photographed instrument screen.
// After merging, the canonical Capture is annotated in place and then only read.
type Capture struct {
	Instrument string     `json:"instrument,omitempty"`
	Confidence Confidence `json:"confidence"`
	Format     Format     `json:"format"`
	Columns    []string   `json:"columns,omitempty"`
	Records    []Record   `json:"records"`
	Commentary string     `json:"commentary,omitempty"`
}

// IsPlate reports whether the capture is a 96-well plate grid.
func (c *Capture) IsPlate() bool { return c.Format == FormatPlate }

// HasColumns reports whether the oracle supplied an explicit column list.
func (c *Capture) HasColumns() bool { return len(c.Columns) > 0 }

// Record is one row or one plate well. Implementations are PlateWell, TableRow
// and DynamicRow; the set is closed.
type Record interface {
	Kind() RecordKind
	// Get returns the field value under key.
	Get(key string) (Value, bool)
	// Keys returns field names in first-seen order.
	Keys() []string
	// Identifier returns the sample number or well that identifies the record.
	Identifier() (Value, bool)
	// Clone returns an independent copy.
	Clone() Record
	sealed()
}

// PlateWell is one position of a 96-well plate.
type PlateWell struct {
	Well  string
	Value Value
}

func (w *PlateWell) Kind() RecordKind { return KindPlateWell }

func (w *PlateWell) Get(key string) (Value, bool) {
	switch key {
	case KeyWell:
		return String(w.Well), true
	case KeyValue:
		return w.Value, true
	}
	return Value{}, false
}

func (w *PlateWell) Keys() []string { return []string{KeyWell, KeyValue} }

func (w *PlateWell) Identifier() (Value, bool) {
	if w.Well == "" {
		return Value{}, false
	}
	return String(w.Well), true
}

func (w *PlateWell) Clone() Record {
	c := *w
	return &c
}

func (w *PlateWell) sealed() {}

// MarshalJSON writes {"well":..., "value":...}.
func (w *PlateWell) MarshalJSON() ([]byte, error) {
	return NewFields(Field{Key: KeyWell, Value: String(w.Well)}, Field{Key: KeyValue, Value: w.Value}).MarshalJSON()
}

// TableRow is a row of a capture that carries an explicit column list.
type TableRow struct {
	Fields
}

// DynamicRow is a row of a capture without columns; its keys define the layout.
type DynamicRow struct {
	Fields
}

func (r *TableRow) Kind() RecordKind            { return KindTableRow }
func (r *TableRow) Identifier() (Value, bool)   { return rowIdentifier(&r.Fields) }
func (r *TableRow) Clone() Record               { return &TableRow{Fields: r.Fields.Clone()} }
func (r *TableRow) sealed()                     {}
func (r *DynamicRow) Kind() RecordKind          { return KindDynamicRow }
func (r *DynamicRow) Identifier() (Value, bool) { return rowIdentifier(&r.Fields) }
func (r *DynamicRow) Clone() Record             { return &DynamicRow{Fields: r.Fields.Clone()} }
func (r *DynamicRow) sealed()                   {}

func rowIdentifier(f *Fields) (Value, bool) {
	if v, ok := f.Lookup(SampleNumberKeys); ok && !v.IsNull() && v.String() != "" {
		return v, true
	}
	if v, ok := f.Get(KeyWell); ok && !v.IsNull() && v.String() != "" {
		return v, true
	}
	return Value{}, false
}

// RowFields returns the mutable field list of a row record, or nil for plate wells.
func RowFields(r Record) *Fields {
	switch t := r.(type) {
	case *TableRow:
		return &t.Fields
	case *DynamicRow:
		return &t.Fields
	default:
		return nil
	}
}

// Concentration returns the concentration-like reading of a record. For plate
// wells that is the well value.
func Concentration(r Record) (Value, bool) {
	if w, ok := r.(*PlateWell); ok {
		return w.Value, true
	}
	if f := RowFields(r); f != nil {
		return f.Lookup(ConcentrationKeys)
	}
	return Value{}, false
}

// QualityOf returns the quality annotation of a row, if any.
func QualityOf(r Record) (string, bool) {
	f := RowFields(r)
	if f == nil {
		return "", false
	}
	v, ok := f.Lookup(QualityKeys)
	if !ok || v.String() == "" {
		return "", false
	}
	return v.String(), true
}

// IsNucleicAcidRow reports whether a record follows the canonical nucleic-acid
// schema: an identifier, a concentration field and at least one purity ratio.
func IsNucleicAcidRow(r Record) bool {
	f := RowFields(r)
	if f == nil {
		return false
	}
	return f.HasAny(SampleNumberKeys) &&
		f.HasAny(ConcentrationKeys) &&
		(f.HasAny(A260A280Keys) || f.HasAny(A260A230Keys))
}
