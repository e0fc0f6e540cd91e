package core

import (
	"github.com/JonMunkholm/evsync/internal/source"
)

// Row is one parsed data row of a source: typed values keyed by
// canonical field name.
type Row struct {
	// Key is the vehicle id the row belongs to.
	Key string
	// Line is the 1-based sheet row; the header is line 1.
	Line   int
	Fields map[string]TypedValue
	// Order lists field names in column order.
	Order []string
	// Cells are the raw cells, including unlabelled columns.
	Cells []string
}

// Value returns the typed value for field, KindEmpty when absent.
func (r Row) Value(field string) TypedValue {
	return r.Fields[field]
}

// Text returns the cleaned text of field, "" when absent.
func (r Row) Text(field string) string {
	return r.Fields[field].Text
}

// OptText returns nil when field is empty.
func (r Row) OptText(field string) *string {
	v := r.Fields[field]
	if v.IsEmpty() {
		return nil
	}
	s := v.Text
	return &s
}

func (r Row) Number(field string, def float64) float64 {
	return r.Fields[field].Number(def)
}

// OptNumber returns nil when field is empty or not numeric.
func (r Row) OptNumber(field string) *float64 {
	v := r.Fields[field]
	if v.Kind != KindFloat && v.Kind != KindInt {
		return nil
	}
	f := v.Number(0)
	return &f
}

func (r Row) Int(field string, def int) int {
	return r.Fields[field].Integer(def)
}

// OptInt returns nil when field is empty or not numeric.
func (r Row) OptInt(field string) *int {
	v := r.Fields[field]
	if v.Kind != KindFloat && v.Kind != KindInt {
		return nil
	}
	n := v.Integer(0)
	return &n
}

func (r Row) Flag(field string, def bool) bool {
	return r.Fields[field].Flag(def)
}

// OptFlag returns nil when field is empty or not boolean.
func (r Row) OptFlag(field string) *bool {
	v := r.Fields[field]
	if v.Kind != KindBool {
		return nil
	}
	b := v.Bool
	return &b
}

// mapHeader resolves each header cell to a canonical field name.
func mapHeader(header []string, overrides map[string]string) []string {
	cols := make([]string, len(header))
	for i, h := range header {
		if CleanCell(h) == "" {
			continue
		}
		cols[i] = CanonicalField(h, overrides)
	}
	return cols
}

// parseRow coerces cells[from:] under cols. Columns without a header are
// ignored. Coercion failures are returned alongside the row; their values
// have already fallen back to text.
func parseRow(cols []string, cells []string, line, from int) (Row, []*ParseError) {
	row := Row{
		Line:   line,
		Fields: make(map[string]TypedValue, len(cols)),
		Order:  make([]string, 0, len(cols)),
		Cells:  cells,
	}

	var errs []*ParseError
	for i := from; i < len(cols); i++ {
		field := cols[i]
		if field == "" {
			continue
		}
		v, err := Coerce(field, source.Cell(cells, i))
		if err != nil {
			pe := err.(*ParseError)
			errs = append(errs, pe)
		}
		if prev, seen := row.Fields[field]; seen {
			// Repeated header: keep the first non-empty cell.
			if !prev.IsEmpty() || v.IsEmpty() {
				continue
			}
		} else {
			row.Order = append(row.Order, field)
		}
		row.Fields[field] = v
	}
	return row, errs
}

// blankRow reports whether every cell is empty.
func blankRow(cells []string) bool {
	for _, c := range cells {
		if CleanCell(c) != "" {
			return false
		}
	}
	return true
}
