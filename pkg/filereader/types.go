package filereader

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnType is the value type of a column. The set is closed: every switch
// over it handles Text, Integer and Float.
//
// The zero value is Text, the type every token converts to.
type ColumnType int

const (
	Text ColumnType = iota
	Integer
	Float
)

// String returns the lower-case type name used in settings files.
func (t ColumnType) String() string {
	switch t {
	case Text:
		return "text"
	case Integer:
		return "integer"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t ColumnType) MarshalText() ([]byte, error) {
	switch t {
	case Text, Integer, Float:
		return []byte(t.String()), nil
	}
	return nil, fmt.Errorf("unknown column type %d", int(t))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ColumnType) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "text", "string":
		*t = Text
	case "integer", "int":
		*t = Integer
	case "float", "double":
		*t = Float
	default:
		return fmt.Errorf("unknown column type %q", string(text))
	}
	return nil
}

// widen returns the wider of two types in the order Integer, Float, Text.
func widen(a, b ColumnType) ColumnType {
	rank := func(t ColumnType) int {
		switch t {
		case Integer:
			return 0
		case Float:
			return 1
		default:
			return 2
		}
	}
	if rank(a) >= rank(b) {
		return a
	}
	return b
}

// Cell is a single typed value. Exactly one of Int, Float and Text is
// meaningful, selected by Type, unless the cell is Missing.
type Cell struct {
	Type    ColumnType
	Missing bool
	Int     int64
	Float   float64
	Text    string
}

// IntCell returns an integer cell.
func IntCell(v int64) Cell {
	return Cell{Type: Integer, Int: v}
}

// FloatCell returns a floating point cell.
func FloatCell(v float64) Cell {
	return Cell{Type: Float, Float: v}
}

// TextCell returns a text cell.
func TextCell(v string) Cell {
	return Cell{Type: Text, Text: v}
}

// MissingCell returns a missing value of the given type.
func MissingCell(t ColumnType) Cell {
	return Cell{Type: t, Missing: true}
}

// Value returns the cell content as int64, float64 or string, or nil if missing.
func (c Cell) Value() any {
	if c.Missing {
		return nil
	}
	switch c.Type {
	case Integer:
		return c.Int
	case Float:
		return c.Float
	default:
		return c.Text
	}
}

// String formats the cell; missing cells print as "?".
func (c Cell) String() string {
	if c.Missing {
		return "?"
	}
	switch c.Type {
	case Integer:
		return strconv.FormatInt(c.Int, 10)
	case Float:
		return strconv.FormatFloat(c.Float, 'g', -1, 64)
	default:
		return c.Text
	}
}

// Row is one decoded row: an identifier and one cell per non-skipped column.
// Rows are not modified after they are returned.
type Row struct {
	ID    string
	Cells []Cell
}

// Values returns the cell values in column order. Missing cells are nil.
func (r *Row) Values() []any {
	values := make([]any, len(r.Cells))
	for i, c := range r.Cells {
		values[i] = c.Value()
	}
	return values
}
