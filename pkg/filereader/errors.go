package filereader

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInterrupted reports that analysis or decoding was stopped by the caller.
	ErrInterrupted = errors.New("interrupted")

	// ErrTooFewElements reports a row with fewer tokens than columns.
	ErrTooFewElements = errors.New("too few data elements")

	// ErrTooManyElements reports a row with tokens left after the last column.
	ErrTooManyElements = errors.New("too many data elements")

	// ErrDuplicateRowID reports a repeated row identifier when uniquifying is off.
	ErrDuplicateRowID = errors.New("duplicate row ID")
)

// ConversionError is returned when a token cannot be converted to a column type.
type ConversionError struct {
	Type   ColumnType
	Value  string
	Reason string
}

func (e *ConversionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%q is not a valid %s", e.Value, e.Type)
	}
	return fmt.Sprintf("%q is not a valid %s: %s", e.Value, e.Type, e.Reason)
}

// RowError is a decoding failure with positional context. Row holds what was
// read before the failure, with missing cells in the remaining columns and an
// ID of the form "ERROR_ROW (<id>)".
type RowError struct {
	// Location of the data source.
	Location string
	// Line is the 1-based line the row started on.
	Line int64
	// RowID is the identifier of the failing row.
	RowID string
	// Column is the 0-based column index, or -1 when the error is not about one column.
	Column int
	// ColumnName is the name of Column, if any.
	ColumnName string
	// ColumnCountLine is the line that determined the column count, 0 if unknown.
	ColumnCountLine int64
	// Row is the partially decoded row.
	Row *Row
	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message with position information.
func (e *RowError) Error() string {
	msg := fmt.Sprintf("%v in row %q (line %d", e.Err, e.RowID, e.Line)
	if e.Column >= 0 {
		msg += fmt.Sprintf(", column %d %q", e.Column, e.ColumnName)
	}
	msg += fmt.Sprintf(", source %s)", e.Location)
	if e.ColumnCountLine > 0 && (errors.Is(e.Err, ErrTooFewElements) || errors.Is(e.Err, ErrTooManyElements)) {
		msg += fmt.Sprintf("; the column count was determined by line %d", e.ColumnCountLine)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *RowError) Unwrap() error {
	return e.Err
}

// SettingsError represents an invalid settings value.
type SettingsError struct {
	Field   string
	Message string
}

func (e *SettingsError) Error() string {
	return "filereader: invalid " + e.Field + ": " + e.Message
}
