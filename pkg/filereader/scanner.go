package filereader

import (
	"context"
)

// Scanner provides a bufio.Scanner style interface over a Decoder.
//
// Example usage:
//
//	d, _ := filereader.NewDecoder(ctx, settings)
//	scanner := filereader.NewScanner(d)
//	for scanner.Scan() {
//	    row := scanner.Row()
//	    fmt.Println(row.ID, row.Values())
//	}
//	if err := scanner.Err(); err != nil {
//	    // handle error
//	}
type Scanner struct {
	decoder *Decoder
	row     *Row
	err     error
}

// NewScanner creates a Scanner reading rows from d.
func NewScanner(d *Decoder) *Scanner {
	return &Scanner{decoder: d}
}

// Scan advances the scanner to the next row.
// It returns false when there are no more rows or an error occurs.
// After Scan returns false, the Err method will return any error that occurred.
func (s *Scanner) Scan() bool {
	if s.err != nil || !s.decoder.HasNext() {
		if s.err == nil {
			s.err = s.decoder.Err()
		}
		s.row = nil
		return false
	}
	row, err := s.decoder.Next()
	if err != nil {
		s.err = err
		s.row = nil
		return false
	}
	s.row = row
	return true
}

// Row returns the current row. This should only be called after Scan returns true.
func (s *Scanner) Row() *Row {
	return s.row
}

// Err returns the error, if any, that was encountered during scanning.
// It returns nil at the end of the file.
func (s *Scanner) Err() error {
	return s.err
}

// Headers returns the names of the emitted columns.
func (s *Scanner) Headers() []string {
	return s.decoder.Settings().ColumnNames()
}

// ReadAll decodes every row of the file described by settings.
//
// For large files prefer NewDecoder, which holds one row at a time.
func ReadAll(ctx context.Context, settings *Settings, opts ...Option) ([]*Row, error) {
	d, err := NewDecoder(ctx, settings, opts...)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	var rows []*Row
	scanner := NewScanner(d)
	for scanner.Scan() {
		rows = append(rows, scanner.Row())
	}
	return rows, scanner.Err()
}
