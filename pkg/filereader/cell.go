package filereader

import (
	"regexp"
	"strconv"
	"strings"
)

// CellFactory converts tokens to typed cells.
//
// Only floating point conversion is locale aware: the thousands separator is
// stripped after the token matched the grouping pattern and the decimal
// separator is replaced by '.'. Integer and text conversion take the token as is.
//
// A CellFactory is not safe for concurrent use; LastError reflects the most
// recent call.
type CellFactory struct {
	decimal   rune
	thousands rune
	grouping  *regexp.Regexp
	lastError string
}

// NewCellFactory returns a factory using '.' as decimal separator and no thousands separator.
func NewCellFactory() *CellFactory {
	return &CellFactory{decimal: '.'}
}

// SetDecimalSeparator sets the decimal separator used for floats.
func (f *CellFactory) SetDecimalSeparator(r rune) {
	f.decimal = r
	f.compile()
}

// SetThousandsSeparator sets the grouping separator used for floats; 0 disables grouping.
func (f *CellFactory) SetThousandsSeparator(r rune) {
	f.thousands = r
	f.compile()
}

func (f *CellFactory) compile() {
	if f.thousands == 0 {
		f.grouping = nil
		return
	}
	t := regexp.QuoteMeta(string(f.thousands))
	d := regexp.QuoteMeta(string(f.decimal))
	f.grouping = regexp.MustCompile(`^[+-]?(?:(?:\d{1,3}(?:` + t + `\d{3})+|\d+)(?:` + d + `\d*)?|` + d + `\d+)(?:[eE][+-]?\d+)?$`)
}

// Make converts raw to a cell of type t. A raw value equal to missingPattern
// yields a missing cell; pass "" when the column has no missing pattern.
func (f *CellFactory) Make(t ColumnType, raw, missingPattern string) (Cell, error) {
	f.lastError = ""
	if missingPattern != "" && raw == missingPattern {
		return MissingCell(t), nil
	}
	switch t {
	case Integer:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Cell{}, f.fail(t, raw, numError(err))
		}
		return IntCell(v), nil
	case Float:
		v, reason := f.parseFloat(raw)
		if reason != "" {
			return Cell{}, f.fail(t, raw, reason)
		}
		return FloatCell(v), nil
	case Text:
		return TextCell(raw), nil
	}
	return Cell{}, f.fail(t, raw, "unknown column type")
}

// LastError returns the message of the most recent failed conversion, or ""
// if the most recent call succeeded.
func (f *CellFactory) LastError() string {
	return f.lastError
}

func (f *CellFactory) fail(t ColumnType, raw, reason string) error {
	err := &ConversionError{Type: t, Value: raw, Reason: reason}
	f.lastError = err.Error()
	return err
}

func (f *CellFactory) parseFloat(raw string) (float64, string) {
	s := raw
	if strings.ContainsAny(s, "xX_") {
		return 0, "not a decimal number"
	}
	if f.grouping != nil {
		if !f.grouping.MatchString(s) {
			return 0, "does not match the number format"
		}
		s = strings.ReplaceAll(s, string(f.thousands), "")
	}
	if f.decimal != '.' {
		if strings.ContainsRune(s, '.') {
			return 0, "unexpected '.'"
		}
		s = strings.Replace(s, string(f.decimal), ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, numError(err)
	}
	return v, ""
}

func numError(err error) string {
	if ne, ok := err.(*strconv.NumError); ok {
		return ne.Err.Error()
	}
	return err.Error()
}
