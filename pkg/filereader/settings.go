package filereader

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/shapestone/shape-filereader/internal/tokenizer"
)

// Defaults applied by NewSettings and by the analyzer.
const (
	DefaultRowDelimiter    = "\n"
	DefaultMissingPattern  = "?"
	DefaultRowHeaderPrefix = "Row"
)

// Char is a single character that reads and writes as a one character string
// in YAML. The zero value means "not set".
type Char rune

// MarshalYAML implements yaml.Marshaler.
func (c Char) MarshalYAML() (interface{}, error) {
	if c == 0 {
		return "", nil
	}
	return string(rune(c)), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Char) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	runes := []rune(s)
	switch len(runes) {
	case 0:
		*c = 0
	case 1:
		*c = Char(runes[0])
	default:
		return fmt.Errorf("line %d: %q is not a single character", node.Line, s)
	}
	return nil
}

// pattern writes as a double-quoted YAML string so that control characters
// such as "\n" survive a round trip.
type pattern string

// MarshalYAML implements yaml.Marshaler.
func (p pattern) MarshalYAML() (interface{}, error) {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Style: yaml.DoubleQuotedStyle, Value: string(p)}, nil
}

// Patterns is a list of tokenizer patterns, written double-quoted in YAML.
type Patterns []string

// MarshalYAML implements yaml.Marshaler.
func (ps Patterns) MarshalYAML() (interface{}, error) {
	out := make([]pattern, len(ps))
	for i, p := range ps {
		out[i] = pattern(p)
	}
	return out, nil
}

// Delimiter separates tokens. Row delimiters are delimiters that are returned as tokens.
type Delimiter struct {
	Pattern        string `yaml:"pattern"`
	Combine        bool   `yaml:"combine,omitempty"`
	ReturnAsToken  bool   `yaml:"returnAsToken,omitempty"`
	IncludeInToken bool   `yaml:"includeInToken,omitempty"`
}

// MarshalYAML implements yaml.Marshaler.
func (d Delimiter) MarshalYAML() (interface{}, error) {
	return struct {
		Pattern        pattern `yaml:"pattern"`
		Combine        bool    `yaml:"combine,omitempty"`
		ReturnAsToken  bool    `yaml:"returnAsToken,omitempty"`
		IncludeInToken bool    `yaml:"includeInToken,omitempty"`
	}{pattern(d.Pattern), d.Combine, d.ReturnAsToken, d.IncludeInToken}, nil
}

// Quote is a pair of quote patterns with an optional escape character.
type Quote struct {
	Left   string `yaml:"left"`
	Right  string `yaml:"right"`
	Escape Char   `yaml:"escape,omitempty"`
}

// MarshalYAML implements yaml.Marshaler.
func (q Quote) MarshalYAML() (interface{}, error) {
	return struct {
		Left   pattern `yaml:"left"`
		Right  pattern `yaml:"right"`
		Escape Char    `yaml:"escape,omitempty"`
	}{pattern(q.Left), pattern(q.Right), q.Escape}, nil
}

// Comment is a comment syntax. Single line comments end with "\n".
type Comment struct {
	Begin          string `yaml:"begin"`
	End            string `yaml:"end"`
	ReturnAsToken  bool   `yaml:"returnAsToken,omitempty"`
	IncludeInToken bool   `yaml:"includeInToken,omitempty"`
}

// MarshalYAML implements yaml.Marshaler.
func (c Comment) MarshalYAML() (interface{}, error) {
	return struct {
		Begin          pattern `yaml:"begin"`
		End            pattern `yaml:"end"`
		ReturnAsToken  bool    `yaml:"returnAsToken,omitempty"`
		IncludeInToken bool    `yaml:"includeInToken,omitempty"`
	}{pattern(c.Begin), pattern(c.End), c.ReturnAsToken, c.IncludeInToken}, nil
}

// ColumnSpec describes one column.
type ColumnSpec struct {
	Name string     `yaml:"name"`
	Type ColumnType `yaml:"type"`
	// MissingPattern is the token that stands for a missing value; "" means none.
	MissingPattern string `yaml:"missingPattern,omitempty"`
	// Skip columns are read but not emitted.
	Skip bool `yaml:"skip,omitempty"`
	// UserSet columns are kept as they are by the analyzer.
	UserSet bool `yaml:"userSet,omitempty"`
}

// Fixed records which settings were decided by the caller. The analyzer copies
// fixed values from the baseline instead of guessing them.
type Fixed struct {
	Comments         bool `yaml:"comments,omitempty"`
	Quotes           bool `yaml:"quotes,omitempty"`
	Delimiters       bool `yaml:"delimiters,omitempty"`
	Whitespaces      bool `yaml:"whitespaces,omitempty"`
	RowHeaders       bool `yaml:"rowHeaders,omitempty"`
	ColumnHeaders    bool `yaml:"columnHeaders,omitempty"`
	IgnoreEmptyLines bool `yaml:"ignoreEmptyLines,omitempty"`
}

// Settings is the structural description of a delimited file: how it is
// tokenized and how tokens map to columns.
type Settings struct {
	Location string `yaml:"location"`
	Charset  string `yaml:"charset,omitempty"`

	// RowDelimiters lists the delimiter patterns that end a row. Each one is
	// also present in Delimiters with ReturnAsToken set.
	RowDelimiters Patterns    `yaml:"rowDelimiters,omitempty"`
	Delimiters    []Delimiter `yaml:"delimiters,omitempty"`
	Quotes        []Quote     `yaml:"quotes,omitempty"`
	Comments      []Comment   `yaml:"comments,omitempty"`
	Whitespaces   Patterns    `yaml:"whitespaces,omitempty"`

	DecimalSeparator   Char `yaml:"decimalSeparator,omitempty"`
	ThousandsSeparator Char `yaml:"thousandsSeparator,omitempty"`

	// MissingPattern is the default missing value token for new columns.
	MissingPattern string       `yaml:"missingPattern,omitempty"`
	Columns        []ColumnSpec `yaml:"columns,omitempty"`

	HasRowHeaders    bool   `yaml:"hasRowHeaders"`
	RowHeaderPrefix  string `yaml:"rowHeaderPrefix,omitempty"`
	HasColumnHeaders bool   `yaml:"hasColumnHeaders"`

	IgnoreEmptyLines          bool `yaml:"ignoreEmptyLines"`
	IgnoreEmptyTrailingTokens bool `yaml:"ignoreEmptyTrailingTokens"`
	AcceptShortRows           bool `yaml:"acceptShortRows"`
	UniquifyRowIDs            bool `yaml:"uniquifyRowIDs"`

	// MaxRowsToRead limits the rows a decoder returns; -1 means all.
	MaxRowsToRead int64 `yaml:"maxRowsToRead"`
	// ColumnCountLine is the line that determined the column count, 0 if unknown.
	ColumnCountLine int64 `yaml:"columnCountLine,omitempty"`

	Fixed Fixed `yaml:"fixed,omitempty"`
}

// NewSettings returns settings for location with a "\n" row delimiter and
// defaults for everything else.
func NewSettings(location string) *Settings {
	s := &Settings{
		Location:         location,
		DecimalSeparator: '.',
		MissingPattern:   DefaultMissingPattern,
		RowHeaderPrefix:  DefaultRowHeaderPrefix,
		IgnoreEmptyLines: true,
		UniquifyRowIDs:   true,
		MaxRowsToRead:    -1,
	}
	s.AddRowDelimiter(DefaultRowDelimiter, false)
	return s
}

// Clone returns a deep copy.
func (s *Settings) Clone() *Settings {
	c := *s
	c.RowDelimiters = append([]string(nil), s.RowDelimiters...)
	c.Delimiters = append([]Delimiter(nil), s.Delimiters...)
	c.Quotes = append([]Quote(nil), s.Quotes...)
	c.Comments = append([]Comment(nil), s.Comments...)
	c.Whitespaces = append([]string(nil), s.Whitespaces...)
	c.Columns = append([]ColumnSpec(nil), s.Columns...)
	return &c
}

// AddRowDelimiter registers pattern as a row delimiter.
func (s *Settings) AddRowDelimiter(pattern string, combine bool) {
	if s.IsRowDelimiter(pattern) {
		return
	}
	s.RowDelimiters = append(s.RowDelimiters, pattern)
	s.Delimiters = append(s.Delimiters, Delimiter{Pattern: pattern, Combine: combine, ReturnAsToken: true})
}

// AddDelimiter adds a column delimiter.
func (s *Settings) AddDelimiter(d Delimiter) {
	s.Delimiters = append(s.Delimiters, d)
}

// ColumnDelimiters returns the delimiters that are not row delimiters.
func (s *Settings) ColumnDelimiters() []Delimiter {
	var result []Delimiter
	for _, d := range s.Delimiters {
		if !s.IsRowDelimiter(d.Pattern) {
			result = append(result, d)
		}
	}
	return result
}

// RemoveColumnDelimiters drops every delimiter that is not a row delimiter.
func (s *Settings) RemoveColumnDelimiters() {
	var kept []Delimiter
	for _, d := range s.Delimiters {
		if s.IsRowDelimiter(d.Pattern) {
			kept = append(kept, d)
		}
	}
	s.Delimiters = kept
}

// IsRowDelimiter reports whether pattern is a registered row delimiter.
func (s *Settings) IsRowDelimiter(pattern string) bool {
	for _, p := range s.RowDelimiters {
		if p == pattern {
			return true
		}
	}
	return false
}

// AddQuote adds a quote pair. escape is 0 for none.
func (s *Settings) AddQuote(left, right string, escape rune) {
	s.Quotes = append(s.Quotes, Quote{Left: left, Right: right, Escape: Char(escape)})
}

// AddSingleLineComment adds a comment running from begin to the end of the line.
func (s *Settings) AddSingleLineComment(begin string) {
	s.Comments = append(s.Comments, Comment{Begin: begin, End: "\n"})
}

// AddBlockComment adds a comment running from begin to end.
func (s *Settings) AddBlockComment(begin, end string) {
	s.Comments = append(s.Comments, Comment{Begin: begin, End: end})
}

// AddWhitespace adds a whitespace pattern trimmed from unquoted token ends.
func (s *Settings) AddWhitespace(ws string) {
	for _, w := range s.Whitespaces {
		if w == ws {
			return
		}
	}
	s.Whitespaces = append(s.Whitespaces, ws)
}

// ColumnCount returns the number of columns, skipped ones included.
func (s *Settings) ColumnCount() int {
	return len(s.Columns)
}

// SetColumnCount grows or shrinks Columns to n entries. New columns are
// text columns named Col<i> with the default missing pattern.
func (s *Settings) SetColumnCount(n int) {
	if n < len(s.Columns) {
		s.Columns = s.Columns[:n]
		return
	}
	for i := len(s.Columns); i < n; i++ {
		s.Columns = append(s.Columns, ColumnSpec{
			Name:           defaultColumnName(i),
			Type:           Text,
			MissingPattern: s.MissingPattern,
		})
	}
}

// ColumnNames returns the names of the columns that are not skipped.
func (s *Settings) ColumnNames() []string {
	var names []string
	for _, c := range s.Columns {
		if !c.Skip {
			names = append(names, c.Name)
		}
	}
	return names
}

func defaultColumnName(i int) string {
	return "Col" + strconv.Itoa(i)
}

// missingPlaceholder is the token used to build IDs for rows without one.
func (s *Settings) missingPlaceholder() string {
	if s.MissingPattern == "" {
		return DefaultMissingPattern
	}
	return s.MissingPattern
}

func (s *Settings) tokenizerSettings() tokenizer.Settings {
	ts := tokenizer.Settings{Whitespaces: append([]string(nil), s.Whitespaces...)}
	for _, d := range s.Delimiters {
		ts.Delimiters = append(ts.Delimiters, tokenizer.Delimiter{
			Pattern:        d.Pattern,
			Combine:        d.Combine,
			ReturnAsToken:  d.ReturnAsToken,
			IncludeInToken: d.IncludeInToken,
		})
	}
	for _, q := range s.Quotes {
		ts.Quotes = append(ts.Quotes, tokenizer.Quote{Left: q.Left, Right: q.Right, Escape: rune(q.Escape)})
	}
	for _, c := range s.Comments {
		ts.Comments = append(ts.Comments, tokenizer.Comment{
			Begin:          c.Begin,
			End:            c.End,
			ReturnAsToken:  c.ReturnAsToken,
			IncludeInToken: c.IncludeInToken,
		})
	}
	return ts
}

// Severity grades a settings status message.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// StatusMessage is one finding of Status.
type StatusMessage struct {
	Severity Severity
	Field    string
	Message  string
}

func (m StatusMessage) String() string {
	return m.Severity.String() + ": " + m.Field + ": " + m.Message
}

// Status is the list of findings about a Settings value.
type Status []StatusMessage

// HasErrors reports whether any finding is an error.
func (st Status) HasErrors() bool {
	for _, m := range st {
		if m.Severity == Error {
			return true
		}
	}
	return false
}

// Status checks the settings for consistency. It reports errors that make
// decoding impossible, warnings about surprising combinations and
// informational notes.
func (s *Settings) Status() Status {
	var st Status
	add := func(sev Severity, field, format string, args ...interface{}) {
		st = append(st, StatusMessage{Severity: sev, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if strings.TrimSpace(s.Location) == "" {
		add(Error, "location", "no data location specified")
	}
	if s.DecimalSeparator == 0 {
		add(Error, "decimalSeparator", "no decimal separator specified")
	} else if s.DecimalSeparator == s.ThousandsSeparator {
		add(Error, "thousandsSeparator", "decimal and thousands separator must differ")
	}

	if len(s.RowDelimiters) == 0 {
		add(Warning, "rowDelimiters", "no row delimiter specified, the whole file is read as one row")
	}
	for _, p := range s.RowDelimiters {
		found := false
		for _, d := range s.Delimiters {
			if d.Pattern != p {
				continue
			}
			found = true
			if !d.ReturnAsToken {
				add(Error, "rowDelimiters", "row delimiter %q must be returned as token", p)
			}
			if d.IncludeInToken {
				add(Error, "rowDelimiters", "row delimiter %q must not be included in the token", p)
			}
		}
		if !found {
			add(Error, "rowDelimiters", "row delimiter %q is not a registered delimiter", p)
		}
	}

	patterns := map[string]string{}
	claim := func(pattern, owner string) {
		if pattern == "" {
			add(Error, owner, "empty pattern")
			return
		}
		if other, ok := patterns[pattern]; ok && other != owner {
			add(Error, owner, "pattern %q is also used as %s", pattern, other)
			return
		}
		patterns[pattern] = owner
	}
	for _, d := range s.Delimiters {
		if d.ReturnAsToken && d.IncludeInToken {
			add(Error, "delimiters", "delimiter %q cannot be returned as token and included in the token", d.Pattern)
		}
		claim(d.Pattern, "delimiter")
	}
	for _, q := range s.Quotes {
		claim(q.Left, "quote")
		if q.Right == "" {
			add(Error, "quote", "quote %q has no closing pattern", q.Left)
		}
	}
	for _, c := range s.Comments {
		claim(c.Begin, "comment")
		if c.End == "" {
			add(Error, "comment", "comment %q has no end pattern", c.Begin)
		}
	}

	if len(s.Columns) == 0 {
		add(Error, "columns", "no columns specified")
	}
	names := map[string]int{}
	for i, c := range s.Columns {
		if first, ok := names[c.Name]; ok {
			add(Warning, "columns", "columns %d and %d have the same name %q", first, i, c.Name)
			continue
		}
		names[c.Name] = i
	}

	if !s.HasRowHeaders {
		add(Info, "rowHeaderPrefix", "row IDs are generated with prefix %q", s.RowHeaderPrefix)
	}
	if s.MaxRowsToRead >= 0 {
		add(Info, "maxRowsToRead", "reading at most %d rows", s.MaxRowsToRead)
	}
	return st
}

// Validate returns a *SettingsError for the first error reported by Status.
func (s *Settings) Validate() error {
	for _, m := range s.Status() {
		if m.Severity == Error {
			return &SettingsError{Field: m.Field, Message: m.Message}
		}
	}
	return nil
}
