package filereader

import (
	"context"
	"strings"

	"github.com/shapestone/shape-filereader/internal/tokenizer"
)

// delimiterCandidate is a column delimiter the analyzer tries, in order.
type delimiterCandidate struct {
	delimiter      Delimiter
	ignoreTrailing bool
}

var delimiterCandidates = []delimiterCandidate{
	{delimiter: Delimiter{Pattern: ";"}},
	{delimiter: Delimiter{Pattern: ","}},
	{delimiter: Delimiter{Pattern: "\t"}},
	{delimiter: Delimiter{Pattern: " ", Combine: true}, ignoreTrailing: true},
	{delimiter: Delimiter{Pattern: " ", Combine: true}},
}

// columnCount is the outcome of scanning a file with one delimiter setup.
type columnCount struct {
	columns int
	line    int64
	// consistent is set when every row after the first had the same count.
	consistent bool
	truncated  bool
}

// detectDelimiters picks the first candidate delimiter that splits every row
// into the same number (at least two) of columns. With caller fixed
// delimiters only the column count is derived, as the largest row.
func (a *analyzer) detectDelimiters(ctx context.Context, d draft, st *stage) (draft, error) {
	s := d.settings
	if s.Fixed.Delimiters {
		count, err := a.maxColumns(ctx, s, st)
		if err != nil {
			return d, err
		}
		d.partial = d.partial || count.truncated
		a.setColumnCount(s, count)
		return d, nil
	}

	var candidates []delimiterCandidate
	for _, c := range delimiterCandidates {
		if a.conflicts(s, c.delimiter.Pattern) {
			continue
		}
		candidates = append(candidates, c)
	}

	for i, c := range candidates {
		trial := s.Clone()
		trial.AddDelimiter(c.delimiter)
		trial.IgnoreEmptyTrailingTokens = c.ignoreTrailing
		count, err := a.consistentColumns(ctx, trial, c.ignoreTrailing, st.sub(i, len(candidates)))
		if err != nil {
			return d, err
		}
		if !count.consistent || count.columns < 2 {
			continue
		}
		a.logger.Debug("delimiter detected", "delimiter", c.delimiter.Pattern, "columns", count.columns)
		s.AddDelimiter(c.delimiter)
		s.IgnoreEmptyTrailingTokens = c.ignoreTrailing
		d.partial = d.partial || count.truncated
		a.setColumnCount(s, count)
		return d, nil
	}

	a.logger.Debug("no delimiter detected, reading one column")
	s.IgnoreEmptyTrailingTokens = false
	a.setColumnCount(s, columnCount{columns: 1})
	st.done()
	return d, nil
}

// conflicts reports whether pattern cannot serve as delimiter because it is
// a separator or overlaps a quote or comment.
func (a *analyzer) conflicts(s *Settings, pattern string) bool {
	if pattern == string(rune(s.DecimalSeparator)) || (s.ThousandsSeparator != 0 && pattern == string(rune(s.ThousandsSeparator))) {
		return true
	}
	overlaps := func(other string) bool {
		return other != "" && (strings.HasPrefix(other, pattern) || strings.HasPrefix(pattern, other))
	}
	for _, q := range s.Quotes {
		if overlaps(q.Left) || overlaps(q.Right) {
			return true
		}
	}
	for _, c := range s.Comments {
		if overlaps(c.Begin) {
			return true
		}
	}
	return false
}

// setColumnCount resizes the columns, keeping caller fixed ones.
func (a *analyzer) setColumnCount(s *Settings, count columnCount) {
	n := count.columns
	if n < 1 {
		n = 1
	}
	userSet := 0
	for i, c := range s.Columns {
		if c.UserSet {
			userSet = i + 1
		}
	}
	if n < userSet {
		n = userSet
	}
	var kept []ColumnSpec
	for _, c := range s.Columns {
		if len(kept) == n {
			break
		}
		if !c.UserSet {
			c = ColumnSpec{Name: defaultColumnName(len(kept)), MissingPattern: s.MissingPattern}
		}
		kept = append(kept, c)
	}
	s.Columns = kept
	s.SetColumnCount(n)
	s.ColumnCountLine = count.line
}

// rowWidth returns the token count of a row and, when empty unquoted tokens
// at the end may be ignored, the count without them.
func rowWidth(tokens []tokenizer.Token, ignoreTrailing bool) (hard, soft int) {
	soft = len(tokens)
	hard = soft
	if ignoreTrailing {
		for hard > 0 && tokens[hard-1].Text == "" && !tokens[hard-1].Quoted {
			hard--
		}
	}
	return hard, soft
}

// consistentColumns scans the file and reports whether all rows agree on
// the column count. The first row is left out of the comparison as it may
// hold headers; it only decides the count for single row files.
func (a *analyzer) consistentColumns(ctx context.Context, s *Settings, ignoreTrailing bool, st *stage) (columnCount, error) {
	scan, err := a.scan(ctx, s, st)
	if err != nil {
		return columnCount{}, err
	}
	defer scan.close()

	var result columnCount
	first := true
	floor, ceiling := -1, -1
	firstWidth := 0
	var firstLine int64
	for {
		tokens, ok, err := scan.next()
		if err != nil {
			return columnCount{}, err
		}
		if !ok {
			break
		}
		if len(tokens) == 0 {
			continue
		}
		hard, soft := rowWidth(tokens, ignoreTrailing)
		if first {
			first = false
			firstWidth, firstLine = hard, scan.line
			continue
		}
		if floor < 0 || hard > floor {
			floor = hard
			result.line = scan.line
		}
		if ceiling < 0 || soft < ceiling {
			ceiling = soft
		}
		if floor > ceiling {
			return columnCount{}, nil
		}
	}
	result.truncated = scan.truncated
	if floor < 0 {
		result.columns, result.line = firstWidth, firstLine
	} else {
		result.columns = floor
	}
	result.consistent = true
	return result, nil
}

// maxColumns returns the largest row width in the file.
func (a *analyzer) maxColumns(ctx context.Context, s *Settings, st *stage) (columnCount, error) {
	scan, err := a.scan(ctx, s, st)
	if err != nil {
		return columnCount{}, err
	}
	defer scan.close()

	var result columnCount
	for {
		tokens, ok, err := scan.next()
		if err != nil {
			return columnCount{}, err
		}
		if !ok {
			break
		}
		hard, _ := rowWidth(tokens, s.IgnoreEmptyTrailingTokens)
		if hard > result.columns {
			result.columns = hard
			result.line = scan.line
		}
	}
	result.truncated = scan.truncated
	result.consistent = true
	return result, nil
}
