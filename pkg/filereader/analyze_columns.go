package filereader

import (
	"context"
	"fmt"
	"strings"

	"github.com/shapestone/shape-filereader/internal/tokenizer"
)

// maxReportedColumns caps the column indices listed in a warning.
const maxReportedColumns = 20

// detectRowHeaders decides whether the first token of every row is a row
// identifier: the tokens of all rows but the first must share a non-empty
// prefix followed by increasing numbers. Row headers do not count as a column.
func (a *analyzer) detectRowHeaders(ctx context.Context, d draft, st *stage) (draft, error) {
	s := d.settings
	if s.Fixed.RowHeaders {
		return d, nil
	}
	s.HasRowHeaders = false
	if s.ColumnCount() <= 1 {
		st.done()
		return d, nil
	}

	scan, err := a.scan(ctx, s, st)
	if err != nil {
		return d, err
	}
	defer scan.close()

	var headers []string
	first := true
	for {
		tokens, ok, err := scan.next()
		if err != nil {
			return d, err
		}
		if !ok {
			break
		}
		if len(tokens) == 0 {
			continue
		}
		if first {
			first = false
			continue
		}
		if tokens[0].Text == "" && !tokens[0].Quoted {
			return d, nil
		}
		headers = append(headers, tokens[0].Text)
	}
	d.partial = d.partial || scan.truncated

	// one data row gives no sequence to judge
	if len(headers) > 1 && consecutiveHeaders(headers, true) {
		a.logger.Debug("row headers detected", "prefix", headers[0])
		s.HasRowHeaders = true
		a.setColumnCount(s, columnCount{columns: s.ColumnCount() - 1, line: s.ColumnCountLine})
	}
	return d, nil
}

// columnGuess accumulates what was learned about one column.
type columnGuess struct {
	typ      ColumnType
	seenReal bool
	// missing is the one unparsable token accepted as missing value marker.
	missing string
}

// observe widens the guess to fit token. Types only ever widen, from
// Integer over Float to Text. The first token that fits no number is taken
// as the missing value marker; a second one makes the column text.
func (g *columnGuess) observe(f *CellFactory, token string) {
	if token == g.missing && token != "" {
		return
	}
	candidates := []ColumnType{Integer, Float}
	for _, t := range candidates {
		if widen(g.typ, t) != t {
			continue
		}
		if _, err := f.Make(t, token, ""); err == nil {
			g.typ = t
			g.seenReal = true
			return
		}
	}
	if g.typ == Text && g.seenReal {
		return
	}
	if g.missing == "" {
		g.missing = token
		return
	}
	g.typ = Text
	g.seenReal = true
	g.missing = ""
}

// firstRows holds the tokens of the first two non-empty rows.
type firstRows struct {
	header []tokenizer.Token
	second []tokenizer.Token
	seen   int
}

// detectColumns guesses column types and missing value markers, then decides
// whether the first row holds column headers and names the columns.
func (a *analyzer) detectColumns(ctx context.Context, d draft, st *stage) (draft, error) {
	s := d.settings
	numCols := s.ColumnCount()
	factory := a.factory(s)

	guesses := make([]*columnGuess, numCols)
	for i := range guesses {
		guesses[i] = &columnGuess{typ: Integer}
	}

	// The first row is only typed when the caller said there are no headers.
	typeFirstRow := s.Fixed.ColumnHeaders && !s.HasColumnHeaders

	scan, err := a.scan(ctx, s, st)
	if err != nil {
		return d, err
	}
	defer scan.close()

	var rows firstRows
	for {
		tokens, ok, err := scan.next()
		if err != nil {
			return d, err
		}
		if !ok {
			break
		}
		if len(tokens) == 0 {
			continue
		}
		rows.seen++
		switch rows.seen {
		case 1:
			rows.header = tokens
			if !typeFirstRow {
				continue
			}
		case 2:
			rows.second = tokens
		}
		if s.HasRowHeaders {
			tokens = tokens[1:]
		}
		for c := 0; c < numCols && c < len(tokens); c++ {
			tok := tokens[c]
			if s.Columns[c].UserSet || (tok.Text == "" && !tok.Quoted) || tok.Text == s.MissingPattern {
				continue
			}
			guesses[c].observe(factory, tok.Text)
		}
	}
	d.partial = d.partial || scan.truncated

	var neverReal []int
	for c, g := range guesses {
		col := &s.Columns[c]
		if col.UserSet {
			continue
		}
		if !g.seenReal {
			col.Type = Text
			col.MissingPattern = ""
			neverReal = append(neverReal, c)
			continue
		}
		col.Type = g.typ
		col.MissingPattern = s.MissingPattern
		if g.missing != "" {
			col.MissingPattern = g.missing
		}
	}
	if len(neverReal) > 0 && rows.seen > 1 {
		d = d.note("%s", neverRealMessage(neverReal))
		a.logger.Warn("columns without values set to text", "columns", neverReal)
	}

	headers := a.decideColumnHeaders(s, factory, rows)
	a.nameColumns(s, headers)
	return d, nil
}

func neverRealMessage(columns []int) string {
	var b strings.Builder
	b.WriteString("column(s) with index ")
	for i, c := range columns {
		if i == maxReportedColumns {
			b.WriteString(", ...and more")
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "#%d", c)
	}
	b.WriteString(" contain no value and are read as text")
	return b.String()
}

func (a *analyzer) factory(s *Settings) *CellFactory {
	f := NewCellFactory()
	f.SetDecimalSeparator(rune(s.DecimalSeparator))
	f.SetThousandsSeparator(rune(s.ThousandsSeparator))
	return f
}

// decideColumnHeaders sets HasColumnHeaders unless fixed and returns the
// header tokens, one slot per column, or nil.
//
// Evidence, strongest first: the first row lacks the row header token; a
// header does not fit its column type; the row header of the first row does
// not continue into the second row; the headers themselves count up like
// "Col1", "Col2".
func (a *analyzer) decideColumnHeaders(s *Settings, factory *CellFactory, rows firstRows) []*tokenizer.Token {
	numCols := s.ColumnCount()
	if rows.header == nil {
		if !s.Fixed.ColumnHeaders {
			s.HasColumnHeaders = false
		}
		return nil
	}

	shifted := s.HasRowHeaders && len(rows.header) == numCols
	candidates := rows.header
	var rowHeader *tokenizer.Token
	if s.HasRowHeaders && !shifted {
		rowHeader = &rows.header[0]
		candidates = rows.header[1:]
	}
	headers := make([]*tokenizer.Token, numCols)
	for c := 0; c < numCols && c < len(candidates); c++ {
		headers[c] = &candidates[c]
	}

	if s.Fixed.ColumnHeaders {
		if !s.HasColumnHeaders {
			return nil
		}
		return headers
	}

	s.HasColumnHeaders = a.looksLikeHeaders(s, factory, shifted, headers, rowHeader, rows.second)
	if !s.HasColumnHeaders {
		return nil
	}
	return headers
}

func (a *analyzer) looksLikeHeaders(s *Settings, factory *CellFactory, shifted bool, headers []*tokenizer.Token, rowHeader *tokenizer.Token, second []tokenizer.Token) bool {
	if shifted {
		a.logger.Debug("column headers detected", "reason", "row header missing in first row")
		return true
	}
	for c, h := range headers {
		if h == nil || h.Text == "" || h.Text == s.MissingPattern || h.Text == s.Columns[c].MissingPattern {
			continue
		}
		if _, err := factory.Make(s.Columns[c].Type, h.Text, ""); err != nil {
			a.logger.Debug("column headers detected", "reason", "type mismatch", "column", c, "header", h.Text)
			return true
		}
	}
	if rowHeader != nil && len(second) > 0 {
		var affix HeaderAffix
		if !affix.Start(rowHeader.Text) || !affix.Next(second[0].Text) {
			a.logger.Debug("column headers detected", "reason", "first row header out of sequence")
			return true
		}
	}
	var names []string
	for _, h := range headers {
		if h == nil {
			break
		}
		names = append(names, h.Text)
	}
	if len(names) == len(headers) && consecutiveHeaders(names, true) {
		a.logger.Debug("column headers detected", "reason", "numbered headers")
		return true
	}
	return false
}

// nameColumns names every column that was not fixed by the caller, from
// headers when present and Col<i> otherwise. Names are made unique by
// appending "(n)".
func (a *analyzer) nameColumns(s *Settings, headers []*tokenizer.Token) {
	used := map[string]bool{}
	for _, c := range s.Columns {
		if c.UserSet {
			used[c.Name] = true
		}
	}
	for i := range s.Columns {
		col := &s.Columns[i]
		if col.UserSet {
			continue
		}
		name := defaultColumnName(i)
		if headers != nil && headers[i] != nil && headers[i].Text != "" {
			name = headers[i].Text
		}
		unique := name
		for n := 1; used[unique]; n++ {
			unique = fmt.Sprintf("%s(%d)", name, n)
		}
		used[unique] = true
		col.Name = unique
	}
}
