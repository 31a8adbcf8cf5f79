package filereader

import (
	"context"
	"strings"
)

// lineSettings tokenizes s.Location into whole lines, honoring only the
// given comments.
func lineSettings(s *Settings, comments []Comment) *Settings {
	lines := &Settings{Location: s.Location, Charset: s.Charset, Comments: comments}
	lines.AddRowDelimiter(DefaultRowDelimiter, false)
	return lines
}

// detectComments looks for the first line starting with '#', '%' or "//".
// Only the head of the file is inspected, comments tend to sit at the top.
func (a *analyzer) detectComments(ctx context.Context, d draft, st *stage) (draft, error) {
	if d.settings.Fixed.Comments {
		return d, nil
	}
	scan, err := a.scan(ctx, lineSettings(d.settings, nil), st)
	if err != nil {
		return d, err
	}
	defer scan.close()

	for lines := 0; lines < commentScanLines; {
		tokens, ok, err := scan.next()
		if err != nil {
			return d, err
		}
		if !ok {
			break
		}
		if len(tokens) == 0 || tokens[0].Text == "" {
			continue
		}
		lines++
		line := strings.TrimLeft(tokens[0].Text, " \t")
		switch {
		case strings.HasPrefix(line, "#"):
			d.settings.AddSingleLineComment("#")
		case strings.HasPrefix(line, "%"):
			d.settings.AddSingleLineComment("%")
		case strings.HasPrefix(line, "//"):
			d.settings.AddSingleLineComment("//")
			d.settings.AddBlockComment("/*", "*/")
		default:
			continue
		}
		a.logger.Debug("comment detected", "begin", d.settings.Comments[0].Begin, "line", scan.line)
		break
	}
	return d, nil
}

// quoteCount tracks whether a quote character balances on every line, with
// and without treating backslash as escape.
type quoteCount struct {
	char         rune
	usable       bool
	needEscape   bool
	forbidEscape bool
}

// count inspects one line. Raw counts all occurrences; plain counts the ones
// not preceded by a backslash.
func (q *quoteCount) count(line string) {
	raw, plain := 0, 0
	prev := rune(0)
	for _, r := range line {
		if r == q.char {
			raw++
			if prev != '\\' {
				plain++
			}
		}
		prev = r
	}
	rawEven, plainEven := raw%2 == 0, plain%2 == 0
	switch {
	case rawEven && plainEven:
	case plainEven:
		q.needEscape = true
	case rawEven:
		q.forbidEscape = true
	default:
		q.usable = false
	}
}

// detectQuotes accepts the double quote and the apostrophe as quotes if they
// balance on every line.
func (a *analyzer) detectQuotes(ctx context.Context, d draft, st *stage) (draft, error) {
	if d.settings.Fixed.Quotes {
		return d, nil
	}
	scan, err := a.scan(ctx, lineSettings(d.settings, d.settings.Comments), st)
	if err != nil {
		return d, err
	}
	defer scan.close()

	counts := []*quoteCount{{char: '"', usable: true}, {char: '\'', usable: true}}
	for {
		tokens, ok, err := scan.next()
		if err != nil {
			return d, err
		}
		if !ok {
			break
		}
		for _, tok := range tokens {
			for _, q := range counts {
				q.count(tok.Text)
			}
		}
	}
	if scan.truncated {
		d.partial = true
	}

	for _, q := range counts {
		if !q.usable || (q.needEscape && q.forbidEscape) {
			a.logger.Debug("quote rejected", "quote", string(q.char))
			continue
		}
		escape := rune(0)
		if q.needEscape {
			escape = '\\'
		}
		d.settings.AddQuote(string(q.char), string(q.char), escape)
	}
	return d, nil
}
