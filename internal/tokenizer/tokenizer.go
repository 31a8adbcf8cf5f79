package tokenizer

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shapestone/shape-core/pkg/tokenizer"
)

// ErrUnterminatedQuote is reported by Err when the input ends inside a quoted section.
var ErrUnterminatedQuote = errors.New("unterminated quote")

// Tokenizer splits a character stream into data, delimiter and comment tokens.
//
// Characters are pulled from a Shape stream into a small lookahead buffer so
// that multi-character delimiters, quotes and comments can be matched without
// backtracking the underlying reader. CRLF is normalized to LF before matching.
//
// Token rules:
//   - A column delimiter always terminates a token, so "a,,b" yields "a", "", "b".
//   - A returned delimiter (a row delimiter) terminates a pending token and is
//     then emitted itself; "a,\n" yields "a", "", "\n".
//   - Whitespace is trimmed from both ends of the unquoted parts of a token.
//   - A quoted section may appear anywhere in a token; its content is kept verbatim.
type Tokenizer struct {
	stream tokenizer.Stream
	src    *recordingReader

	delimiters  []Delimiter
	quotes      []Quote
	comments    []Comment
	whitespaces []string

	la  []rune
	eos bool

	line    int64
	pending []Token
	last    Token
	hasLast bool
	pushed  bool

	// afterSeparator is set once a column delimiter has been consumed; the
	// token following it must be emitted even when empty.
	afterSeparator bool
	// rowStart is true until the first data token of a row was emitted.
	rowStart bool

	err error
}

// New creates a tokenizer reading from r.
func New(r io.Reader, settings Settings) *Tokenizer {
	src := &recordingReader{r: r}
	t := &Tokenizer{
		stream:      tokenizer.NewStreamFromReader(src),
		src:         src,
		delimiters:  byLength(settings.Delimiters, func(d Delimiter) string { return d.Pattern }),
		quotes:      byLength(settings.Quotes, func(q Quote) string { return q.Left }),
		comments:    byLength(settings.Comments, func(c Comment) string { return c.Begin }),
		whitespaces: nonEmpty(settings.Whitespaces),
		line:        1,
		rowStart:    true,
	}
	return t
}

// byLength drops entries with an empty pattern and orders the rest longest
// pattern first so that "\t\t" wins over "\t".
func byLength[T any](items []T, pattern func(T) string) []T {
	var result []T
	for _, item := range items {
		if pattern(item) != "" {
			result = append(result, item)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return len([]rune(pattern(result[i]))) > len([]rune(pattern(result[j])))
	})
	return result
}

func nonEmpty(values []string) []string {
	var result []string
	for _, v := range values {
		if v != "" {
			result = append(result, v)
		}
	}
	return result
}

// NextToken returns the next token. It returns false at the end of the input
// or after an error; Err distinguishes the two.
func (t *Tokenizer) NextToken() (Token, bool) {
	if t.pushed {
		t.pushed = false
		return t.last, true
	}
	if len(t.pending) > 0 {
		tok := t.pending[0]
		t.pending = t.pending[1:]
		return t.remember(tok), true
	}
	if t.err != nil {
		return Token{}, false
	}
	tok, ok := t.read()
	if !ok {
		return Token{}, false
	}
	return t.remember(tok), true
}

func (t *Tokenizer) remember(tok Token) Token {
	t.last = tok
	t.hasLast = true
	switch tok.Kind {
	case KindDelimiter:
		t.rowStart = true
	case KindData:
		t.rowStart = false
	}
	return tok
}

// PushBack makes the next call to NextToken return the last token again.
// Only one token can be pushed back.
func (t *Tokenizer) PushBack() {
	if t.hasLast {
		t.pushed = true
	}
}

// LastTokenWasQuoted reports whether the most recently returned token contained a quoted section.
func (t *Tokenizer) LastTokenWasQuoted() bool {
	return t.hasLast && t.last.Quoted
}

// LineNumber returns the 1-based line of the current read position.
func (t *Tokenizer) LineNumber() int64 {
	return t.line
}

// Err returns the first error that stopped tokenization, if any.
func (t *Tokenizer) Err() error {
	if t.err != nil {
		return t.err
	}
	return t.src.err
}

// read scans one token from the stream.
func (t *Tokenizer) read() (Token, bool) {
	var b strings.Builder
	keep := 0
	started := false
	quoted := false
	mustEmit := t.afterSeparator
	t.afterSeparator = false

	finish := func() Token {
		return Token{Kind: KindData, Text: b.String()[:keep], Quoted: quoted}
	}

	for {
		if !t.fill(1) {
			if started || mustEmit {
				return finish(), true
			}
			return Token{}, false
		}

		if c, ok := t.matchComment(); ok {
			text := t.readComment(c)
			if c.IncludeInToken {
				b.WriteString(text)
				keep = b.Len()
				started = true
			}
			if c.ReturnAsToken {
				comment := Token{Kind: KindComment, Text: text}
				if started || mustEmit {
					t.pending = append(t.pending, comment)
					return finish(), true
				}
				return comment, true
			}
			continue
		}

		if q, ok := t.matchQuote(); ok {
			started = true
			quoted = true
			if !t.readQuoted(q, &b) {
				t.err = fmt.Errorf("%w %s starting before line %d", ErrUnterminatedQuote, q.Left, t.line)
				return Token{}, false
			}
			keep = b.Len()
			continue
		}

		if d, ok := t.matchDelimiter(); ok {
			t.consumePattern(d.Pattern)
			if d.Combine {
				for t.hasPrefix(d.Pattern) {
					t.consumePattern(d.Pattern)
				}
			}
			if d.ReturnAsToken {
				delim := Token{Kind: KindDelimiter, Text: d.Pattern}
				if started || mustEmit {
					t.pending = append(t.pending, delim)
					return finish(), true
				}
				return delim, true
			}
			if d.Combine && t.rowStart && !started && !mustEmit {
				// leading run of a combined delimiter, e.g. indentation
				continue
			}
			if d.IncludeInToken {
				b.WriteString(d.Pattern)
				keep = b.Len()
			}
			t.afterSeparator = true
			return finish(), true
		}

		if ws, ok := t.matchWhitespace(); ok {
			t.consumePattern(ws)
			if started {
				b.WriteString(ws)
			}
			continue
		}

		b.WriteRune(t.la[0])
		t.consume(1)
		keep = b.Len()
		started = true
	}
}

// readQuoted consumes a quoted section including both quote patterns. It
// reports false if the input ends before the closing quote.
func (t *Tokenizer) readQuoted(q Quote, b *strings.Builder) bool {
	t.consumePattern(q.Left)
	for {
		if !t.fill(1) {
			return false
		}
		if q.Escape != 0 && t.la[0] == q.Escape && t.fill(2) {
			next := t.la[1]
			if next == q.Escape || strings.HasPrefix(q.Right, string(next)) {
				b.WriteRune(next)
				t.consume(2)
				continue
			}
		}
		if t.hasPrefix(q.Right) {
			t.consumePattern(q.Right)
			if q.Left == q.Right && t.hasPrefix(q.Right) {
				// doubled closing quote
				b.WriteString(q.Right)
				t.consumePattern(q.Right)
				continue
			}
			return true
		}
		b.WriteRune(t.la[0])
		t.consume(1)
	}
}

// readComment consumes a comment and returns its text. The newline ending a
// single line comment stays in the input.
func (t *Tokenizer) readComment(c Comment) string {
	var b strings.Builder
	b.WriteString(c.Begin)
	t.consumePattern(c.Begin)
	for t.fill(1) {
		if t.hasPrefix(c.End) {
			if !c.IsSingleLine() {
				b.WriteString(c.End)
				t.consumePattern(c.End)
			}
			break
		}
		b.WriteRune(t.la[0])
		t.consume(1)
	}
	return b.String()
}

func (t *Tokenizer) matchComment() (Comment, bool) {
	for _, c := range t.comments {
		if t.hasPrefix(c.Begin) {
			return c, true
		}
	}
	return Comment{}, false
}

func (t *Tokenizer) matchQuote() (Quote, bool) {
	for _, q := range t.quotes {
		if t.hasPrefix(q.Left) {
			return q, true
		}
	}
	return Quote{}, false
}

func (t *Tokenizer) matchDelimiter() (Delimiter, bool) {
	for _, d := range t.delimiters {
		if t.hasPrefix(d.Pattern) {
			return d, true
		}
	}
	return Delimiter{}, false
}

func (t *Tokenizer) matchWhitespace() (string, bool) {
	for _, ws := range t.whitespaces {
		if t.hasPrefix(ws) {
			return ws, true
		}
	}
	return "", false
}

// fill makes sure at least n runes are buffered. It returns false if the
// stream ends first.
func (t *Tokenizer) fill(n int) bool {
	for len(t.la) < n && !t.eos {
		r, ok := t.stream.NextChar()
		if !ok {
			t.eos = true
			break
		}
		if r == '\r' {
			next, ok := t.stream.NextChar()
			if !ok {
				t.eos = true
			} else if next != '\n' {
				t.la = append(t.la, r)
				r = next
			} else {
				r = next
			}
		}
		t.la = append(t.la, r)
	}
	return len(t.la) >= n
}

func (t *Tokenizer) hasPrefix(pattern string) bool {
	runes := []rune(pattern)
	if len(runes) == 0 || !t.fill(len(runes)) {
		return false
	}
	for i, r := range runes {
		if t.la[i] != r {
			return false
		}
	}
	return true
}

func (t *Tokenizer) consumePattern(pattern string) {
	t.consume(len([]rune(pattern)))
}

func (t *Tokenizer) consume(n int) {
	if n > len(t.la) {
		n = len(t.la)
	}
	for _, r := range t.la[:n] {
		if r == '\n' {
			t.line++
		}
	}
	t.la = t.la[n:]
}

// recordingReader remembers the first non-EOF read error, which the stream
// itself reports only as end of input.
type recordingReader struct {
	r   io.Reader
	err error
}

func (r *recordingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if err != nil && err != io.EOF && r.err == nil {
		r.err = err
	}
	return n, err
}
