// Package tokenizer splits delimited text into tokens using Shape's character streams.
package tokenizer

// Kind classifies a token returned by the tokenizer.
//
// Data tokens carry cell content. Delimiter tokens are only produced for
// delimiters configured with ReturnAsToken (row delimiters are always
// configured that way). Comment tokens are only produced for comments
// configured with ReturnAsToken.
type Kind int

const (
	KindData Kind = iota
	KindDelimiter
	KindComment
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "Data"
	case KindDelimiter:
		return "Delimiter"
	case KindComment:
		return "Comment"
	}
	return "Unknown"
}

// Token is a single unit of delimited text.
type Token struct {
	Kind Kind
	Text string
	// Quoted reports whether any part of the token was enclosed in quotes.
	Quoted bool
}

// IsData reports whether the token carries cell content.
func (t Token) IsData() bool {
	return t.Kind == KindData
}

// Delimiter describes a token separator.
type Delimiter struct {
	Pattern string
	// Combine treats consecutive occurrences as one.
	Combine bool
	// ReturnAsToken emits the delimiter itself as a KindDelimiter token.
	ReturnAsToken bool
	// IncludeInToken appends the delimiter to the token it terminates.
	IncludeInToken bool
}

// Quote describes a quoting pair. Escape is zero when the quote has no escape character.
type Quote struct {
	Left   string
	Right  string
	Escape rune
}

// Comment describes a comment. A single line comment ends with "\n"; the
// newline itself is left in the input so it still terminates the row.
type Comment struct {
	Begin          string
	End            string
	ReturnAsToken  bool
	IncludeInToken bool
}

// IsSingleLine reports whether the comment is terminated by a newline.
func (c Comment) IsSingleLine() bool {
	return c.End == "\n"
}

// Settings is the structural configuration the tokenizer honors.
type Settings struct {
	Delimiters  []Delimiter
	Quotes      []Quote
	Comments    []Comment
	Whitespaces []string
}
