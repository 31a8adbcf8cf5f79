//go:build go1.18
// +build go1.18

package tokenizer

import (
	"strings"
	"testing"
)

// FuzzTokenizer tests the tokenizer with random inputs to find edge cases and panics.
// Run with: go test -fuzz=FuzzTokenizer -fuzztime=30s ./internal/tokenizer
func FuzzTokenizer(f *testing.F) {
	seeds := []string{
		"",
		"a",
		";",
		"\n",
		"\r\n",
		"\"",
		"\"\"",
		"a;b;c",
		"\"quoted\"",
		"\"with;delim\"",
		"\"with\"\"quote\"",
		"'single \\' escaped'",
		"# comment\na;b",
		"/* block\n */x",
		"a\nb\nc",
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		tok := New(strings.NewReader(input), testSettings())
		for i := 0; ; i++ {
			token, ok := tok.NextToken()
			if !ok {
				break
			}
			if i > 4*len(input)+4 {
				t.Fatalf("tokenizer does not terminate on %q", input)
			}
			_ = token
		}
	})
}
