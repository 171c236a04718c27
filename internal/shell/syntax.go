package shell

import (
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// Quote returns s as a single bash word that expands back to exactly s.
func Quote(s string) string {
	if q, err := syntax.Quote(s, syntax.LangBash); err == nil {
		return q
	}
	// syntax.Quote rejects a few inputs such as NUL bytes; plain single
	// quoting is still a literal for everything bash can hold in a word.
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Check parses src as bash and returns the first syntax error, if any.
func Check(src string) error {
	_, err := Parse(src)
	return err
}

// Parse parses src as a bash program.
func Parse(src string) (*syntax.File, error) {
	parser := syntax.NewParser(syntax.KeepComments(false), syntax.Variant(syntax.LangBash))
	return parser.Parse(strings.NewReader(src), "")
}
