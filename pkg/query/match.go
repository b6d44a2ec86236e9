// Package query turns free text typed by a user into an FTS5 match expression
// for Craft's BlockSearch table.
//
// Every token is wrapped in double quotes so that FTS5 operators typed by the user
// (AND, OR, NEAR, column filters, parentheses) are matched literally instead of
// being interpreted. Double quotes inside a token are stripped, never escaped.
//
// The expression always targets the content and exactMatchContent columns and ORs
// up to three variants of the phrase:
//
//	{content exactMatchContent} : (("hello world") OR ("hello world*") OR ("hello* world*"))
//
// The third variant is only produced for queries with more than one token.
package query

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Columns is the FTS5 column filter every match expression is scoped to.
const Columns = "{content exactMatchContent}"

// Tokens splits text on runs of whitespace and returns the cleaned tokens.
// Tokens are NFC normalized and stripped of double quotes; tokens left empty
// after stripping are dropped.
func Tokens(text string) []string {
	fields := strings.Fields(text)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		t := strings.ReplaceAll(norm.NFC.String(f), `"`, "")
		if t == "" {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// BuildMatch returns the match expression for text, or "" when text contains no
// searchable tokens. An empty result means the caller should fall back to the
// default, unfiltered ordering.
func BuildMatch(text string) string {
	tokens := Tokens(text)
	if len(tokens) == 0 {
		return ""
	}

	phrase := strings.Join(tokens, " ")
	variants := []string{
		quote(phrase),
		quote(phrase + "*"),
	}
	if len(tokens) > 1 {
		variants = append(variants, quote(strings.Join(tokens, "* ")+"*"))
	}

	var b strings.Builder
	b.WriteString(Columns)
	b.WriteString(" : (")
	for i, v := range variants {
		if i > 0 {
			b.WriteString(" OR ")
		}
		b.WriteString("(")
		b.WriteString(v)
		b.WriteString(")")
	}
	b.WriteString(")")
	return b.String()
}

func quote(s string) string {
	return `"` + s + `"`
}
