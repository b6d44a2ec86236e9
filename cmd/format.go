package cmd

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/rubiojr/craftsearch/pkg/core"
	"github.com/rubiojr/craftsearch/pkg/search"
)

var (
	spaceStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Margin(1, 0, 0, 0)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	matchStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("203"))

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32")).
			Margin(1, 0, 0, 0)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// summaryWidth is the number of characters shown per block.
const summaryWidth = 100

var titleCaser = cases.Title(language.English)

// entityLabel turns an entity type such as "todo_item" into "Todo Item".
func entityLabel(entityType string) string {
	if entityType == "" {
		return "Block"
	}
	return titleCaser.String(strings.ReplaceAll(entityType, "_", " "))
}

func displayName(names map[string]string, spaceID string) string {
	if name, ok := names[spaceID]; ok {
		return name
	}
	return spaceID
}

// highlight marks every case-insensitive occurrence of tokens in text.
func highlight(text string, tokens []string) string {
	if len(tokens) == 0 || text == "" {
		return text
	}

	runes := []rune(text)
	lower := lowerRunes(runes)

	marked := make([]bool, len(runes))
	for _, tok := range tokens {
		t := lowerRunes([]rune(tok))
		if len(t) == 0 {
			continue
		}
		for i := 0; i+len(t) <= len(lower); i++ {
			if runesEqual(lower[i:i+len(t)], t) {
				for j := i; j < i+len(t); j++ {
					marked[j] = true
				}
			}
		}
	}

	var b strings.Builder
	for i := 0; i < len(runes); {
		j := i
		for j < len(runes) && marked[j] == marked[i] {
			j++
		}
		if marked[i] {
			b.WriteString(matchStyle.Render(string(runes[i:j])))
		} else {
			b.WriteString(string(runes[i:j]))
		}
		i = j
	}
	return b.String()
}

// lowerRunes lowers each rune on its own so the result keeps the rune count.
// strings.ToLower may not, for example for 'İ'.
func lowerRunes(runes []rune) []rune {
	out := make([]rune, len(runes))
	for i, r := range runes {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// formatBlocks renders a flat result list, one section per space.
func formatBlocks(res *search.Results, names map[string]string, tokens []string) string {
	var out strings.Builder

	current := ""
	n := 0
	for _, b := range res.Blocks {
		if b.SpaceID != current || n == 0 {
			current = b.SpaceID
			out.WriteString(spaceStyle.Render(displayName(names, current)))
			out.WriteString("\n")
		}
		n++
		fmt.Fprintf(&out, "%3d. %s\n", n, highlight(b.Summary(summaryWidth), tokens))
		out.WriteString("     " + metaStyle.Render(blockMeta(b)) + "\n")
	}

	out.WriteString(formatFailures(res))
	out.WriteString(formatSummary(res))
	return out.String()
}

func blockMeta(b core.Block) string {
	if b.IsDocument() {
		return "Document " + b.ID
	}
	return fmt.Sprintf("%s in document %s", entityLabel(b.EntityType), b.DocumentID)
}

// formatDocuments renders document groups with their matching blocks.
func formatDocuments(res *search.Results, names map[string]string, tokens []string) string {
	var out strings.Builder

	current := ""
	for i, g := range res.Documents {
		if g.SpaceID != current || i == 0 {
			current = g.SpaceID
			out.WriteString(spaceStyle.Render(displayName(names, current)))
			out.WriteString("\n")
		}

		if g.Placeholder() {
			out.WriteString("  " + noDataStyle.Render("Untitled document "+g.DocumentID) + "\n")
		} else {
			out.WriteString("  " + titleStyle.Render(highlight(g.Header.Summary(summaryWidth), tokens)) + "\n")
		}
		for _, child := range g.Children {
			out.WriteString("    • " + highlight(child.Summary(summaryWidth-4), tokens) + "\n")
		}
	}

	out.WriteString(formatFailures(res))
	out.WriteString(formatSummary(res))
	return out.String()
}

// formatFailures lists the spaces that could not be searched.
func formatFailures(res *search.Results) string {
	failed := res.FailedSpaces()
	if len(failed) == 0 {
		return ""
	}
	var out strings.Builder
	out.WriteString("\n")
	for _, f := range failed {
		out.WriteString(warnStyle.Render("! "+f.Err.Error()) + "\n")
	}
	return out.String()
}

func formatSummary(res *search.Results) string {
	if res.Len() == 0 {
		msg := "No results found"
		if res.Partial() {
			msg += " in the spaces that could be searched"
		}
		return noDataStyle.Render(msg) + "\n"
	}

	unit := "results"
	if res.Mode == search.ModeDocuments {
		unit = "documents"
	}
	searched := len(res.Spaces) - len(res.FailedSpaces())
	return summaryStyle.Render(fmt.Sprintf("%d %s across %d spaces", res.Len(), unit, searched)) + "\n"
}

// formatElapsed formats a query duration for display.
func formatElapsed(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// formatSpaceStats shows how each space answered.
func formatSpaceStats(res *search.Results, names map[string]string) string {
	var out strings.Builder
	out.WriteString("\n")
	for _, s := range res.Spaces {
		status := fmt.Sprintf("%d rows in %s", s.Count, formatElapsed(s.Duration))
		switch {
		case s.Failed():
			status = "unavailable"
		case s.Cached:
			status += " (cached)"
		}
		out.WriteString(metaStyle.Render(fmt.Sprintf("%-24s %s", displayName(names, s.SpaceID), status)) + "\n")
	}
	return out.String()
}
